// bread runs the Bread engine with its developer console and remote command
// server.
//
// Usage:
//
//	bread run                - Run headless with a line console on stdin
//	bread console            - Run with the interactive console screen
//	bread serve              - Serve the console over SSH
//	bread history            - Browse remote command history
//	bread version            - Print the engine version
//
// Global flags:
//
//	--config <path>     - Config file (YAML or TOML)
//	--log-level <lvl>   - Override log.level
//	--db <path>         - Override storage.db_path
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/bread/internal/engine"
)

var (
	// Global flags
	flagConfigPath string
	flagLogLevel   string
	flagDBPath     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bread",
	Short: "Bread engine with a remote command console",
	Long: `Bread runs the engine frame loop with its developer console. Consoles on
different machines can be linked with the remote command server: one side
hosts, the others join, and commands typed on one side run on the other.

Available commands:
  run      - Headless engine with a line console on stdin
  console  - Interactive console screen
  serve    - Console over SSH
  history  - Recorded remote commands and sessions
  version  - Print the engine version

Examples:
  bread run --host
  bread run --join 192.168.1.20
  bread console --config ./bread.toml
  bread serve --ssh :2222
  bread history --plain`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the engine version",
	Run: func(*cobra.Command, []string) {
		fmt.Printf("Bread v%s\n", engine.Version)
	},
}

func init() {
	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "Path to config file (.yaml or .toml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "Path to history database (default from config)")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}
