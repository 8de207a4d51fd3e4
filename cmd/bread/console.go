package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/bread/internal/engine"
	"github.com/vovakirdan/bread/internal/platform/tui"
)

var flagConsoleHost bool

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Run the engine with the interactive console screen",
	Long: `Run the engine with a full screen console.

Controls:
  Enter      - Run the typed command
  Up/Down    - Previous/next typed command
  PgUp/PgDn  - Scroll the log
  F1         - Toggle help
  Esc/Ctrl+C - Close

Examples:
  bread console
  bread console --host`,
	Args: cobra.NoArgs,
	RunE: runConsole,
}

func init() {
	consoleCmd.Flags().BoolVar(&flagConsoleHost, "host", false, "Start hosting the remote command server")
}

func runConsole(_ *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.engine.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	a.watchConfig(ctx)

	if flagConsoleHost {
		a.engine.Submit("rcs_host")
	}

	done := a.runEngine(ctx)

	title := fmt.Sprintf("%s v%s", a.cfg.Engine.Name, engine.Version)
	uiErr := tui.RunConsole(a.engine, title)

	// Closing the screen stops the engine too.
	cancel()
	if runErr := <-done; runErr != nil {
		return runErr
	}
	return uiErr
}
