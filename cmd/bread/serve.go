package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/bread/internal/platform/tui"
)

var (
	flagSSHAddr     string
	flagHostKey     string
	flagIdleTimeout int
	flagServeHost   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the engine console over SSH",
	Long: `Start the engine and an SSH server that gives every connection the
console screen. All sessions share the one engine, so a command typed in any
session runs on the engine frame loop and its output appears everywhere.

Host key handling:
  - If --host-key is provided, uses that key file
  - Otherwise uses ssh.host_key from the config

Examples:
  bread serve                           # Listen on ssh.address from config
  bread serve --ssh :2222               # Listen on port 2222
  bread serve --host                    # Also host the remote command server

Users can connect with:
  ssh localhost -p 23235`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagSSHAddr, "ssh", "", "SSH server address (host:port), default from config")
	serveCmd.Flags().StringVar(&flagHostKey, "host-key", "", "Path to host key file, default from config")
	serveCmd.Flags().IntVar(&flagIdleTimeout, "idle-timeout", 0, "Idle timeout in minutes before disconnecting")
	serveCmd.Flags().BoolVar(&flagServeHost, "host", false, "Start hosting the remote command server")
}

// sshConfig merges the serve flags over the loaded configuration.
func sshConfig(a *app) tui.SSHServerConfig {
	cfg := tui.DefaultSSHServerConfig()
	if a.cfg.SSH.Address != "" {
		cfg.Address = a.cfg.SSH.Address
	}
	cfg.HostKeyPath = a.cfg.SSH.HostKey
	if a.cfg.SSH.IdleTimeoutMinutes > 0 {
		cfg.IdleTimeout = a.cfg.SSH.IdleTimeout()
	}

	if flagSSHAddr != "" {
		cfg.Address = flagSSHAddr
	}
	if flagHostKey != "" {
		cfg.HostKeyPath = flagHostKey
	}
	if flagIdleTimeout > 0 {
		cfg.IdleTimeout = time.Duration(flagIdleTimeout) * time.Minute
	}
	return cfg
}

func runServe(_ *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.engine.Shutdown()

	cfg := sshConfig(a)
	server, err := tui.NewSSHServer(cfg, a.engine, a.logger.WithPrefix("ssh"))
	if err != nil {
		return fmt.Errorf("error creating server: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	a.watchConfig(ctx)

	if flagServeHost {
		a.engine.Submit("rcs_host")
	}

	done := a.runEngine(ctx)
	var runErr error
	stopped := make(chan struct{})
	go func() {
		// The quit command stops the engine; take the server down with it.
		runErr = <-done
		cancel()
		close(stopped)
	}()

	fmt.Printf("Serving the Bread console on %s\n", cfg.Address)
	fmt.Println("Press Ctrl+C to stop")

	serveErr := server.Serve(ctx)
	cancel()
	<-stopped
	if serveErr != nil {
		return serveErr
	}
	return runErr
}
