package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vovakirdan/bread/internal/console"
	"github.com/vovakirdan/bread/internal/platform/tui"
)

var (
	flagRunHost bool
	flagRunJoin string
	flagRunExec []string
	flagRunStay bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the engine with a line console on stdin",
	Long: `Run the engine without a screen. Every line read from stdin runs as a
console command and every console line is printed to stdout.

When stdin closes the engine quits, unless --stay is given.

Examples:
  bread run --host
  bread run --join 192.168.1.20
  bread run --join host:4325 --exec "rcs_send help"
  echo "rcs_info" | bread run`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&flagRunHost, "host", false, "Start hosting the remote command server")
	runCmd.Flags().StringVar(&flagRunJoin, "join", "", "Join the remote command server at this address")
	runCmd.Flags().StringArrayVar(&flagRunExec, "exec", nil, "Console command to run at startup (repeatable)")
	runCmd.Flags().BoolVar(&flagRunStay, "stay", false, "Keep running after stdin closes")
}

func runRun(_ *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.engine.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	a.watchConfig(ctx)

	cons := a.engine.Console()
	backlog, listener := cons.SubscribeWithBacklog(console.DefaultListenerBuffer)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		printEntries(os.Stdout, backlog, listener)
	}()

	for _, line := range startupCommands() {
		a.engine.Submit(line)
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		fmt.Fprintln(os.Stderr, "Type 'help' for a list of commands, 'quit' to exit.")
	}
	go readLines(os.Stdin, a.engine.Submit, !flagRunStay)

	runErr := a.engine.Run(ctx)

	cons.Unsubscribe(listener)
	<-printed
	return runErr
}

// startupCommands returns the console lines implied by the run flags.
func startupCommands() []string {
	var lines []string
	if flagRunHost {
		lines = append(lines, "rcs_host")
	}
	if flagRunJoin != "" {
		lines = append(lines, "rcs_join "+flagRunJoin)
	}
	return append(lines, flagRunExec...)
}

// readLines submits every line from r. At end of input it submits quit when
// quitOnEOF is set.
func readLines(r io.Reader, submit func(string), quitOnEOF bool) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		submit(scanner.Text())
	}
	if quitOnEOF {
		submit("quit")
	}
}

// printEntries writes console lines to w until the listener closes, then
// writes whatever is still buffered.
func printEntries(w io.Writer, backlog []console.Entry, l *console.Listener) {
	for _, e := range backlog {
		printEntry(w, e)
	}
	for {
		select {
		case e := <-l.Entries():
			printEntry(w, e)
		case <-l.Done():
			for {
				select {
				case e := <-l.Entries():
					printEntry(w, e)
				default:
					return
				}
			}
		}
	}
}

func printEntry(w io.Writer, e console.Entry) {
	if e.Cleared {
		return
	}
	fmt.Fprintln(w, tui.RenderEntry(e))
}
