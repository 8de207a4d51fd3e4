package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vovakirdan/bread/internal/platform/tui"
	"github.com/vovakirdan/bread/internal/storage"
)

var (
	flagHistoryPlain bool
	flagHistoryLimit int
	flagHistoryPeer  string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded remote commands",
	Long: `Show the remote commands this machine received while hosting or joined.

On a terminal this opens a browser with remote commands and session changes.
With --plain, or when stdout is not a terminal, the newest commands are
printed as text.

Examples:
  bread history
  bread history --plain --limit 50
  bread history --plain --peer 192.168.1.20:51234`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().BoolVar(&flagHistoryPlain, "plain", false, "Print text instead of opening the browser")
	historyCmd.Flags().IntVar(&flagHistoryLimit, "limit", 20, "Number of commands to print")
	historyCmd.Flags().StringVar(&flagHistoryPeer, "peer", "", "Only print commands from this peer address")
}

func runHistory(_ *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("error opening history database: %w", err)
	}
	defer store.Close()

	if !flagHistoryPlain && flagHistoryPeer == "" && term.IsTerminal(int(os.Stdout.Fd())) {
		width, height := 80, 24 // Defaults
		if w, h, termErr := term.GetSize(int(os.Stdout.Fd())); termErr == nil {
			width = w
			height = h
		}
		return tui.RunHistory(store, width, height)
	}

	var recs []storage.RemoteCommandRecord
	if flagHistoryPeer != "" {
		recs, err = store.RemoteCommandsByPeer(flagHistoryPeer, flagHistoryLimit)
	} else {
		recs, err = store.RecentRemoteCommands(flagHistoryLimit)
	}
	if err != nil {
		return fmt.Errorf("error retrieving history: %w", err)
	}

	total, err := store.CountRemoteCommands()
	if err != nil {
		return fmt.Errorf("error counting history: %w", err)
	}

	if len(recs) == 0 {
		fmt.Println("No remote commands recorded yet.")
		return nil
	}

	// Calculate column widths
	maxPeerLen := 4 // "Peer" header
	for _, r := range recs {
		if len(r.Peer) > maxPeerLen {
			maxPeerLen = len(r.Peer)
		}
	}

	fmt.Printf("  %-16s  %-*s  %s\n", "Date", maxPeerLen, "Peer", "Command")
	fmt.Printf("  %-16s  %-*s  %s\n", "----", maxPeerLen, "----", "-------")
	for _, r := range recs {
		fmt.Printf("  %-16s  %-*s  %s\n", r.CreatedAt.Format("2006-01-02 15:04"), maxPeerLen, r.Peer, r.Command)
	}

	fmt.Println()
	fmt.Printf("Showing %d of %s recorded commands.\n", len(recs), humanize.Comma(int64(total)))
	return nil
}
