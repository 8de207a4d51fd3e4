package engine

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/bread/internal/config"
	"github.com/vovakirdan/bread/internal/netsock/netsocktest"
	"github.com/vovakirdan/bread/internal/rcs"
	"github.com/vovakirdan/bread/internal/storage"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Jobs.Workers = 2
	cfg.Console.LogDir = t.TempDir()
	return cfg
}

func newTestEngine(t *testing.T, network *netsocktest.Network, store *storage.Store) *Engine {
	t.Helper()
	e, err := New(Options{
		Config:  testConfig(t),
		Logger:  log.New(io.Discard),
		Network: network,
		Store:   store,
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(e.Shutdown)
	return e
}

func openStore(t *testing.T, path string) *storage.Store {
	t.Helper()
	store, err := storage.Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	return store
}

func texts(e *Engine) []string {
	entries := e.Console().Entries()
	out := make([]string, len(entries))
	for i, en := range entries {
		out[i] = en.Text
	}
	return out
}

func hasLine(e *Engine, want string) bool {
	for _, s := range texts(e) {
		if s == want {
			return true
		}
	}
	return false
}

func hasPrefix(e *Engine, prefix string) bool {
	for _, s := range texts(e) {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// connect hosts on a and joins from b.
func connect(t *testing.T, a, b *Engine) {
	t.Helper()
	a.Submit("rcs_host")
	a.Step()
	if !a.RCS().IsHost() {
		t.Fatalf("host role = %v, log %q", a.RCS().Role(), texts(a))
	}

	b.Submit("rcs_join")
	b.Step()
	if !b.RCS().IsClient() {
		t.Fatalf("client role = %v, log %q", b.RCS().Role(), texts(b))
	}

	a.Step()
	if n := len(a.RCS().Connections()); n != 1 {
		t.Fatalf("host has %d connections, want 1", n)
	}
}

func TestBanner(t *testing.T) {
	e := newTestEngine(t, netsocktest.New(), nil)

	if !hasLine(e, "Engine: Bread v"+Version) {
		t.Errorf("banner missing: %q", texts(e))
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.RCS.Port = 0

	if _, err := New(Options{Config: cfg, Logger: log.New(io.Discard), Network: netsocktest.New()}); err == nil {
		t.Error("New() with invalid config should fail")
	}
}

func TestStepFlushesSubmittedLines(t *testing.T) {
	e := newTestEngine(t, netsocktest.New(), nil)

	e.Submit("help")
	if hasLine(e, "Showing Registered Commands") {
		t.Fatal("submitted line ran before Step")
	}

	e.Step()
	if !hasLine(e, "Showing Registered Commands") {
		t.Errorf("help did not run: %q", texts(e))
	}
	if e.Frame() != 1 {
		t.Errorf("Frame() = %d, want 1", e.Frame())
	}
}

func TestRemoteCommandBetweenEngines(t *testing.T) {
	network := netsocktest.New()
	host := newTestEngine(t, network, nil)
	client := newTestEngine(t, network, nil)
	connect(t, host, client)

	client.Submit("rcs_send jobs_info")
	client.Step()
	host.Step()

	if !hasLine(host, "REMOTE COMMAND: jobs_info") {
		t.Errorf("host did not log remote command: %q", texts(host))
	}
	if !hasPrefix(host, "Jobs: ") {
		t.Errorf("jobs_info did not run on host: %q", texts(host))
	}
	if hasPrefix(client, "Jobs: ") {
		t.Error("jobs_info ran on the client")
	}
}

func TestServerEchoReachesPeer(t *testing.T) {
	network := netsocktest.New()
	host := newTestEngine(t, network, nil)
	client := newTestEngine(t, network, nil)
	connect(t, host, client)

	host.Submit("server_echo")
	host.Step()
	client.Step()

	if !hasLine(client, "REMOTE: Echo enabled.") {
		t.Errorf("client did not receive echo: %q", texts(client))
	}
}

func TestQuitStopsRun(t *testing.T) {
	e := newTestEngine(t, netsocktest.New(), nil)
	e.Submit("quit")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := e.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !e.Quitting() {
		t.Error("Quitting() = false after quit")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	e := newTestEngine(t, netsocktest.New(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := e.Run(ctx); err != nil {
		t.Errorf("Run() after cancel = %v, want nil", err)
	}
}

func TestShutdownLeavesSession(t *testing.T) {
	network := netsocktest.New()
	host := newTestEngine(t, network, nil)
	client := newTestEngine(t, network, nil)
	connect(t, host, client)

	host.Shutdown()
	host.Shutdown()

	if host.RCS().IsConnected() {
		t.Error("host still connected after Shutdown")
	}
	if network.Listening("4325") {
		t.Error("listener still open after Shutdown")
	}

	client.Step()
	if client.RCS().Role() != rcs.RoleDisconnected {
		t.Errorf("client role = %v after host shutdown", client.RCS().Role())
	}
}

func TestHistoryPersisted(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	network := netsocktest.New()
	host := newTestEngine(t, network, openStore(t, dbPath))
	client := newTestEngine(t, network, nil)
	connect(t, host, client)

	client.Submit("rcs_send help")
	client.Step()
	host.Step()

	// Shutdown drains the job queues before closing the store.
	host.Shutdown()

	store := openStore(t, dbPath)
	defer store.Close()

	recs, err := store.RecentRemoteCommands(10)
	if err != nil {
		t.Fatalf("RecentRemoteCommands() failed: %v", err)
	}
	if len(recs) != 1 || recs[0].Command != "help" {
		t.Fatalf("history = %+v, want one help command", recs)
	}

	events, err := store.RecentSessionEvents(10)
	if err != nil {
		t.Fatalf("RecentSessionEvents() failed: %v", err)
	}
	if len(events) < 2 {
		t.Fatalf("session events = %+v, want host and disconnect", events)
	}
	if events[0].ToRole != "Disconnected" || events[1].ToRole != "Host" {
		t.Errorf("session events order = %+v", events)
	}
}

func TestHistoryCommand(t *testing.T) {
	e := newTestEngine(t, netsocktest.New(), openStore(t, filepath.Join(t.TempDir(), "history.db")))

	e.Submit("rcs_history")
	deadline := time.Now().Add(2 * time.Second)
	for !hasLine(e, "No remote commands recorded.") {
		if time.Now().After(deadline) {
			t.Fatalf("history never reported: %q", texts(e))
		}
		e.Step()
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHistoryCommandWithoutStore(t *testing.T) {
	e := newTestEngine(t, netsocktest.New(), nil)

	e.Submit("rcs_history 5")
	e.Step()

	if !hasLine(e, "Remote command history is disabled.") {
		t.Errorf("missing disabled message: %q", texts(e))
	}
}

func TestApplyConfigSetsLevel(t *testing.T) {
	logger := log.New(io.Discard)
	e, err := New(Options{Config: testConfig(t), Logger: logger, Network: netsocktest.New()})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer e.Shutdown()

	cfg := testConfig(t)
	cfg.Log.Level = "debug"
	e.ApplyConfig(cfg)

	if logger.GetLevel() != log.DebugLevel {
		t.Errorf("level = %v, want debug", logger.GetLevel())
	}
}
