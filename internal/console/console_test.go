package console

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func newTestConsole(t *testing.T) *Console {
	t.Helper()
	return New(Config{LogDir: t.TempDir()}, log.New(io.Discard))
}

func lastEntry(t *testing.T, c *Console) Entry {
	t.Helper()
	entries := c.Entries()
	if len(entries) == 0 {
		t.Fatal("console has no entries")
	}
	return entries[len(entries)-1]
}

func TestParseCommand(t *testing.T) {
	cmd := ParseCommand("  rcs_send   say  hello   world  ")

	if cmd.Name != "rcs_send" {
		t.Errorf("Name = %q, want rcs_send", cmd.Name)
	}
	if len(cmd.Args) != 3 {
		t.Fatalf("Args = %v, want 3 args", cmd.Args)
	}
	if got := cmd.Remaining(0); got != "say  hello   world" {
		t.Errorf("Remaining(0) = %q", got)
	}
	if got := cmd.Remaining(1); got != "hello   world" {
		t.Errorf("Remaining(1) = %q", got)
	}
	if got := cmd.Remaining(5); got != "" {
		t.Errorf("Remaining(5) = %q, want empty", got)
	}
}

func TestCommandArgs(t *testing.T) {
	cmd := ParseCommand("rcs_history 25 extra")

	if !cmd.HasArg(0) || cmd.HasArg(2) {
		t.Error("HasArg() mismatch")
	}
	if cmd.IntArg(0, 10) != 25 {
		t.Errorf("IntArg(0) = %d, want 25", cmd.IntArg(0, 10))
	}
	if cmd.IntArg(1, 10) != 10 {
		t.Errorf("IntArg(1) on non-number = %d, want default", cmd.IntArg(1, 10))
	}
	if cmd.Arg(3, "def") != "def" {
		t.Errorf("Arg(3) = %q, want def", cmd.Arg(3, "def"))
	}
}

func TestParseEmpty(t *testing.T) {
	cmd := ParseCommand("   ")
	if cmd.Name != "" || len(cmd.Args) != 0 {
		t.Errorf("ParseCommand(blank) = %+v", cmd)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	c := newTestConsole(t)

	if err := c.RegisterCommand("ping", "", func(Command) {}); err != nil {
		t.Fatalf("RegisterCommand() failed: %v", err)
	}
	err := c.RegisterCommand("ping", "", func(Command) {})
	if !errors.Is(err, ErrDuplicateCommand) {
		t.Errorf("duplicate RegisterCommand() error = %v, want ErrDuplicateCommand", err)
	}
}

func TestRunCommandLocal(t *testing.T) {
	c := newTestConsole(t)
	var got Command
	c.MustRegisterCommand("ping", "", func(cmd Command) { got = cmd })

	c.RunCommand("ping a b", false)

	if got.Name != "ping" || got.Remote {
		t.Errorf("handler got %+v", got)
	}
	entries := c.Entries()
	if len(entries) != 1 || entries[0].Text != "ping a b" || entries[0].Severity != SeverityDefault {
		t.Errorf("entries = %+v", entries)
	}
}

func TestRunCommandRemote(t *testing.T) {
	c := newTestConsole(t)
	var got Command
	c.MustRegisterCommand("ping", "", func(cmd Command) { got = cmd })

	c.RunCommand("ping", true)

	if !got.Remote {
		t.Error("handler should see Remote = true")
	}
	first := c.Entries()[0]
	if first.Text != "REMOTE COMMAND: ping" || first.Severity != SeverityRemote || !first.Remote {
		t.Errorf("first entry = %+v", first)
	}
}

func TestRunCommandInvalid(t *testing.T) {
	c := newTestConsole(t)
	c.RunCommand("nope", false)

	e := lastEntry(t, c)
	if e.Text != InvalidCommandMessage || e.Severity != SeverityBad {
		t.Errorf("last entry = %+v", e)
	}
}

func TestRunCommandBlankIgnored(t *testing.T) {
	c := newTestConsole(t)
	c.RunCommand("   ", false)
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestServerEcho(t *testing.T) {
	c := newTestConsole(t)
	var echoed []string
	c.SetEchoSink(func(text string) {
		echoed = append(echoed, text)
		// Lines logged while echoing must not echo again.
		c.AddLog("nested", SeverityDefault, false)
	})

	c.AddLog("before", SeverityDefault, false)
	c.RunCommand("server_echo", false)
	c.AddLog("local", SeverityDefault, false)
	c.AddLog("from peer", SeverityRemote, true)

	want := []string{"Echo enabled.", "local"}
	if len(echoed) != len(want) {
		t.Fatalf("echoed = %v, want %v", echoed, want)
	}
	for i := range want {
		if echoed[i] != want[i] {
			t.Errorf("echoed[%d] = %q, want %q", i, echoed[i], want[i])
		}
	}
}

func TestServerEchoToggleFromConfig(t *testing.T) {
	c := New(Config{ServerEcho: true}, log.New(io.Discard))
	if !c.ServerEcho() {
		t.Fatal("ServerEcho() = false, want true")
	}
	c.RunCommand("server_echo", false)
	if c.ServerEcho() {
		t.Error("server_echo should toggle echo off")
	}
}

func TestMaxLogs(t *testing.T) {
	c := New(Config{MaxLogs: 3}, log.New(io.Discard))
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		c.AddLog(s, SeverityDefault, false)
	}

	entries := c.Entries()
	if len(entries) != 3 || entries[0].Text != "c" || entries[2].Text != "e" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestHelpListsSortedCommands(t *testing.T) {
	c := newTestConsole(t)
	c.RunCommand("help", false)

	var lines []string
	for _, e := range c.Entries()[2:] {
		lines = append(lines, e.Text)
	}
	if len(lines) != len(c.Commands()) {
		t.Fatalf("help printed %d lines, want %d", len(lines), len(c.Commands()))
	}
	for i := 1; i < len(lines); i++ {
		if lines[i-1] > lines[i] {
			t.Errorf("help not sorted: %q before %q", lines[i-1], lines[i])
		}
	}
	if !strings.HasPrefix(lines[0], "clear") {
		t.Errorf("first help line = %q, want clear", lines[0])
	}
}

func TestClearCommand(t *testing.T) {
	c := newTestConsole(t)
	c.AddLog("x", SeverityDefault, false)
	c.RunCommand("clear", false)
	if c.Len() != 0 {
		t.Errorf("Len() = %d after clear, want 0", c.Len())
	}
}

func TestQuitCommand(t *testing.T) {
	c := newTestConsole(t)
	quit := false
	c.OnQuit(func() { quit = true })

	c.RunCommand("quit", false)

	if !quit {
		t.Error("quit should run the OnQuit callback")
	}
}

func TestLogCommandWritesFile(t *testing.T) {
	dir := t.TempDir()
	c := New(Config{LogDir: dir}, log.New(io.Discard))
	var ran int
	c.SetRunner(func(work func()) error {
		ran++
		work()
		return nil
	})

	c.AddLog("first", SeverityDefault, false)
	c.RunCommand("log ../../escape.txt", false)
	c.Flush()

	if ran != 1 {
		t.Errorf("runner called %d times, want 1", ran)
	}

	data, err := os.ReadFile(filepath.Join(dir, "escape.txt"))
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if string(data) != "first\r\nlog ../../escape.txt\r\n" {
		t.Errorf("log file = %q", data)
	}

	e := lastEntry(t, c)
	if e.Severity != SeverityGood || !strings.HasPrefix(e.Text, "Printed (2) logs to file:") {
		t.Errorf("last entry = %+v", e)
	}
}

func TestSubmitAndFlush(t *testing.T) {
	c := newTestConsole(t)
	var order []string
	c.MustRegisterCommand("mark", "", func(cmd Command) { order = append(order, cmd.Arg(0, "")) })

	c.Submit("mark one")
	c.Defer(func() { order = append(order, "deferred") })
	c.Submit("mark two")

	if n := c.Flush(); n != 3 {
		t.Errorf("Flush() = %d, want 3", n)
	}
	want := []string{"deferred", "one", "two"}
	for i := range want {
		if i >= len(order) || order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	if c.Flush() != 0 {
		t.Error("second Flush() should be empty")
	}
}

func TestListenerReceivesEntries(t *testing.T) {
	c := newTestConsole(t)
	l := c.Subscribe(2)

	c.AddLog("a", SeverityDefault, false)
	c.AddLog("b", SeverityDefault, false)
	c.AddLog("c", SeverityDefault, false)

	// Oldest line was dropped.
	if e := <-l.Entries(); e.Text != "b" {
		t.Errorf("first entry = %q, want b", e.Text)
	}
	if e := <-l.Entries(); e.Text != "c" {
		t.Errorf("second entry = %q, want c", e.Text)
	}

	c.Unsubscribe(l)
	c.AddLog("d", SeverityDefault, false)
	select {
	case e := <-l.Entries():
		t.Errorf("unsubscribed listener got %q", e.Text)
	default:
	}
	select {
	case <-l.Done():
	default:
		t.Error("Done() should be closed after Unsubscribe")
	}
}

func TestSubscribeWithBacklog(t *testing.T) {
	c := newTestConsole(t)
	c.AddLog("old", SeverityDefault, false)

	backlog, l := c.SubscribeWithBacklog(4)
	defer c.Unsubscribe(l)

	if len(backlog) != 1 || backlog[0].Text != "old" {
		t.Fatalf("backlog = %+v, want [old]", backlog)
	}

	c.AddLog("new", SeverityDefault, false)
	if e := <-l.Entries(); e.Text != "new" {
		t.Errorf("listener entry = %q, want new", e.Text)
	}
}

func TestClearNotifiesListeners(t *testing.T) {
	c := newTestConsole(t)
	l := c.Subscribe(4)
	defer c.Unsubscribe(l)

	c.Clear()

	e := <-l.Entries()
	if !e.Cleared {
		t.Errorf("entry = %+v, want clear marker", e)
	}
}
