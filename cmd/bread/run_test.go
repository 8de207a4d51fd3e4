package main

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/bread/internal/console"
)

func TestStartupCommands(t *testing.T) {
	defer func() {
		flagRunHost, flagRunJoin, flagRunExec = false, "", nil
	}()

	flagRunHost = true
	flagRunJoin = "10.0.0.2"
	flagRunExec = []string{"rcs_info", "rcs_send help"}

	got := startupCommands()
	want := []string{"rcs_host", "rcs_join 10.0.0.2", "rcs_info", "rcs_send help"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("startupCommands() = %q, want %q", got, want)
	}
}

func TestReadLines(t *testing.T) {
	var got []string
	submit := func(line string) { got = append(got, line) }

	readLines(strings.NewReader("help\nrcs_info\n"), submit, true)
	if strings.Join(got, "|") != "help|rcs_info|quit" {
		t.Errorf("lines = %q", got)
	}

	got = nil
	readLines(strings.NewReader("help"), submit, false)
	if strings.Join(got, "|") != "help" {
		t.Errorf("lines without quit = %q", got)
	}
}

func TestPrintEntries(t *testing.T) {
	c := console.New(console.Config{}, log.New(io.Discard))
	c.AddLog("backlog", console.SeverityDefault, false)
	backlog, l := c.SubscribeWithBacklog(8)

	c.AddLog("live", console.SeverityGood, false)
	c.Clear()
	c.Unsubscribe(l)

	var buf bytes.Buffer
	printEntries(&buf, backlog, l)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "backlog") || !strings.Contains(lines[1], "live") {
		t.Errorf("printed %q", buf.String())
	}
}
