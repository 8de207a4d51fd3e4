// Package console implements the engine's developer console: a command
// registry, a bounded log of colored lines, and fan-out of new lines to
// subscribers such as the terminal UI and the remote command server echo.
//
// RunCommand and AddLog belong to the engine goroutine. Other goroutines hand
// work over with Submit and Defer, which queue until the next Flush.
package console

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Severity selects how a console line is presented.
type Severity int

const (
	SeverityDefault Severity = iota
	SeverityInfo
	SeverityGood
	SeverityBad
	SeverityRemote
)

// String returns the severity name.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityGood:
		return "good"
	case SeverityBad:
		return "bad"
	case SeverityRemote:
		return "remote"
	default:
		return "default"
	}
}

// Entry is one console line.
type Entry struct {
	Text     string
	Severity Severity
	Remote   bool
	Time     time.Time
	// Cleared marks a notification that every earlier line was dropped.
	Cleared bool
}

// InvalidCommandMessage is logged for unknown command names.
const InvalidCommandMessage = "Invalid Command. Type 'help' for a list of commands."

// Default settings.
const (
	DefaultMaxLogs = 1000
	DefaultLogDir  = "logs"
)

// Config configures a console.
type Config struct {
	// MaxLogs bounds the number of retained lines; the oldest are dropped.
	MaxLogs int
	// LogDir is where the log command writes files.
	LogDir string
	// ServerEcho starts the console with echo to network peers enabled.
	ServerEcho bool
}

// EchoFunc receives locally produced console lines for forwarding.
type EchoFunc func(text string)

// Runner executes work off the engine goroutine.
type Runner func(work func()) error

// Console is the developer console.
type Console struct {
	cfg    Config
	logger *log.Logger

	mu        sync.RWMutex
	commands  map[string]*registeredCommand
	entries   []Entry
	listeners []*Listener

	echo       EchoFunc
	serverEcho bool
	echoing    bool
	runner     Runner
	onQuit     func()

	queueMu  sync.Mutex
	inputs   []string
	deferred []func()
}

// New creates a console with the built-in commands registered.
func New(cfg Config, logger *log.Logger) *Console {
	if cfg.MaxLogs < 1 {
		cfg.MaxLogs = DefaultMaxLogs
	}
	if cfg.LogDir == "" {
		cfg.LogDir = DefaultLogDir
	}
	if logger == nil {
		logger = log.Default()
	}

	c := &Console{
		cfg:        cfg,
		logger:     logger,
		commands:   make(map[string]*registeredCommand),
		serverEcho: cfg.ServerEcho,
	}
	c.registerBuiltins()
	return c
}

// RunCommand logs line and executes it. Remote lines are prefixed and never
// echoed back to the network.
func (c *Console) RunCommand(line string, remote bool) {
	if strings.TrimSpace(line) == "" {
		return
	}

	if remote {
		c.AddLog("REMOTE COMMAND: "+line, SeverityRemote, true)
	} else {
		c.AddLog(line, SeverityDefault, false)
	}
	c.logger.Debug("console input", "line", line, "remote", remote)

	cmd := ParseCommand(line)
	cmd.Remote = remote

	fn, ok := c.lookup(cmd.Name)
	if !ok {
		c.AddLog(InvalidCommandMessage, SeverityBad, remote)
		return
	}
	fn(cmd)
}

// AddLog appends a line, notifies subscribers and, for local lines with
// server echo enabled, forwards the text to the echo sink.
func (c *Console) AddLog(text string, sev Severity, remote bool) {
	e := Entry{Text: text, Severity: sev, Remote: remote, Time: time.Now()}

	c.mu.Lock()
	c.entries = append(c.entries, e)
	if over := len(c.entries) - c.cfg.MaxLogs; over > 0 {
		c.entries = append(c.entries[:0:0], c.entries[over:]...)
	}
	listeners := append([]*Listener(nil), c.listeners...)
	echo := c.echo
	forward := !remote && c.serverEcho && echo != nil && !c.echoing
	if forward {
		c.echoing = true
	}
	c.mu.Unlock()

	for _, l := range listeners {
		l.send(e)
	}

	if forward {
		echo(text)
		c.mu.Lock()
		c.echoing = false
		c.mu.Unlock()
	}

	if sev == SeverityBad {
		c.logger.Warn(text, "remote", remote)
	} else {
		c.logger.Debug(text, "severity", sev, "remote", remote)
	}
}

// Printf logs a formatted local line.
func (c *Console) Printf(sev Severity, format string, args ...any) {
	c.AddLog(fmt.Sprintf(format, args...), sev, false)
}

// Entries returns a copy of the retained lines, oldest first.
func (c *Console) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Entry(nil), c.entries...)
}

// Len returns the number of retained lines.
func (c *Console) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops every retained line.
func (c *Console) Clear() {
	c.mu.Lock()
	c.entries = nil
	listeners := append([]*Listener(nil), c.listeners...)
	c.mu.Unlock()

	marker := Entry{Cleared: true, Time: time.Now()}
	for _, l := range listeners {
		l.send(marker)
	}
}

// ShowHelp logs every registered command, sorted by name.
func (c *Console) ShowHelp() {
	c.AddLog("Showing Registered Commands", SeverityGood, false)
	for _, info := range c.Commands() {
		c.AddLog(info.Help(), SeverityDefault, false)
	}
}

// BuildLogFile renders the retained lines as CRLF terminated text.
func (c *Console) BuildLogFile() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var b strings.Builder
	for _, e := range c.entries {
		b.WriteString(e.Text)
		b.WriteString("\r\n")
	}
	return b.String()
}

// SetEchoSink installs the function that receives echoed lines.
func (c *Console) SetEchoSink(fn EchoFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.echo = fn
}

// SetServerEcho enables or disables echo to the network.
func (c *Console) SetServerEcho(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.serverEcho = enabled
}

// ServerEcho reports whether echo to the network is enabled.
func (c *Console) ServerEcho() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverEcho
}

// SetRunner installs the executor used for background work such as writing
// log files. Without one, work runs inline.
func (c *Console) SetRunner(r Runner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runner = r
}

// OnQuit installs the callback run by the quit command.
func (c *Console) OnQuit(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onQuit = fn
}

// Submit queues a local command line for the next Flush.
// Safe for concurrent use.
func (c *Console) Submit(line string) {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	c.inputs = append(c.inputs, line)
}

// Defer queues fn to run on the engine goroutine at the next Flush.
// Safe for concurrent use.
func (c *Console) Defer(fn func()) {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	c.deferred = append(c.deferred, fn)
}

// Flush runs deferred functions, then submitted lines, in arrival order.
// Returns how many items ran.
func (c *Console) Flush() int {
	c.queueMu.Lock()
	deferred, inputs := c.deferred, c.inputs
	c.deferred, c.inputs = nil, nil
	c.queueMu.Unlock()

	for _, fn := range deferred {
		fn()
	}
	for _, line := range inputs {
		c.RunCommand(line, false)
	}
	return len(deferred) + len(inputs)
}

func (c *Console) run(work func()) {
	c.mu.RLock()
	r := c.runner
	c.mu.RUnlock()

	if r == nil {
		work()
		return
	}
	if err := r(work); err != nil {
		c.logger.Warn("background work rejected, running inline", "err", err)
		work()
	}
}
