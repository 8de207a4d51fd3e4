// Package engine wires the event bus, console, job system, network system,
// remote command server and history store into one frame loop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/bread/internal/config"
	"github.com/vovakirdan/bread/internal/console"
	"github.com/vovakirdan/bread/internal/events"
	"github.com/vovakirdan/bread/internal/jobs"
	"github.com/vovakirdan/bread/internal/logging"
	"github.com/vovakirdan/bread/internal/netsock"
	"github.com/vovakirdan/bread/internal/rcs"
	"github.com/vovakirdan/bread/internal/storage"
)

// Version is the engine version shown in the banner.
const Version = "0.3.0"

// Options configures an engine.
type Options struct {
	Config config.Config
	Logger *log.Logger
	// Network defaults to TCP.
	Network netsock.Network
	// Store enables remote command history. The engine closes it on Shutdown.
	Store *storage.Store
}

// Engine owns every subsystem. Step and Run must be called from a single
// goroutine; Submit, Quit and Quitting are safe from any goroutine.
type Engine struct {
	cfg     config.Config
	logger  *log.Logger
	loggers []*log.Logger

	bus     *events.Bus
	console *console.Console
	jobs    *jobs.System
	network *rcs.NetworkSystem
	server  *rcs.Server
	store   *storage.Store

	frame    uint64
	last     time.Time
	quitting atomic.Bool
	stopOnce sync.Once
}

// New builds an engine and starts its workers and network system.
func New(opts Options) (*Engine, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.New(os.Stderr, cfg.Engine.Name, cfg.Log.Level)
	}
	network := opts.Network
	if network == nil {
		network = netsock.NewTCPNetwork()
	}

	e := &Engine{
		cfg:    cfg,
		logger: logger,
		bus:    events.NewBus(),
		store:  opts.Store,
	}
	e.loggers = append(e.loggers, logger)

	e.jobs = jobs.New(jobs.Config{
		Workers: cfg.Jobs.Workers,
		MaxJobs: cfg.Jobs.MaxJobs,
	}, e.subLogger("jobs"))

	e.console = console.New(console.Config{
		MaxLogs:    cfg.Console.MaxLogs,
		LogDir:     cfg.Console.LogDir,
		ServerEcho: cfg.Console.ServerEcho,
	}, e.subLogger("console"))
	e.console.SetRunner(func(work func()) error {
		return e.jobs.Submit(jobs.CategoryGenericSlow, work)
	})
	e.console.OnQuit(e.Quit)

	e.network = rcs.StartNetwork(e.bus)
	e.server = rcs.NewServer(rcs.Config{
		Port:              cfg.RCS.Port,
		BindHost:          cfg.RCS.BindHost,
		BufferSize:        cfg.RCS.BufferSize,
		ConnectTimeout:    cfg.RCS.ConnectTimeout(),
		CommandsPerSecond: cfg.RCS.CommandsPerSecond,
		CommandBurst:      cfg.RCS.CommandBurst,
	}, network, e.bus, e.console, e.subLogger("rcs"))

	if err := e.server.RegisterCommands(); err != nil {
		e.Shutdown()
		return nil, fmt.Errorf("engine: %w", err)
	}
	if err := e.registerCommands(); err != nil {
		e.Shutdown()
		return nil, fmt.Errorf("engine: %w", err)
	}

	e.console.SetEchoSink(e.echo)
	if e.store != nil {
		e.server.SetHistory(e)
		e.bus.Subscribe(events.RCSStateChanged, 0, e.onStateChanged)
	}

	e.console.Printf(console.SeverityInfo, "Engine: %s v%s", cfg.Engine.Name, Version)
	return e, nil
}

// Bus returns the event bus.
func (e *Engine) Bus() *events.Bus { return e.bus }

// Console returns the developer console.
func (e *Engine) Console() *console.Console { return e.console }

// RCS returns the remote command server.
func (e *Engine) RCS() *rcs.Server { return e.server }

// Jobs returns the job system.
func (e *Engine) Jobs() *jobs.System { return e.jobs }

// Frame returns the number of completed frames.
func (e *Engine) Frame() uint64 { return e.frame }

// Submit queues a console line for the next frame.
func (e *Engine) Submit(line string) {
	e.console.Submit(line)
}

// Quit asks Run to return after the current frame.
func (e *Engine) Quit() {
	e.quitting.Store(true)
}

// Quitting reports whether Quit was called.
func (e *Engine) Quitting() bool {
	return e.quitting.Load()
}

// Step runs one frame: queued console work, then the engine update, which
// drives the network tick.
func (e *Engine) Step() {
	e.console.Flush()

	now := time.Now()
	var delta time.Duration
	if !e.last.IsZero() {
		delta = now.Sub(e.last)
	}
	e.last = now
	e.frame++

	e.bus.Publish(events.EngineUpdated{Frame: e.frame, Delta: delta})
}

// Run steps the engine at the configured tick rate until ctx is done or the
// quit command runs.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.Engine.TickInterval())
	defer ticker.Stop()

	e.logger.Debug("engine loop started", "tick", e.cfg.Engine.TickInterval())
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			e.Step()
			if e.Quitting() {
				return nil
			}
		}
	}
}

// ApplyConfig applies the settings that can change while running.
func (e *Engine) ApplyConfig(cfg config.Config) {
	level := logging.ParseLevel(cfg.Log.Level)
	for _, l := range e.loggers {
		l.SetLevel(level)
	}
	e.logger.Info("log level applied", "level", cfg.Log.Level)
}

// Shutdown leaves any RCS session, stops the network system, drains the job
// queues and closes the store. Safe to call more than once.
func (e *Engine) Shutdown() {
	e.stopOnce.Do(func() {
		e.server.Close()
		e.network.Shutdown()
		e.jobs.Shutdown()
		if e.store != nil {
			if err := e.store.Close(); err != nil {
				e.logger.Warn("failed to close history store", "err", err)
			}
		}
	})
}

// subLogger returns a prefixed logger that follows ApplyConfig.
func (e *Engine) subLogger(prefix string) *log.Logger {
	l := e.logger.WithPrefix(prefix)
	e.loggers = append(e.loggers, l)
	return l
}

func (e *Engine) echo(text string) {
	if !e.server.IsConnected() {
		return
	}
	if err := e.server.Send(rcs.MessageEcho, text); err != nil {
		e.logger.Debug("echo failed", "err", err)
	}
}
