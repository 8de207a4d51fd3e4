// Package jobs runs units of work on a fixed pool of worker goroutines.
//
// Jobs live in a fixed-capacity arena and are reference counted: the creator
// holds one reference, a dispatched job holds one more until a worker has run
// it. The creator gives its reference up with either Detach (fire and forget)
// or Join (wait for completion). The slot is recycled when the count drops to
// zero.
//
// Workers pull from per-category queues, slow categories first, and sleep on
// a condition variable while there is nothing to do.
package jobs

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/vovakirdan/bread/internal/pool"
)

// Category selects the queue a job is dispatched to.
type Category int

const (
	// CategoryGeneric is for short jobs.
	CategoryGeneric Category = iota
	// CategoryGenericSlow is for jobs that block on I/O or run long.
	CategoryGenericSlow

	categoryCount
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryGeneric:
		return "generic"
	case CategoryGenericSlow:
		return "generic_slow"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// consumeOrder is the order workers drain categories in.
var consumeOrder = []Category{CategoryGenericSlow, CategoryGeneric}

// Default settings.
const (
	DefaultWorkers = -2
	DefaultMaxJobs = 1024
)

var (
	// ErrPoolExhausted is returned by Create when MaxJobs jobs are live.
	ErrPoolExhausted = errors.New("jobs: job pool exhausted")
	// ErrUnknownJob is returned for ids that do not refer to a live job.
	ErrUnknownJob = errors.New("jobs: unknown job")
	// ErrNotDispatched is returned by Join for a job that was never dispatched.
	ErrNotDispatched = errors.New("jobs: job was never dispatched")
	// ErrAlreadyDispatched is returned by Dispatch for a job already queued.
	ErrAlreadyDispatched = errors.New("jobs: job already dispatched")
	// ErrStillReferenced is returned by Join when other references to the job remain.
	ErrStillReferenced = errors.New("jobs: job still referenced after join")
	// ErrStopped is returned after Shutdown.
	ErrStopped = errors.New("jobs: system stopped")
	// ErrInvalidCategory is returned for categories outside the known set.
	ErrInvalidCategory = errors.New("jobs: invalid category")
)

// ID identifies a job. IDs of finished jobs go stale and are never reused.
type ID = pool.Handle

// WorkFunc is the body of a job.
type WorkFunc func()

type job struct {
	category   Category
	work       WorkFunc
	refs       int
	dispatched bool
	done       chan struct{}
}

// Config configures a job system.
type Config struct {
	// Workers is the worker count. Zero or negative values are added to the
	// number of CPUs, with a floor of one worker.
	Workers int
	// MaxJobs is the number of jobs that may be live at once.
	MaxJobs int
}

// WorkerCount resolves a configured worker count against the CPU count.
func WorkerCount(n int) int {
	if n > 0 {
		return n
	}
	n += runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}

// Stats is a snapshot of the job system.
type Stats struct {
	Workers   int
	Live      int
	Capacity  int
	HighWater int
	Pending   map[Category]int
}

// System owns the job arena, the queues and the workers.
type System struct {
	mu      sync.Mutex
	cond    *sync.Cond
	jobs    *pool.Pool[job]
	queues  [categoryCount]*ringQueue[ID]
	running bool
	workers int
	wg      sync.WaitGroup
	logger  *log.Logger
}

// New creates a job system and starts its workers.
func New(cfg Config, logger *log.Logger) *System {
	s := newSystem(cfg, logger)
	s.start(WorkerCount(cfg.Workers))
	return s
}

func newSystem(cfg Config, logger *log.Logger) *System {
	if cfg.MaxJobs < 1 {
		cfg.MaxJobs = DefaultMaxJobs
	}
	if logger == nil {
		logger = log.Default()
	}

	s := &System{
		jobs:    pool.New[job](cfg.MaxJobs),
		running: true,
		logger:  logger,
	}
	s.cond = sync.NewCond(&s.mu)
	for i := range s.queues {
		s.queues[i] = newRingQueue[ID](cfg.MaxJobs)
	}
	return s
}

func (s *System) start(workers int) {
	s.workers = workers
	consumer := s.NewConsumer(consumeOrder...)
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			consumer.loop()
		}()
	}
	s.logger.Debug("job workers started", "workers", workers, "max_jobs", s.jobs.Cap())
}

// Create allocates a job that will run work when dispatched.
// The caller holds one reference and must release it with Detach or Join.
func (s *System) Create(category Category, work WorkFunc) (ID, error) {
	if category < 0 || category >= categoryCount {
		return ID{}, fmt.Errorf("%w: %d", ErrInvalidCategory, int(category))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ID{}, ErrStopped
	}

	id, j, err := s.jobs.Alloc()
	if err != nil {
		return ID{}, fmt.Errorf("%w (%d live)", ErrPoolExhausted, s.jobs.Len())
	}
	j.category = category
	j.work = work
	j.refs = 1
	j.done = make(chan struct{})

	return id, nil
}

// Dispatch queues the job for a worker.
func (s *System) Dispatch(id ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrStopped
	}

	j, ok := s.jobs.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	if j.dispatched {
		return fmt.Errorf("%w: %s", ErrAlreadyDispatched, id)
	}

	if err := s.queues[j.category].Enqueue(id); err != nil {
		return fmt.Errorf("jobs: dispatch %s: %w", id, err)
	}
	j.dispatched = true
	j.refs++
	s.cond.Signal()

	return nil
}

// Detach releases the caller's reference without waiting for the job.
func (s *System) Detach(id ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs.Get(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	s.release(id)
	return nil
}

// Join blocks until the job has run, then releases the caller's reference.
// The job must have been dispatched.
func (s *System) Join(id ID) error {
	s.mu.Lock()
	j, ok := s.jobs.Get(id)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	if !j.dispatched {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotDispatched, id)
	}
	done := j.done
	s.mu.Unlock()

	<-done

	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok = s.jobs.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	if j.refs != 1 {
		j.refs--
		return fmt.Errorf("%w: %s has %d references", ErrStillReferenced, id, j.refs)
	}
	s.release(id)
	return nil
}

// Submit creates, dispatches and detaches a job in one call.
func (s *System) Submit(category Category, work WorkFunc) error {
	id, err := s.Create(category, work)
	if err != nil {
		return err
	}
	if err := s.Dispatch(id); err != nil {
		_ = s.Detach(id)
		return err
	}
	return s.Detach(id)
}

// release drops one reference and recycles the slot at zero.
// Callers must hold s.mu.
func (s *System) release(id ID) {
	j, ok := s.jobs.Get(id)
	if !ok {
		return
	}
	j.refs--
	if j.refs <= 0 {
		if err := s.jobs.Free(id); err != nil {
			s.logger.Error("failed to free job", "job", id, "err", err)
		}
	}
}

// Stats returns a snapshot of the job system.
func (s *System) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Workers:   s.workers,
		Live:      s.jobs.Len(),
		Capacity:  s.jobs.Cap(),
		HighWater: s.jobs.HighWater(),
		Pending:   make(map[Category]int, categoryCount),
	}
	for c := Category(0); c < categoryCount; c++ {
		st.Pending[c] = s.queues[c].Len()
	}
	return st
}

// Pending returns how many jobs are queued in category. Unknown categories
// report zero.
func (s *System) Pending(category Category) int {
	if category < 0 || category >= categoryCount {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queues[category].Len()
}

// Shutdown stops the workers, runs any jobs still queued and releases the
// arena. Safe to call more than once.
func (s *System) Shutdown() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cond.Broadcast()
	s.mu.Unlock()

	s.wg.Wait()

	drained := s.NewConsumer(consumeOrder...).ConsumeAll()

	s.mu.Lock()
	highWater, capacity := s.jobs.HighWater(), s.jobs.Cap()
	s.jobs.Destroy()
	s.mu.Unlock()

	s.logger.Info("job system stopped",
		"drained", drained,
		"peak", humanize.Comma(int64(highWater)),
		"capacity", humanize.Comma(int64(capacity)),
	)
}
