package jobs

// Consumer runs queued jobs from a fixed list of categories, in list order.
type Consumer struct {
	sys        *System
	categories []Category
}

// NewConsumer creates a consumer for the given categories.
func (s *System) NewConsumer(categories ...Category) *Consumer {
	return &Consumer{sys: s, categories: categories}
}

// Consume runs at most one queued job. Returns false if there was nothing to run.
func (c *Consumer) Consume() bool {
	s := c.sys

	s.mu.Lock()
	id, j, ok := c.next()
	if !ok {
		s.mu.Unlock()
		return false
	}
	work, done := j.work, j.done
	s.mu.Unlock()

	c.run(id, work)

	// Joiners wake holding the last reference.
	s.mu.Lock()
	s.release(id)
	s.mu.Unlock()
	close(done)

	return true
}

// ConsumeAll runs queued jobs until every category is empty and returns how
// many ran.
func (c *Consumer) ConsumeAll() int {
	n := 0
	for c.Consume() {
		n++
	}
	return n
}

// next pops the first queued job. Callers must hold the system lock.
func (c *Consumer) next() (ID, *job, bool) {
	for _, cat := range c.categories {
		q := c.sys.queues[cat]
		for !q.IsEmpty() {
			id, _ := q.Dequeue()
			if j, ok := c.sys.jobs.Get(id); ok {
				return id, j, true
			}
		}
	}
	return ID{}, nil, false
}

func (c *Consumer) pending() bool {
	for _, cat := range c.categories {
		if !c.sys.queues[cat].IsEmpty() {
			return true
		}
	}
	return false
}

func (c *Consumer) run(id ID, work WorkFunc) {
	defer func() {
		if r := recover(); r != nil {
			c.sys.logger.Error("job panicked", "job", id, "panic", r)
		}
	}()
	if work != nil {
		work()
	}
}

// loop is the worker body: run jobs while there are any, sleep otherwise,
// and exit once the system stops.
func (c *Consumer) loop() {
	s := c.sys
	for {
		if c.Consume() {
			continue
		}

		s.mu.Lock()
		for s.running && !c.pending() {
			s.cond.Wait()
		}
		running := s.running
		s.mu.Unlock()

		if !running {
			return
		}
	}
}
