package chunk

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/vango-dev/chunk/pkg/reactive"
	"github.com/vango-dev/chunk/pkg/storage"
)

// persistJob is one unit of work for the writer goroutine.
type persistJob struct {
	payload string
	remove  bool
	// flushed is closed when the writer reaches the job; no write happens.
	flushed chan struct{}
}

// persister writes snapshots of a store's persisted fields to the engine.
// A single goroutine performs the writes in the order they were queued.
type persister struct {
	chunk   string
	key     string
	fields  []string
	cells   map[string]*reactive.Signal[any]
	engine  storage.Engine
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	queue  []persistJob
	closed bool

	wake     chan struct{}
	quit     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// storageKey is the engine key holding a store's snapshot.
func storageKey(name string) string {
	return name + "Store"
}

func newPersister(s *Store, fields []string) *persister {
	return &persister{
		chunk:   s.name,
		key:     storageKey(s.name),
		fields:  fields,
		cells:   s.cells,
		engine:  s.engine,
		timeout: s.engineTimeout,
		logger:  s.logger,
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// persistedFields keeps the names present in the initial state, in order,
// without repeats.
func (s *Store) persistedFields(names []string) []string {
	seen := make(map[string]bool, len(names))
	fields := make([]string, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		if _, ok := s.cells[name]; !ok {
			s.logger.Warn("ignoring unknown persisted field", "chunk", s.name, "field", name)
			continue
		}
		fields = append(fields, name)
	}
	return fields
}

// startPersistence runs the Constructing → Hydrating → Steady transitions.
func (s *Store) startPersistence(names []string) {
	fields := s.persistedFields(names)
	if len(fields) == 0 {
		s.enterSteady()
		s.markHydrated()
		return
	}

	s.persist = newPersister(s, fields)
	go s.persist.loop()

	getter, ok := s.engine.(storage.Getter)
	if !ok {
		s.finishHydration()
		return
	}

	s.mu.Lock()
	s.phase.Store(int32(PhaseHydrating))
	s.mu.Unlock()

	go s.hydrate(getter)
}

// finishHydration enters PhaseSteady and attaches the persistence reaction.
// A store disposed during hydration never gets the reaction.
func (s *Store) finishHydration() {
	defer s.markHydrated()
	if !s.enterSteady() {
		return
	}
	reactive.WithOwner(s.owner, func() {
		s.persist.attach()
	})
}

// attach creates the reaction that queues a snapshot now and after every
// change to a persisted field.
func (p *persister) attach() {
	reactive.NewReaction(p.snapshot, func(next, _ string) {
		p.push(persistJob{payload: next})
	}, reactive.FireImmediately())
}

// snapshot encodes each persisted field on its own and wraps the results in
// one JSON object. Reading the fields makes them dependencies.
func (p *persister) snapshot() string {
	envelope := make(map[string]string, len(p.fields))
	for _, field := range p.fields {
		data, err := json.Marshal(p.cells[field].Get())
		if err != nil {
			p.logger.Error("cannot encode persisted field",
				"chunk", p.chunk,
				"field", field,
				"error", err,
			)
			continue
		}
		envelope[field] = string(data)
	}
	data, _ := json.Marshal(envelope)
	return string(data)
}

// push queues a job. It reports false once the persister is stopped.
func (p *persister) push(job persistJob) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.queue = append(p.queue, job)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return true
}

func (p *persister) next() (persistJob, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return persistJob{}, false
	}
	job := p.queue[0]
	p.queue[0] = persistJob{}
	p.queue = p.queue[1:]
	return job, true
}

func (p *persister) loop() {
	defer close(p.stopped)

	for {
		p.drain()
		select {
		case <-p.wake:
		case <-p.quit:
			p.drain()
			return
		}
	}
}

func (p *persister) drain() {
	for {
		job, ok := p.next()
		if !ok {
			return
		}
		p.handle(job)
	}
}

func (p *persister) handle(job persistJob) {
	if job.flushed != nil {
		close(job.flushed)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if job.remove {
		if err := p.engine.Remove(ctx, p.key); err != nil {
			p.logger.Error("remove persisted state failed", "chunk", p.chunk, "key", p.key, "error", err)
		}
		return
	}

	if err := p.engine.Set(ctx, p.key, job.payload); err != nil {
		p.logger.Error("persist failed", "chunk", p.chunk, "key", p.key, "error", err)
	}
}

// flush waits for every job queued before it.
func (p *persister) flush(ctx context.Context) error {
	marker := make(chan struct{})
	if !p.push(persistJob{flushed: marker}) {
		select {
		case <-p.stopped:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	select {
	case <-marker:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stop refuses further jobs. Jobs already queued are still written.
func (p *persister) stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.quit)
	})
}

// ClearPersisted removes the store's snapshot from the engine once every
// earlier write is done. Later changes write a fresh snapshot.
func (s *Store) ClearPersisted(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}
	if !s.persist.push(persistJob{remove: true}) {
		return ErrDisposed
	}
	return s.persist.flush(ctx)
}
