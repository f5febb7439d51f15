package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"survey-analytics-service/internal/domain"
)

// AggregateStore holds the last committed aggregate per target key.
// Replace must swap the whole record atomically.
type AggregateStore[A domain.Aggregate] interface {
	Load(ctx context.Context, key string) (A, bool, error)
	Replace(ctx context.Context, key string, agg A) error
}

// StaleMarkers flags targets whose committed aggregate must not be served as fresh.
type StaleMarkers interface {
	MarkStale(ctx context.Context, key string) error
	ClearStale(ctx context.Context, key string) error
	IsStale(ctx context.Context, key string) (bool, error)
}

// TargetLeases serializes recomputation of a target across processes sharing
// one aggregate store. Acquire blocks until the lease is held; the returned
// context is cancelled if the lease is lost, and release must always be called.
type TargetLeases interface {
	Acquire(ctx context.Context, key string) (context.Context, func(), error)
}

// ComputeFunc derives an aggregate from the current raw records of one target.
type ComputeFunc[A domain.Aggregate] func(ctx context.Context, key string) (A, error)

// Handle tracks one recomputation run. Several triggers may share a handle.
type Handle[A domain.Aggregate] struct {
	done   chan struct{}
	result A
	err    error
}

func newHandle[A domain.Aggregate]() *Handle[A] {
	return &Handle[A]{done: make(chan struct{})}
}

func (h *Handle[A]) finish(result A, err error) {
	h.result = result
	h.err = err
	close(h.done)
}

// Done is closed when the run has committed or failed.
func (h *Handle[A]) Done() <-chan struct{} { return h.done }

// Wait blocks until the run finishes or ctx is done. Cancelling ctx stops the
// wait only; the run itself continues and commits normally.
func (h *Handle[A]) Wait(ctx context.Context) (A, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		var zero A
		return zero, ctx.Err()
	}
}

// slot is the per-target state: running is nil while Idle.
type slot[A domain.Aggregate] struct {
	running *Handle[A]
	pending *Handle[A]
}

// Coordinator serializes recomputation per target key. Runs for different keys
// proceed in parallel; triggers arriving while a key is computing share one
// follow-up run.
type Coordinator[A domain.Aggregate] struct {
	kind    string
	compute ComputeFunc[A]
	store   AggregateStore[A]
	stale   StaleMarkers
	leases  TargetLeases
	log     logrus.FieldLogger
	now     func() time.Time
	maxAge  time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	slots map[string]*slot[A]
	// known holds keys whose last run found the target; Refresh re-triggers them.
	known map[string]struct{}

	subMu       sync.Mutex
	subscribers map[string]map[chan A]struct{}
}

// CoordinatorOption customizes a Coordinator.
type CoordinatorOption func(*coordinatorOptions)

type coordinatorOptions struct {
	stale  StaleMarkers
	leases TargetLeases
	log    logrus.FieldLogger
	now    func() time.Time
	maxAge time.Duration
}

// WithStaleMarkers shares stale flags through an external store (e.g. Redis).
func WithStaleMarkers(m StaleMarkers) CoordinatorOption {
	return func(o *coordinatorOptions) { o.stale = m }
}

// WithTargetLeases makes runs for one key exclusive across every process
// holding the same leases (e.g. Redis), not only within this coordinator.
func WithTargetLeases(l TargetLeases) CoordinatorOption {
	return func(o *coordinatorOptions) { o.leases = l }
}

func WithLogger(l logrus.FieldLogger) CoordinatorOption {
	return func(o *coordinatorOptions) { o.log = l }
}

func WithClock(now func() time.Time) CoordinatorOption {
	return func(o *coordinatorOptions) { o.now = now }
}

// WithMaxAge makes GetOrRecompute treat aggregates older than d as stale. Zero disables.
func WithMaxAge(d time.Duration) CoordinatorOption {
	return func(o *coordinatorOptions) { o.maxAge = d }
}

func NewCoordinator[A domain.Aggregate](kind string, compute ComputeFunc[A], store AggregateStore[A], opts ...CoordinatorOption) *Coordinator[A] {
	o := coordinatorOptions{
		stale:  newLocalStaleMarkers(),
		leases: localLeases{},
		log:    logrus.StandardLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator[A]{
		kind:        kind,
		compute:     compute,
		store:       store,
		stale:       o.stale,
		leases:      o.leases,
		log:         o.log.WithField("target_kind", kind),
		now:         o.now,
		maxAge:      o.maxAge,
		ctx:         ctx,
		cancel:      cancel,
		slots:       make(map[string]*slot[A]),
		known:       make(map[string]struct{}),
		subscribers: make(map[string]map[chan A]struct{}),
	}
}

// Trigger requests a recomputation of key without blocking. If key is idle a run
// starts now; otherwise the caller joins the single follow-up run that starts
// when the current one finishes.
func (c *Coordinator[A]) Trigger(key string) *Handle[A] {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.slots[key]
	if !ok {
		s = &slot[A]{}
		c.slots[key] = s
	}
	if s.running == nil {
		h := newHandle[A]()
		s.running = h
		go c.run(key, h)
		return h
	}
	if s.pending == nil {
		s.pending = newHandle[A]()
	}
	return s.pending
}

// Recompute is the blocking form of Trigger.
func (c *Coordinator[A]) Recompute(ctx context.Context, key string) (A, error) {
	return c.Trigger(key).Wait(ctx)
}

// Computing reports whether a run for key is in flight.
func (c *Coordinator[A]) Computing(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[key]
	return ok && s.running != nil
}

// Current returns the last committed aggregate without waiting on any run.
func (c *Coordinator[A]) Current(ctx context.Context, key string) (A, bool, error) {
	return c.store.Load(ctx, key)
}

// GetOrRecompute serves the committed aggregate when it is fresh and recomputes
// otherwise. When recomputation fails and a prior aggregate exists, the prior is
// returned together with the error.
func (c *Coordinator[A]) GetOrRecompute(ctx context.Context, key string) (A, error) {
	prior, ok, err := c.store.Load(ctx, key)
	if err != nil {
		c.log.WithError(err).WithField("target", key).Warn("load committed aggregate")
		ok = false
	}
	if ok && c.fresh(ctx, key, prior) {
		return prior, nil
	}

	agg, err := c.Recompute(ctx, key)
	if err != nil && ok && !errors.Is(err, domain.ErrTargetNotFound) {
		return prior, err
	}
	return agg, err
}

func (c *Coordinator[A]) fresh(ctx context.Context, key string, agg A) bool {
	stale, err := c.stale.IsStale(ctx, key)
	if err != nil {
		c.log.WithError(err).WithField("target", key).Warn("read stale marker")
		return false
	}
	if stale {
		return false
	}
	if c.maxAge > 0 && c.now().Sub(agg.ComputedAt()) > c.maxAge {
		return false
	}
	return true
}

// Invalidate marks key stale so the next GetOrRecompute recomputes it.
func (c *Coordinator[A]) Invalidate(ctx context.Context, key string) error {
	return c.stale.MarkStale(ctx, key)
}

// Refresh triggers every key this coordinator has seen and returns the handles.
func (c *Coordinator[A]) Refresh() []*Handle[A] {
	c.mu.Lock()
	keys := make([]string, 0, len(c.known))
	for k := range c.known {
		keys = append(keys, k)
	}
	c.mu.Unlock()

	handles := make([]*Handle[A], 0, len(keys))
	for _, k := range keys {
		handles = append(handles, c.Trigger(k))
	}
	return handles
}

// Close cancels in-flight runs; cancelled runs do not commit.
func (c *Coordinator[A]) Close() {
	c.cancel()
}

func (c *Coordinator[A]) run(key string, h *Handle[A]) {
	for {
		agg, err := c.execute(key)

		c.mu.Lock()
		s := c.slots[key]
		switch {
		case !errors.Is(err, domain.ErrTargetNotFound):
			c.known[key] = struct{}{}
		case s.pending == nil:
			delete(c.known, key)
		}
		h.finish(agg, err)
		if s.pending != nil {
			h = s.pending
			s.pending = nil
			s.running = h
			c.mu.Unlock()
			continue
		}
		delete(c.slots, key)
		c.mu.Unlock()
		return
	}
}

// execute performs one full recompute and commits it, or commits nothing.
func (c *Coordinator[A]) execute(key string) (agg A, err error) {
	ctx := c.ctx
	logger := c.log.WithField("target", key)
	started := c.now()

	defer func() {
		if r := recover(); r != nil {
			var zero A
			agg = zero
			err = c.fail(ctx, key, fmt.Errorf("panic: %v", r))
		}
	}()

	leaseCtx, release, err := c.leases.Acquire(ctx, key)
	if err != nil {
		var zero A
		return zero, c.fail(ctx, key, fmt.Errorf("acquire lease: %w", err))
	}
	defer release()
	ctx = leaseCtx

	agg, err = c.compute(ctx, key)
	if err != nil {
		var zero A
		if errors.Is(err, domain.ErrTargetNotFound) {
			return zero, err
		}
		return zero, c.fail(ctx, key, err)
	}
	if err := ctx.Err(); err != nil {
		var zero A
		return zero, c.fail(ctx, key, err)
	}
	if err := c.store.Replace(ctx, key, agg); err != nil {
		var zero A
		return zero, c.fail(ctx, key, fmt.Errorf("commit: %w", err))
	}
	if err := c.stale.ClearStale(ctx, key); err != nil {
		logger.WithError(err).Warn("clear stale marker")
	}
	logger.WithField("took", c.now().Sub(started)).Debug("aggregate committed")
	c.broadcast(key, agg)
	return agg, nil
}

func (c *Coordinator[A]) fail(ctx context.Context, key string, cause error) error {
	// The stale flag must survive a cancelled run context.
	if err := c.stale.MarkStale(context.WithoutCancel(ctx), key); err != nil {
		c.log.WithError(err).WithField("target", key).Warn("mark stale")
	}
	c.log.WithError(cause).WithField("target", key).Error("recomputation failed; keeping prior aggregate")
	return &domain.ComputationError{Kind: c.kind, Key: key, Err: cause}
}

// Subscribe returns a channel receiving every aggregate committed for key.
// Slow readers only ever see the newest commit. The caller must invoke cancel.
func (c *Coordinator[A]) Subscribe(key string) (<-chan A, func()) {
	ch := make(chan A, 1)

	c.subMu.Lock()
	if c.subscribers[key] == nil {
		c.subscribers[key] = make(map[chan A]struct{})
	}
	c.subscribers[key][ch] = struct{}{}
	c.subMu.Unlock()

	cancel := func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		subs := c.subscribers[key]
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(c.subscribers, key)
			}
		}
	}
	return ch, cancel
}

func (c *Coordinator[A]) broadcast(key string, agg A) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for ch := range c.subscribers[key] {
		select {
		case ch <- agg:
		default:
			// Replace the unread commit with the newer one.
			select {
			case <-ch:
			default:
			}
			ch <- agg
		}
	}
}

// localLeases is the default: the per-key slot already serializes runs in-process.
type localLeases struct{}

func (localLeases) Acquire(ctx context.Context, _ string) (context.Context, func(), error) {
	return ctx, func() {}, nil
}

// localStaleMarkers is the in-process default when no shared store is configured.
type localStaleMarkers struct {
	mu    sync.RWMutex
	stale map[string]struct{}
}

func newLocalStaleMarkers() *localStaleMarkers {
	return &localStaleMarkers{stale: make(map[string]struct{})}
}

func (m *localStaleMarkers) MarkStale(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stale[key] = struct{}{}
	return nil
}

func (m *localStaleMarkers) ClearStale(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stale, key)
	return nil
}

func (m *localStaleMarkers) IsStale(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.stale[key]
	return ok, nil
}
