// Package pool provides a generic connection pool implementation.
// It supports bounded capacity, FIFO waiters with direct hand-off,
// validation on borrow and return, idle and lifetime eviction, generation
// based invalidation, and metrics for monitoring pool utilization.
package pool

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/go-i2p/connpool/lib/errors"
)

// acquireResult is delivered to a waiter: a connection or an error.
type acquireResult[T Connection] struct {
	conn *PooledConnection[T]
	err  error
}

// waiter is a blocked Acquire call. elem is nil once the waiter has been
// removed from the queue, either served or abandoned.
type waiter[T Connection] struct {
	ch   chan acquireResult[T]
	elem *list.Element
}

// Pool is a connection pool. All bookkeeping is guarded by mu; factory
// calls and raw Close calls always happen outside it.
type Pool[T Connection] struct {
	opts Options

	mu         sync.Mutex
	factory    Factory[T]
	generation uint64
	idle       []*PooledConnection[T]
	numOpen    int
	waiters    list.List
	closed     bool

	// ctx is canceled by Close to abort background creation.
	ctx        context.Context
	cancel     context.CancelFunc
	background sync.WaitGroup
	stopReaper chan struct{}
	reaperDone chan struct{}

	// Metrics
	acquireCount    uint64
	acquireSuccess  uint64
	acquireFailed   uint64
	acquireTimeouts uint64
	releaseCount    uint64
	handoffCount    uint64
	createCount     uint64
	createFailed    uint64
	destroyCount    uint64
	validationFails uint64
	evictCount      uint64
}

// New creates a new connection pool. The pool owns no connections until
// the first Acquire or reaper run.
func New[T Connection](factory Factory[T], opts Options) (*Pool[T], error) {
	if factory == nil {
		return nil, fmt.Errorf("pool: factory is required: %w", apperrors.ErrInvalidInput)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool[T]{
		opts:       opts,
		factory:    factory,
		generation: 1,
		idle:       make([]*PooledConnection[T], 0, opts.MaxOpen),
		ctx:        ctx,
		cancel:     cancel,
		stopReaper: make(chan struct{}),
		reaperDone: make(chan struct{}),
	}

	if opts.ReapInterval > 0 {
		go p.reapLoop()
	} else {
		close(p.reaperDone)
	}

	PoolConnectionsMax.Set(int64(opts.MaxOpen))
	log.WithField("maxOpen", opts.MaxOpen).
		WithField("minIdle", opts.MinIdle).
		WithField("acquireTimeout", opts.AcquireTimeout).
		Debug("pool created")
	return p, nil
}

// Options returns a copy of the pool's options.
func (p *Pool[T]) Options() Options {
	return p.opts
}

// Acquire gets a connection from the pool. The returned connection is in
// StateInUse and owned by the caller until it is passed to Release.
//
// Acquire blocks on an exhausted pool until a connection is handed to it,
// AcquireTimeout or the context deadline elapses (ErrNoAvailableConnection),
// or the pool is closed (ErrPoolClosed). Plain cancellation of ctx returns
// ctx.Err().
func (p *Pool[T]) Acquire(ctx context.Context) (*PooledConnection[T], error) {
	start := time.Now()
	atomic.AddUint64(&p.acquireCount, 1)
	PoolAcquireTotal.Inc()

	pc, err := p.acquire(ctx)
	PoolAcquireLatency.ObserveDuration(start)
	if err != nil {
		atomic.AddUint64(&p.acquireFailed, 1)
		PoolAcquireFailedTotal.Inc()
		if errors.Is(err, ErrNoAvailableConnection) {
			atomic.AddUint64(&p.acquireTimeouts, 1)
		}
		return nil, err
	}

	atomic.AddUint64(&p.acquireSuccess, 1)
	PoolAcquireSuccessTotal.Inc()
	return pc, nil
}

func (p *Pool[T]) acquire(ctx context.Context) (*PooledConnection[T], error) {
	// Validation retries and waiting share one deadline.
	if p.opts.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.AcquireTimeout)
		defer cancel()
	}

	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, waitError(err)
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, newError(KindPoolClosed, nil)
		}

		pc, stale := p.popIdleLocked(time.Now())
		if pc != nil {
			validate, factory := p.opts.ValidateOnBorrow, p.factory
			p.mu.Unlock()
			p.destroyAll(stale)

			if !validate || factory.Test(pc.Raw) {
				log.WithField("id", pc.id).Debug("acquired idle connection from pool")
				return pc, nil
			}

			failures++
			atomic.AddUint64(&p.validationFails, 1)
			PoolValidationFailsTotal.Inc()
			log.WithField("id", pc.id).WithField("failures", failures).Debug("idle connection failed validation")
			p.discard(pc)
			if failures >= p.opts.MaxValidationAttempts {
				return nil, &PoolError{Kind: KindTestConnection, Attempts: failures}
			}
			continue
		}

		if p.numOpen < p.opts.MaxOpen {
			// Reserve the slot before calling the factory outside the lock.
			p.numOpen++
			factory, gen := p.factory, p.generation
			p.mu.Unlock()
			p.destroyAll(stale)
			return p.createForCaller(ctx, factory, gen)
		}

		if p.opts.AcquireTimeout == 0 {
			p.mu.Unlock()
			p.destroyAll(stale)
			return nil, newError(KindNoAvailableConnection, nil)
		}

		w := &waiter[T]{ch: make(chan acquireResult[T], 1)}
		w.elem = p.waiters.PushBack(w)
		p.mu.Unlock()
		p.destroyAll(stale)

		log.Debug("waiting for available connection")
		return p.wait(ctx, w)
	}
}

// popIdleLocked pops the most recently used idle connection (LIFO) and
// marks it in use. Expired or stale connections found on the way are
// removed from the accounting and returned for closing.
func (p *Pool[T]) popIdleLocked(now time.Time) (*PooledConnection[T], []*PooledConnection[T]) {
	var stale []*PooledConnection[T]
	for len(p.idle) > 0 {
		pc := p.idle[len(p.idle)-1]
		p.idle[len(p.idle)-1] = nil
		p.idle = p.idle[:len(p.idle)-1]

		if pc.generation != p.generation || pc.expired(now, p.opts.IdleTimeout, p.opts.MaxLifetime) {
			p.invalidateLocked(pc)
			stale = append(stale, pc)
			continue
		}

		pc.state = StateInUse
		pc.lastUsedAt = now
		return pc, stale
	}
	return nil, stale
}

// createForCaller runs the factory for a slot already reserved by Acquire.
func (p *Pool[T]) createForCaller(ctx context.Context, factory Factory[T], gen uint64) (*PooledConnection[T], error) {
	pc, err := p.create(ctx, factory, gen)
	if err != nil {
		p.mu.Lock()
		p.numOpen--
		p.replenishLocked()
		p.mu.Unlock()
		log.WithError(err).Debug("failed to create new connection")
		return nil, newError(KindCreateConnection, err)
	}

	p.mu.Lock()
	if p.closed {
		p.invalidateLocked(pc)
		p.mu.Unlock()
		p.closeRaw(pc)
		return nil, newError(KindPoolClosed, nil)
	}
	p.mu.Unlock()

	log.WithField("id", pc.id).Debug("created new connection")
	return pc, nil
}

// create calls the factory and wraps the result. The connection is
// returned in StateInUse; the caller has already counted it in numOpen.
func (p *Pool[T]) create(ctx context.Context, factory Factory[T], gen uint64) (*PooledConnection[T], error) {
	start := time.Now()
	raw, err := factory.Create(ctx)
	PoolCreateLatency.ObserveDuration(start)
	if err != nil {
		atomic.AddUint64(&p.createFailed, 1)
		PoolCreateFailedTotal.Inc()
		return nil, err
	}

	atomic.AddUint64(&p.createCount, 1)
	PoolCreatedTotal.Inc()
	now := time.Now()
	return &PooledConnection[T]{
		Raw:        raw,
		id:         uuid.NewString(),
		createdAt:  now,
		lastUsedAt: now,
		generation: gen,
		state:      StateInUse,
		pool:       p,
	}, nil
}

// wait blocks until w is served or ctx is done.
func (p *Pool[T]) wait(ctx context.Context, w *waiter[T]) (*PooledConnection[T], error) {
	select {
	case res := <-w.ch:
		return res.conn, res.err
	case <-ctx.Done():
		p.abandon(w)
		return nil, waitError(ctx.Err())
	}
}

// abandon removes a waiter whose context fired. If the waiter was served
// concurrently, the result is already buffered in its channel and the
// connection is offered to the next waiter or returned to idle.
func (p *Pool[T]) abandon(w *waiter[T]) {
	p.mu.Lock()
	if w.elem != nil {
		p.waiters.Remove(w.elem)
		w.elem = nil
		p.mu.Unlock()
		return
	}

	res := <-w.ch
	var toClose *PooledConnection[T]
	if res.conn != nil {
		toClose = p.putLocked(res.conn)
	}
	p.mu.Unlock()

	if res.conn != nil {
		log.WithField("id", res.conn.id).Debug("re-offered connection from canceled waiter")
	}
	if toClose != nil {
		p.closeRaw(toClose)
	}
}

func waitError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindNoAvailableConnection, err)
	}
	return err
}

// popWaiterLocked dequeues the oldest waiter, or returns nil.
func (p *Pool[T]) popWaiterLocked() *waiter[T] {
	front := p.waiters.Front()
	if front == nil {
		return nil
	}
	w := p.waiters.Remove(front).(*waiter[T])
	w.elem = nil
	return w
}

// putLocked returns an owned connection to circulation: to the oldest
// waiter if any, otherwise to the idle set. If the pool is closed or the
// connection is stale, it is invalidated and returned for closing.
func (p *Pool[T]) putLocked(pc *PooledConnection[T]) *PooledConnection[T] {
	if p.closed || pc.generation != p.generation {
		p.invalidateLocked(pc)
		return pc
	}

	pc.lastUsedAt = time.Now()
	if w := p.popWaiterLocked(); w != nil {
		pc.state = StateInUse
		atomic.AddUint64(&p.handoffCount, 1)
		PoolHandoffTotal.Inc()
		w.ch <- acquireResult[T]{conn: pc}
		return nil
	}

	pc.state = StateIdle
	p.idle = append(p.idle, pc)
	return nil
}

// invalidateLocked removes pc from the accounting and, if waiters are
// queued, starts a replacement for them.
func (p *Pool[T]) invalidateLocked(pc *PooledConnection[T]) {
	pc.state = StateInvalid
	p.numOpen--
	atomic.AddUint64(&p.destroyCount, 1)
	PoolDestroyedTotal.Inc()
	p.replenishLocked()
}

// replenishLocked starts one background creation per free slot while
// waiters are queued, so exhaustion recovers without a new Acquire.
func (p *Pool[T]) replenishLocked() {
	if p.closed {
		return
	}
	for pending := p.waiters.Len(); pending > 0 && p.numOpen < p.opts.MaxOpen; pending-- {
		p.numOpen++
		p.background.Add(1)
		go p.createForWaiter(p.factory, p.generation)
	}
}

// createForWaiter fills a slot reserved by replenishLocked. A factory
// failure is delivered to the oldest waiter rather than retried.
func (p *Pool[T]) createForWaiter(factory Factory[T], gen uint64) {
	defer p.background.Done()

	pc, err := p.create(p.ctx, factory, gen)

	p.mu.Lock()
	if err != nil {
		p.numOpen--
		w := p.popWaiterLocked()
		if w != nil {
			w.ch <- acquireResult[T]{err: newError(KindCreateConnection, err)}
		}
		p.mu.Unlock()
		if w == nil {
			p.reportError(newError(KindCreateConnection, err))
		}
		return
	}
	toClose := p.putLocked(pc)
	p.mu.Unlock()

	if toClose != nil {
		p.closeRaw(toClose)
	}
}

// Release returns a connection to the pool. poisoned reports that the
// caller found the connection broken; it is then destroyed instead of
// reused. Release never blocks on pool capacity.
//
// Releasing a connection this pool does not track, or releasing the same
// connection twice, is a programming error and panics.
func (p *Pool[T]) Release(pc *PooledConnection[T], poisoned bool) {
	atomic.AddUint64(&p.releaseCount, 1)
	PoolReleaseTotal.Inc()

	p.mu.Lock()
	if err := p.checkOwnedLocked(pc); err != nil {
		p.mu.Unlock()
		panic(err)
	}

	if poisoned || p.closed || pc.generation != p.generation {
		reason := "poisoned"
		if p.closed {
			reason = "pool closed"
		} else if !poisoned {
			reason = "stale generation"
		}
		p.invalidateLocked(pc)
		p.mu.Unlock()
		log.WithField("id", pc.id).WithField("reason", reason).Debug("destroying released connection")
		p.closeRaw(pc)
		return
	}

	if p.opts.ValidateOnReturn {
		// The connection leaves StateInUse before the lock is dropped so a
		// concurrent second Release panics instead of returning it twice.
		pc.state = stateReturning
		factory := p.factory
		p.mu.Unlock()

		if !factory.Test(pc.Raw) {
			atomic.AddUint64(&p.validationFails, 1)
			PoolValidationFailsTotal.Inc()
			log.WithField("id", pc.id).Debug("released connection failed validation")
			p.discard(pc)
			return
		}
		p.mu.Lock()
	}

	toClose := p.putLocked(pc)
	p.mu.Unlock()

	if toClose != nil {
		p.closeRaw(toClose)
		return
	}
	log.WithField("id", pc.id).Debug("connection released to pool")
}

// Discard releases a connection known to be broken. It is shorthand for
// Release(pc, true).
func (p *Pool[T]) Discard(pc *PooledConnection[T]) {
	p.Release(pc, true)
}

func (p *Pool[T]) checkOwnedLocked(pc *PooledConnection[T]) error {
	if pc == nil {
		return fmt.Errorf("pool: release of nil connection: %w", apperrors.ErrInvalidState)
	}
	if pc.pool != p {
		return fmt.Errorf("pool: release of connection %s not owned by this pool: %w", pc.id, apperrors.ErrInvalidState)
	}
	if pc.state != StateInUse {
		return fmt.Errorf("pool: release of connection %s in state %s: %w", pc.id, pc.state, apperrors.ErrInvalidState)
	}
	return nil
}

// discard destroys a connection owned by the caller.
func (p *Pool[T]) discard(pc *PooledConnection[T]) {
	p.mu.Lock()
	p.invalidateLocked(pc)
	p.mu.Unlock()
	p.closeRaw(pc)
}

func (p *Pool[T]) destroyAll(conns []*PooledConnection[T]) {
	for _, pc := range conns {
		p.closeRaw(pc)
	}
}

func (p *Pool[T]) closeRaw(pc *PooledConnection[T]) {
	if err := pc.Raw.Close(); err != nil {
		log.WithField("id", pc.id).WithError(err).Debug("error closing connection")
	}
}

func (p *Pool[T]) reportError(err error) {
	// Failures caused by Close canceling background work are expected.
	if p.ctx.Err() != nil {
		log.WithError(err).Debug("background creation stopped by close")
		return
	}
	if p.opts.OnError != nil {
		p.opts.OnError(err)
		return
	}
	log.WithError(err).Warn("background connection creation failed")
}

// SetFactory replaces the factory and starts a new generation. Idle
// connections from older generations are destroyed now; in-use ones are
// destroyed when released.
func (p *Pool[T]) SetFactory(factory Factory[T]) error {
	if factory == nil {
		return fmt.Errorf("pool: factory is required: %w", apperrors.ErrInvalidInput)
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.factory = factory
	stale := p.advanceGenerationLocked()
	p.mu.Unlock()

	p.destroyAll(stale)
	log.WithField("destroyed", len(stale)).Info("pool factory replaced")
	return nil
}

// Invalidate starts a new generation without changing the factory.
func (p *Pool[T]) Invalidate() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	stale := p.advanceGenerationLocked()
	p.mu.Unlock()

	p.destroyAll(stale)
	log.WithField("destroyed", len(stale)).Info("pool generation invalidated")
}

func (p *Pool[T]) advanceGenerationLocked() []*PooledConnection[T] {
	p.generation++
	stale := p.idle
	p.idle = make([]*PooledConnection[T], 0, p.opts.MaxOpen)
	for _, pc := range stale {
		p.invalidateLocked(pc)
	}
	return stale
}

// Close closes the pool. Waiters fail with ErrPoolClosed, idle connections
// are destroyed, and in-use connections are destroyed as they are released.
// Close is idempotent and waits for background work to stop.
func (p *Pool[T]) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true

	idle := p.idle
	p.idle = nil
	for _, pc := range idle {
		p.invalidateLocked(pc)
	}
	for w := p.popWaiterLocked(); w != nil; w = p.popWaiterLocked() {
		w.ch <- acquireResult[T]{err: newError(KindPoolClosed, nil)}
	}
	p.mu.Unlock()

	p.cancel()
	close(p.stopReaper)
	p.destroyAll(idle)

	<-p.reaperDone
	p.background.Wait()

	log.WithField("destroyed", len(idle)).Debug("pool closed")
	return nil
}

// Stats returns pool statistics.
type Stats struct {
	// MaxOpen is the maximum number of live connections.
	MaxOpen int
	// NumOpen is the current number of live connections, including slots
	// reserved for connections being created.
	NumOpen int
	// NumIdle is the current number of idle connections.
	NumIdle int
	// NumInUse is NumOpen minus NumIdle.
	NumInUse int
	// NumWaiting is the number of blocked Acquire calls.
	NumWaiting int
	// Generation is the current factory generation.
	Generation uint64
	// Closed reports whether Close has been called.
	Closed bool

	AcquireCount    uint64
	AcquireSuccess  uint64
	AcquireFailed   uint64
	AcquireTimeouts uint64
	ReleaseCount    uint64
	HandoffCount    uint64
	CreateCount     uint64
	CreateFailed    uint64
	DestroyCount    uint64
	ValidationFails uint64
	EvictionCount   uint64
}

// Stats returns current pool statistics.
func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		MaxOpen:         p.opts.MaxOpen,
		NumOpen:         p.numOpen,
		NumIdle:         len(p.idle),
		NumInUse:        p.numOpen - len(p.idle),
		NumWaiting:      p.waiters.Len(),
		Generation:      p.generation,
		Closed:          p.closed,
		AcquireCount:    atomic.LoadUint64(&p.acquireCount),
		AcquireSuccess:  atomic.LoadUint64(&p.acquireSuccess),
		AcquireFailed:   atomic.LoadUint64(&p.acquireFailed),
		AcquireTimeouts: atomic.LoadUint64(&p.acquireTimeouts),
		ReleaseCount:    atomic.LoadUint64(&p.releaseCount),
		HandoffCount:    atomic.LoadUint64(&p.handoffCount),
		CreateCount:     atomic.LoadUint64(&p.createCount),
		CreateFailed:    atomic.LoadUint64(&p.createFailed),
		DestroyCount:    atomic.LoadUint64(&p.destroyCount),
		ValidationFails: atomic.LoadUint64(&p.validationFails),
		EvictionCount:   atomic.LoadUint64(&p.evictCount),
	}
}
