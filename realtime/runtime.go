package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/comalice/fractalx"
)

// ErrQueueFull is returned by Send when the pending batch is at capacity.
var ErrQueueFull = errors.New("event queue full")

// Dispatcher is what the runtime applies batches to. *fractalx.Module satisfies it.
type Dispatcher interface {
	Dispatch(dd fractalx.DispatchData) error
}

// Runtime batches dispatches and applies them at fixed tick boundaries.
type Runtime struct {
	target Dispatcher
	logger *slog.Logger
	onTick func(tick uint64)

	// Tick-specific fields
	tickRate time.Duration // e.g., 16.67ms for 60 FPS
	ticker   *time.Ticker
	tickNum  uint64

	// Dispatch batching
	batch       []DispatchWithMeta
	batchMu     sync.Mutex
	sequenceNum uint64
	capacity    int

	// Control
	tickCtx    context.Context
	tickCancel context.CancelFunc
	stopped    chan struct{}
	startOnce  sync.Once
}

// Config configures the tick runtime
type Config struct {
	TickRate         time.Duration // Fixed tick rate (e.g., 16.67ms for 60 FPS)
	MaxEventsPerTick int           // Batch capacity (default: 1000)
	Logger           *slog.Logger
	// OnTick is called after every processed tick with its number.
	OnTick func(tick uint64)
}

// NewRuntime creates a tick runtime applying batches to target.
func NewRuntime(target Dispatcher, cfg Config) *Runtime {
	if cfg.MaxEventsPerTick == 0 {
		cfg.MaxEventsPerTick = 1000
	}
	if cfg.TickRate == 0 {
		cfg.TickRate = 16667 * time.Microsecond // Default 60 FPS
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Runtime{
		target:   target,
		logger:   cfg.Logger,
		onTick:   cfg.OnTick,
		tickRate: cfg.TickRate,
		batch:    make([]DispatchWithMeta, 0, cfg.MaxEventsPerTick),
		capacity: cfg.MaxEventsPerTick,
		stopped:  make(chan struct{}),
	}
}

// Start begins tick-based execution. Idempotent.
func (rt *Runtime) Start(ctx context.Context) error {
	rt.startOnce.Do(func() {
		rt.tickCtx, rt.tickCancel = context.WithCancel(ctx)
		rt.ticker = time.NewTicker(rt.tickRate)
		go rt.tickLoop()
	})
	return nil
}

// Stop gracefully stops the runtime. Dispatches still batched are dropped.
func (rt *Runtime) Stop() error {
	if rt.tickCancel == nil {
		return nil
	}
	rt.tickCancel()
	rt.ticker.Stop()

	// Wait for tick loop to exit
	<-rt.stopped
	return nil
}

// tickLoop is the main tick execution loop
func (rt *Runtime) tickLoop() {
	defer close(rt.stopped)

	for {
		select {
		case <-rt.tickCtx.Done():
			return
		case <-rt.ticker.C:
			rt.Tick()
		}
	}
}

// Tick processes one complete tick now. The loop calls it on every tick;
// tests and fixed-step drivers may call it directly.
func (rt *Runtime) Tick() {
	rt.processTick()

	rt.batchMu.Lock()
	rt.tickNum++
	n := rt.tickNum
	rt.batchMu.Unlock()

	if rt.onTick != nil {
		rt.onTick(n)
	}
}

// Send queues a dispatch for the next tick (thread-safe)
func (rt *Runtime) Send(dd fractalx.DispatchData) error {
	return rt.SendWithPriority(dd, 0)
}

// SendWithPriority queues a dispatch with priority
func (rt *Runtime) SendWithPriority(dd fractalx.DispatchData, priority int) error {
	rt.batchMu.Lock()
	defer rt.batchMu.Unlock()

	if len(rt.batch) >= rt.capacity {
		return ErrQueueFull
	}

	rt.batch = append(rt.batch, DispatchWithMeta{
		Dispatch:    dd,
		SequenceNum: rt.sequenceNum,
		Priority:    priority,
	})
	rt.sequenceNum++

	return nil
}

// TickNumber returns the number of processed ticks
func (rt *Runtime) TickNumber() uint64 {
	rt.batchMu.Lock()
	defer rt.batchMu.Unlock()
	return rt.tickNum
}

// Pending returns the number of dispatches waiting for the next tick
func (rt *Runtime) Pending() int {
	rt.batchMu.Lock()
	defer rt.batchMu.Unlock()
	return len(rt.batch)
}
