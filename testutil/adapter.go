package testutil

import (
	"context"
	"time"

	"github.com/comalice/fractalx"
	"github.com/comalice/fractalx/realtime"
)

// RuntimeAdapter provides a common interface for direct and tick-based dispatching.
// This allows running the same test suite on both.
type RuntimeAdapter interface {
	Start(ctx context.Context) error
	Stop() error
	Send(dd fractalx.DispatchData) error
	StateOf(id string) any
	WaitForStability(timeout time.Duration) error
}

// stateOf reads the state at id straight from the index.
func stateOf(m *fractalx.Module, id string) any {
	sp, ok := m.Context().Components().Get(id)
	if !ok {
		return nil
	}
	return sp.State()
}

// DirectAdapter dispatches straight into the module
type DirectAdapter struct {
	m *fractalx.Module
}

// NewDirectAdapter creates a new adapter dispatching through m.Dispatch
func NewDirectAdapter(m *fractalx.Module) *DirectAdapter {
	return &DirectAdapter{m: m}
}

func (a *DirectAdapter) Start(ctx context.Context) error { return nil }

func (a *DirectAdapter) Stop() error { return nil }

func (a *DirectAdapter) Send(dd fractalx.DispatchData) error {
	return a.m.Dispatch(dd)
}

func (a *DirectAdapter) StateOf(id string) any {
	return stateOf(a.m, id)
}

func (a *DirectAdapter) WaitForStability(timeout time.Duration) error {
	// Direct dispatch applies the cycle before Send returns
	return nil
}

// TickBasedAdapter wraps the tick-based runtime
type TickBasedAdapter struct {
	m        *fractalx.Module
	rt       *realtime.Runtime
	tickRate time.Duration
}

// NewTickBasedAdapter creates a new adapter for the tick-based runtime
func NewTickBasedAdapter(m *fractalx.Module, tickRate time.Duration) *TickBasedAdapter {
	return &TickBasedAdapter{
		m: m,
		rt: realtime.NewRuntime(m, realtime.Config{
			TickRate: tickRate,
		}),
		tickRate: tickRate,
	}
}

func (a *TickBasedAdapter) Start(ctx context.Context) error {
	return a.rt.Start(ctx)
}

func (a *TickBasedAdapter) Stop() error {
	return a.rt.Stop()
}

func (a *TickBasedAdapter) Send(dd fractalx.DispatchData) error {
	return a.rt.Send(dd)
}

func (a *TickBasedAdapter) StateOf(id string) any {
	return stateOf(a.m, id)
}

func (a *TickBasedAdapter) WaitForStability(timeout time.Duration) error {
	// Wait until the batch is applied by a tick
	deadline := time.Now().Add(timeout)
	for a.rt.Pending() > 0 && time.Now().Before(deadline) {
		time.Sleep(a.tickRate)
	}
	time.Sleep(a.tickRate + 5*time.Millisecond)
	return nil
}
