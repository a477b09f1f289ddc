package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/fractalx"
	"github.com/comalice/fractalx/tasks"
)

func newCounterModule(rec *Recorder, log *tasks.Log) *fractalx.Module {
	return fractalx.Run(fractalx.ModuleDef{
		Root:       CounterTree(CounterOptions{}, nil),
		Tasks:      map[string]fractalx.TaskFactory{"log": tasks.LogTask(log)},
		Interfaces: map[string]fractalx.HandlerFactory{"event": rec.Factory()},
	})
}

// TestAdapterInterface verifies that both adapters drive a module the same way
func TestAdapterInterface(t *testing.T) {
	tests := []struct {
		name string
		make func(m *fractalx.Module) RuntimeAdapter
	}{
		{
			name: "Direct",
			make: func(m *fractalx.Module) RuntimeAdapter { return NewDirectAdapter(m) },
		},
		{
			name: "TickBased",
			make: func(m *fractalx.Module) RuntimeAdapter { return NewTickBasedAdapter(m, 5*time.Millisecond) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := NewRecorder()
			m := newCounterModule(rec, &tasks.Log{})
			RunCommonTests(t, tt.make(m), rec)
		})
	}
}

// RunCommonTests runs the same scenario on any adapter
func RunCommonTests(t *testing.T, adapter RuntimeAdapter, rec *Recorder) {
	ctx := context.Background()
	require.NoError(t, adapter.Start(ctx))
	defer adapter.Stop()

	// Initial state
	assert.Equal(t, CounterState{Key: "Main"}, adapter.StateOf("Main"))

	// Dispatch to root and child
	require.NoError(t, adapter.Send(fractalx.DispatchData{ID: "Main", Input: "inc"}))
	require.NoError(t, adapter.Send(fractalx.DispatchData{ID: "Main$child2", Input: "set", Payload: 7}))
	require.NoError(t, adapter.WaitForStability(time.Second))

	assert.Equal(t, CounterState{Key: "Main", Count: 1}, adapter.StateOf("Main"))
	assert.Equal(t, CounterState{Key: "child2", Count: 7}, adapter.StateOf("Main$child2"))
	assert.Equal(t, "Fractal is awesome!! 7", ChildView(rec.Last(), "child2").Content)
}

func TestRecorderTrigger(t *testing.T) {
	rec := NewRecorder()
	log := &tasks.Log{}
	m := newCounterModule(rec, log)

	view := ViewOf(rec.Last())
	require.NoError(t, rec.Trigger(view.Events["task"], nil))

	assert.Equal(t, []any{"info"}, log.Entries())
	assert.Equal(t, "Fractal is awesome!! 1", ViewOf(rec.Last()).Content)

	attaches, reattaches := rec.Counts()
	assert.Equal(t, 1, attaches)
	assert.Zero(t, reattaches)

	require.NoError(t, m.Dispose())
	assert.True(t, rec.Disposed())
}
