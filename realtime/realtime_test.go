package realtime

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/fractalx"
)

// recorder is a Dispatcher that remembers what it was asked to apply.
type recorder struct {
	mu  sync.Mutex
	got []string
}

func (r *recorder) Dispatch(dd fractalx.DispatchData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, dd.Input)
	if dd.Input == "panic" {
		panic("boom")
	}
	return nil
}

func (r *recorder) inputs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

func dd(input string) fractalx.DispatchData {
	return fractalx.DispatchData{ID: "Main", Input: input}
}

func TestRuntimeDefaults(t *testing.T) {
	rt := NewRuntime(&recorder{}, Config{})
	assert.Equal(t, 16667*time.Microsecond, rt.tickRate)
	assert.Equal(t, 1000, rt.capacity)
}

func TestTickAppliesBatchInOrder(t *testing.T) {
	rec := &recorder{}
	rt := NewRuntime(rec, Config{})

	require.NoError(t, rt.Send(dd("a")))
	require.NoError(t, rt.SendWithPriority(dd("urgent"), 10))
	require.NoError(t, rt.Send(dd("b")))
	require.NoError(t, rt.SendWithPriority(dd("soon"), 5))
	assert.Equal(t, 4, rt.Pending())

	assert.Empty(t, rec.inputs(), "nothing is applied before a tick")
	rt.Tick()

	assert.Equal(t, []string{"urgent", "soon", "a", "b"}, rec.inputs())
	assert.Equal(t, uint64(1), rt.TickNumber())
	assert.Zero(t, rt.Pending())
}

func TestSendBackpressure(t *testing.T) {
	rt := NewRuntime(&recorder{}, Config{MaxEventsPerTick: 2})
	require.NoError(t, rt.Send(dd("a")))
	require.NoError(t, rt.Send(dd("b")))
	assert.ErrorIs(t, rt.Send(dd("c")), ErrQueueFull)

	rt.Tick()
	assert.NoError(t, rt.Send(dd("c")), "capacity is per tick")
}

func TestTickRecoversPanics(t *testing.T) {
	rec := &recorder{}
	var logs bytes.Buffer
	var ticks []uint64
	rt := NewRuntime(rec, Config{
		Logger: slog.New(slog.NewJSONHandler(&logs, nil)),
		OnTick: func(n uint64) { ticks = append(ticks, n) },
	})

	require.NoError(t, rt.Send(dd("before")))
	require.NoError(t, rt.Send(dd("panic")))
	require.NoError(t, rt.Send(dd("after")))
	assert.NotPanics(t, rt.Tick)

	// only the panicking dispatch is dropped
	require.NoError(t, rt.Send(dd("next")))
	rt.Tick()
	assert.Equal(t, []string{"before", "panic", "after", "next"}, rec.inputs())
	assert.Equal(t, []uint64{1, 2}, ticks)
	assert.Contains(t, logs.String(), `"msg":"tick dispatch panicked"`)
	assert.Contains(t, logs.String(), `"input":"panic"`)
	assert.Contains(t, logs.String(), `"seq":`)
}

func TestTickLoop(t *testing.T) {
	rec := &recorder{}
	rt := NewRuntime(rec, Config{TickRate: 5 * time.Millisecond})
	require.NoError(t, rt.Start(context.Background()))
	require.NoError(t, rt.Start(context.Background()), "start is idempotent")

	require.NoError(t, rt.Send(dd("a")))
	assert.Eventually(t, func() bool { return len(rec.inputs()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return rt.TickNumber() >= 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, rt.Stop())
}

func TestStopWithoutStart(t *testing.T) {
	rt := NewRuntime(&recorder{}, Config{})
	assert.NoError(t, rt.Stop())
}
