package tasks_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/comalice/fractalx"
	"github.com/comalice/fractalx/tasks"
)

// fakeAPI records what runners send back.
type fakeAPI struct {
	mu         sync.Mutex
	dispatches []fractalx.DispatchData
	warns      []string
	errs       []string
}

func (f *fakeAPI) Dispatch(dd fractalx.DispatchData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatches = append(f.dispatches, dd)
	return nil
}

func (f *fakeAPI) Merge(string, *fractalx.Definition) error       { return nil }
func (f *fakeAPI) MergeAll(map[string]*fractalx.Definition) error { return nil }

func (f *fakeAPI) Warn(source, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warns = append(f.warns, source+": "+message)
}

func (f *fakeAPI) Error(source, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, source+": "+message)
}

func (f *fakeAPI) sent() []fractalx.DispatchData {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fractalx.DispatchData(nil), f.dispatches...)
}

func TestLogTask(t *testing.T) {
	api := &fakeAPI{}
	log := &tasks.Log{}
	run := tasks.LogTask(log)(api)

	run(tasks.LogData{Info: "info", Then: fractalx.EventData{ID: "Main", Input: "inc"}})
	run(tasks.LogData{Info: "quiet"})

	assert.Equal(t, []any{"info", "quiet"}, log.Entries())
	assert.Equal(t, "quiet", log.Last())
	assert.Equal(t, []fractalx.DispatchData{{ID: "Main", Input: "inc"}}, api.sent())
}

func TestLogTaskResolvesParam(t *testing.T) {
	api := &fakeAPI{}
	run := tasks.LogTask(&tasks.Log{})(api)

	double := func(v any) any { return v.(int) * 2 }
	run(tasks.LogData{Info: "x", Then: fractalx.EventData{ID: "Main", Input: "set", Param: double}, Payload: 21})

	require.Len(t, api.sent(), 1)
	assert.Equal(t, 42, api.sent()[0].Payload)
}

func TestLogTaskRejectsForeignData(t *testing.T) {
	api := &fakeAPI{}
	log := &tasks.Log{}
	tasks.LogTask(log)(api)("not log data")

	assert.Empty(t, log.Entries())
	assert.Nil(t, log.Last())
	assert.Equal(t, []string{"log: unexpected task data string"}, api.errs)
}

func TestDelay(t *testing.T) {
	api := &fakeAPI{}
	run := tasks.Delay()(api)

	start := time.Now()
	run(tasks.DelayData{After: 20 * time.Millisecond, Then: fractalx.EventData{ID: "Main", Input: "inc"}})
	assert.Empty(t, api.sent(), "runner must not wait for the timer")

	assert.Eventually(t, func() bool { return len(api.sent()) == 1 }, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestFuncAndLogging(t *testing.T) {
	api := &fakeAPI{}
	var got []any
	inner := tasks.Func(func(a fractalx.API, data any) { got = append(got, data) })

	run := tasks.Logging("record", inner, nil)(api)
	run(1)
	run(2)

	assert.Equal(t, []any{1, 2}, got)
}

func TestThrottle(t *testing.T) {
	api := &fakeAPI{}
	calls := 0
	inner := tasks.Func(func(fractalx.API, any) { calls++ })

	run := tasks.Throttle("fetch", inner, rate.NewLimiter(rate.Every(time.Hour), 2))(api)
	run(nil)
	run(nil)
	run(nil)

	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"throttle: task 'fetch' dropped: rate limit exceeded"}, api.warns)
}
