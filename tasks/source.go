package tasks

import (
	"sync"
	"time"

	"github.com/comalice/fractalx"
)

// ChannelSource pumps DispatchData received on a channel into a module.
// Provides a simple way to feed external events into the tree.
type ChannelSource struct {
	ch   <-chan fractalx.DispatchData
	done chan struct{}
}

// NewChannelSource starts pumping ch into api until ch is closed.
func NewChannelSource(api fractalx.API, ch <-chan fractalx.DispatchData) *ChannelSource {
	s := &ChannelSource{ch: ch, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		for dd := range ch {
			api.Dispatch(dd)
		}
	}()
	return s
}

// Done is closed once the channel is closed and drained.
func (s *ChannelSource) Done() <-chan struct{} {
	return s.done
}

// TimerSource dispatches the same DispatchData every interval.
// Useful for clocks and heartbeats.
type TimerSource struct {
	ticker *time.Ticker
	stop   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// NewTimerSource starts dispatching dd into api every d.
func NewTimerSource(api fractalx.API, dd fractalx.DispatchData, d time.Duration) *TimerSource {
	t := &TimerSource{
		ticker: time.NewTicker(d),
		stop:   make(chan struct{}),
	}
	t.wg.Add(1)
	go t.run(api, dd)
	return t
}

func (t *TimerSource) run(api fractalx.API, dd fractalx.DispatchData) {
	defer t.wg.Done()
	for {
		select {
		case <-t.ticker.C:
			api.Dispatch(dd)
		case <-t.stop:
			t.ticker.Stop()
			return
		}
	}
}

// Stop stops the ticker and waits for the last dispatch to return. Idempotent.
func (t *TimerSource) Stop() {
	t.once.Do(func() { close(t.stop) })
	t.wg.Wait()
}
