package production

import (
	"context"
	"sync"

	"github.com/comalice/fractalx"
)

// ChannelPublisher forwards dispatch records to a Go channel.
// Non-blocking publish with drop on backpressure.
type ChannelPublisher struct {
	mu      sync.Mutex
	ch      chan<- fractalx.DispatchRecord
	closed  bool
	dropped int
}

// NewChannelPublisher creates a ChannelPublisher with the given output channel.
func NewChannelPublisher(ch chan<- fractalx.DispatchRecord) *ChannelPublisher {
	return &ChannelPublisher{ch: ch}
}

func (p *ChannelPublisher) Publish(ctx context.Context, record fractalx.DispatchRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	select {
	case p.ch <- record:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.dropped++
		return nil // Non-blocking drop
	}
}

// Dropped returns how many records were dropped on a full channel.
func (p *ChannelPublisher) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Close closes the output channel. Later publishes are ignored.
func (p *ChannelPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
	return nil
}
