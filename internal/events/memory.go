package events

import "context"

const memoryBusBuffer = 64

// MemoryBus is a channel-backed bus for single-process deployments
// and tests.
type MemoryBus struct {
	ch chan ReviewCreated
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{ch: make(chan ReviewCreated, memoryBusBuffer)}
}

func (b *MemoryBus) PublishReviewCreated(ctx context.Context, ev ReviewCreated) error {
	select {
	case b.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *MemoryBus) Run(ctx context.Context, handle Handler) error {
	for {
		select {
		case ev := <-b.ch:
			handle(ctx, ev)
		case <-ctx.Done():
			return nil
		}
	}
}
