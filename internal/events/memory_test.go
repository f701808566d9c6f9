package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBusDeliversInOrder(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.PublishReviewCreated(ctx, ReviewCreated{ReviewID: "r1", Comment: "first"}))
	require.NoError(t, bus.PublishReviewCreated(ctx, ReviewCreated{ReviewID: "r2", Comment: "second"}))

	got := make(chan ReviewCreated, 2)
	done := make(chan struct{})
	go func() {
		defer close(done)
		bus.Run(ctx, func(_ context.Context, ev ReviewCreated) {
			got <- ev
		})
	}()

	var received []ReviewCreated
	for i := 0; i < 2; i++ {
		select {
		case ev := <-got:
			received = append(received, ev)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event delivery")
		}
	}

	require.Len(t, received, 2)
	assert.Equal(t, "r1", received[0].ReviewID)
	assert.Equal(t, "r2", received[1].ReviewID)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop on context cancel")
	}
}

func TestMemoryBusPublishHonorsContext(t *testing.T) {
	bus := NewMemoryBus()
	// Fill the buffer so the next publish would block.
	for i := 0; i < memoryBusBuffer; i++ {
		require.NoError(t, bus.PublishReviewCreated(context.Background(), ReviewCreated{}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := bus.PublishReviewCreated(ctx, ReviewCreated{})
	assert.ErrorIs(t, err, context.Canceled)
}
