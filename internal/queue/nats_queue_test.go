package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNatsQueue_SettleRequiresDelivery(t *testing.T) {
	var q NatsQueue
	ctx := context.Background()

	assert.ErrorIs(t, q.Ack(ctx, NewJob("a", 1)), errNoDelivery)
	assert.ErrorIs(t, q.Retry(ctx, NewJob("a", 1), time.Second), errNoDelivery)
}

func TestJob_Next(t *testing.T) {
	next := NewJob("a", 2).Next()

	assert.Equal(t, "a", next.TaskID)
	assert.Equal(t, 3, next.Attempt)
	assert.False(t, next.EnqueuedAt.IsZero())
}
