package agent

import (
	"context"
	"time"
)

// MemoryQueue is a queueClient backed by an in-memory buffered channel. Jobs
// never leave the process, so there is no wire format and no acknowledgment.
type MemoryQueue struct {
	ch chan turnJob
}

// NewMemoryQueue creates a MemoryQueue with the provided buffer capacity.
func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 128
	}
	return &MemoryQueue{
		ch: make(chan turnJob, buffer),
	}
}

// Send enqueues a job or blocks until ctx is done.
func (q *MemoryQueue) Send(ctx context.Context, job turnJob) error {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks until a job is available, ctx is done, or waitSeconds elapses.
func (q *MemoryQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]turnDelivery, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if maxMessages <= 0 {
		maxMessages = 1
	}

	var timer *time.Timer
	if waitSeconds > 0 {
		timer = time.NewTimer(time.Duration(waitSeconds) * time.Second)
		defer timer.Stop()
	}

	if timer == nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case job := <-q.ch:
			return q.collect(ctx, job, maxMessages), nil
		}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	case job := <-q.ch:
		return q.collect(ctx, job, maxMessages), nil
	}
}

// Delete is a no-op for the in-memory queue.
func (q *MemoryQueue) Delete(_ context.Context, _ string) error {
	return nil
}

func (q *MemoryQueue) collect(ctx context.Context, first turnJob, max int) []turnDelivery {
	deliveries := make([]turnDelivery, 0, max)
	deliveries = append(deliveries, turnDelivery{Job: first})

	for len(deliveries) < max {
		select {
		case <-ctx.Done():
			return deliveries
		case job := <-q.ch:
			deliveries = append(deliveries, turnDelivery{Job: job})
		default:
			return deliveries
		}
	}
	return deliveries
}
