// Package redis provides Redis-based adapters for the forecast worker.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/wastetrack/forecast-worker/internal/core"
	"github.com/wastetrack/forecast-worker/internal/domain/job"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "forecast:jobs:enqueued"

const enqueuedMessage = "enqueued"

// JobNotifier carries "job enqueued" signals over Redis pub/sub. Publish is the producer side;
// WaitForNotification lets a job.DefaultNotifier fan the signal out to local pollers.
type JobNotifier struct {
	client  redis.UniversalClient
	channel string
}

// NewJobNotifier creates a JobNotifier on channel (DefaultChannel when blank).
func NewJobNotifier(client redis.UniversalClient, channel string) (*JobNotifier, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = DefaultChannel
	}
	return &JobNotifier{client: client, channel: channel}, nil
}

// Channel returns the pub/sub channel name.
func (n *JobNotifier) Channel() string { return n.channel }

// Publish signals that a job was enqueued. Having no subscribers is not an error.
func (n *JobNotifier) Publish(ctx context.Context) error {
	if err := n.client.Publish(ctx, n.channel, enqueuedMessage).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", n.channel, err)
	}
	return nil
}

// WaitForNotification subscribes and blocks until one message arrives or ctx ends.
func (n *JobNotifier) WaitForNotification(ctx context.Context) error {
	sub := n.client.Subscribe(ctx, n.channel)
	defer sub.Close()

	// The first reply confirms the subscription.
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("subscribe %s: %w", n.channel, err)
	}

	if _, err := sub.ReceiveMessage(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("receive %s: %w", n.channel, err)
	}
	return nil
}

var (
	_ core.JobPublisher = (*JobNotifier)(nil)
	_ job.Waiter        = (*JobNotifier)(nil)
)
