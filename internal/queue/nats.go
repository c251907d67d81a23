package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"cinegen/internal/domain"
)

const (
	defaultSubject = "cinegen.jobs"
	defaultGroup   = "cinegen-workers"
)

// NATS is a durable queue backed by a NATS subject with a queue group, so
// multiple worker processes each receive disjoint jobs. Enqueue flushes the
// publish to the broker; an unreachable broker fails the call explicitly
// rather than falling back to an in-process list.
type NATS struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
}

// NATSOptions configures the NATS-backed queue. Zero values get defaults.
type NATSOptions struct {
	URL     string
	Subject string
	Group   string
}

// ConnectNATS dials the broker and binds the queue-group subscription used by
// Dequeue.
func ConnectNATS(opts NATSOptions) (*NATS, error) {
	url := opts.URL
	if url == "" {
		url = nats.DefaultURL
	}
	subject := opts.Subject
	if subject == "" {
		subject = defaultSubject
	}
	group := opts.Group
	if group == "" {
		group = defaultGroup
	}

	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("queue: connect nats: %w", err)
	}

	sub, err := nc.QueueSubscribeSync(subject, group)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("queue: subscribe %q: %w", subject, err)
	}

	return &NATS{nc: nc, sub: sub, subject: subject}, nil
}

// Enqueue publishes the job JSON and flushes, so a broker outage surfaces
// here instead of dropping the job.
func (q *NATS) Enqueue(ctx context.Context, job *domain.Job) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if job == nil || job.ID == "" {
		return "", domain.ErrInvalidRequest
	}
	if !q.nc.IsConnected() {
		return "", domain.ErrQueueUnavailable
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("queue: marshal job: %w", err)
	}
	if err := q.nc.Publish(q.subject, payload); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrQueueUnavailable, err)
	}
	if err := q.nc.FlushTimeout(5 * time.Second); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrQueueUnavailable, err)
	}
	return job.ID, nil
}

// Dequeue waits up to wait for the next message on the queue group. The group
// guarantees each message reaches exactly one subscriber.
func (q *NATS) Dequeue(ctx context.Context, wait time.Duration) (*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	msg, err := q.sub.NextMsg(wait)
	if err != nil {
		if errors.Is(err, nats.ErrTimeout) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrQueueUnavailable, err)
	}

	var job domain.Job
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		return nil, fmt.Errorf("queue: decode job payload: %w", err)
	}
	return &job, nil
}

// Close drains the connection so in-flight messages are handed off first.
func (q *NATS) Close() error {
	if q.nc == nil {
		return nil
	}
	return q.nc.Drain()
}

var _ Queue = (*NATS)(nil)
