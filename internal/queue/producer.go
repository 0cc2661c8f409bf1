package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/photoid/internal/models"
)

const (
	ResolveStreamName  = "RESOLVE"
	ResolveSubjectBase = "resolve"
	EventsStreamName   = "PHOTO_EVENTS"
	EventsSubjectBase  = "photo-events"
)

type Producer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewProducer(natsURL string) (*Producer, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Producer{nc: nc, js: js}, nil
}

// EnsureStreams creates JetStream streams if they don't exist.
// Retries up to 30 times (1s apart) to handle NATS startup delay.
func (p *Producer) EnsureStreams(ctx context.Context) error {
	streams := []jetstream.StreamConfig{
		{
			Name:        ResolveStreamName,
			Subjects:    []string{ResolveSubjectBase + ".>"},
			Retention:   jetstream.WorkQueuePolicy,
			MaxAge:      24 * time.Hour,
			MaxMsgs:     1000000,
			Storage:     jetstream.FileStorage,
			Discard:     jetstream.DiscardOld,
			Duplicates:  2 * time.Minute,
			Description: "Per-photo face resolution tasks",
		},
		{
			Name:        EventsStreamName,
			Subjects:    []string{EventsSubjectBase + ".>"},
			Retention:   jetstream.InterestPolicy,
			MaxAge:      24 * time.Hour,
			MaxMsgs:     1000000,
			Storage:     jetstream.FileStorage,
			Description: "Per-photo resolution outcome events",
		},
	}

	const maxAttempts = 30
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		allOK := true
		for _, cfg := range streams {
			opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_, err := p.js.CreateOrUpdateStream(opCtx, cfg)
			cancel()
			if err != nil {
				allOK = false
				if attempt == maxAttempts {
					return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
				}
				slog.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)
				break
			}
			slog.Info("ensured NATS stream", "name", cfg.Name)
		}
		if allOK {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
	return nil
}

// EnqueueResolve publishes a resolution task for one photo. The message ID is
// derived from the photo ID so re-publishes within the duplicate window are
// suppressed by JetStream.
func (p *Producer) EnqueueResolve(ctx context.Context, task models.ResolveTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal resolve task: %w", err)
	}

	subject := fmt.Sprintf("%s.photo.%d", ResolveSubjectBase, task.PhotoID)
	_, err = p.js.Publish(ctx, subject, payload,
		jetstream.WithMsgID(fmt.Sprintf("resolve-%d", task.PhotoID)))
	if err != nil {
		return fmt.Errorf("publish resolve task: %w", err)
	}
	return nil
}

// PublishResult publishes a resolution outcome event.
func (p *Producer) PublishResult(ctx context.Context, result models.ResolveResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal resolve result: %w", err)
	}

	subject := fmt.Sprintf("%s.photo.%d", EventsSubjectBase, result.PhotoID)
	_, err = p.js.Publish(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("publish resolve result: %w", err)
	}
	return nil
}

// QueueDepth returns the number of pending messages in the RESOLVE stream.
func (p *Producer) QueueDepth(ctx context.Context) (uint64, error) {
	stream, err := p.js.Stream(ctx, ResolveStreamName)
	if err != nil {
		return 0, err
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.State.Msgs, nil
}

func (p *Producer) Ping() error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	p.nc.Close()
}
