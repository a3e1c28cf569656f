// Package worker relays outbox rows to the message bus.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"stablehand/pkg/platform/audit/store/postgres"
)

// Outbox is the relay's view of the outbox table.
type Outbox interface {
	FetchUnpublished(ctx context.Context, limit int) ([]postgres.Entry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
	IncrementAttempts(ctx context.Context, ids []uuid.UUID) error
}

// Message is one record handed to the producer.
type Message struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Producer publishes a batch synchronously.
type Producer interface {
	Publish(ctx context.Context, msgs ...Message) error
}

// TxRunner scopes one relay batch. Fetch, publish and mark share a transaction
// so locked rows are released only after they are stamped.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Relay polls the outbox and publishes unpublished rows in creation order.
type Relay struct {
	outbox   Outbox
	producer Producer
	tx       TxRunner
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

func NewRelay(outbox Outbox, producer Producer, tx TxRunner, logger *slog.Logger, interval time.Duration, batch int) *Relay {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	return &Relay{
		outbox:   outbox,
		producer: producer,
		tx:       tx,
		logger:   logger,
		interval: interval,
		batch:    batch,
	}
}

// Run relays until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.RelayOnce(ctx); err != nil {
				r.logger.WarnContext(ctx, "outbox relay failed", "error", err)
			}
		}
	}
}

// RelayOnce publishes at most one batch and returns how many rows were relayed.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	var relayed int
	var failedIDs []uuid.UUID
	err := r.tx.RunInTx(ctx, func(txCtx context.Context) error {
		entries, err := r.outbox.FetchUnpublished(txCtx, r.batch)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		msgs := make([]Message, len(entries))
		ids := make([]uuid.UUID, len(entries))
		for i, e := range entries {
			msgs[i] = Message{
				Key:   []byte(e.AggregateID),
				Value: e.Payload,
				Headers: map[string]string{
					"event_type": e.EventType,
					"outbox_id":  e.ID.String(),
				},
			}
			ids[i] = e.ID
		}

		if err := r.producer.Publish(txCtx, msgs...); err != nil {
			failedIDs = ids
			return err
		}
		if err := r.outbox.MarkPublished(txCtx, ids); err != nil {
			return err
		}
		relayed = len(ids)
		return nil
	})
	if err != nil && len(failedIDs) > 0 {
		if incErr := r.outbox.IncrementAttempts(ctx, failedIDs); incErr != nil {
			r.logger.WarnContext(ctx, "failed to record outbox attempts", "error", incErr)
		}
	}
	return relayed, err
}
