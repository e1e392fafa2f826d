package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/branchledger/pkg/config"
	"github.com/angelmondragon/branchledger/pkg/db/models"
	"github.com/angelmondragon/branchledger/pkg/enums"
	"github.com/angelmondragon/branchledger/pkg/logger"
	"github.com/angelmondragon/branchledger/pkg/outbox/registry"
)

const (
	workerName         = "outbox-publisher"
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	maxBackoff         = 10 * time.Second
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type rowStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type deadLetters interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.Resolved, error)
}

// sender delivers one message to a topic and waits for the broker ack.
type sender interface {
	Ping(context.Context) error
	Send(ctx context.Context, topic string, msg *gcppubsub.Message) error
}

type tracker interface {
	Track(worker string, start time.Time, err error)
}

type RelayParams struct {
	Outbox      config.OutboxConfig
	Logger      *logger.Logger
	DB          txRunner
	Rows        rowStore
	DeadLetters deadLetters
	Routes      resolver
	Sender      sender
	Metrics     tracker
}

// Relay moves committed outbox rows to Pub/Sub. Rows are claimed, published
// and marked inside one transaction so a crash leaves them unpublished.
type Relay struct {
	logg        *logger.Logger
	db          txRunner
	rows        rowStore
	dead        deadLetters
	routes      resolver
	sender      sender
	metrics     tracker
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func NewRelay(p RelayParams) (*Relay, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.Rows == nil:
		return nil, errors.New("outbox repository is required")
	case p.DeadLetters == nil:
		return nil, errors.New("dlq repository is required")
	case p.Routes == nil:
		return nil, errors.New("event routes are required")
	case p.Sender == nil:
		return nil, errors.New("sender is required")
	}
	r := &Relay{
		logg:        p.Logger,
		db:          p.DB,
		rows:        p.Rows,
		dead:        p.DeadLetters,
		routes:      p.Routes,
		sender:      p.Sender,
		metrics:     p.Metrics,
		batchSize:   p.Outbox.BatchSize,
		maxAttempts: p.Outbox.MaxAttempts,
		poll:        time.Duration(p.Outbox.PollIntervalMS) * time.Millisecond,
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = defaultMaxAttempts
	}
	if r.poll <= 0 {
		r.poll = defaultPoll
	}
	return r, nil
}

// Run drains batches back to back while rows are waiting, polls when idle and
// backs off exponentially after a failed batch or one that left rows to retry.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	if err := r.sender.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub not ready: %w", err)
	}

	wait := newBackoff(r.poll, maxBackoff)
	for {
		if err := ctx.Err(); err != nil {
			r.logg.Info(ctx, "outbox.relay.stopping")
			return err
		}

		start := time.Now()
		batch, err := r.drainOnce(ctx)
		if batch.handled > 0 || err != nil {
			r.track(start, err)
		}

		var pause time.Duration
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox.relay.batch_failed", err)
			pause = wait.fail()
		case batch.retried > 0:
			// retried rows are claimable again at once; pace them like a failure
			pause = wait.fail()
			r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
				"retried": batch.retried,
				"pause":   pause.String(),
			}), "outbox.relay.retry_backoff")
		case batch.handled == 0:
			wait.reset()
			pause = r.poll
		default:
			wait.reset()
			continue
		}
		if err := sleepCtx(ctx, jitter(pause)); err != nil {
			return err
		}
	}
}

func (r *Relay) track(start time.Time, err error) {
	if r.metrics != nil {
		r.metrics.Track(workerName, start, err)
	}
}

// batchResult counts the rows settled by one drain and how many of them were
// left for another attempt.
type batchResult struct {
	handled int
	retried int
}

// drainOnce claims one batch and settles every row in it.
func (r *Relay) drainOnce(ctx context.Context) (batchResult, error) {
	var batch batchResult
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		batch = batchResult{}
		rows, err := r.rows.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim batch: %w", err)
		}
		for _, row := range rows {
			d := r.deliver(ctx, row)
			if err := r.settle(ctx, tx, d); err != nil {
				return err
			}
			batch.handled++
			if d.verdict == verdictRetry {
				batch.retried++
			}
		}
		return nil
	})
	return batch, err
}

type verdict int

const (
	verdictPublished verdict = iota
	verdictRetry
	verdictDead
)

type delivery struct {
	row     models.OutboxEvent
	verdict verdict
	reason  enums.OutboxDLQErrorReason
	topic   string
	eventID string
	err     error
}

func (r *Relay) deliver(ctx context.Context, row models.OutboxEvent) delivery {
	d := delivery{row: row}
	resolved, err := r.routes.Resolve(row)
	if err != nil {
		d.verdict, d.reason, d.err = verdictDead, enums.OutboxDLQReasonNonRetryable, err
		return d
	}
	d.topic = resolved.Route.Topic
	d.eventID = resolved.Envelope.EventID

	err = r.sender.Send(ctx, d.topic, buildMessage(row, resolved))
	attempt := row.AttemptCount + 1
	switch {
	case err == nil:
		d.verdict = verdictPublished
	case registry.IsPermanent(err):
		d.verdict, d.reason = verdictDead, enums.OutboxDLQReasonNonRetryable
	case attempt >= r.maxAttempts:
		d.verdict, d.reason = verdictDead, enums.OutboxDLQReasonMaxAttempts
		err = fmt.Errorf("gave up after %d attempts: %w", attempt, err)
	default:
		d.verdict = verdictRetry
	}
	d.err = err
	return d
}

func (r *Relay) settle(ctx context.Context, tx *gorm.DB, d delivery) error {
	logCtx := r.logg.WithFields(ctx, d.fields())
	id := d.row.ID

	switch d.verdict {
	case verdictPublished:
		if err := r.rows.MarkPublishedTx(tx, id); err != nil {
			return fmt.Errorf("mark %s published: %w", id, err)
		}
		r.logg.Info(logCtx, "outbox.relay.published")
	case verdictRetry:
		if err := r.rows.MarkFailedTx(tx, id, d.err); err != nil {
			return fmt.Errorf("mark %s failed: %w", id, err)
		}
		r.logg.Warn(logCtx, "outbox.relay.retry_scheduled")
	default:
		message := d.err.Error()
		entry := models.OutboxDLQ{
			EventID:       id,
			EventType:     d.row.EventType,
			AggregateType: d.row.AggregateType,
			AggregateID:   d.row.AggregateID,
			Payload:       d.row.Payload,
			ErrorReason:   d.reason,
			ErrorMessage:  &message,
			AttemptCount:  d.row.AttemptCount,
			FailedAt:      time.Now().UTC(),
		}
		if err := r.dead.InsertTx(tx, entry); err != nil {
			return fmt.Errorf("dead-letter %s: %w", id, err)
		}
		if err := r.rows.MarkTerminalTx(tx, id, d.err, r.maxAttempts); err != nil {
			return fmt.Errorf("park %s: %w", id, err)
		}
		r.logg.Warn(logCtx, "outbox.relay.dead_lettered")
	}
	return nil
}

func (d delivery) fields() map[string]any {
	fields := map[string]any{
		"outbox_id":     d.row.ID.String(),
		"event_type":    d.row.EventType,
		"aggregate_id":  d.row.AggregateID.String(),
		"attempt_count": d.row.AttemptCount,
	}
	if d.topic != "" {
		fields["topic"] = d.topic
	}
	if d.eventID != "" {
		fields["event_id"] = d.eventID
	}
	if d.reason != "" {
		fields["dlq_reason"] = d.reason
	}
	if d.err != nil {
		fields["error"] = d.err.Error()
	}
	return fields
}
