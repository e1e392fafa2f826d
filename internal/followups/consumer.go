package followups

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/branchledger/pkg/db/models"
	"github.com/angelmondragon/branchledger/pkg/enums"
	"github.com/angelmondragon/branchledger/pkg/logger"
	"github.com/angelmondragon/branchledger/pkg/outbox"
	"github.com/angelmondragon/branchledger/pkg/outbox/idempotency"
	"github.com/angelmondragon/branchledger/pkg/outbox/payloads"
	"github.com/angelmondragon/branchledger/pkg/outbox/registry"
)

// ConsumerName scopes idempotency keys and worker metrics.
const ConsumerName = "followup-worker"

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type creator interface {
	Create(ctx context.Context, followUp *models.PendingFollowUp) (bool, error)
}

type tracker interface {
	Track(worker string, start time.Time, err error)
}

type nopTracker struct{}

func (nopTracker) Track(string, time.Time, error) {}

// ConsumerParams wires the follow-up consumer.
type ConsumerParams struct {
	Repository   creator
	Subscription receiver
	Idempotency  *idempotency.Manager
	Decoders     *registry.DecoderRegistry
	Metrics      tracker
	Logger       *logger.Logger
}

// Consumer turns followup_requested events into pending_followups rows.
type Consumer struct {
	repo         creator
	subscription receiver
	idempotency  *idempotency.Manager
	decoders     *registry.DecoderRegistry
	metrics      tracker
	logg         *logger.Logger
}

// NewConsumer builds a follow-up consumer.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("follow-up repository required")
	}
	if params.Subscription == nil {
		return nil, fmt.Errorf("follow-up subscription required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	decoders := params.Decoders
	if decoders == nil {
		decoders = NewDecoders()
	}
	metrics := params.Metrics
	if metrics == nil {
		metrics = nopTracker{}
	}
	return &Consumer{
		repo:         params.Repository,
		subscription: params.Subscription,
		idempotency:  params.Idempotency,
		decoders:     decoders,
		metrics:      metrics,
		logg:         params.Logger,
	}, nil
}

// NewDecoders registers the payload versions this consumer understands.
func NewDecoders() *registry.DecoderRegistry {
	decoders := registry.NewDecoderRegistry()
	decoders.Register(enums.EventFollowUpRequested, 1, registry.JSON[payloads.FollowUpRequestedEvent]())
	return decoders
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	start := time.Now()
	var trackErr error
	defer func() { c.metrics.Track(ConsumerName, start, trackErr) }()

	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventFollowUpRequested) {
		c.logg.Info(logCtx, "followup.skip_event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	decoded, err := c.decoders.Decode(enums.EventFollowUpRequested, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return processResult{ack: true}
	}
	payload, ok := decoded.(payloads.FollowUpRequestedEvent)
	if !ok || payload.EntryID == uuid.Nil || !payload.Kind.IsValid() {
		c.logg.Error(logCtx, "follow-up payload incomplete", fmt.Errorf("entry id or kind missing"))
		return processResult{ack: true}
	}
	logCtx = c.logg.WithManifestID(logCtx, payload.EntryID.String())

	handled, err := c.idempotency.Run(ctx, ConsumerName, eventID, func(ctx context.Context) error {
		return c.store(ctx, eventID, envelope, payload, logCtx)
	})
	if err != nil {
		trackErr = err
		c.logg.Error(logCtx, "follow-up handling failed", err)
		return processResult{nack: true}
	}
	if !handled {
		c.logg.Info(logCtx, "followup.already_processed")
	}
	return processResult{ack: true}
}

func (c *Consumer) store(ctx context.Context, eventID uuid.UUID, envelope outbox.PayloadEnvelope, payload payloads.FollowUpRequestedEvent, logCtx context.Context) error {
	requestedBy := payload.OperatorID
	if requestedBy == "" && envelope.Actor != nil {
		requestedBy = envelope.Actor.OperatorID
	}
	requestedAt := payload.RequestedAt
	if requestedAt.IsZero() {
		requestedAt = envelope.OccurredAt
	}
	row := &models.PendingFollowUp{
		EntryID:          payload.EntryID,
		ManifestNumber:   payload.ManifestNumber,
		ItemID:           payload.ItemID,
		ItemOrderIndex:   payload.ItemOrderIndex,
		ItemDescription:  payload.ItemDescription,
		DispatchRecordID: payload.DispatchRecordID,
		Kind:             payload.Kind,
		Quantity:         payload.Quantity,
		TargetName:       payload.TargetName,
		TargetPhone:      payload.TargetPhone,
		Region:           payload.Region,
		Message:          strings.TrimSpace(payload.Message),
		Status:           enums.FollowUpStatusOpen,
		RequestedBy:      requestedBy,
		RequestedAt:      requestedAt.UTC(),
		SourceEventID:    eventID,
	}
	created, err := c.repo.Create(ctx, row)
	if err != nil {
		return err
	}
	if !created {
		c.logg.Info(logCtx, "followup.duplicate_source_event")
		return nil
	}
	c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
		"followup_id": row.ID.String(),
		"kind":        row.Kind,
		"quantity":    row.Quantity,
	}), "followup.recorded")
	return nil
}
