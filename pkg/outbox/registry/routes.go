package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/angelmondragon/branchledger/pkg/config"
	"github.com/angelmondragon/branchledger/pkg/db/models"
	"github.com/angelmondragon/branchledger/pkg/enums"
	"github.com/angelmondragon/branchledger/pkg/outbox"
	"github.com/angelmondragon/branchledger/pkg/outbox/payloads"
)

// ErrPermanent marks an outbox row that can never be published as stored.
var ErrPermanent = errors.New("permanent outbox failure")

type permanentError struct{ err error }

func (p permanentError) Error() string   { return p.err.Error() }
func (p permanentError) Unwrap() []error { return []error{p.err, ErrPermanent} }

// Permanent tags err so IsPermanent reports true for it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

// Route is the destination and payload schema of one event type.
type Route struct {
	EventType enums.OutboxEventType
	Aggregate enums.OutboxAggregateType
	Topic     string
	decode    decoderFunc
}

func entryRoute[T any](eventType enums.OutboxEventType, topic string) Route {
	return Route{
		EventType: eventType,
		Aggregate: enums.AggregateBranchEntry,
		Topic:     topic,
		decode:    JSON[T](),
	}
}

// Resolved is an outbox row after its envelope and data were decoded.
type Resolved struct {
	Route    Route
	Envelope outbox.PayloadEnvelope
	Payload  any
}

// Routes maps every published event type to its Route.
type Routes struct {
	byType map[enums.OutboxEventType]Route
}

func NewRoutes(cfg config.PubSubConfig) (*Routes, error) {
	if cfg.ManifestTopic == "" {
		return nil, fmt.Errorf("manifest topic is required")
	}
	if cfg.FollowUpTopic == "" {
		return nil, fmt.Errorf("follow-up topic is required")
	}
	routes := []Route{
		entryRoute[payloads.ManifestCreatedEvent](enums.EventManifestCreated, cfg.ManifestTopic),
		entryRoute[payloads.ManifestLinkedEvent](enums.EventManifestLinked, cfg.ManifestTopic),
		entryRoute[payloads.ManifestDeletedEvent](enums.EventManifestDeleted, cfg.ManifestTopic),
		entryRoute[payloads.ItemDispatchedEvent](enums.EventItemDispatched, cfg.ManifestTopic),
		entryRoute[payloads.FollowUpRequestedEvent](enums.EventFollowUpRequested, cfg.FollowUpTopic),
	}
	r := &Routes{byType: make(map[enums.OutboxEventType]Route, len(routes))}
	for _, route := range routes {
		r.byType[route.EventType] = route
	}
	return r, nil
}

// Topics returns the distinct destination topics, sorted.
func (r *Routes) Topics() []string {
	set := map[string]struct{}{}
	for _, route := range r.byType {
		set[route.Topic] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for topic := range set {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}

// Resolve checks the row against its route and decodes it. Every error it
// returns is permanent.
func (r *Routes) Resolve(event models.OutboxEvent) (*Resolved, error) {
	route, ok := r.byType[event.EventType]
	switch {
	case !ok:
		return nil, Permanent(fmt.Errorf("no route for event type %q", event.EventType))
	case route.Aggregate != event.AggregateType:
		return nil, Permanent(fmt.Errorf("%s expects aggregate %s, row has %s", event.EventType, route.Aggregate, event.AggregateType))
	case event.AggregateID == uuid.Nil:
		return nil, Permanent(fmt.Errorf("%s row has no aggregate id", event.EventType))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, Permanent(fmt.Errorf("decode envelope: %w", err))
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, Permanent(fmt.Errorf("%s envelope has no data", event.EventType))
	}
	payload, err := route.decode(data)
	if err != nil {
		return nil, Permanent(fmt.Errorf("decode %s data: %w", event.EventType, err))
	}
	return &Resolved{Route: route, Envelope: envelope, Payload: payload}, nil
}
