package enums

import "slices"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateBranchEntry OutboxAggregateType = "branch_entry"
	AggregateFollowUp    OutboxAggregateType = "followup"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateBranchEntry,
	AggregateFollowUp,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse(validAggregateTypes, "aggregate type", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventManifestCreated   OutboxEventType = "manifest_created"
	EventManifestLinked    OutboxEventType = "manifest_linked"
	EventManifestDeleted   OutboxEventType = "manifest_deleted"
	EventItemDispatched    OutboxEventType = "item_dispatched"
	EventFollowUpRequested OutboxEventType = "followup_requested"
)

var validOutboxEventTypes = []OutboxEventType{
	EventManifestCreated,
	EventManifestLinked,
	EventManifestDeleted,
	EventItemDispatched,
	EventFollowUpRequested,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validOutboxEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(validOutboxEventTypes, "event type", value)
}
