package enums

import "slices"

// FollowUpKind names the manual step a dispatch leaves behind.
type FollowUpKind string

const (
	FollowUpDeliverToCustomer      FollowUpKind = "deliver_to_customer"
	FollowUpCreateOutgoingManifest FollowUpKind = "create_outgoing_manifest"
)

var validFollowUpKinds = []FollowUpKind{
	FollowUpDeliverToCustomer,
	FollowUpCreateOutgoingManifest,
}

// IsValid reports whether the value is a known follow-up kind.
func (f FollowUpKind) IsValid() bool {
	return slices.Contains(validFollowUpKinds, f)
}

// ParseFollowUpKind converts a raw string into a FollowUpKind.
func ParseFollowUpKind(value string) (FollowUpKind, error) {
	return parse(validFollowUpKinds, "follow-up kind", value)
}

// FollowUpStatus tracks whether an operator has acted on a follow-up.
type FollowUpStatus string

const (
	FollowUpStatusOpen     FollowUpStatus = "open"
	FollowUpStatusResolved FollowUpStatus = "resolved"
)

var validFollowUpStatuses = []FollowUpStatus{
	FollowUpStatusOpen,
	FollowUpStatusResolved,
}

func (f FollowUpStatus) IsValid() bool {
	return slices.Contains(validFollowUpStatuses, f)
}

// ParseFollowUpStatus converts raw input into FollowUpStatus.
func ParseFollowUpStatus(value string) (FollowUpStatus, error) {
	return parse(validFollowUpStatuses, "follow-up status", value)
}

// FollowUpKindFor maps a dispatch destination to the step it implies.
func FollowUpKindFor(kind DestinationKind) FollowUpKind {
	if kind == DestinationBranch {
		return FollowUpCreateOutgoingManifest
	}
	return FollowUpDeliverToCustomer
}
