package enums

import "slices"

// ItemStatus is derived from dispatched vs total quantity; it is never set directly.
type ItemStatus string

const (
	ItemStatusReceived            ItemStatus = "received"
	ItemStatusPartiallyDispatched ItemStatus = "partially_dispatched"
	ItemStatusFullyDispatched     ItemStatus = "fully_dispatched"
)

var validItemStatuses = []ItemStatus{
	ItemStatusReceived,
	ItemStatusPartiallyDispatched,
	ItemStatusFullyDispatched,
}

// String implements fmt.Stringer.
func (i ItemStatus) String() string {
	return string(i)
}

// IsValid reports whether the value is a known item status.
func (i ItemStatus) IsValid() bool {
	return slices.Contains(validItemStatuses, i)
}

// ParseItemStatus converts a raw string into a ItemStatus.
func ParseItemStatus(value string) (ItemStatus, error) {
	return parse(validItemStatuses, "item status", value)
}

// Terminal reports whether no further dispatch can apply.
func (i ItemStatus) Terminal() bool {
	return i == ItemStatusFullyDispatched
}
