package enums

import "slices"

// EntryStatus tracks whether vehicle and fee data has been attached.
type EntryStatus string

const (
	EntryStatusPending EntryStatus = "pending"
	EntryStatusLinked  EntryStatus = "linked"
)

var validEntryStatuses = []EntryStatus{
	EntryStatusPending,
	EntryStatusLinked,
}

// String implements fmt.Stringer.
func (e EntryStatus) String() string {
	return string(e)
}

// IsValid reports whether the value is a known entry status.
func (e EntryStatus) IsValid() bool {
	return slices.Contains(validEntryStatuses, e)
}

// ParseEntryStatus converts a raw string into a EntryStatus.
func ParseEntryStatus(value string) (EntryStatus, error) {
	return parse(validEntryStatuses, "entry status", value)
}

// Editable reports whether items may still be added, edited or removed.
func (e EntryStatus) Editable() bool {
	return e == EntryStatusPending
}
