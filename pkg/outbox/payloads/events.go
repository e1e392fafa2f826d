package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/branchledger/pkg/enums"
)

// ManifestCreatedEvent is emitted once per new branch entry.
type ManifestCreatedEvent struct {
	EntryID        uuid.UUID            `json:"entry_id"`
	ManifestNumber string               `json:"manifest_number"`
	FallbackNumber bool                 `json:"fallback_number"`
	Direction      enums.EntryDirection `json:"direction"`
	OriginBranchID uuid.UUID            `json:"origin_branch_id"`
	ItemCount      int                  `json:"item_count"`
	CreatedBy      string               `json:"created_by"`
}

// ManifestLinkedEvent reports the pending -> linked transition.
type ManifestLinkedEvent struct {
	EntryID        uuid.UUID       `json:"entry_id"`
	ManifestNumber string          `json:"manifest_number"`
	VehicleID      uuid.UUID       `json:"vehicle_id"`
	SharePercent   decimal.Decimal `json:"share_percent"`
	Collectible    string          `json:"collectible_display"`
	LinkedBy       string          `json:"linked_by"`
	LinkedAt       time.Time       `json:"linked_at"`
}

// ManifestDeletedEvent records an administrative hard delete.
type ManifestDeletedEvent struct {
	EntryID        uuid.UUID `json:"entry_id"`
	ManifestNumber string    `json:"manifest_number"`
	DeletedBy      string    `json:"deleted_by"`
	DeletedAt      time.Time `json:"deleted_at"`
}

// ItemDispatchedEvent mirrors one appended dispatch record.
type ItemDispatchedEvent struct {
	EntryID            uuid.UUID             `json:"entry_id"`
	ManifestNumber     string                `json:"manifest_number"`
	ItemID             *uuid.UUID            `json:"item_id,omitempty"`
	ItemOrderIndex     int                   `json:"item_order_index"`
	DispatchRecordID   uuid.UUID             `json:"dispatch_record_id"`
	Quantity           int                   `json:"quantity"`
	DispatchedQuantity int                   `json:"dispatched_quantity"`
	TotalQuantity      int                   `json:"total_quantity"`
	ItemStatus         enums.ItemStatus      `json:"item_status"`
	DestinationKind    enums.DestinationKind `json:"destination_kind"`
	OperatorID         string                `json:"operator_id"`
	DispatchedAt       time.Time             `json:"dispatched_at"`
	EntryVersion       int                   `json:"entry_version"`
}

// FollowUpRequestedEvent carries the manual step left behind by a dispatch.
type FollowUpRequestedEvent struct {
	EntryID          uuid.UUID          `json:"entry_id"`
	ManifestNumber   string             `json:"manifest_number"`
	Kind             enums.FollowUpKind `json:"kind"`
	ItemID           *uuid.UUID         `json:"item_id,omitempty"`
	ItemOrderIndex   int                `json:"item_order_index"`
	ItemDescription  string             `json:"item_description"`
	DispatchRecordID uuid.UUID          `json:"dispatch_record_id"`
	Quantity         int                `json:"quantity"`
	TargetName       string             `json:"target_name"`
	TargetPhone      string             `json:"target_phone,omitempty"`
	Region           string             `json:"region,omitempty"`
	Message          string             `json:"message"`
	OperatorID       string             `json:"operator_id"`
	RequestedAt      time.Time          `json:"requested_at"`
}
