package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/branchledger/pkg/enums"
)

// PendingFollowUp is the manual step left behind by a dispatch.
type PendingFollowUp struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EntryID          uuid.UUID            `gorm:"column:entry_id;type:uuid;not null"`
	ManifestNumber   string               `gorm:"column:manifest_number;type:text;not null"`
	ItemID           *uuid.UUID           `gorm:"column:item_id;type:uuid"`
	ItemOrderIndex   int                  `gorm:"column:item_order_index;not null"`
	ItemDescription  string               `gorm:"column:item_description;type:text;not null"`
	DispatchRecordID uuid.UUID            `gorm:"column:dispatch_record_id;type:uuid;not null"`
	Kind             enums.FollowUpKind   `gorm:"column:kind;type:text;not null"`
	Quantity         int                  `gorm:"column:quantity;not null"`
	TargetName       string               `gorm:"column:target_name;type:text;not null"`
	TargetPhone      string               `gorm:"column:target_phone;type:text;not null;default:''"`
	Region           string               `gorm:"column:region;type:text;not null;default:''"`
	Message          string               `gorm:"column:message;type:text;not null"`
	Status           enums.FollowUpStatus `gorm:"column:status;type:text;not null"`
	RequestedBy      string               `gorm:"column:requested_by;type:text;not null"`
	RequestedAt      time.Time            `gorm:"column:requested_at;not null"`
	ResolvedBy       *string              `gorm:"column:resolved_by;type:text"`
	ResolvedAt       *time.Time           `gorm:"column:resolved_at"`
	ResolutionNote   *string              `gorm:"column:resolution_note;type:text"`
	SourceEventID    uuid.UUID            `gorm:"column:source_event_id;type:uuid;not null;uniqueIndex:uq_pending_followups_source_event_id"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (PendingFollowUp) TableName() string {
	return "pending_followups"
}
