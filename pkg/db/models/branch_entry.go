package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/branchledger/pkg/enums"
	"github.com/angelmondragon/branchledger/pkg/types"
)

// BranchEntry is one incoming or outgoing manifest. Items and their dispatch
// history are stored whole in the items column; version guards every write.
type BranchEntry struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Direction        enums.EntryDirection `gorm:"column:direction;type:text;not null"`
	OriginBranchID   uuid.UUID            `gorm:"column:origin_branch_id;type:uuid;not null"`
	OriginBranchName string               `gorm:"column:origin_branch_name;type:text;not null"`
	ManifestNumber   string               `gorm:"column:manifest_number;type:text;not null;uniqueIndex:uq_branch_entries_manifest_number"`
	Notes            string               `gorm:"column:notes;type:text;not null;default:''"`
	Status           enums.EntryStatus    `gorm:"column:status;type:text;not null"`
	VehicleLink      *types.VehicleLink   `gorm:"column:vehicle_link;type:jsonb"`
	Items            types.ManifestItems  `gorm:"column:items;type:jsonb;not null"`
	Version          int                  `gorm:"column:version;not null;default:1"`
	CreatedBy        string               `gorm:"column:created_by;type:text;not null"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (BranchEntry) TableName() string {
	return "branch_entries"
}
