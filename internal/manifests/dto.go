package manifests

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/branchledger/internal/allocation"
	"github.com/angelmondragon/branchledger/internal/collectibles"
	"github.com/angelmondragon/branchledger/internal/sequence"
	"github.com/angelmondragon/branchledger/pkg/db/models"
	"github.com/angelmondragon/branchledger/pkg/enums"
	"github.com/angelmondragon/branchledger/pkg/types"
)

// Operator identifies who performs an operation.
type Operator struct {
	ID   string
	Role enums.OperatorRole
}

// IsAdmin reports whether the operator may perform administrative actions.
func (o Operator) IsAdmin() bool {
	return o.Role == enums.OperatorRoleAdmin
}

// ItemInput describes a new cargo line.
type ItemInput struct {
	OrderIndex        int
	Description       string
	TotalQuantity     int
	UnitWeight        decimal.Decimal
	Value             decimal.Decimal
	Currency          enums.Currency
	RecipientName     string
	RecipientPhone    string
	DestinationRegion string
	Notes             string
}

func (in ItemInput) toItem() types.ManifestItem {
	return types.ManifestItem{
		OrderIndex:        in.OrderIndex,
		Description:       in.Description,
		TotalQuantity:     in.TotalQuantity,
		UnitWeight:        in.UnitWeight,
		Value:             in.Value,
		Currency:          in.Currency,
		RecipientName:     in.RecipientName,
		RecipientPhone:    in.RecipientPhone,
		DestinationRegion: in.DestinationRegion,
		Notes:             in.Notes,
	}
}

// CreateInput carries everything needed to open a new manifest.
type CreateInput struct {
	Direction        enums.EntryDirection
	OriginBranchID   uuid.UUID
	OriginBranchName string
	Notes            string
	Items            []ItemInput
	Operator         Operator
}

// ListParams filters and pages manifests.
type ListParams struct {
	Direction      enums.EntryDirection
	Status         enums.EntryStatus
	OriginBranchID *uuid.UUID
	Year           int
	Limit          int
	Cursor         string
}

// ListResult is one page of manifests.
type ListResult struct {
	Items  []EntryDTO `json:"items"`
	Cursor string     `json:"cursor"`
}

// AddItemInput appends a line to a pending manifest.
type AddItemInput struct {
	EntryID         uuid.UUID
	Item            ItemInput
	ExpectedVersion *int
	Operator        Operator
}

// ItemPatch lists the editable item fields; nil leaves a field unchanged.
type ItemPatch struct {
	OrderIndex        *int
	Description       *string
	TotalQuantity     *int
	UnitWeight        *decimal.Decimal
	Value             *decimal.Decimal
	Currency          *enums.Currency
	RecipientName     *string
	RecipientPhone    *string
	DestinationRegion *string
	Notes             *string
}

// UpdateItemInput edits one line of a pending manifest.
type UpdateItemInput struct {
	EntryID         uuid.UUID
	Item            allocation.ItemRef
	Patch           ItemPatch
	ExpectedVersion *int
	Operator        Operator
}

// RemoveItemInput drops a line that was never dispatched.
type RemoveItemInput struct {
	EntryID         uuid.UUID
	Item            allocation.ItemRef
	ExpectedVersion *int
	Operator        Operator
}

// DispatchInput allocates part of an item toward a customer or branch.
type DispatchInput struct {
	EntryID         uuid.UUID
	Item            allocation.ItemRef
	Quantity        int
	Destination     allocation.Destination
	ExpectedVersion *int
	Operator        Operator
}

// DispatchResult is returned by a successful dispatch.
type DispatchResult struct {
	Entry        *EntryDTO                  `json:"entry"`
	Item         ItemDTO                    `json:"item"`
	Record       types.DispatchRecord       `json:"record"`
	FollowUp     allocation.PendingFollowUp `json:"follow_up"`
	Confirmation string                     `json:"confirmation"`
}

// LinkVehicleInput attaches vehicle and fee data to a pending manifest.
type LinkVehicleInput struct {
	EntryID         uuid.UUID
	VehicleID       uuid.UUID
	VehicleLabel    string
	SharePercent    decimal.Decimal
	FlatFees        []types.Fee
	CustomFees      []types.Fee
	ExpectedVersion *int
	Operator        Operator
}

// DeleteInput is an administrative hard delete.
type DeleteInput struct {
	EntryID  uuid.UUID
	Operator Operator
}

// EntryDTO is the API view of a branch entry.
type EntryDTO struct {
	ID               uuid.UUID            `json:"id"`
	Direction        enums.EntryDirection `json:"direction"`
	OriginBranchID   uuid.UUID            `json:"origin_branch_id"`
	OriginBranchName string               `json:"origin_branch_name"`
	ManifestNumber   string               `json:"manifest_number"`
	FallbackNumber   bool                 `json:"fallback_number"`
	Notes            string               `json:"notes"`
	Status           enums.EntryStatus    `json:"status"`
	VehicleLink      *types.VehicleLink   `json:"vehicle_link,omitempty"`
	Items            []ItemDTO            `json:"items"`
	Version          int                  `json:"version"`
	CreatedBy        string               `json:"created_by"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// ItemDTO adds the derived remaining quantity to a stored item.
type ItemDTO struct {
	types.ManifestItem
	Remaining int `json:"remaining_quantity"`
}

// NewEntryDTO maps a stored entry to its API view.
func NewEntryDTO(entry *models.BranchEntry) *EntryDTO {
	if entry == nil {
		return nil
	}
	items := make([]ItemDTO, 0, len(entry.Items))
	for _, item := range entry.Items {
		items = append(items, newItemDTO(item))
	}
	return &EntryDTO{
		ID:               entry.ID,
		Direction:        entry.Direction,
		OriginBranchID:   entry.OriginBranchID,
		OriginBranchName: entry.OriginBranchName,
		ManifestNumber:   entry.ManifestNumber,
		FallbackNumber:   sequence.IsFallback(entry.ManifestNumber),
		Notes:            entry.Notes,
		Status:           entry.Status,
		VehicleLink:      entry.VehicleLink,
		Items:            items,
		Version:          entry.Version,
		CreatedBy:        entry.CreatedBy,
		CreatedAt:        entry.CreatedAt,
		UpdatedAt:        entry.UpdatedAt,
	}
}

func newItemDTO(item types.ManifestItem) ItemDTO {
	return ItemDTO{ManifestItem: item, Remaining: allocation.Remaining(item)}
}

// QuantityTotals sums item quantities across a manifest.
type QuantityTotals struct {
	Total      int `json:"total"`
	Dispatched int `json:"dispatched"`
	Remaining  int `json:"remaining"`
}

// Totals is the printable money and cargo summary of a manifest.
type Totals struct {
	EntryID            uuid.UUID          `json:"entry_id"`
	ManifestNumber     string             `json:"manifest_number"`
	Collectible        collectibles.Total `json:"collectible"`
	CollectibleDisplay string             `json:"collectible_display"`
	Prepaid            collectibles.Total `json:"prepaid"`
	PrepaidDisplay     string             `json:"prepaid_display"`
	DeclaredValue      collectibles.Total `json:"declared_value"`
	Quantities         QuantityTotals     `json:"quantities"`
	TotalWeight        decimal.Decimal    `json:"total_weight"`
	ItemCount          int                `json:"item_count"`
}

// AuditReport lists every invariant violation found on a manifest.
type AuditReport struct {
	EntryID    uuid.UUID `json:"entry_id"`
	Version    int       `json:"version"`
	Valid      bool      `json:"valid"`
	Violations []string  `json:"violations"`
}
