package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/branchledger/pkg/enums"
)

// ManifestItem is one cargo line embedded in a branch entry's items column.
type ManifestItem struct {
	ID                 *uuid.UUID       `json:"id,omitempty"`
	OrderIndex         int              `json:"order_index"`
	Description        string           `json:"description"`
	TotalQuantity      int              `json:"total_quantity"`
	DispatchedQuantity int              `json:"dispatched_quantity"`
	UnitWeight         decimal.Decimal  `json:"unit_weight"`
	Value              decimal.Decimal  `json:"value"`
	Currency           enums.Currency   `json:"currency"`
	RecipientName      string           `json:"recipient_name,omitempty"`
	RecipientPhone     string           `json:"recipient_phone,omitempty"`
	DestinationRegion  string           `json:"destination_region,omitempty"`
	Notes              string           `json:"notes,omitempty"`
	Status             enums.ItemStatus `json:"status"`
	DispatchHistory    []DispatchRecord `json:"dispatch_history"`
}

// DispatchRecord is an append-only audit entry for one allocation.
type DispatchRecord struct {
	ID              uuid.UUID             `json:"id"`
	Amount          int                   `json:"dispatched_amount"`
	DispatchedAt    time.Time             `json:"dispatched_at"`
	DestinationKind enums.DestinationKind `json:"destination_kind"`
	CustomerName    string                `json:"customer_name,omitempty"`
	CustomerPhone   string                `json:"customer_phone,omitempty"`
	Region          string                `json:"region,omitempty"`
	BranchName      string                `json:"branch_name,omitempty"`
	Notes           string                `json:"notes,omitempty"`
	OperatorID      string                `json:"operator_id"`
}

// ManifestItems is the ordered item list of an entry.
type ManifestItems []ManifestItem

// Clone returns a deep copy so callers can mutate without touching the source.
func (i ManifestItem) Clone() ManifestItem {
	out := i
	if i.ID != nil {
		id := *i.ID
		out.ID = &id
	}
	if i.DispatchHistory != nil {
		out.DispatchHistory = make([]DispatchRecord, len(i.DispatchHistory))
		copy(out.DispatchHistory, i.DispatchHistory)
	}
	return out
}

// Clone deep-copies every item.
func (items ManifestItems) Clone() ManifestItems {
	if items == nil {
		return nil
	}
	out := make(ManifestItems, len(items))
	for idx, item := range items {
		out[idx] = item.Clone()
	}
	return out
}

// HasDispatches reports whether any item has left the ledger's initial state.
func (items ManifestItems) HasDispatches() bool {
	for _, item := range items {
		if item.DispatchedQuantity > 0 || len(item.DispatchHistory) > 0 {
			return true
		}
	}
	return false
}
