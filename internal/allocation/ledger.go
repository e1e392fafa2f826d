package allocation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/branchledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/branchledger/pkg/errors"
	"github.com/angelmondragon/branchledger/pkg/types"
)

// Destination says where a dispatched quantity is routed.
type Destination struct {
	Kind          enums.DestinationKind
	CustomerName  string
	CustomerPhone string
	Region        string
	BranchName    string
	Notes         string
}

// Validate checks the fields required by the destination kind.
func (d Destination) Validate() error {
	if !d.Kind.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid destination kind %q", d.Kind)
	}
	missing := map[string]string{}
	switch d.Kind {
	case enums.DestinationCustomer:
		if strings.TrimSpace(d.CustomerName) == "" {
			missing["customer_name"] = "required for customer destinations"
		}
		if strings.TrimSpace(d.Region) == "" {
			missing["region"] = "required for customer destinations"
		}
	case enums.DestinationBranch:
		if strings.TrimSpace(d.BranchName) == "" {
			missing["branch_name"] = "required for branch destinations"
		}
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "destination is incomplete").WithDetails(missing)
	}
	return nil
}

// Request is a single dispatch against one item.
type Request struct {
	Quantity    int
	Destination Destination
	OperatorID  string
}

// Result is what a successful dispatch produced.
type Result struct {
	Record       types.DispatchRecord
	FollowUp     PendingFollowUp
	Confirmation string
}

// Remaining is the quantity still available for dispatch.
func Remaining(item types.ManifestItem) int {
	remaining := item.TotalQuantity - item.DispatchedQuantity
	if remaining < 0 {
		return 0
	}
	return remaining
}

// DeriveStatus maps dispatched vs total quantity to the item status.
func DeriveStatus(dispatched, total int) enums.ItemStatus {
	switch {
	case dispatched <= 0:
		return enums.ItemStatusReceived
	case dispatched >= total:
		return enums.ItemStatusFullyDispatched
	default:
		return enums.ItemStatusPartiallyDispatched
	}
}

// Dispatch allocates req.Quantity of item toward req.Destination. The item is
// only modified when every check passes; on error it is left untouched.
func Dispatch(item *types.ManifestItem, req Request, now time.Time) (Result, error) {
	if item == nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	if req.Quantity < 1 {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
			WithDetails(map[string]any{"requested": req.Quantity})
	}
	remaining := Remaining(*item)
	if req.Quantity > remaining {
		return Result{}, pkgerrors.Newf(pkgerrors.CodeValidation, "quantity %d exceeds remaining %d", req.Quantity, remaining).
			WithDetails(map[string]any{"requested": req.Quantity, "remaining": remaining})
	}
	if err := req.Destination.Validate(); err != nil {
		return Result{}, err
	}
	operator := strings.TrimSpace(req.OperatorID)
	if operator == "" {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "operator identity is required")
	}

	dest := req.Destination
	record := types.DispatchRecord{
		ID:              uuid.New(),
		Amount:          req.Quantity,
		DispatchedAt:    now.UTC(),
		DestinationKind: dest.Kind,
		Notes:           strings.TrimSpace(dest.Notes),
		OperatorID:      operator,
	}
	switch dest.Kind {
	case enums.DestinationCustomer:
		record.CustomerName = strings.TrimSpace(dest.CustomerName)
		record.CustomerPhone = strings.TrimSpace(dest.CustomerPhone)
		record.Region = strings.TrimSpace(dest.Region)
	case enums.DestinationBranch:
		record.BranchName = strings.TrimSpace(dest.BranchName)
	}

	item.DispatchedQuantity += req.Quantity
	item.DispatchHistory = append(item.DispatchHistory, record)
	item.Status = DeriveStatus(item.DispatchedQuantity, item.TotalQuantity)

	followUp := newFollowUp(*item, record)
	return Result{
		Record:       record,
		FollowUp:     followUp,
		Confirmation: followUp.Message(),
	}, nil
}

// CanRemove reports whether the item may still be dropped from its manifest.
func CanRemove(item types.ManifestItem) error {
	if item.DispatchedQuantity > 0 || len(item.DispatchHistory) > 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "item has dispatch history and cannot be removed").
			WithDetails(map[string]any{"dispatched_quantity": item.DispatchedQuantity})
	}
	return nil
}

// NewItem validates a fresh cargo line and resets its ledger state.
func NewItem(item types.ManifestItem) (types.ManifestItem, error) {
	item.Description = strings.TrimSpace(item.Description)
	if item.Description == "" {
		return types.ManifestItem{}, pkgerrors.New(pkgerrors.CodeValidation, "item description is required")
	}
	if item.TotalQuantity < 1 {
		return types.ManifestItem{}, pkgerrors.New(pkgerrors.CodeValidation, "item total quantity must be positive").
			WithDetails(map[string]any{"order_index": item.OrderIndex, "total_quantity": item.TotalQuantity})
	}
	if item.OrderIndex < 0 {
		return types.ManifestItem{}, pkgerrors.New(pkgerrors.CodeValidation, "item order index must not be negative")
	}
	if item.UnitWeight.IsNegative() || item.Value.IsNegative() {
		return types.ManifestItem{}, pkgerrors.New(pkgerrors.CodeValidation, "item weight and value must not be negative").
			WithDetails(map[string]any{"order_index": item.OrderIndex})
	}
	if item.Currency == "" {
		item.Currency = enums.DefaultCurrency
	}
	if !item.Currency.IsValid() {
		return types.ManifestItem{}, pkgerrors.Newf(pkgerrors.CodeValidation, "unsupported currency %q", item.Currency)
	}
	if item.ID == nil {
		id := uuid.New()
		item.ID = &id
	}
	item.RecipientName = strings.TrimSpace(item.RecipientName)
	item.RecipientPhone = strings.TrimSpace(item.RecipientPhone)
	item.DestinationRegion = strings.TrimSpace(item.DestinationRegion)
	item.DispatchedQuantity = 0
	item.DispatchHistory = []types.DispatchRecord{}
	item.Status = enums.ItemStatusReceived
	return item, nil
}

// Weight is the total weight of the line.
func Weight(item types.ManifestItem) decimal.Decimal {
	return item.UnitWeight.Mul(decimal.NewFromInt(int64(item.TotalQuantity)))
}

func describe(item types.ManifestItem) string {
	if item.ID != nil {
		return item.ID.String()
	}
	return fmt.Sprintf("#%d %q", item.OrderIndex, item.Description)
}
