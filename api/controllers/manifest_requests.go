package controllers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/branchledger/api/validators"
	"github.com/angelmondragon/branchledger/internal/allocation"
	"github.com/angelmondragon/branchledger/internal/manifests"
	"github.com/angelmondragon/branchledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/branchledger/pkg/errors"
	"github.com/angelmondragon/branchledger/pkg/types"
)

const (
	maxNameLen  = 200
	maxNotesLen = 2000
)

type createManifestRequest struct {
	Direction        string        `json:"direction" validate:"required"`
	OriginBranchID   string        `json:"origin_branch_id" validate:"required,uuid"`
	OriginBranchName string        `json:"origin_branch_name" validate:"required,max=200"`
	Notes            string        `json:"notes,omitempty" validate:"max=2000"`
	Items            []itemRequest `json:"items,omitempty" validate:"omitempty,dive"`
}

type itemRequest struct {
	OrderIndex        int              `json:"order_index,omitempty" validate:"gte=0"`
	Description       string           `json:"description" validate:"required,max=200"`
	TotalQuantity     int              `json:"total_quantity" validate:"gt=0"`
	UnitWeight        *decimal.Decimal `json:"unit_weight,omitempty"`
	Value             *decimal.Decimal `json:"value,omitempty"`
	Currency          string           `json:"currency,omitempty" validate:"omitempty,len=3"`
	RecipientName     string           `json:"recipient_name,omitempty" validate:"max=200"`
	RecipientPhone    string           `json:"recipient_phone,omitempty" validate:"max=40"`
	DestinationRegion string           `json:"destination_region,omitempty" validate:"max=200"`
	Notes             string           `json:"notes,omitempty" validate:"max=2000"`
}

func (r createManifestRequest) toInput(op manifests.Operator) (manifests.CreateInput, error) {
	direction, err := enums.ParseEntryDirection(normalizeLower(r.Direction))
	if err != nil {
		return manifests.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid direction")
	}
	branchID, err := uuid.Parse(r.OriginBranchID)
	if err != nil {
		return manifests.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid origin_branch_id")
	}
	items := make([]manifests.ItemInput, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, item.toInput())
	}
	return manifests.CreateInput{
		Direction:        direction,
		OriginBranchID:   branchID,
		OriginBranchName: validators.SanitizeString(r.OriginBranchName, maxNameLen),
		Notes:            validators.SanitizeString(r.Notes, maxNotesLen),
		Items:            items,
		Operator:         op,
	}, nil
}

func (r itemRequest) toInput() manifests.ItemInput {
	return manifests.ItemInput{
		OrderIndex:        r.OrderIndex,
		Description:       validators.SanitizeString(r.Description, maxNameLen),
		TotalQuantity:     r.TotalQuantity,
		UnitWeight:        decimalOrZero(r.UnitWeight),
		Value:             decimalOrZero(r.Value),
		Currency:          normalizeCurrency(r.Currency),
		RecipientName:     validators.SanitizeString(r.RecipientName, maxNameLen),
		RecipientPhone:    validators.SanitizeString(r.RecipientPhone, 40),
		DestinationRegion: validators.SanitizeString(r.DestinationRegion, maxNameLen),
		Notes:             validators.SanitizeString(r.Notes, maxNotesLen),
	}
}

// updateItemRequest fields are all optional; absent fields stay unchanged.
type updateItemRequest struct {
	OrderIndex        *int             `json:"order_index,omitempty" validate:"omitempty,gte=0"`
	Description       *string          `json:"description,omitempty" validate:"omitempty,max=200"`
	TotalQuantity     *int             `json:"total_quantity,omitempty" validate:"omitempty,gt=0"`
	UnitWeight        *decimal.Decimal `json:"unit_weight,omitempty"`
	Value             *decimal.Decimal `json:"value,omitempty"`
	Currency          *string          `json:"currency,omitempty" validate:"omitempty,len=3"`
	RecipientName     *string          `json:"recipient_name,omitempty" validate:"omitempty,max=200"`
	RecipientPhone    *string          `json:"recipient_phone,omitempty" validate:"omitempty,max=40"`
	DestinationRegion *string          `json:"destination_region,omitempty" validate:"omitempty,max=200"`
	Notes             *string          `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

func (r updateItemRequest) toPatch() manifests.ItemPatch {
	patch := manifests.ItemPatch{
		OrderIndex:        r.OrderIndex,
		Description:       r.Description,
		TotalQuantity:     r.TotalQuantity,
		UnitWeight:        r.UnitWeight,
		Value:             r.Value,
		RecipientName:     r.RecipientName,
		RecipientPhone:    r.RecipientPhone,
		DestinationRegion: r.DestinationRegion,
		Notes:             r.Notes,
	}
	if r.Currency != nil {
		currency := normalizeCurrency(*r.Currency)
		patch.Currency = &currency
	}
	return patch
}

// itemRefRequest points at an item by id, or by order index and description
// for lines stored before items carried ids.
type itemRefRequest struct {
	ItemID      *string `json:"item_id,omitempty" validate:"omitempty,uuid"`
	OrderIndex  *int    `json:"order_index,omitempty" validate:"omitempty,gte=0"`
	Description string  `json:"description,omitempty" validate:"max=200"`
}

func (r itemRefRequest) toRef() (allocation.ItemRef, error) {
	ref := allocation.ItemRef{OrderIndex: r.OrderIndex, Description: strings.TrimSpace(r.Description)}
	if r.ItemID != nil {
		id, err := uuid.Parse(*r.ItemID)
		if err != nil {
			return ref, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item_id")
		}
		ref.ID = &id
	}
	if ref.ID == nil && (ref.OrderIndex == nil || ref.Description == "") {
		return ref, pkgerrors.New(pkgerrors.CodeValidation, "item_id or order_index with description required")
	}
	return ref, nil
}

type dispatchRequest struct {
	itemRefRequest
	Quantity    int                `json:"quantity" validate:"gt=0"`
	Destination destinationRequest `json:"destination" validate:"required"`
}

type destinationRequest struct {
	Kind          string `json:"kind" validate:"required"`
	CustomerName  string `json:"customer_name,omitempty" validate:"max=200"`
	CustomerPhone string `json:"customer_phone,omitempty" validate:"max=40"`
	Region        string `json:"region,omitempty" validate:"max=200"`
	BranchName    string `json:"branch_name,omitempty" validate:"max=200"`
	Notes         string `json:"notes,omitempty" validate:"max=2000"`
}

func (r dispatchRequest) toInput(entryID uuid.UUID, expected *int, op manifests.Operator) (manifests.DispatchInput, error) {
	ref, err := r.itemRefRequest.toRef()
	if err != nil {
		return manifests.DispatchInput{}, err
	}
	kind, err := enums.ParseDestinationKind(normalizeLower(r.Destination.Kind))
	if err != nil {
		return manifests.DispatchInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid destination kind")
	}
	return manifests.DispatchInput{
		EntryID:  entryID,
		Item:     ref,
		Quantity: r.Quantity,
		Destination: allocation.Destination{
			Kind:          kind,
			CustomerName:  validators.SanitizeString(r.Destination.CustomerName, maxNameLen),
			CustomerPhone: validators.SanitizeString(r.Destination.CustomerPhone, 40),
			Region:        validators.SanitizeString(r.Destination.Region, maxNameLen),
			BranchName:    validators.SanitizeString(r.Destination.BranchName, maxNameLen),
			Notes:         validators.SanitizeString(r.Destination.Notes, maxNotesLen),
		},
		ExpectedVersion: expected,
		Operator:        op,
	}, nil
}

type linkVehicleRequest struct {
	VehicleID    string          `json:"vehicle_id" validate:"required,uuid"`
	VehicleLabel string          `json:"vehicle_label,omitempty" validate:"max=200"`
	SharePercent decimal.Decimal `json:"share_percent"`
	FlatFees     []feeRequest    `json:"flat_fees,omitempty" validate:"omitempty,dive"`
	CustomFees   []feeRequest    `json:"custom_fees,omitempty" validate:"omitempty,dive"`
}

type feeRequest struct {
	Name          string          `json:"name" validate:"max=100"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency,omitempty" validate:"omitempty,len=3"`
	PaymentMethod string          `json:"payment_method" validate:"required"`
}

func (r linkVehicleRequest) toInput(entryID uuid.UUID, expected *int, op manifests.Operator) (manifests.LinkVehicleInput, error) {
	vehicleID, err := uuid.Parse(r.VehicleID)
	if err != nil {
		return manifests.LinkVehicleInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid vehicle_id")
	}
	flat, err := toFees(r.FlatFees, "flat_fees")
	if err != nil {
		return manifests.LinkVehicleInput{}, err
	}
	custom, err := toFees(r.CustomFees, "custom_fees")
	if err != nil {
		return manifests.LinkVehicleInput{}, err
	}
	return manifests.LinkVehicleInput{
		EntryID:         entryID,
		VehicleID:       vehicleID,
		VehicleLabel:    validators.SanitizeString(r.VehicleLabel, maxNameLen),
		SharePercent:    r.SharePercent,
		FlatFees:        flat,
		CustomFees:      custom,
		ExpectedVersion: expected,
		Operator:        op,
	}, nil
}

func toFees(in []feeRequest, field string) ([]types.Fee, error) {
	out := make([]types.Fee, 0, len(in))
	for idx, fee := range in {
		method, err := enums.ParsePaymentMethod(normalizeLower(fee.PaymentMethod))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("%s[%d]: invalid payment_method", field, idx))
		}
		out = append(out, types.Fee{
			Name:          strings.TrimSpace(fee.Name),
			Amount:        fee.Amount,
			Currency:      normalizeCurrency(fee.Currency),
			PaymentMethod: method,
		})
	}
	return out, nil
}

// itemRefFromPath reads the {itemRef} segment: a uuid, or a non-negative
// order index paired with the description query parameter.
func itemRefFromPath(raw, description string) (allocation.ItemRef, error) {
	raw = strings.TrimSpace(raw)
	if id, err := uuid.Parse(raw); err == nil {
		return allocation.ItemRef{ID: &id}, nil
	}
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 {
		return allocation.ItemRef{}, pkgerrors.New(pkgerrors.CodeValidation, "item reference must be an item id or an order index").
			WithDetails(map[string]any{"item": raw})
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return allocation.ItemRef{}, pkgerrors.New(pkgerrors.CodeValidation, "description query parameter required when addressing an item by order index")
	}
	return allocation.ItemRef{OrderIndex: &index, Description: description}, nil
}

func decimalOrZero(value *decimal.Decimal) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return *value
}

func normalizeCurrency(value string) enums.Currency {
	return enums.Currency(strings.ToUpper(strings.TrimSpace(value)))
}

func normalizeLower(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
