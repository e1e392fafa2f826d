package manifests

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/branchledger/internal/allocation"
	"github.com/angelmondragon/branchledger/pkg/db/models"
	"github.com/angelmondragon/branchledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/branchledger/pkg/errors"
	"github.com/angelmondragon/branchledger/pkg/types"
)

func (s *service) AddItem(ctx context.Context, input AddItemInput) (*EntryDTO, error) {
	if _, err := requireOperator(input.Operator); err != nil {
		return nil, err
	}
	entry, err := s.mutate(ctx, opItems, input.EntryID, input.ExpectedVersion, func(_ *gorm.DB, entry *models.BranchEntry) error {
		if err := requireEditable(entry); err != nil {
			return err
		}
		in := input.Item
		if in.OrderIndex == 0 {
			in.OrderIndex = nextOrderIndex(entry.Items)
		}
		if indexTaken(entry.Items, in.OrderIndex, -1) {
			return duplicateIndex(in.OrderIndex)
		}
		item, err := allocation.NewItem(in.toItem())
		if err != nil {
			return err
		}
		entry.Items = append(entry.Items, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithManifestID(ctx, entry.ID.String()), "manifest.item.added")
	return NewEntryDTO(entry), nil
}

func (s *service) UpdateItem(ctx context.Context, input UpdateItemInput) (*EntryDTO, error) {
	if _, err := requireOperator(input.Operator); err != nil {
		return nil, err
	}
	entry, err := s.mutate(ctx, opItems, input.EntryID, input.ExpectedVersion, func(_ *gorm.DB, entry *models.BranchEntry) error {
		if err := requireEditable(entry); err != nil {
			return err
		}
		idx, err := allocation.Locate(entry.Items, input.Item)
		if err != nil {
			return err
		}
		updated, err := applyPatch(entry.Items[idx].Clone(), input.Patch)
		if err != nil {
			return err
		}
		if indexTaken(entry.Items, updated.OrderIndex, idx) {
			return duplicateIndex(updated.OrderIndex)
		}
		entry.Items[idx] = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithManifestID(ctx, entry.ID.String()), "manifest.item.updated")
	return NewEntryDTO(entry), nil
}

func (s *service) RemoveItem(ctx context.Context, input RemoveItemInput) (*EntryDTO, error) {
	if _, err := requireOperator(input.Operator); err != nil {
		return nil, err
	}
	entry, err := s.mutate(ctx, opItems, input.EntryID, input.ExpectedVersion, func(_ *gorm.DB, entry *models.BranchEntry) error {
		if err := requireEditable(entry); err != nil {
			return err
		}
		idx, err := allocation.Locate(entry.Items, input.Item)
		if err != nil {
			return err
		}
		if err := allocation.CanRemove(entry.Items[idx]); err != nil {
			return err
		}
		entry.Items = append(entry.Items[:idx:idx], entry.Items[idx+1:]...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithManifestID(ctx, entry.ID.String()), "manifest.item.removed")
	return NewEntryDTO(entry), nil
}

func requireEditable(entry *models.BranchEntry) error {
	if !entry.Status.Editable() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "items can only change while the manifest is pending").
			WithDetails(map[string]any{"status": entry.Status})
	}
	return nil
}

// applyPatch edits descriptive fields. Ledger fields never change here and
// the total cannot drop below what was already dispatched.
func applyPatch(item types.ManifestItem, patch ItemPatch) (types.ManifestItem, error) {
	if patch.OrderIndex != nil {
		if *patch.OrderIndex < 1 {
			return item, pkgerrors.New(pkgerrors.CodeValidation, "order index must be positive")
		}
		item.OrderIndex = *patch.OrderIndex
	}
	if patch.Description != nil {
		desc := strings.TrimSpace(*patch.Description)
		if desc == "" {
			return item, pkgerrors.New(pkgerrors.CodeValidation, "item description is required")
		}
		item.Description = desc
	}
	if patch.TotalQuantity != nil {
		total := *patch.TotalQuantity
		if total < 1 || total < item.DispatchedQuantity {
			return item, pkgerrors.Newf(pkgerrors.CodeValidation, "total quantity %d must be positive and at least the dispatched %d", total, item.DispatchedQuantity).
				WithDetails(map[string]any{"total_quantity": total, "dispatched_quantity": item.DispatchedQuantity})
		}
		item.TotalQuantity = total
		item.Status = allocation.DeriveStatus(item.DispatchedQuantity, item.TotalQuantity)
	}
	if patch.UnitWeight != nil {
		if patch.UnitWeight.IsNegative() {
			return item, pkgerrors.New(pkgerrors.CodeValidation, "unit weight must not be negative")
		}
		item.UnitWeight = *patch.UnitWeight
	}
	if patch.Value != nil {
		if patch.Value.IsNegative() {
			return item, pkgerrors.New(pkgerrors.CodeValidation, "value must not be negative")
		}
		item.Value = *patch.Value
	}
	if patch.Currency != nil {
		currency := *patch.Currency
		if currency == "" {
			currency = enums.DefaultCurrency
		}
		if !currency.IsValid() {
			return item, pkgerrors.Newf(pkgerrors.CodeValidation, "unsupported currency %q", currency)
		}
		item.Currency = currency
	}
	if patch.RecipientName != nil {
		item.RecipientName = strings.TrimSpace(*patch.RecipientName)
	}
	if patch.RecipientPhone != nil {
		item.RecipientPhone = strings.TrimSpace(*patch.RecipientPhone)
	}
	if patch.DestinationRegion != nil {
		item.DestinationRegion = strings.TrimSpace(*patch.DestinationRegion)
	}
	if patch.Notes != nil {
		item.Notes = strings.TrimSpace(*patch.Notes)
	}
	return item, nil
}

func nextOrderIndex(items types.ManifestItems) int {
	max := 0
	for _, item := range items {
		if item.OrderIndex > max {
			max = item.OrderIndex
		}
	}
	return max + 1
}

func indexTaken(items types.ManifestItems, orderIndex, skip int) bool {
	for idx, item := range items {
		if idx != skip && item.OrderIndex == orderIndex {
			return true
		}
	}
	return false
}
