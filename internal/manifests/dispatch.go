package manifests

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/branchledger/internal/allocation"
	"github.com/angelmondragon/branchledger/pkg/db/models"
	"github.com/angelmondragon/branchledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/branchledger/pkg/errors"
	"github.com/angelmondragon/branchledger/pkg/outbox"
	"github.com/angelmondragon/branchledger/pkg/outbox/payloads"
	"github.com/angelmondragon/branchledger/pkg/types"
)

// Dispatch allocates part of one item. The read, the ledger change, the
// version-checked write and both outbox events share a single transaction.
func (s *service) Dispatch(ctx context.Context, input DispatchInput) (*DispatchResult, error) {
	operator, err := requireOperator(input.Operator)
	if err != nil {
		return nil, err
	}

	var (
		result  allocation.Result
		itemIdx int
	)
	entry, err := s.mutate(ctx, opDispatch, input.EntryID, input.ExpectedVersion, func(tx *gorm.DB, entry *models.BranchEntry) error {
		if entry.Direction != enums.EntryDirectionIncoming && !s.allowOutgoing {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only incoming manifests can be dispatched").
				WithDetails(map[string]any{"direction": entry.Direction})
		}
		idx, err := allocation.Locate(entry.Items, input.Item)
		if err != nil {
			return err
		}
		item := entry.Items[idx].Clone()
		res, err := allocation.Dispatch(&item, allocation.Request{
			Quantity:    input.Quantity,
			Destination: input.Destination,
			OperatorID:  operator.ID,
		}, s.now())
		if err != nil {
			return err
		}
		entry.Items[idx] = item
		result, itemIdx = res, idx
		return s.emitDispatch(ctx, tx, entry, item.Clone(), res, operator)
	})
	if err != nil {
		return nil, err
	}

	item := entry.Items[itemIdx]
	s.metrics.ObserveDispatch(string(result.Record.DestinationKind), result.Record.Amount)
	logCtx := s.logg.WithFields(s.logg.WithManifestID(ctx, entry.ID.String()), map[string]any{
		"manifest_number":     entry.ManifestNumber,
		"item_order_index":    item.OrderIndex,
		"quantity":            result.Record.Amount,
		"dispatched_quantity": item.DispatchedQuantity,
		"item_status":         item.Status,
		"destination_kind":    result.Record.DestinationKind,
		"version":             entry.Version,
	})
	s.logg.Info(logCtx, "manifest.dispatch.applied")

	return &DispatchResult{
		Entry:        NewEntryDTO(entry),
		Item:         newItemDTO(item),
		Record:       result.Record,
		FollowUp:     result.FollowUp,
		Confirmation: result.Confirmation,
	}, nil
}

func (s *service) emitDispatch(ctx context.Context, tx *gorm.DB, entry *models.BranchEntry, item types.ManifestItem, res allocation.Result, operator Operator) error {
	actor := actorRef(operator)
	if _, err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventItemDispatched,
		AggregateType: enums.AggregateBranchEntry,
		AggregateID:   entry.ID,
		Actor:         actor,
		OccurredAt:    res.Record.DispatchedAt,
		Data: payloads.ItemDispatchedEvent{
			EntryID:            entry.ID,
			ManifestNumber:     entry.ManifestNumber,
			ItemID:             item.ID,
			ItemOrderIndex:     item.OrderIndex,
			DispatchRecordID:   res.Record.ID,
			Quantity:           res.Record.Amount,
			DispatchedQuantity: item.DispatchedQuantity,
			TotalQuantity:      item.TotalQuantity,
			ItemStatus:         item.Status,
			DestinationKind:    res.Record.DestinationKind,
			OperatorID:         operator.ID,
			DispatchedAt:       res.Record.DispatchedAt,
			EntryVersion:       entry.Version + 1,
		},
	}); err != nil {
		return err
	}

	f := res.FollowUp
	_, err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventFollowUpRequested,
		AggregateType: enums.AggregateBranchEntry,
		AggregateID:   entry.ID,
		Actor:         actor,
		OccurredAt:    f.RequestedAt,
		Data: payloads.FollowUpRequestedEvent{
			EntryID:          entry.ID,
			ManifestNumber:   entry.ManifestNumber,
			Kind:             f.Kind,
			ItemID:           f.ItemID,
			ItemOrderIndex:   f.ItemOrderIndex,
			ItemDescription:  f.ItemDescription,
			DispatchRecordID: f.DispatchRecordID,
			Quantity:         f.Quantity,
			TargetName:       f.TargetName,
			TargetPhone:      f.TargetPhone,
			Region:           f.Region,
			Message:          res.Confirmation,
			OperatorID:       f.OperatorID,
			RequestedAt:      f.RequestedAt,
		},
	})
	return err
}
