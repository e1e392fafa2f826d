package manifests

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/branchledger/pkg/db/models"
	"github.com/angelmondragon/branchledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/branchledger/pkg/errors"
	"github.com/angelmondragon/branchledger/pkg/outbox"
	"github.com/angelmondragon/branchledger/pkg/outbox/payloads"
	"github.com/angelmondragon/branchledger/pkg/types"
)

var hundred = decimal.NewFromInt(100)

// LinkVehicle moves a pending manifest to linked. It happens once; a second
// link is a state conflict.
func (s *service) LinkVehicle(ctx context.Context, input LinkVehicleInput) (*EntryDTO, error) {
	operator, err := requireOperator(input.Operator)
	if err != nil {
		return nil, err
	}
	link, err := buildLink(input, operator, s)
	if err != nil {
		return nil, err
	}

	entry, err := s.mutate(ctx, opLink, input.EntryID, input.ExpectedVersion, func(tx *gorm.DB, entry *models.BranchEntry) error {
		if entry.Status != enums.EntryStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "manifest is already linked to a vehicle").
				WithDetails(map[string]any{"status": entry.Status})
		}
		entry.VehicleLink = link
		entry.Status = enums.EntryStatusLinked

		totals, err := computeTotals(entry)
		if err != nil {
			return err
		}
		_, err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventManifestLinked,
			AggregateType: enums.AggregateBranchEntry,
			AggregateID:   entry.ID,
			Actor:         actorRef(operator),
			OccurredAt:    link.LinkedAt,
			Data: payloads.ManifestLinkedEvent{
				EntryID:        entry.ID,
				ManifestNumber: entry.ManifestNumber,
				VehicleID:      link.VehicleID,
				SharePercent:   link.SharePercent,
				Collectible:    totals.CollectibleDisplay,
				LinkedBy:       link.LinkedBy,
				LinkedAt:       link.LinkedAt,
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithFields(s.logg.WithManifestID(ctx, entry.ID.String()), map[string]any{
		"manifest_number": entry.ManifestNumber,
		"vehicle_id":      link.VehicleID.String(),
		"fee_count":       len(link.Fees()),
	})
	s.logg.Info(logCtx, "manifest.linked")
	return NewEntryDTO(entry), nil
}

func buildLink(input LinkVehicleInput, operator Operator, s *service) (*types.VehicleLink, error) {
	if input.VehicleID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vehicle id required")
	}
	if input.SharePercent.IsNegative() || input.SharePercent.GreaterThan(hundred) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "share percent must be between 0 and 100").
			WithDetails(map[string]any{"share_percent": input.SharePercent.String()})
	}

	flat := make([]types.Fee, 0, len(input.FlatFees))
	seen := map[enums.FeeKind]bool{}
	for idx, fee := range input.FlatFees {
		normalized, err := normalizeFee(fee, fmt.Sprintf("flat_fees[%d]", idx))
		if err != nil {
			return nil, err
		}
		kind, err := enums.ParseFeeKind(strings.ToLower(normalized.Name))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("flat_fees[%d]: unknown fee", idx))
		}
		if seen[kind] {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "flat fee %q listed twice", kind)
		}
		seen[kind] = true
		normalized.Name = string(kind)
		flat = append(flat, normalized)
	}

	custom := make([]types.Fee, 0, len(input.CustomFees))
	for idx, fee := range input.CustomFees {
		normalized, err := normalizeFee(fee, fmt.Sprintf("custom_fees[%d]", idx))
		if err != nil {
			return nil, err
		}
		if normalized.Name == "" {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "custom_fees[%d]: name required", idx)
		}
		custom = append(custom, normalized)
	}

	return &types.VehicleLink{
		VehicleID:    input.VehicleID,
		VehicleLabel: strings.TrimSpace(input.VehicleLabel),
		SharePercent: input.SharePercent,
		FlatFees:     flat,
		CustomFees:   custom,
		LinkedAt:     s.now().UTC(),
		LinkedBy:     operator.ID,
	}, nil
}

func normalizeFee(fee types.Fee, field string) (types.Fee, error) {
	fee.Name = strings.TrimSpace(fee.Name)
	if fee.Amount.IsNegative() {
		return fee, pkgerrors.Newf(pkgerrors.CodeValidation, "%s: amount must not be negative", field).
			WithDetails(map[string]any{"amount": fee.Amount.String()})
	}
	fee.Currency = enums.Currency(strings.ToUpper(strings.TrimSpace(string(fee.Currency))))
	if fee.Currency == "" {
		fee.Currency = enums.DefaultCurrency
	}
	if !fee.Currency.IsValid() {
		return fee, pkgerrors.Newf(pkgerrors.CodeValidation, "%s: unsupported currency %q", field, fee.Currency)
	}
	if !fee.PaymentMethod.IsValid() {
		return fee, pkgerrors.Newf(pkgerrors.CodeValidation, "%s: payment method must be collect or prepaid", field)
	}
	return fee, nil
}
