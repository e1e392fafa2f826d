package manifests

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/branchledger/internal/allocation"
	"github.com/angelmondragon/branchledger/internal/collectibles"
	"github.com/angelmondragon/branchledger/pkg/db/models"
	"github.com/angelmondragon/branchledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/branchledger/pkg/errors"
)

func (s *service) Totals(ctx context.Context, id uuid.UUID) (*Totals, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "manifest id required")
	}
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapErr(err, "load manifest")
	}
	return computeTotals(entry)
}

func (s *service) Audit(ctx context.Context, id uuid.UUID) (*AuditReport, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "manifest id required")
	}
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapErr(err, "load manifest")
	}
	violations := allocation.Violations(allocation.CheckAll(entry.Items))
	report := &AuditReport{
		EntryID:    entry.ID,
		Version:    entry.Version,
		Valid:      len(violations) == 0,
		Violations: violations,
	}
	if !report.Valid {
		logCtx := s.logg.WithFields(s.logg.WithManifestID(ctx, entry.ID.String()), map[string]any{
			"violation_count": len(violations),
		})
		s.logg.Warn(logCtx, "manifest.audit.violations")
	}
	return report, nil
}

// computeTotals derives every printable sum of an entry. Item values always
// count toward the collectible total; vehicle fees count only when collected
// on delivery.
func computeTotals(entry *models.BranchEntry) (*Totals, error) {
	var (
		collectible = make([]collectibles.Line, 0, len(entry.Items))
		prepaid     []collectibles.Line
		declared    = make([]collectibles.Line, 0, len(entry.Items))
		quantities  QuantityTotals
		weight      = decimal.Zero
	)
	for _, item := range entry.Items {
		line := collectibles.Unconditional(item.Value, string(item.Currency))
		collectible = append(collectible, line)
		declared = append(declared, line)
		quantities.Total += item.TotalQuantity
		quantities.Dispatched += item.DispatchedQuantity
		quantities.Remaining += allocation.Remaining(item)
		weight = weight.Add(allocation.Weight(item))
	}
	for _, fee := range entry.VehicleLink.Fees() {
		collectible = append(collectible, collectibles.Conditional(fee.Amount, string(fee.Currency), fee.PaymentMethod))
		prepaid = append(prepaid, collectibles.Line{
			Amount:   fee.Amount,
			Currency: string(fee.Currency),
			Include:  fee.PaymentMethod == enums.PaymentMethodPrepaid,
		})
	}

	collectibleTotal, err := collectibles.Aggregate(collectible)
	if err != nil {
		return nil, err
	}
	prepaidTotal, err := collectibles.Aggregate(prepaid)
	if err != nil {
		return nil, err
	}
	declaredTotal, err := collectibles.Aggregate(declared)
	if err != nil {
		return nil, err
	}
	return &Totals{
		EntryID:            entry.ID,
		ManifestNumber:     entry.ManifestNumber,
		Collectible:        collectibleTotal,
		CollectibleDisplay: collectibleTotal.String(),
		Prepaid:            prepaidTotal,
		PrepaidDisplay:     prepaidTotal.String(),
		DeclaredValue:      declaredTotal,
		Quantities:         quantities,
		TotalWeight:        weight,
		ItemCount:          len(entry.Items),
	}, nil
}
