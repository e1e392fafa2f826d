package allocation

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/branchledger/pkg/types"
)

// CheckInvariants audits one item and reports every violation found.
func CheckInvariants(item types.ManifestItem) error {
	var err error
	ref := describe(item)

	if item.TotalQuantity < 1 {
		err = multierr.Append(err, fmt.Errorf("item %s: total quantity %d is not positive", ref, item.TotalQuantity))
	}
	if item.DispatchedQuantity < 0 {
		err = multierr.Append(err, fmt.Errorf("item %s: dispatched quantity %d is negative", ref, item.DispatchedQuantity))
	}
	if item.DispatchedQuantity > item.TotalQuantity {
		err = multierr.Append(err, fmt.Errorf("item %s: dispatched quantity %d exceeds total %d", ref, item.DispatchedQuantity, item.TotalQuantity))
	}

	sum := 0
	for idx, record := range item.DispatchHistory {
		if record.Amount < 1 {
			err = multierr.Append(err, fmt.Errorf("item %s: dispatch record %d has non-positive amount %d", ref, idx, record.Amount))
		}
		if idx > 0 && record.DispatchedAt.Before(item.DispatchHistory[idx-1].DispatchedAt) {
			err = multierr.Append(err, fmt.Errorf("item %s: dispatch record %d is older than its predecessor", ref, idx))
		}
		sum += record.Amount
	}
	if sum != item.DispatchedQuantity {
		err = multierr.Append(err, fmt.Errorf("item %s: dispatched quantity %d does not match history sum %d", ref, item.DispatchedQuantity, sum))
	}

	if want := DeriveStatus(item.DispatchedQuantity, item.TotalQuantity); item.Status != want {
		err = multierr.Append(err, fmt.Errorf("item %s: status %q should be %q", ref, item.Status, want))
	}
	return err
}

// CheckAll audits a whole item list, including order index uniqueness.
func CheckAll(items []types.ManifestItem) error {
	var err error
	seen := make(map[int]bool, len(items))
	for _, item := range items {
		if seen[item.OrderIndex] {
			err = multierr.Append(err, fmt.Errorf("order index %d is used more than once", item.OrderIndex))
		}
		seen[item.OrderIndex] = true
		err = multierr.Append(err, CheckInvariants(item))
	}
	return err
}

// Violations flattens a CheckAll/CheckInvariants result into messages.
func Violations(err error) []string {
	errs := multierr.Errors(err)
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Error())
	}
	return out
}
