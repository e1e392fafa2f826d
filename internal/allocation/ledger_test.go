package allocation

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/branchledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/branchledger/pkg/errors"
	"github.com/angelmondragon/branchledger/pkg/types"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestItem(t *testing.T, total int) types.ManifestItem {
	t.Helper()
	item, err := NewItem(types.ManifestItem{
		OrderIndex:    1,
		Description:   "Boxes",
		TotalQuantity: total,
		UnitWeight:    decimal.RequireFromString("2.5"),
		Value:         decimal.RequireFromString("100"),
		Currency:      enums.CurrencyUSD,
	})
	if err != nil {
		t.Fatalf("NewItem: %v", err)
	}
	return item
}

func customer(name, region string) Destination {
	return Destination{Kind: enums.DestinationCustomer, CustomerName: name, Region: region, CustomerPhone: "+90 555"}
}

func TestDispatchScenarioToFullyDispatched(t *testing.T) {
	item := newTestItem(t, 10)

	res, err := Dispatch(&item, Request{Quantity: 4, Destination: customer("Ali", "Nicosia"), OperatorID: "op-1"}, fixedNow)
	if err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	if item.DispatchedQuantity != 4 || item.Status != enums.ItemStatusPartiallyDispatched || Remaining(item) != 6 {
		t.Fatalf("unexpected state after first dispatch: dispatched=%d status=%s remaining=%d", item.DispatchedQuantity, item.Status, Remaining(item))
	}
	if res.Record.Amount != 4 || res.Record.CustomerName != "Ali" || res.Record.Region != "Nicosia" || res.Record.OperatorID != "op-1" {
		t.Fatalf("unexpected record %+v", res.Record)
	}
	if !res.Record.DispatchedAt.Equal(fixedNow) {
		t.Fatalf("expected server timestamp, got %v", res.Record.DispatchedAt)
	}

	if _, err := Dispatch(&item, Request{Quantity: 6, Destination: customer("Ali", "Nicosia"), OperatorID: "op-1"}, fixedNow.Add(time.Minute)); err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	if item.DispatchedQuantity != 10 || item.Status != enums.ItemStatusFullyDispatched || Remaining(item) != 0 {
		t.Fatalf("unexpected state after second dispatch: dispatched=%d status=%s", item.DispatchedQuantity, item.Status)
	}

	_, err = Dispatch(&item, Request{Quantity: 1, Destination: customer("Ali", "Nicosia"), OperatorID: "op-1"}, fixedNow.Add(2*time.Minute))
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error on terminal item, got %v", err)
	}
	if len(item.DispatchHistory) != 2 {
		t.Fatalf("failed dispatch must not append history, got %d records", len(item.DispatchHistory))
	}
}

func TestDispatchHistorySumInvariantHolds(t *testing.T) {
	quantities := []int{1, 3, 2, 5, 1}
	item := newTestItem(t, 12)
	for idx, qty := range quantities {
		dest := customer("Ayse", "Famagusta")
		if idx%2 == 1 {
			dest = Destination{Kind: enums.DestinationBranch, BranchName: "Kyrenia"}
		}
		if _, err := Dispatch(&item, Request{Quantity: qty, Destination: dest, OperatorID: "op-2"}, fixedNow.Add(time.Duration(idx)*time.Second)); err != nil {
			t.Fatalf("dispatch %d: %v", idx, err)
		}
		if err := CheckInvariants(item); err != nil {
			t.Fatalf("invariants broken after dispatch %d: %v", idx, err)
		}
	}
	if item.Status != enums.ItemStatusFullyDispatched {
		t.Fatalf("expected fully dispatched, got %s", item.Status)
	}
}

func TestDispatchValidationLeavesItemUntouched(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{name: "zero quantity", req: Request{Quantity: 0, Destination: customer("Ali", "Nicosia"), OperatorID: "op"}},
		{name: "negative quantity", req: Request{Quantity: -2, Destination: customer("Ali", "Nicosia"), OperatorID: "op"}},
		{name: "over remaining", req: Request{Quantity: 6, Destination: customer("Ali", "Nicosia"), OperatorID: "op"}},
		{name: "customer without name", req: Request{Quantity: 1, Destination: customer(" ", "Nicosia"), OperatorID: "op"}},
		{name: "customer without region", req: Request{Quantity: 1, Destination: customer("Ali", ""), OperatorID: "op"}},
		{name: "branch without name", req: Request{Quantity: 1, Destination: Destination{Kind: enums.DestinationBranch}, OperatorID: "op"}},
		{name: "unknown kind", req: Request{Quantity: 1, Destination: Destination{Kind: "warehouse", BranchName: "x"}, OperatorID: "op"}},
		{name: "missing operator", req: Request{Quantity: 1, Destination: customer("Ali", "Nicosia")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := newTestItem(t, 5)
			before := item.Clone()
			_, err := Dispatch(&item, tt.req, fixedNow)
			if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if item.DispatchedQuantity != before.DispatchedQuantity || len(item.DispatchHistory) != len(before.DispatchHistory) || item.Status != before.Status {
				t.Fatalf("item mutated on failure: %+v", item)
			}
		})
	}
}

func TestDispatchBranchDestinationIgnoresCustomerFields(t *testing.T) {
	item := newTestItem(t, 3)
	res, err := Dispatch(&item, Request{
		Quantity:    2,
		Destination: Destination{Kind: enums.DestinationBranch, BranchName: " Kyrenia ", CustomerName: "ignored", Notes: "fragile"},
		OperatorID:  "op-9",
	}, fixedNow)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.Record.BranchName != "Kyrenia" || res.Record.CustomerName != "" || res.Record.Notes != "fragile" {
		t.Fatalf("unexpected record %+v", res.Record)
	}
	if res.FollowUp.Kind != enums.FollowUpCreateOutgoingManifest || res.FollowUp.TargetName != "Kyrenia" {
		t.Fatalf("unexpected follow-up %+v", res.FollowUp)
	}
	if !strings.Contains(res.Confirmation, "branch Kyrenia") {
		t.Fatalf("confirmation should name the branch: %q", res.Confirmation)
	}
}

func TestDispatchCustomerFollowUp(t *testing.T) {
	item := newTestItem(t, 10)
	res, err := Dispatch(&item, Request{Quantity: 4, Destination: customer("Ali", "Nicosia"), OperatorID: "op-1"}, fixedNow)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	f := res.FollowUp
	if f.Kind != enums.FollowUpDeliverToCustomer || f.Quantity != 4 || f.DispatchRecordID != res.Record.ID {
		t.Fatalf("unexpected follow-up %+v", f)
	}
	if f.ItemID == nil || *f.ItemID != *item.ID {
		t.Fatalf("follow-up should carry the item id")
	}
	want := "4 x Boxes dispatched to customer Ali (Nicosia); arrange the delivery."
	if res.Confirmation != want {
		t.Fatalf("expected %q got %q", want, res.Confirmation)
	}
}

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		dispatched, total int
		want              enums.ItemStatus
	}{
		{0, 10, enums.ItemStatusReceived},
		{1, 10, enums.ItemStatusPartiallyDispatched},
		{9, 10, enums.ItemStatusPartiallyDispatched},
		{10, 10, enums.ItemStatusFullyDispatched},
	}
	for _, c := range cases {
		if got := DeriveStatus(c.dispatched, c.total); got != c.want {
			t.Fatalf("DeriveStatus(%d,%d)=%s want %s", c.dispatched, c.total, got, c.want)
		}
	}
}

func TestCanRemove(t *testing.T) {
	item := newTestItem(t, 2)
	if err := CanRemove(item); err != nil {
		t.Fatalf("fresh item should be removable: %v", err)
	}
	if _, err := Dispatch(&item, Request{Quantity: 1, Destination: customer("Ali", "Nicosia"), OperatorID: "op"}, fixedNow); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := CanRemove(item); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestNewItem(t *testing.T) {
	item, err := NewItem(types.ManifestItem{
		Description:        "  Pallet ",
		TotalQuantity:      3,
		DispatchedQuantity: 2,
		DispatchHistory:    []types.DispatchRecord{{Amount: 2}},
	})
	if err != nil {
		t.Fatalf("NewItem: %v", err)
	}
	if item.ID == nil || item.Description != "Pallet" || item.Currency != enums.CurrencyUSD {
		t.Fatalf("unexpected normalized item %+v", item)
	}
	if item.DispatchedQuantity != 0 || len(item.DispatchHistory) != 0 || item.Status != enums.ItemStatusReceived {
		t.Fatalf("new item must start with an empty ledger: %+v", item)
	}

	bad := []types.ManifestItem{
		{Description: "", TotalQuantity: 1},
		{Description: "x", TotalQuantity: 0},
		{Description: "x", TotalQuantity: 1, OrderIndex: -1},
		{Description: "x", TotalQuantity: 1, Value: decimal.NewFromInt(-1)},
		{Description: "x", TotalQuantity: 1, Currency: "BTC"},
	}
	for idx, candidate := range bad {
		if _, err := NewItem(candidate); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("case %d: expected validation error, got %v", idx, err)
		}
	}
}

func TestCheckInvariantsReportsEveryViolation(t *testing.T) {
	id := uuid.New()
	item := types.ManifestItem{
		ID:                 &id,
		TotalQuantity:      5,
		DispatchedQuantity: 7,
		Status:             enums.ItemStatusReceived,
		DispatchHistory: []types.DispatchRecord{
			{Amount: 3, DispatchedAt: fixedNow},
			{Amount: 0, DispatchedAt: fixedNow.Add(-time.Hour)},
		},
	}
	violations := Violations(CheckInvariants(item))
	// exceeds total, zero amount, out of order, sum mismatch, wrong status
	if len(violations) != 5 {
		t.Fatalf("expected 5 violations, got %d: %v", len(violations), violations)
	}
}

func TestCheckAllDetectsDuplicateOrderIndex(t *testing.T) {
	a := newTestItem(t, 1)
	b := newTestItem(t, 1)
	if err := CheckAll([]types.ManifestItem{a, b}); err == nil {
		t.Fatal("expected duplicate order index to be reported")
	}
	b.OrderIndex = 2
	if err := CheckAll([]types.ManifestItem{a, b}); err != nil {
		t.Fatalf("unexpected violations: %v", err)
	}
}

func TestWeight(t *testing.T) {
	item := newTestItem(t, 4)
	if got := Weight(item); !got.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("expected weight 10, got %s", got)
	}
}
