package allocation

import (
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/branchledger/pkg/errors"
	"github.com/angelmondragon/branchledger/pkg/types"
)

func intPtr(v int) *int { return &v }

func TestLocate(t *testing.T) {
	idA := uuid.New()
	idB := uuid.New()
	items := []types.ManifestItem{
		{ID: &idA, OrderIndex: 1, Description: "Boxes"},
		{ID: nil, OrderIndex: 2, Description: "Tires"},
		{ID: &idB, OrderIndex: 3, Description: "Crates"},
	}
	unknown := uuid.New()

	tests := []struct {
		name    string
		ref     ItemRef
		want    int
		wantErr bool
	}{
		{name: "by id", ref: ItemRef{ID: &idB}, want: 2},
		{name: "id wins over fallback fields", ref: ItemRef{ID: &idA, OrderIndex: intPtr(3), Description: "Crates"}, want: 0},
		{name: "legacy item without id", ref: ItemRef{OrderIndex: intPtr(2), Description: "Tires"}, want: 1},
		{name: "unknown id falls back to legacy item", ref: ItemRef{ID: &unknown, OrderIndex: intPtr(2), Description: " Tires "}, want: 1},
		{name: "unknown id never matches an item with another id", ref: ItemRef{ID: &unknown, OrderIndex: intPtr(3), Description: "Crates"}, wantErr: true},
		{name: "fallback without id matches item with id", ref: ItemRef{OrderIndex: intPtr(1), Description: "Boxes"}, want: 0},
		{name: "description mismatch", ref: ItemRef{OrderIndex: intPtr(1), Description: "Tires"}, wantErr: true},
		{name: "order index alone is not enough", ref: ItemRef{OrderIndex: intPtr(2)}, wantErr: true},
		{name: "unknown id alone", ref: ItemRef{ID: &unknown}, wantErr: true},
		{name: "empty ref", ref: ItemRef{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Locate(items, tt.ref)
			if tt.wantErr {
				if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
					t.Fatalf("expected not found, got idx=%d err=%v", got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected index %d got %d", tt.want, got)
			}
		})
	}
}
