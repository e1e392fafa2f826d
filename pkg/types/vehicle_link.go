package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/branchledger/pkg/enums"
)

// VehicleLink carries the vehicle assignment and fee data attached when an
// entry transitions to linked.
type VehicleLink struct {
	VehicleID    uuid.UUID       `json:"vehicle_id"`
	VehicleLabel string          `json:"vehicle_label,omitempty"`
	SharePercent decimal.Decimal `json:"share_percent"`
	FlatFees     []Fee           `json:"flat_fees"`
	CustomFees   []Fee           `json:"custom_fees"`
	LinkedAt     time.Time       `json:"linked_at"`
	LinkedBy     string          `json:"linked_by"`
}

// Fee is a single charge line. Flat fees are named by an enums.FeeKind.
type Fee struct {
	Name          string              `json:"name"`
	Amount        decimal.Decimal     `json:"amount"`
	Currency      enums.Currency      `json:"currency"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
}

// Fees returns flat fees followed by custom fees, preserving order.
func (v *VehicleLink) Fees() []Fee {
	if v == nil {
		return nil
	}
	out := make([]Fee, 0, len(v.FlatFees)+len(v.CustomFees))
	out = append(out, v.FlatFees...)
	out = append(out, v.CustomFees...)
	return out
}
