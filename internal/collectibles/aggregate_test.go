package collectibles

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/branchledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/branchledger/pkg/errors"
)

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name    string
		lines   []Line
		want    string
		entries []Amount
	}{
		{
			name:    "same currency sums",
			lines:   []Line{Unconditional(d("100"), "USD"), Unconditional(d("20"), "USD")},
			want:    "120 USD",
			entries: []Amount{{Currency: "USD", Value: d("120")}},
		},
		{
			name:  "first encountered order",
			lines: []Line{Unconditional(d("100"), "USD"), Unconditional(d("20"), "TRY")},
			want:  "100 USD + 20 TRY",
			entries: []Amount{
				{Currency: "USD", Value: d("100")},
				{Currency: "TRY", Value: d("20")},
			},
		},
		{
			name:  "order follows input not alphabet",
			lines: []Line{Unconditional(d("5"), "TRY"), Unconditional(d("7"), "EUR"), Unconditional(d("1"), "TRY")},
			want:  "6 TRY + 7 EUR",
			entries: []Amount{
				{Currency: "TRY", Value: d("6")},
				{Currency: "EUR", Value: d("7")},
			},
		},
		{
			name:    "prepaid excluded",
			lines:   []Line{Unconditional(d("100"), "USD"), {Amount: d("10"), Currency: "USD", Include: false}},
			want:    "100 USD",
			entries: []Amount{{Currency: "USD", Value: d("100")}},
		},
		{
			name:  "empty input",
			lines: nil,
			want:  "0 USD",
		},
		{
			name:  "zero amounts do not open a currency",
			lines: []Line{Unconditional(d("0"), "EUR"), Unconditional(d("3"), "GBP")},
			want:  "3 GBP",
			entries: []Amount{
				{Currency: "GBP", Value: d("3")},
			},
		},
		{
			name:  "currency codes normalized",
			lines: []Line{Unconditional(d("1.5"), " usd "), Unconditional(d("2.25"), ""), Unconditional(d("1"), "USD")},
			want:  "4.75 USD",
			entries: []Amount{
				{Currency: "USD", Value: d("4.75")},
			},
		},
		{
			name:  "exact decimal addition",
			lines: []Line{Unconditional(d("0.1"), "EUR"), Unconditional(d("0.2"), "EUR")},
			want:  "0.3 EUR",
			entries: []Amount{
				{Currency: "EUR", Value: d("0.3")},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, err := Aggregate(tt.lines)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := total.String(); got != tt.want {
				t.Fatalf("expected %q got %q", tt.want, got)
			}
			entries := total.Entries()
			if len(entries) != len(tt.entries) {
				t.Fatalf("expected %d entries got %d (%v)", len(tt.entries), len(entries), entries)
			}
			for idx, want := range tt.entries {
				if entries[idx].Currency != want.Currency || !entries[idx].Value.Equal(want.Value) {
					t.Fatalf("entry %d expected %s %s got %s %s", idx, want.Value, want.Currency, entries[idx].Value, entries[idx].Currency)
				}
			}
		})
	}
}

func TestAggregateRejectsNegativeAmount(t *testing.T) {
	_, err := Aggregate([]Line{
		Unconditional(d("10"), "USD"),
		{Amount: d("-1"), Currency: "USD", Include: false},
	})
	if err == nil {
		t.Fatal("expected negative amount to fail")
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	if !ok || details["line"] != 1 {
		t.Fatalf("expected details to name line 1, got %#v", pkgerrors.As(err).Details())
	}
}

func TestConditionalFollowsPaymentMethod(t *testing.T) {
	collect := Conditional(d("10"), "USD", enums.PaymentMethodCollect)
	prepaid := Conditional(d("10"), "USD", enums.PaymentMethodPrepaid)
	if !collect.Include {
		t.Fatalf("collect fees must be included")
	}
	if prepaid.Include {
		t.Fatalf("prepaid fees must be excluded")
	}
}

func TestTotalMapAndGet(t *testing.T) {
	total, err := Aggregate([]Line{Unconditional(d("100"), "USD"), Unconditional(d("20"), "TRY")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := total.Map()
	if len(m) != 2 || !m["USD"].Equal(d("100")) || !m["TRY"].Equal(d("20")) {
		t.Fatalf("unexpected map %v", m)
	}
	if v, ok := total.Get("try"); !ok || !v.Equal(d("20")) {
		t.Fatalf("expected TRY lookup to succeed, got %v %v", v, ok)
	}
	if _, ok := total.Get("EUR"); ok {
		t.Fatalf("EUR should be absent")
	}
	if got := total.Currencies(); len(got) != 2 || got[0] != "USD" || got[1] != "TRY" {
		t.Fatalf("unexpected currency order %v", got)
	}
}

func TestTotalMarshalJSONKeepsOrder(t *testing.T) {
	total, err := Aggregate([]Line{Unconditional(d("20"), "TRY"), Unconditional(d("100"), "USD")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, err := json.Marshal(total)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"amounts":[{"currency":"TRY","amount":"20"},{"currency":"USD","amount":"100"}],"display":"20 TRY + 100 USD"}`
	if string(raw) != want {
		t.Fatalf("expected %s got %s", want, raw)
	}
}

func TestFormatAmountRoundsToDisplayPrecision(t *testing.T) {
	if got := FormatAmount(d("10.005"), "USD"); got != "10.01" {
		t.Fatalf("expected 10.01 got %s", got)
	}
	if got := FormatAmount(d("1500.4"), "JPY"); got != "1500" {
		t.Fatalf("expected 1500 got %s", got)
	}
	if got := FormatAmount(d("120.00"), "EUR"); got != "120" {
		t.Fatalf("expected 120 got %s", got)
	}
}
