package collectibles

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/branchledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/branchledger/pkg/errors"
)

// Line is one amount that may count toward a collectible total.
type Line struct {
	Amount   decimal.Decimal
	Currency string
	Include  bool
}

// Unconditional builds a line that always counts, such as a declared value.
func Unconditional(amount decimal.Decimal, currency string) Line {
	return Line{Amount: amount, Currency: currency, Include: true}
}

// Conditional builds a fee line that counts only when it is collected on delivery.
func Conditional(amount decimal.Decimal, currency string, method enums.PaymentMethod) Line {
	return Line{Amount: amount, Currency: currency, Include: method == enums.PaymentMethodCollect}
}

// Amount is the summed value for a single currency.
type Amount struct {
	Currency string          `json:"currency"`
	Value    decimal.Decimal `json:"amount"`
}

// Total holds per-currency sums in first-encountered order.
type Total struct {
	entries []Amount
}

// Aggregate sums contributing lines per currency without converting between
// currencies. A line contributes when Include is set and Amount is positive.
// Negative amounts are rejected outright.
func Aggregate(lines []Line) (Total, error) {
	var total Total
	for idx, line := range lines {
		if line.Amount.IsNegative() {
			return Total{}, pkgerrors.Newf(pkgerrors.CodeValidation, "line %d has a negative amount", idx).
				WithDetails(map[string]any{
					"line":     idx,
					"amount":   line.Amount.String(),
					"currency": normalizeCurrency(line.Currency),
				})
		}
		if !line.Include || !line.Amount.IsPositive() {
			continue
		}
		total.add(normalizeCurrency(line.Currency), line.Amount)
	}
	return total, nil
}

func (t *Total) add(currency string, value decimal.Decimal) {
	for idx := range t.entries {
		if t.entries[idx].Currency == currency {
			t.entries[idx].Value = t.entries[idx].Value.Add(value)
			return
		}
	}
	t.entries = append(t.entries, Amount{Currency: currency, Value: value})
}

// Entries returns a copy of the ordered per-currency amounts.
func (t Total) Entries() []Amount {
	out := make([]Amount, len(t.entries))
	copy(out, t.entries)
	return out
}

// Get returns the amount for the currency and whether it was present.
func (t Total) Get(currency string) (decimal.Decimal, bool) {
	code := normalizeCurrency(currency)
	for _, entry := range t.entries {
		if entry.Currency == code {
			return entry.Value, true
		}
	}
	return decimal.Zero, false
}

func (t Total) IsZero() bool {
	return len(t.entries) == 0
}

// Currencies lists the currency codes in output order.
func (t Total) Currencies() []string {
	out := make([]string, 0, len(t.entries))
	for _, entry := range t.entries {
		out = append(out, entry.Currency)
	}
	return out
}

// Map returns the totals keyed by currency. Key order of the map carries no
// meaning; use Entries when order matters.
func (t Total) Map() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(t.entries))
	for _, entry := range t.entries {
		out[entry.Currency] = entry.Value
	}
	return out
}

// String renders "<amount> <currency>" segments joined by " + ". An empty
// total renders as "0 USD".
func (t Total) String() string {
	if len(t.entries) == 0 {
		return "0 " + enums.DefaultCurrency.String()
	}
	segments := make([]string, 0, len(t.entries))
	for _, entry := range t.entries {
		segments = append(segments, FormatAmount(entry.Value, entry.Currency)+" "+entry.Currency)
	}
	return strings.Join(segments, " + ")
}

// MarshalJSON encodes the ordered entries plus the display string.
func (t Total) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amounts []Amount `json:"amounts"`
		Display string   `json:"display"`
	}{
		Amounts: t.Entries(),
		Display: t.String(),
	})
}

// FormatAmount rounds to the currency's display precision and drops trailing zeros.
func FormatAmount(value decimal.Decimal, currency string) string {
	return value.Round(int32(currencyDecimals(currency))).String()
}

func normalizeCurrency(code string) string {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		return enums.DefaultCurrency.String()
	}
	return trimmed
}

func currencyDecimals(currency string) int {
	zeroDecimal := map[string]bool{
		"JPY": true,
		"KRW": true,
		"VND": true,
		"CLP": true,
		"IDR": true,
	}
	if zeroDecimal[strings.ToUpper(currency)] {
		return 0
	}
	return 2
}
