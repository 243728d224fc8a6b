package valueobject

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	USD Currency = "USD" // US Dollar
	EUR Currency = "EUR" // Euro
	GBP Currency = "GBP" // British Pound
	CHF Currency = "CHF" // Swiss Franc
	JPY Currency = "JPY" // Japanese Yen
	CNY Currency = "CNY" // Chinese Yuan
)

// MoneyPlaces is the number of decimal places used when printing and comparing amounts
const MoneyPlaces int32 = 2

// Money is a value object representing monetary amounts.
// It is immutable - all operations return new Money instances
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates a new Money with the specified amount and currency.
// An empty currency is allowed; such amounts print without a code.
func NewMoney(amount decimal.Decimal, currency Currency) Money {
	return Money{
		amount:   amount,
		currency: Currency(strings.ToUpper(strings.TrimSpace(string(currency)))),
	}
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// Add returns a new Money with the sum of both amounts.
// Returns error if currencies don't match
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot add money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Round returns a new Money rounded half away from zero to the given places
func (m Money) Round(places int32) Money {
	return Money{amount: m.amount.Round(places), currency: m.currency}
}

// EqualsAtPrecision compares both amounts after rounding to MoneyPlaces
func (m Money) EqualsAtPrecision(other Money) bool {
	return m.currency == other.currency &&
		m.amount.Round(MoneyPlaces).Equal(other.amount.Round(MoneyPlaces))
}

// String returns the printed form, e.g. "100.00 EUR"
func (m Money) String() string {
	return FormatMoney(m.amount, string(m.currency))
}

// MarshalJSON implements json.Marshaler
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}{
		Amount:   m.amount.StringFixed(MoneyPlaces),
		Currency: m.currency,
	})
}

// ErrNotNumeric is returned by ParseDecimal for values that cannot be read as a number
var ErrNotNumeric = errors.New("value is not numeric")

// ParseDecimal converts loosely typed input into a decimal.
// Accepted inputs are decimals, integers, floats, numeric strings and json.Number.
func ParseDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, ErrNotNumeric
	case decimal.Decimal:
		return n, nil
	case *decimal.Decimal:
		if n == nil {
			return decimal.Zero, ErrNotNumeric
		}
		return *n, nil
	case decimal.NullDecimal:
		if !n.Valid {
			return decimal.Zero, ErrNotNumeric
		}
		return n.Decimal, nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero, ErrNotNumeric
		}
		return decimal.NewFromFloat(n), nil
	case float32:
		f := float64(n)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero, ErrNotNumeric
		}
		return decimal.NewFromFloat32(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int32:
		return decimal.NewFromInt32(n), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case uint:
		return fromUint64(uint64(n)), nil
	case uint32:
		return fromUint64(uint64(n)), nil
	case uint64:
		return fromUint64(n), nil
	case json.Number:
		return decimal.NewFromString(n.String())
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		if err != nil {
			return decimal.Zero, ErrNotNumeric
		}
		return d, nil
	case Money:
		return n.amount, nil
	default:
		return decimal.Zero, ErrNotNumeric
	}
}

func fromUint64(n uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(n), 0)
}

// ToDecimal is ParseDecimal without the error: anything non-numeric becomes zero
func ToDecimal(v any) decimal.Decimal {
	d, err := ParseDecimal(v)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FormatAmount renders v with exactly two decimal places.
// Non-numeric input renders as "0.00".
func FormatAmount(v any) string {
	return ToDecimal(v).StringFixed(MoneyPlaces)
}

// FormatMoney renders v with two decimal places followed by the currency code, if any.
// It never fails: non-numeric input renders as zero.
func FormatMoney(v any, currency string) string {
	s := FormatAmount(v)
	if code := strings.ToUpper(strings.TrimSpace(currency)); code != "" {
		return s + " " + code
	}
	return s
}

// FormatQuantity renders a quantity without trailing zeros ("2", "1.5")
func FormatQuantity(v any) string {
	return ToDecimal(v).String()
}
