package printing

import (
	"time"

	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// LineItem is one row of the item table
type LineItem struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

// NewLineItem creates a line item whose total is quantity x unit price rounded
// half away from zero to cents. Sign rules are left to Validate.
func NewLineItem(description string, quantity, unitPrice decimal.Decimal) LineItem {
	total := valueobject.NewMoney(quantity.Mul(unitPrice), "").Round(valueobject.MoneyPlaces)
	return LineItem{
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		LineTotal:   total.Amount(),
	}
}

// Validate checks the non-negativity rules of a line item
func (i LineItem) Validate() error {
	if i.Quantity.IsNegative() {
		return shared.NewDomainError(shared.CodeInvalidLineItem, "Quantity cannot be negative")
	}
	if i.UnitPrice.IsNegative() {
		return shared.NewDomainError(shared.CodeInvalidLineItem, "Unit price cannot be negative")
	}
	if i.LineTotal.IsNegative() {
		return shared.NewDomainError(shared.CodeInvalidLineItem, "Line total cannot be negative")
	}
	return nil
}

// Totals holds the summary amounts of a record
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// NewTotals builds totals where Total = Subtotal + Tax
func NewTotals(subtotal, tax decimal.Decimal) Totals {
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}

// IsBalanced reports whether subtotal + tax equals total at cent precision
func (t Totals) IsBalanced() bool {
	sum, err := valueobject.NewMoney(t.Subtotal, "").Add(valueobject.NewMoney(t.Tax, ""))
	return err == nil && sum.EqualsAtPrecision(valueobject.NewMoney(t.Total, ""))
}

// Validate checks that no amount is negative
func (t Totals) Validate() error {
	if t.Subtotal.IsNegative() || t.Tax.IsNegative() || t.Total.IsNegative() {
		return shared.NewDomainError(shared.CodeInvalidTotals, "Totals cannot be negative")
	}
	return nil
}

// MetadataField is one printed line of the record metadata block.
// Date keys carry Date, all others carry Text.
type MetadataField struct {
	Key  MetadataKey
	Date time.Time
	Text string
}
