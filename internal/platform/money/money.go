// Package money handles monetary values as integer minor units.
//
// All prices, costs, and payment amounts in the system are stored and
// exchanged as int64 minor units (cents, kopecks) of the installation
// currency. Floating point appears only at the display boundary.
package money

import (
	"fmt"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Amount is a monetary value in minor units of the installation currency.
type Amount int64

// Add returns a + b.
func (a Amount) Add(b Amount) Amount { return a + b }

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount { return a - b }

// MulQty returns the amount multiplied by a line quantity.
func (a Amount) MulQty(qty int64) Amount { return a * Amount(qty) }

// PercentOf returns pct percent of the amount, rounded half away from
// zero on minor units. Discounts and margins in the system use whole
// percent values.
func (a Amount) PercentOf(pct int64) Amount {
	product := int64(a) * pct
	if product >= 0 {
		return Amount((product + 50) / 100)
	}
	return Amount((product - 50) / 100)
}

// IsNegative reports whether the amount is below zero.
func (a Amount) IsNegative() bool { return a < 0 }

// MarginPercent returns the margin of price over cost in whole percent,
// rounded half away from zero. The second return is false when cost is
// zero and no margin can be derived.
func MarginPercent(cost, price Amount) (int64, bool) {
	if cost == 0 {
		return 0, false
	}
	diff := int64(price) - int64(cost)
	product := diff * 100
	if product >= 0 {
		return (product + int64(cost)/2) / int64(cost), true
	}
	return (product - int64(cost)/2) / int64(cost), true
}

// Formatter renders amounts for humans in a fixed ISO 4217 currency.
type Formatter struct {
	unit    currency.Unit
	printer *message.Printer
	digits  int
	scale   int64
}

// NewFormatter returns a formatter for the given ISO 4217 currency code.
func NewFormatter(code string) (*Formatter, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("parse currency %q: %w", code, err)
	}
	digits, _ := currency.Standard.Rounding(unit)
	scale := int64(1)
	for i := 0; i < digits; i++ {
		scale *= 10
	}
	return &Formatter{
		unit:    unit,
		printer: message.NewPrinter(language.English),
		digits:  digits,
		scale:   scale,
	}, nil
}

// Currency returns the ISO 4217 code the formatter renders.
func (f *Formatter) Currency() string { return f.unit.String() }

// Format renders the amount with digit grouping and the currency code,
// e.g. "1,234.50 USD".
func (f *Formatter) Format(a Amount) string {
	major := float64(a) / float64(f.scale)
	return f.printer.Sprintf("%v %v", number.Decimal(major, number.Scale(f.digits)), f.unit)
}
