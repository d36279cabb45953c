// Package fx converts cost-line amounts into the settlement currency. The
// conversion is applied once per line, before any summation, using the rate
// keyed by the line's month.
package fx

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sharex-union/sharex/internal/refdata"
)

// ErrRateMissing indicates no exchange rate is configured for a pair/month.
var ErrRateMissing = errors.New("fx: exchange rate missing")

// Converter resolves period-keyed exchange rates into the settlement currency.
type Converter struct {
	currency string
	rates    map[string]decimal.Decimal
}

// NewConverter builds a converter for the settlement currency over the
// snapshot's rate table.
func NewConverter(currency string, rates map[string]decimal.Decimal) *Converter {
	return &Converter{currency: strings.ToUpper(strings.TrimSpace(currency)), rates: rates}
}

// Currency returns the settlement currency code.
func (c *Converter) Currency() string {
	return c.currency
}

// ToSettlement converts amount from the given currency using the rate for
// month. Amounts already in the settlement currency pass through unchanged.
func (c *Converter) ToSettlement(amount decimal.Decimal, currency, month string) (decimal.Decimal, error) {
	cur := strings.ToUpper(strings.TrimSpace(currency))
	if cur == "" || cur == c.currency {
		return amount, nil
	}
	rate, ok := c.rates[refdata.RateKey(cur, month)]
	if !ok || !rate.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: %s at %s", ErrRateMissing, cur+c.currency, month)
	}
	return amount.Mul(rate), nil
}
