package domain

import (
	"fmt"
	"strings"
)

type ManualDiscountType string

const (
	ManualDiscountPercent ManualDiscountType = "percent"
	ManualDiscountFixed   ManualDiscountType = "fixed"
)

// ManualDiscount is the operator-entered invoice discount applied last.
type ManualDiscount struct {
	Type  ManualDiscountType `json:"type"`
	Value float64            `json:"value"`
}

// Validate normalizes the type and rejects unknown kinds or negative values.
func (d *ManualDiscount) Validate() error {
	d.Type = ManualDiscountType(strings.ToLower(strings.TrimSpace(string(d.Type))))
	switch d.Type {
	case ManualDiscountPercent, ManualDiscountFixed:
	default:
		return fmt.Errorf("%w: discount type must be percent or fixed", ErrInvalidInput)
	}
	if d.Value < 0 {
		return fmt.Errorf("%w: discount value must not be negative", ErrInvalidInput)
	}
	return nil
}
