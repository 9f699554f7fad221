// Package pricing derives the layered totals of a sale. Layers apply in a
// fixed order: product promotion, member, manual. Each layer is based on the
// output of the previous one, never on the original subtotal.
package pricing

import (
	"bookstore-pos/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	zero    = decimal.Zero
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Breakdown holds every derived amount shown on the checkout panel and sent
// with the order. All amounts are whole đồng.
type Breakdown struct {
	OriginalSubtotal         int64   `json:"originalSubtotal"`
	DiscountedSubtotal       int64   `json:"discountedSubtotal"`
	ProductPromotionDiscount int64   `json:"productPromotionDiscount"`
	MemberRate               float64 `json:"memberRate"`
	MemberDiscount           int64   `json:"memberDiscountAmount"`
	AfterMember              int64   `json:"afterMember"`
	ManualDiscount           int64   `json:"manualDiscountAmount"`
	FinalTotal               int64   `json:"finalTotal"`
}

// Change is the amount to hand back for a cash payment. A negative result
// means the received amount does not cover the total.
func (b Breakdown) Change(received int64) int64 {
	return received - b.FinalTotal
}

// TotalDiscount sums the three discount layers.
func (b Breakdown) TotalDiscount() int64 {
	return b.ProductPromotionDiscount + b.MemberDiscount + b.ManualDiscount
}

// Compute derives the breakdown for the given lines. member and manual are
// optional. Rounding is half away from zero and happens once per layer.
func Compute(lines []domain.CartLineItem, member *domain.MemberInfo, manual *domain.ManualDiscount) Breakdown {
	original := zero
	discounted := zero
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		qty := decimal.NewFromInt(int64(line.Quantity))
		original = original.Add(decimal.NewFromInt(line.UnitPriceOriginal).Mul(qty))
		discounted = discounted.Add(PromotedUnitPrice(line.UnitPriceOriginal, line.PromotionValue).Mul(qty))
	}

	var b Breakdown
	b.OriginalSubtotal = original.IntPart()
	b.DiscountedSubtotal = discounted.IntPart()
	b.ProductPromotionDiscount = decimal.Max(zero, original.Sub(discounted)).IntPart()

	rate := 0.0
	if member != nil {
		rate = NormalizeRate(member.DiscountRate)
	}
	b.MemberRate = rate
	memberAmount := decimal.Min(discounted, discounted.Mul(decimal.NewFromFloat(rate))).Round(0)
	afterMember := decimal.Max(zero, discounted.Sub(memberAmount))
	b.MemberDiscount = memberAmount.IntPart()
	b.AfterMember = afterMember.IntPart()

	manualAmount := manualDiscount(afterMember, manual)
	b.ManualDiscount = manualAmount.IntPart()
	b.FinalTotal = decimal.Max(zero, afterMember.Sub(manualAmount).Round(0)).IntPart()
	return b
}

// PromotedUnitPrice applies a product promotion to one unit. Values up to 1
// are rates, larger values are fixed amounts. The result never goes below 0.
func PromotedUnitPrice(price int64, value float64) decimal.Decimal {
	p := decimal.NewFromInt(price)
	if value <= 0 {
		return p
	}
	v := decimal.NewFromFloat(value)
	if value <= 1 {
		p = p.Mul(one.Sub(v)).Round(0)
	} else {
		p = p.Sub(v).Round(0)
	}
	return decimal.Max(zero, p)
}

// NormalizeRate turns a member rate into a fraction. Rates above 1 are read
// as whole-number percents.
func NormalizeRate(rate float64) float64 {
	if rate <= 0 {
		return 0
	}
	if rate > 1 {
		return rate / 100
	}
	return rate
}

func manualDiscount(base decimal.Decimal, d *domain.ManualDiscount) decimal.Decimal {
	if d == nil || d.Value <= 0 {
		return zero
	}
	v := decimal.NewFromFloat(d.Value)
	switch d.Type {
	case domain.ManualDiscountPercent:
		return decimal.Min(base, base.Mul(v).Div(hundred)).Round(0)
	case domain.ManualDiscountFixed:
		return decimal.Min(base, v).Round(0)
	default:
		return zero
	}
}
