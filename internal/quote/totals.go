package quote

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Line is the pricing-relevant slice of a quote item.
type Line struct {
	Quantity  int
	UnitPrice decimal.Decimal
}

// Totals is the derived financial state of a quote. Every field is a pure
// function of the line set plus the quote-level discount and tax rate.
type Totals struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	TotalAmount    decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// round2 rounds to 2 decimal places with half-up semantics. decimal.Round is
// half-away-from-zero, which matches half-up for the non-negative amounts a
// quote produces.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// CalculateTotals computes the quote financials:
//
//	subtotal        = sum(quantity * unit_price)
//	discount_amount = subtotal * discount% / 100
//	tax_amount      = (subtotal - discount_amount) * tax% / 100
//	total           = subtotal - discount_amount + tax_amount
//
// All results are rounded to 2 decimal places. The computation is idempotent:
// the same lines, discount and tax always produce the same totals.
func CalculateTotals(lines []Line, discountPct, taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	subtotal = round2(subtotal)

	discount := round2(subtotal.Mul(discountPct).Div(hundred))
	taxable := subtotal.Sub(discount)
	tax := round2(taxable.Mul(taxRate).Div(hundred))

	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		TaxAmount:      tax,
		TotalAmount:    taxable.Add(tax),
	}
}

// LineTotal is quantity * unit_price rounded to 2 decimal places.
func LineTotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return round2(unitPrice.Mul(decimal.NewFromInt(int64(quantity))))
}

// ApprovalPolicy carries the configurable countersign thresholds.
type ApprovalPolicy struct {
	TotalThreshold    decimal.Decimal // total_amount at or above this needs approval
	DiscountThreshold decimal.Decimal // discount percentage at or above this needs approval
}

// DefaultApprovalPolicy returns the standard business thresholds.
func DefaultApprovalPolicy() ApprovalPolicy {
	return ApprovalPolicy{
		TotalThreshold:    decimal.NewFromInt(10000),
		DiscountThreshold: decimal.NewFromInt(20),
	}
}

// ApprovalReasons returns the reasons a quote needs a management countersign
// before it can be sent, or nil when no approval is required.
func (p ApprovalPolicy) ApprovalReasons(total, discountPct decimal.Decimal) []string {
	var reasons []string
	if total.GreaterThanOrEqual(p.TotalThreshold) {
		reasons = append(reasons, fmt.Sprintf("high value quote: $%s", total.StringFixed(2)))
	}
	if discountPct.GreaterThanOrEqual(p.DiscountThreshold) {
		reasons = append(reasons, fmt.Sprintf("high discount: %s%%", discountPct.StringFixed(2)))
	}
	return reasons
}

// ApprovalReason joins the reasons into the persisted approval_reason column.
func (p ApprovalPolicy) ApprovalReason(total, discountPct decimal.Decimal) (bool, string) {
	reasons := p.ApprovalReasons(total, discountPct)
	if len(reasons) == 0 {
		return false, ""
	}
	return true, strings.Join(reasons, "; ")
}
