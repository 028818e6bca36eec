package quote

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestCalculateTotals(t *testing.T) {
	lines := []Line{
		{Quantity: 2, UnitPrice: d("250.00")},
		{Quantity: 1, UnitPrice: d("500.00")},
	}

	totals := CalculateTotals(lines, d("10"), d("15"))

	assert.Equal(t, "1000.00", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "100.00", totals.DiscountAmount.StringFixed(2))
	assert.Equal(t, "135.00", totals.TaxAmount.StringFixed(2))
	assert.Equal(t, "1035.00", totals.TotalAmount.StringFixed(2))
}

func TestCalculateTotalsDiscountAppliesBeforeTax(t *testing.T) {
	// 2x50 + 1x200 = 300, 5% discount -> 285 taxable, 15% tax -> 42.75
	lines := []Line{
		{Quantity: 2, UnitPrice: d("50.00")},
		{Quantity: 1, UnitPrice: d("200.00")},
	}

	totals := CalculateTotals(lines, d("5"), d("15"))

	assert.Equal(t, "300.00", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "15.00", totals.DiscountAmount.StringFixed(2))
	assert.Equal(t, "42.75", totals.TaxAmount.StringFixed(2))
	assert.Equal(t, "327.75", totals.TotalAmount.StringFixed(2))
}

func TestCalculateTotalsEmptyLines(t *testing.T) {
	totals := CalculateTotals(nil, d("10"), d("15"))

	assert.True(t, totals.Subtotal.IsZero())
	assert.True(t, totals.DiscountAmount.IsZero())
	assert.True(t, totals.TaxAmount.IsZero())
	assert.True(t, totals.TotalAmount.IsZero())
}

func TestCalculateTotalsRoundsHalfUp(t *testing.T) {
	// 3 * 33.335 = 100.005 -> 100.01 at 2dp
	lines := []Line{{Quantity: 3, UnitPrice: d("33.335")}}
	totals := CalculateTotals(lines, decimal.Zero, decimal.Zero)
	assert.Equal(t, "100.01", totals.Subtotal.StringFixed(2))
}

func TestCalculateTotalsIdempotent(t *testing.T) {
	lines := []Line{
		{Quantity: 7, UnitPrice: d("13.37")},
		{Quantity: 3, UnitPrice: d("99.99")},
	}
	first := CalculateTotals(lines, d("12.5"), d("15"))
	second := CalculateTotals(lines, d("12.5"), d("15"))
	assert.True(t, first.TotalAmount.Equal(second.TotalAmount))
	assert.True(t, first.TaxAmount.Equal(second.TaxAmount))
}

func TestLineTotal(t *testing.T) {
	assert.Equal(t, "299.97", LineTotal(3, d("99.99")).StringFixed(2))
}

func TestApprovalPolicyThresholds(t *testing.T) {
	policy := DefaultApprovalPolicy()

	required, reason := policy.ApprovalReason(d("9999.99"), d("19.99"))
	assert.False(t, required)
	assert.Empty(t, reason)

	// Thresholds are inclusive.
	required, reason = policy.ApprovalReason(d("10000.00"), d("0"))
	assert.True(t, required)
	assert.Contains(t, reason, "high value")

	required, reason = policy.ApprovalReason(d("100.00"), d("20.00"))
	assert.True(t, required)
	assert.Contains(t, reason, "high discount")

	required, reason = policy.ApprovalReason(d("15000.00"), d("25.00"))
	assert.True(t, required)
	assert.Contains(t, reason, "high value")
	assert.Contains(t, reason, "high discount")
	assert.Contains(t, reason, "; ")
}
