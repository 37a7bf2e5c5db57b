package pricing

import "github.com/diewo77/crm-pricing/internal/models"

// Totals are the quote-level aggregates over all line items.
type Totals struct {
	Subtotal              float64 `json:"subtotal"`
	OverallDiscountAmount float64 `json:"overall_discount_amount"`
	TaxAmount             float64 `json:"tax_amount"`
	TotalAmount           float64 `json:"total_amount"`
}

// QuoteTotals sums the computed line item fields. An empty list yields all
// zeros; there is no error case.
func QuoteTotals(items []models.QuoteLineItem) Totals {
	var t Totals
	for _, li := range items {
		t.Subtotal += li.SubtotalBeforeDiscount
		t.OverallDiscountAmount += li.AppliedDiscountAmount
		t.TaxAmount += li.LineVATAmount
		t.TotalAmount += li.LineGrandTotal
	}
	t.Subtotal = Round2(t.Subtotal)
	t.OverallDiscountAmount = Round2(t.OverallDiscountAmount)
	t.TaxAmount = Round2(t.TaxAmount)
	t.TotalAmount = Round2(t.TotalAmount)
	return t
}
