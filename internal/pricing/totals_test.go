package pricing

import (
	"math"
	"testing"

	"github.com/diewo77/crm-pricing/internal/models"
)

func TestQuoteTotals_Empty(t *testing.T) {
	got := QuoteTotals(nil)
	if got != (Totals{}) {
		t.Fatalf("QuoteTotals(nil) = %+v, want all zeros", got)
	}
}

func TestQuoteTotals_Sums(t *testing.T) {
	items := []models.QuoteLineItem{
		{SubtotalBeforeDiscount: 24000, AppliedDiscountAmount: 2400, LineSubtotal: 21600, LineVATAmount: 1080, LineGrandTotal: 22680},
		{SubtotalBeforeDiscount: 12000, AppliedDiscountAmount: 0, LineSubtotal: 12000, LineVATAmount: 600, LineGrandTotal: 12600},
	}
	got := QuoteTotals(items)
	if got.Subtotal != 36000 {
		t.Errorf("Subtotal = %v, want 36000", got.Subtotal)
	}
	if got.OverallDiscountAmount != 2400 {
		t.Errorf("OverallDiscountAmount = %v, want 2400", got.OverallDiscountAmount)
	}
	if got.TaxAmount != 1680 {
		t.Errorf("TaxAmount = %v, want 1680", got.TaxAmount)
	}
	if got.TotalAmount != 35280 {
		t.Errorf("TotalAmount = %v, want 35280", got.TotalAmount)
	}
}

func TestQuoteTotals_AggregationIdentity(t *testing.T) {
	// sum(line_subtotal) + sum(line_vat) == sum(line_grand_total) whenever
	// the inputs come out of the calculator.
	lookup := welderLookup(
		[]models.CostComponent{
			{ID: 1, Name: "Housing", Value: 133.37, CalculationMethod: models.CalculationFlat, Periodicity: models.PeriodicityMonthly, VATApplicable: true, IsActive: true},
		},
		nil,
	)
	jp := lookup.JobProfiles[1]
	jp.DefaultComponentIDs = []uint{1}
	jp.BaseCost = 1234.56
	lookup.JobProfiles[1] = jp

	var items []models.QuoteLineItem
	for qty := 1; qty <= 5; qty++ {
		li := welderItem()
		li.Quantity = qty
		li.ContractDuration = qty * 7
		li.ManualDiscountPercentage = float64(qty) * 3.3
		li.LineDiscountStatus = models.DiscountStatusApproved
		items = append(items, CalculateLineItem(li, models.Quote{}, 5, lookup))
	}

	totals := QuoteTotals(items)
	if diff := math.Abs(totals.Subtotal - totals.OverallDiscountAmount + totals.TaxAmount - totals.TotalAmount); diff > 0.05 {
		t.Errorf("subtotal - discount + tax = %v, total = %v (diff %v)",
			totals.Subtotal-totals.OverallDiscountAmount+totals.TaxAmount, totals.TotalAmount, diff)
	}
	var sumSub, sumVAT, sumGrand float64
	for _, li := range items {
		sumSub += li.LineSubtotal
		sumVAT += li.LineVATAmount
		sumGrand += li.LineGrandTotal
	}
	if diff := math.Abs(sumSub + sumVAT - sumGrand); diff > 0.05 {
		t.Errorf("sum(line_subtotal)+sum(line_vat) = %v, sum(line_grand_total) = %v", sumSub+sumVAT, sumGrand)
	}
}
