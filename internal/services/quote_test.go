package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/crm-pricing/internal/models"
)

func TestCreate_SequentialNumbering(t *testing.T) {
	db := setupServiceTestDB(t)
	seller, _, _, _, _ := seedPricingFixtures(t, db)
	quotes, _, _ := newServices(db)

	year := time.Now().Year()
	for i := 1; i <= 3; i++ {
		q, err := quotes.Create(seller.ID, 5, nil)
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		want := fmt.Sprintf("Q-%d-%04d", year, i)
		if q.Number != want {
			t.Errorf("number = %q, want %q", q.Number, want)
		}
		if q.Status != models.QuoteStatusDraft {
			t.Errorf("status = %q, want draft", q.Status)
		}
	}
}

func TestRecalculate_Idempotent(t *testing.T) {
	db := setupServiceTestDB(t)
	seller, _, _, profile, nat := seedPricingFixtures(t, db)
	quotes, _, _ := newServices(db)
	q := quoteWithItem(t, quotes, seller, profile, nat)

	first := q.TotalAmount
	if first != 25200 {
		t.Fatalf("total after first calc = %v, want 25200", first)
	}
	if err := quotes.Recalculate(q); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if q.TotalAmount != first {
		t.Errorf("total drifted on recalculation: %v then %v", first, q.TotalAmount)
	}
	if len(q.LineItems[0].CostBreakdown) == 0 {
		t.Error("cost breakdown must survive recalculation")
	}
}

func TestUpdateLineItem_RecalculatesQuantity(t *testing.T) {
	db := setupServiceTestDB(t)
	seller, _, _, profile, nat := seedPricingFixtures(t, db)
	quotes, _, _ := newServices(db)
	q := quoteWithItem(t, quotes, seller, profile, nat)

	qty := 5
	q, err := quotes.UpdateLineItem(q.ID, q.LineItems[0].ID, LineItemUpdate{Quantity: &qty}, seller)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	// 1000 × 5 × 12 = 60000 + 5% VAT
	if q.TotalAmount != 63000 {
		t.Errorf("total = %v, want 63000", q.TotalAmount)
	}
}

func TestDeleteLineItem_RezeroesTotals(t *testing.T) {
	db := setupServiceTestDB(t)
	seller, _, _, profile, nat := seedPricingFixtures(t, db)
	quotes, _, _ := newServices(db)
	q := quoteWithItem(t, quotes, seller, profile, nat)

	q, err := quotes.DeleteLineItem(q.ID, q.LineItems[0].ID, seller)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(q.LineItems) != 0 {
		t.Fatalf("line items = %d, want 0", len(q.LineItems))
	}
	if q.TotalAmount != 0 || q.Subtotal != 0 {
		t.Errorf("totals = %v/%v, want 0/0", q.Subtotal, q.TotalAmount)
	}
}

func TestSend_OnlyFromDraft(t *testing.T) {
	db := setupServiceTestDB(t)
	seller, _, _, profile, nat := seedPricingFixtures(t, db)
	quotes, _, _ := newServices(db)
	q := quoteWithItem(t, quotes, seller, profile, nat)

	q, err := quotes.Send(q.ID, seller)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if q.Status != models.QuoteStatusSent {
		t.Fatalf("status = %q, want sent", q.Status)
	}
	if _, err := quotes.Send(q.ID, seller); err != ErrQuoteNotSendable {
		t.Fatalf("double send: err = %v, want ErrQuoteNotSendable", err)
	}
}

func TestAuditTrail_CapturesLineItemLifecycle(t *testing.T) {
	db := setupServiceTestDB(t)
	seller, _, _, profile, nat := seedPricingFixtures(t, db)
	quotes, _, audit := newServices(db)
	q := quoteWithItem(t, quotes, seller, profile, nat)
	itemID := q.LineItems[0].ID

	qty := 3
	if _, err := quotes.UpdateLineItem(q.ID, itemID, LineItemUpdate{Quantity: &qty}, seller); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := quotes.DeleteLineItem(q.ID, itemID, seller); err != nil {
		t.Fatalf("delete: %v", err)
	}

	entries, err := audit.List(EntityQuoteLineItem, itemID, 50)
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	var actions []string
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	got := strings.Join(actions, ",")
	// Newest first.
	if got != "line_item_deleted,line_item_updated,line_item_added" {
		t.Errorf("audit actions = %q", got)
	}
}
