package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/diewo77/crm-pricing/internal/models"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Role{}, &models.User{}, &models.Nationality{}, &models.JobProfile{},
		&models.CostComponent{}, &models.PricingRule{}, &models.Quote{},
		&models.QuoteLineItem{}, &models.AuditLog{}, &models.ApprovalRequest{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// seedPricingFixtures creates a role, two users (a seller with 10%/5%
// self-approval limits and a manager), a nationality, and a 1000/month job
// profile.
func seedPricingFixtures(t *testing.T, db *gorm.DB) (seller, manager models.User, role models.Role, profile models.JobProfile, nat models.Nationality) {
	t.Helper()
	role = models.Role{Name: "sales_manager"}
	if err := db.Create(&role).Error; err != nil {
		t.Fatalf("role: %v", err)
	}
	seller = models.User{Email: "seller@test", Password: "x", Name: "Seller",
		MaxSelfApproveOverallDiscountPercent: 10, MaxSelfApproveLineDiscountPercent: 5}
	if err := db.Create(&seller).Error; err != nil {
		t.Fatalf("seller: %v", err)
	}
	manager = models.User{Email: "manager@test", Password: "x", Name: "Manager", RoleID: &role.ID,
		MaxSelfApproveOverallDiscountPercent: 50, MaxSelfApproveLineDiscountPercent: 50}
	if err := db.Create(&manager).Error; err != nil {
		t.Fatalf("manager: %v", err)
	}
	nat = models.Nationality{Name: "Filipino"}
	if err := db.Create(&nat).Error; err != nil {
		t.Fatalf("nationality: %v", err)
	}
	profile = models.JobProfile{JobTitle: "Welder", BaseCost: 1000, IsActive: true}
	if err := db.Create(&profile).Error; err != nil {
		t.Fatalf("profile: %v", err)
	}
	return
}

func newServices(db *gorm.DB) (*QuoteService, *DiscountService, *AuditService) {
	audit := NewAuditService(db)
	quotes := NewQuoteService(db, audit)
	discounts := NewDiscountService(db, quotes, audit, NewDBNotifier(db))
	return quotes, discounts, audit
}

// quoteWithItem builds a 1000/month × 2 × 12 quote at 5% VAT.
func quoteWithItem(t *testing.T, quotes *QuoteService, seller models.User, profile models.JobProfile, nat models.Nationality) *models.Quote {
	t.Helper()
	q, err := quotes.Create(seller.ID, 5, nil)
	if err != nil {
		t.Fatalf("create quote: %v", err)
	}
	q, err = quotes.AddLineItem(q.ID, LineItemInput{
		JobProfileID: profile.ID, NationalityID: nat.ID, Quantity: 2, ContractDuration: 12,
	}, seller)
	if err != nil {
		t.Fatalf("add line item: %v", err)
	}
	return q
}

func TestRequestOverall_SelfApprovalBoundary(t *testing.T) {
	db := setupServiceTestDB(t)
	seller, _, role, profile, nat := seedPricingFixtures(t, db)
	quotes, discounts, _ := newServices(db)

	// Exactly at the threshold: self-approves.
	q := quoteWithItem(t, quotes, seller, profile, nat)
	out, err := discounts.RequestOverall(q.ID, 10, "year-end deal", nil, seller)
	if err != nil {
		t.Fatalf("request at threshold: %v", err)
	}
	if !out.SelfApproved {
		t.Fatal("requesting exactly the threshold must self-approve")
	}
	if out.Quote.DiscountStatus != models.DiscountStatusApproved {
		t.Fatalf("status = %s, want approved", out.Quote.DiscountStatus)
	}
	if len(out.Quote.OverallDiscountAppliedToItems) != 1 {
		t.Fatalf("applied items = %v, want the one current line item", out.Quote.OverallDiscountAppliedToItems)
	}
	if !out.Quote.LineItems[0].EligibleForOverallDiscount {
		t.Fatal("eligibility stamp missing after self-approval")
	}
	// 24000 - 10% = 21600 + 5% VAT
	if out.Quote.TotalAmount != 22680 {
		t.Errorf("TotalAmount = %v, want 22680", out.Quote.TotalAmount)
	}

	// Threshold + 0.1: pending approval.
	q2 := quoteWithItem(t, quotes, seller, profile, nat)
	out2, err := discounts.RequestOverall(q2.ID, 10.1, "needs sign-off", &role.ID, seller)
	if err != nil {
		t.Fatalf("request above threshold: %v", err)
	}
	if out2.SelfApproved {
		t.Fatal("threshold + 0.1 must not self-approve")
	}
	if out2.Quote.DiscountStatus != models.DiscountStatusPending {
		t.Fatalf("status = %s, want pending_approval", out2.Quote.DiscountStatus)
	}
	if out2.Quote.LineItems[0].EligibleForOverallDiscount {
		t.Fatal("eligibility stamping must be deferred until approval")
	}
	if out2.Quote.OverallDiscountAmount != 0 {
		t.Errorf("pending discount must not apply, got %v", out2.Quote.OverallDiscountAmount)
	}
	var reqCount int64
	db.Model(&models.ApprovalRequest{}).Where("entity_type = ? AND entity_id = ?", EntityQuote, q2.ID).Count(&reqCount)
	if reqCount != 1 {
		t.Errorf("approval requests = %d, want 1", reqCount)
	}
}

func TestRequestOverall_AboveThresholdRequiresRole(t *testing.T) {
	db := setupServiceTestDB(t)
	seller, _, _, profile, nat := seedPricingFixtures(t, db)
	quotes, discounts, _ := newServices(db)
	q := quoteWithItem(t, quotes, seller, profile, nat)

	if _, err := discounts.RequestOverall(q.ID, 25, "", nil, seller); !errors.Is(err, ErrApproverRoleRequired) {
		t.Fatalf("err = %v, want ErrApproverRoleRequired", err)
	}
}

func TestOverallApproval_StampsAndEligibilityIsolation(t *testing.T) {
	db := setupServiceTestDB(t)
	seller, manager, role, profile, nat := seedPricingFixtures(t, db)
	quotes, discounts, _ := newServices(db)
	q := quoteWithItem(t, quotes, seller, profile, nat)
	firstItemID := q.LineItems[0].ID

	if _, err := discounts.RequestOverall(q.ID, 20, "big deal", &role.ID, seller); err != nil {
		t.Fatalf("request: %v", err)
	}
	q, err := discounts.ApproveOverall(q.ID, manager)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if q.DiscountStatus != models.DiscountStatusApproved {
		t.Fatalf("status = %s, want approved", q.DiscountStatus)
	}
	if len(q.OverallDiscountAppliedToItems) != 1 || q.OverallDiscountAppliedToItems[0] != firstItemID {
		t.Fatalf("applied items = %v, want [%d]", q.OverallDiscountAppliedToItems, firstItemID)
	}
	if q.LineItems[0].EffectiveDiscountPercentage != 20 {
		t.Errorf("effective discount = %v, want 20", q.LineItems[0].EffectiveDiscountPercentage)
	}

	// A line item added after approval must not inherit the discount and the
	// frozen id set must not grow.
	q, err = quotes.AddLineItem(q.ID, LineItemInput{JobProfileID: profile.ID, NationalityID: nat.ID, Quantity: 1, ContractDuration: 12}, seller)
	if err != nil {
		t.Fatalf("add second item: %v", err)
	}
	if len(q.OverallDiscountAppliedToItems) != 1 {
		t.Fatalf("applied items grew after approval: %v", q.OverallDiscountAppliedToItems)
	}
	late := q.LineItems[1]
	if late.EligibleForOverallDiscount {
		t.Fatal("late line item must not be eligible")
	}
	if late.EffectiveDiscountPercentage != 0 {
		t.Errorf("late item effective discount = %v, want 0", late.EffectiveDiscountPercentage)
	}
}

func TestOverallRejection_PercentageRetainedButInert(t *testing.T) {
	db := setupServiceTestDB(t)
	seller, manager, role, profile, nat := seedPricingFixtures(t, db)
	quotes, discounts, _ := newServices(db)
	q := quoteWithItem(t, quotes, seller, profile, nat)

	if _, err := discounts.RequestOverall(q.ID, 30, "", &role.ID, seller); err != nil {
		t.Fatalf("request: %v", err)
	}
	q, err := discounts.RejectOverall(q.ID, manager)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if q.DiscountStatus != models.DiscountStatusRejected {
		t.Fatalf("status = %s, want rejected", q.DiscountStatus)
	}
	if q.OverallDiscountPercentage != 30 {
		t.Errorf("percentage = %v, want 30 retained for visibility", q.OverallDiscountPercentage)
	}
	if q.OverallDiscountAmount != 0 {
		t.Errorf("rejected discount must not apply, got %v", q.OverallDiscountAmount)
	}
	if q.LineItems[0].EligibleForOverallDiscount {
		t.Error("rejection must not stamp eligibility")
	}
}

func TestCancelOverall_ResetsEverything(t *testing.T) {
	db := setupServiceTestDB(t)
	seller, _, role, profile, nat := seedPricingFixtures(t, db)
	quotes, discounts, _ := newServices(db)
	q := quoteWithItem(t, quotes, seller, profile, nat)

	if _, err := discounts.RequestOverall(q.ID, 30, "notes", &role.ID, seller); err != nil {
		t.Fatalf("request: %v", err)
	}
	q, err := discounts.CancelOverall(q.ID, seller)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if q.DiscountStatus != models.DiscountStatusNone {
		t.Fatalf("status = %s, want none", q.DiscountStatus)
	}
	if q.OverallDiscountPercentage != 0 || q.DiscountRequestNotes != "" || q.RequiredApproverRoleID != nil {
		t.Errorf("cancel did not reset request fields: %+v", q)
	}
	if len(q.OverallDiscountAppliedToItems) != 0 {
		t.Errorf("applied items = %v, want empty", q.OverallDiscountAppliedToItems)
	}
	if q.Status != models.QuoteStatusDraft {
		t.Errorf("quote status = %s, want draft after cancellation", q.Status)
	}
	if q.LineItems[0].EffectiveDiscountPercentage != 0 {
		t.Errorf("effective discount = %v, want 0 after cancel", q.LineItems[0].EffectiveDiscountPercentage)
	}

	// Cancelling again is an invalid-state error.
	if _, err := discounts.CancelOverall(q.ID, seller); !errors.Is(err, ErrInvalidDiscountState) {
		t.Fatalf("err = %v, want ErrInvalidDiscountState", err)
	}
}

func TestDecideOverall_RequiresPending(t *testing.T) {
	db := setupServiceTestDB(t)
	seller, manager, _, profile, nat := seedPricingFixtures(t, db)
	quotes, discounts, _ := newServices(db)
	q := quoteWithItem(t, quotes, seller, profile, nat)

	if _, err := discounts.ApproveOverall(q.ID, manager); !errors.Is(err, ErrInvalidDiscountState) {
		t.Fatalf("approve err = %v, want ErrInvalidDiscountState", err)
	}
	if _, err := discounts.RejectOverall(q.ID, manager); !errors.Is(err, ErrInvalidDiscountState) {
		t.Fatalf("reject err = %v, want ErrInvalidDiscountState", err)
	}
}

func TestLineDiscount_FlowAndPrecedence(t *testing.T) {
	db := setupServiceTestDB(t)
	seller, _, role, profile, nat := seedPricingFixtures(t, db)
	quotes, discounts, _ := newServices(db)
	q := quoteWithItem(t, quotes, seller, profile, nat)
	itemID := q.LineItems[0].ID

	// Self-approve an overall 20% first.
	if _, err := discounts.RequestOverall(q.ID, 10, "", nil, seller); err != nil {
		t.Fatalf("overall: %v", err)
	}

	// Line discount at the line threshold self-approves and takes precedence.
	out, err := discounts.RequestLine(q.ID, itemID, 5, "line deal", &role.ID, seller)
	if err != nil {
		t.Fatalf("request line: %v", err)
	}
	if !out.SelfApproved {
		t.Fatal("line discount at threshold must self-approve")
	}
	li := out.Quote.LineItems[0]
	if li.EffectiveDiscountPercentage != 5 {
		t.Fatalf("effective discount = %v, want 5 (individual wins over overall)", li.EffectiveDiscountPercentage)
	}

	// Cancel the line discount: effective discount falls back to nothing,
	// because cancellation also clears the overall eligibility stamp.
	q, err = discounts.CancelLine(q.ID, itemID, seller)
	if err != nil {
		t.Fatalf("cancel line: %v", err)
	}
	li = q.LineItems[0]
	if li.ManualDiscountPercentage != 0 || li.LineDiscountStatus != models.DiscountStatusNone {
		t.Fatalf("cancel did not reset line discount: %+v", li)
	}
	if li.EligibleForOverallDiscount {
		t.Fatal("line cancellation must clear the overall eligibility stamp")
	}
	if li.EffectiveDiscountPercentage != 0 {
		t.Errorf("effective discount = %v, want 0", li.EffectiveDiscountPercentage)
	}
}

func TestLineDiscount_PendingDrivesQuoteStatus(t *testing.T) {
	db := setupServiceTestDB(t)
	seller, manager, role, profile, nat := seedPricingFixtures(t, db)
	quotes, discounts, _ := newServices(db)
	q := quoteWithItem(t, quotes, seller, profile, nat)
	itemID := q.LineItems[0].ID

	out, err := discounts.RequestLine(q.ID, itemID, 15, "", &role.ID, seller)
	if err != nil {
		t.Fatalf("request line: %v", err)
	}
	if out.Quote.Status != models.QuoteStatusPendingApproval {
		t.Fatalf("quote status = %s, want pending_approval while a line discount pends", out.Quote.Status)
	}

	// Sending is blocked while pending.
	if _, err := quotes.Send(q.ID, seller); !errors.Is(err, ErrQuoteHasPendingDiscount) {
		t.Fatalf("send err = %v, want ErrQuoteHasPendingDiscount", err)
	}

	q, err = discounts.ApproveLine(q.ID, itemID, manager)
	if err != nil {
		t.Fatalf("approve line: %v", err)
	}
	if q.Status != models.QuoteStatusDraft {
		t.Fatalf("quote status = %s, want draft once nothing is pending", q.Status)
	}

	// Now sendable.
	q, err = quotes.Send(q.ID, seller)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if q.Status != models.QuoteStatusSent {
		t.Fatalf("quote status = %s, want sent", q.Status)
	}
}

func TestProtectedLineItem_EditsRejected(t *testing.T) {
	db := setupServiceTestDB(t)
	seller, _, _, profile, nat := seedPricingFixtures(t, db)
	quotes, discounts, _ := newServices(db)
	q := quoteWithItem(t, quotes, seller, profile, nat)
	itemID := q.LineItems[0].ID

	if _, err := discounts.RequestLine(q.ID, itemID, 5, "", nil, seller); err != nil {
		t.Fatalf("request line: %v", err)
	}

	qty := 10
	if _, err := quotes.UpdateLineItem(q.ID, itemID, LineItemUpdate{Quantity: &qty}, seller); !errors.Is(err, ErrLineItemProtected) {
		t.Fatalf("update err = %v, want ErrLineItemProtected", err)
	}
	if _, err := quotes.DeleteLineItem(q.ID, itemID, seller); !errors.Is(err, ErrLineItemProtected) {
		t.Fatalf("delete err = %v, want ErrLineItemProtected", err)
	}

	// Cancelling the discount unlocks the item.
	if _, err := discounts.CancelLine(q.ID, itemID, seller); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	q, err := quotes.UpdateLineItem(q.ID, itemID, LineItemUpdate{Quantity: &qty}, seller)
	if err != nil {
		t.Fatalf("update after cancel: %v", err)
	}
	if q.LineItems[0].Quantity != 10 {
		t.Fatalf("quantity = %d, want 10", q.LineItems[0].Quantity)
	}
}

type failingNotifier struct{}

func (failingNotifier) Dispatch(ApprovalDispatch) (uuid.UUID, error) {
	return uuid.Nil, errors.New("smtp relay down")
}

func TestRequestOverall_NotifyFailureIsWarningNotError(t *testing.T) {
	db := setupServiceTestDB(t)
	seller, _, role, profile, nat := seedPricingFixtures(t, db)
	audit := NewAuditService(db)
	quotes := NewQuoteService(db, audit)
	discounts := NewDiscountService(db, quotes, audit, failingNotifier{})
	q := quoteWithItem(t, quotes, seller, profile, nat)

	out, err := discounts.RequestOverall(q.ID, 30, "", &role.ID, seller)
	if err != nil {
		t.Fatalf("request must succeed even when dispatch fails: %v", err)
	}
	if out.NotifyErr == nil {
		t.Fatal("NotifyErr must report the failed dispatch")
	}
	// The discount is saved regardless.
	saved, err := quotes.Get(q.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if saved.DiscountStatus != models.DiscountStatusPending || saved.OverallDiscountPercentage != 30 {
		t.Fatalf("discount not saved: %+v", saved)
	}
}

func TestTransitions_AuditedOnce(t *testing.T) {
	db := setupServiceTestDB(t)
	seller, manager, role, profile, nat := seedPricingFixtures(t, db)
	quotes, discounts, audit := newServices(db)
	q := quoteWithItem(t, quotes, seller, profile, nat)

	if _, err := discounts.RequestOverall(q.ID, 30, "", &role.ID, seller); err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := discounts.ApproveOverall(q.ID, manager); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := discounts.CancelOverall(q.ID, seller); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	entries, err := audit.List(EntityQuote, q.ID, 50)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	counts := map[string]int{}
	for _, e := range entries {
		counts[e.Action]++
	}
	for _, action := range []string{"overall_discount_requested", "overall_discount_approved", "overall_discount_cancelled"} {
		if counts[action] != 1 {
			t.Errorf("audit entries for %s = %d, want exactly 1", action, counts[action])
		}
	}
}
