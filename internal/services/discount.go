package services

import (
	"math"

	"github.com/diewo77/crm-pricing/internal/models"
	"gorm.io/gorm"
)

// DiscountService is the approval state machine for discounts, at both the
// overall-quote and line-item granularity:
//
//	none -> pending_approval -> {approved, rejected}
//	pending_approval | approved | rejected -> none (cancellation)
//
// A request at or below the actor's self-approval threshold approves
// immediately; above it, the discount waits for a member of the required
// approver role. Every transition produces exactly one audit entry and
// triggers a recalculation so effective discounts stay current.
type DiscountService struct {
	db       *gorm.DB
	quotes   *QuoteService
	audit    *AuditService
	notifier ApprovalNotifier
}

func NewDiscountService(db *gorm.DB, quotes *QuoteService, audit *AuditService, notifier ApprovalNotifier) *DiscountService {
	return &DiscountService{db: db, quotes: quotes, audit: audit, notifier: notifier}
}

// DiscountOutcome reports what a discount request did. NotifyErr is non-nil
// when the discount was saved but the approval dispatch failed; callers must
// surface that as a warning, distinct from a hard error.
type DiscountOutcome struct {
	Quote        *models.Quote
	SelfApproved bool
	NotifyErr    error
}

// clampPercent coerces an invalid requested percentage into the 0-100 range
// instead of rejecting it.
func clampPercent(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// overallSnapshot captures the discount fields that transitions change, for
// audit old/new values.
func overallSnapshot(q *models.Quote) map[string]any {
	return map[string]any{
		"overall_discount_percentage":       q.OverallDiscountPercentage,
		"discount_status":                   q.DiscountStatus,
		"overall_discount_applied_to_items": q.OverallDiscountAppliedToItems,
		"discount_request_notes":            q.DiscountRequestNotes,
	}
}

func lineSnapshot(li *models.QuoteLineItem) map[string]any {
	return map[string]any{
		"manual_discount_percentage":    li.ManualDiscountPercentage,
		"line_discount_status":          li.LineDiscountStatus,
		"eligible_for_overall_discount": li.EligibleForOverallDiscount,
	}
}

// stampOverallApproval performs the one-time eligibility stamp: every line
// item present right now becomes eligible and the id set is frozen. The set
// is a monotonic record of the approval moment, never recomputed from later
// line items.
func stampOverallApproval(q *models.Quote) {
	q.DiscountStatus = models.DiscountStatusApproved
	ids := make([]uint, 0, len(q.LineItems))
	for i := range q.LineItems {
		q.LineItems[i].EligibleForOverallDiscount = true
		ids = append(ids, q.LineItems[i].ID)
	}
	q.OverallDiscountAppliedToItems = ids
}

// RequestOverall submits an overall quote discount. At or below the actor's
// threshold it self-approves and stamps eligibility immediately; above it
// the quote goes to pending_approval and an approval request is dispatched
// to the given role.
func (s *DiscountService) RequestOverall(quoteID uint, pct float64, notes string, approverRoleID *uint, actor models.User) (*DiscountOutcome, error) {
	q, err := s.quotes.Get(quoteID)
	if err != nil {
		return nil, err
	}
	if q.DiscountStatus == models.DiscountStatusPending {
		return nil, ErrInvalidDiscountState
	}
	pct = clampPercent(pct)
	old := overallSnapshot(q)

	q.OverallDiscountPercentage = pct
	q.DiscountRequestNotes = notes
	out := &DiscountOutcome{Quote: q}
	action := "overall_discount_requested"

	if pct <= actor.MaxSelfApproveOverallDiscountPercent {
		stampOverallApproval(q)
		out.SelfApproved = true
		action = "overall_discount_self_approved"
	} else {
		if approverRoleID == nil {
			return nil, ErrApproverRoleRequired
		}
		q.DiscountStatus = models.DiscountStatusPending
		q.RequiredApproverRoleID = approverRoleID
	}
	deriveStatus(q)
	if err := s.quotes.Recalculate(q); err != nil {
		return nil, err
	}

	correlation := ""
	if q.DiscountStatus == models.DiscountStatusPending {
		reqID, nerr := s.notifier.Dispatch(ApprovalDispatch{
			EntityType:     EntityQuote,
			EntityID:       q.ID,
			RequestorID:    actor.ID,
			Notes:          notes,
			RequiredRoleID: *approverRoleID,
			Metadata:       map[string]any{"requested_percentage": pct},
		})
		if nerr != nil {
			out.NotifyErr = nerr
		} else {
			correlation = reqID.String()
		}
	}
	s.audit.Record(actor.ID, action, EntityQuote, q.ID, q.Number, old, overallSnapshot(q), correlation)
	return out, nil
}

// ApproveOverall moves a pending overall discount to approved and performs
// the same one-time eligibility stamp a self-approval would.
func (s *DiscountService) ApproveOverall(quoteID uint, actor models.User) (*models.Quote, error) {
	return s.decideOverall(quoteID, actor, true)
}

// RejectOverall moves a pending overall discount to rejected. The percentage
// stays visible but never applies.
func (s *DiscountService) RejectOverall(quoteID uint, actor models.User) (*models.Quote, error) {
	return s.decideOverall(quoteID, actor, false)
}

func (s *DiscountService) decideOverall(quoteID uint, actor models.User, approve bool) (*models.Quote, error) {
	q, err := s.quotes.Get(quoteID)
	if err != nil {
		return nil, err
	}
	if q.DiscountStatus != models.DiscountStatusPending {
		return nil, ErrInvalidDiscountState
	}
	old := overallSnapshot(q)
	action := "overall_discount_rejected"
	if approve {
		stampOverallApproval(q)
		action = "overall_discount_approved"
	} else {
		q.DiscountStatus = models.DiscountStatusRejected
	}
	deriveStatus(q)
	if err := s.quotes.Recalculate(q); err != nil {
		return nil, err
	}
	settleApprovalRequests(s.db, EntityQuote, q.ID, models.ApprovalRequestDecided, actor.ID)
	s.audit.Record(actor.ID, action, EntityQuote, q.ID, q.Number, old, overallSnapshot(q), "")
	return q, nil
}

// CancelOverall withdraws the overall discount: percentage back to zero,
// status to none, notes, approver role, the applied-items set and every
// eligibility stamp cleared. Cancelling a discount that was never requested
// is an invalid-state error.
func (s *DiscountService) CancelOverall(quoteID uint, actor models.User) (*models.Quote, error) {
	q, err := s.quotes.Get(quoteID)
	if err != nil {
		return nil, err
	}
	if q.DiscountStatus == models.DiscountStatusNone {
		return nil, ErrInvalidDiscountState
	}
	old := overallSnapshot(q)
	q.OverallDiscountPercentage = 0
	q.DiscountStatus = models.DiscountStatusNone
	q.DiscountRequestNotes = ""
	q.RequiredApproverRoleID = nil
	q.OverallDiscountAppliedToItems = nil
	for i := range q.LineItems {
		q.LineItems[i].EligibleForOverallDiscount = false
	}
	deriveStatus(q)
	if err := s.quotes.Recalculate(q); err != nil {
		return nil, err
	}
	settleApprovalRequests(s.db, EntityQuote, q.ID, models.ApprovalRequestWithdraw, actor.ID)
	s.audit.Record(actor.ID, "overall_discount_cancelled", EntityQuote, q.ID, q.Number, old, overallSnapshot(q), "")
	return q, nil
}

// RequestLine submits an individual discount on one line item, against the
// actor's line-item self-approval threshold.
func (s *DiscountService) RequestLine(quoteID, itemID uint, pct float64, notes string, approverRoleID *uint, actor models.User) (*DiscountOutcome, error) {
	q, err := s.quotes.Get(quoteID)
	if err != nil {
		return nil, err
	}
	li := findLineItem(q, itemID)
	if li == nil {
		return nil, gorm.ErrRecordNotFound
	}
	if li.LineDiscountStatus == models.DiscountStatusPending {
		return nil, ErrInvalidDiscountState
	}
	pct = clampPercent(pct)
	old := lineSnapshot(li)

	li.ManualDiscountPercentage = pct
	li.LineDiscountNotes = notes
	out := &DiscountOutcome{Quote: q}
	action := "line_discount_requested"

	if pct <= actor.MaxSelfApproveLineDiscountPercent {
		li.LineDiscountStatus = models.DiscountStatusApproved
		out.SelfApproved = true
		action = "line_discount_self_approved"
	} else {
		if approverRoleID == nil {
			return nil, ErrApproverRoleRequired
		}
		li.LineDiscountStatus = models.DiscountStatusPending
	}
	deriveStatus(q)
	if err := s.quotes.Recalculate(q); err != nil {
		return nil, err
	}

	correlation := ""
	if li.LineDiscountStatus == models.DiscountStatusPending {
		reqID, nerr := s.notifier.Dispatch(ApprovalDispatch{
			EntityType:     EntityQuoteLineItem,
			EntityID:       li.ID,
			RequestorID:    actor.ID,
			Notes:          notes,
			RequiredRoleID: *approverRoleID,
			Metadata:       map[string]any{"requested_percentage": pct, "quote_id": q.ID},
		})
		if nerr != nil {
			out.NotifyErr = nerr
		} else {
			correlation = reqID.String()
		}
	}
	s.audit.Record(actor.ID, action, EntityQuoteLineItem, itemID, q.Number, old, lineSnapshot(li), correlation)
	return out, nil
}

// ApproveLine moves a pending line item discount to approved.
func (s *DiscountService) ApproveLine(quoteID, itemID uint, actor models.User) (*models.Quote, error) {
	return s.decideLine(quoteID, itemID, actor, true)
}

// RejectLine moves a pending line item discount to rejected.
func (s *DiscountService) RejectLine(quoteID, itemID uint, actor models.User) (*models.Quote, error) {
	return s.decideLine(quoteID, itemID, actor, false)
}

func (s *DiscountService) decideLine(quoteID, itemID uint, actor models.User, approve bool) (*models.Quote, error) {
	q, err := s.quotes.Get(quoteID)
	if err != nil {
		return nil, err
	}
	li := findLineItem(q, itemID)
	if li == nil {
		return nil, gorm.ErrRecordNotFound
	}
	if li.LineDiscountStatus != models.DiscountStatusPending {
		return nil, ErrInvalidDiscountState
	}
	old := lineSnapshot(li)
	action := "line_discount_rejected"
	if approve {
		li.LineDiscountStatus = models.DiscountStatusApproved
		action = "line_discount_approved"
	} else {
		li.LineDiscountStatus = models.DiscountStatusRejected
	}
	deriveStatus(q)
	if err := s.quotes.Recalculate(q); err != nil {
		return nil, err
	}
	settleApprovalRequests(s.db, EntityQuoteLineItem, itemID, models.ApprovalRequestDecided, actor.ID)
	s.audit.Record(actor.ID, action, EntityQuoteLineItem, itemID, q.Number, old, lineSnapshot(li), "")
	return q, nil
}

// CancelLine withdraws a line item discount, clearing its percentage, notes
// and overall-discount eligibility stamp.
func (s *DiscountService) CancelLine(quoteID, itemID uint, actor models.User) (*models.Quote, error) {
	q, err := s.quotes.Get(quoteID)
	if err != nil {
		return nil, err
	}
	li := findLineItem(q, itemID)
	if li == nil {
		return nil, gorm.ErrRecordNotFound
	}
	if li.LineDiscountStatus == models.DiscountStatusNone {
		return nil, ErrInvalidDiscountState
	}
	old := lineSnapshot(li)
	li.ManualDiscountPercentage = 0
	li.LineDiscountStatus = models.DiscountStatusNone
	li.LineDiscountNotes = ""
	li.EligibleForOverallDiscount = false
	deriveStatus(q)
	if err := s.quotes.Recalculate(q); err != nil {
		return nil, err
	}
	settleApprovalRequests(s.db, EntityQuoteLineItem, itemID, models.ApprovalRequestWithdraw, actor.ID)
	s.audit.Record(actor.ID, "line_discount_cancelled", EntityQuoteLineItem, itemID, q.Number, old, lineSnapshot(li), "")
	return q, nil
}
