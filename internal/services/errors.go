package services

import "errors"

// Sentinel errors surfaced by the quote and discount services. Handlers map
// them onto HTTP status codes; they are invalid-state rejections, not bugs.
var (
	// ErrInvalidDiscountState is returned when a transition is requested from
	// a state that does not allow it (e.g. approving a discount that is not
	// pending, or cancelling one that was never requested).
	ErrInvalidDiscountState = errors.New("discount is not in a state that allows this transition")

	// ErrApproverRoleRequired is returned when a discount exceeding the
	// actor's self-approval threshold is submitted without an approver role.
	ErrApproverRoleRequired = errors.New("an approver role is required for discounts above your self-approval limit")

	// ErrLineItemProtected is returned when a line item carrying an applied
	// discount is edited or deleted. The discount must be cancelled first.
	ErrLineItemProtected = errors.New("line item is protected by an applied discount")

	// ErrQuoteHasPendingDiscount is returned when a quote is sent while any
	// discount on it is still awaiting approval.
	ErrQuoteHasPendingDiscount = errors.New("quote has a discount pending approval")

	// ErrQuoteNotSendable is returned when a quote is sent from a status
	// other than draft.
	ErrQuoteNotSendable = errors.New("quote cannot be sent from its current status")
)
