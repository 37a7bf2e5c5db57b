package policy

import (
	"context"

	"github.com/diewo77/crm-pricing/gate"
	"github.com/diewo77/crm-pricing/internal/models"
)

// Ownable is implemented by resources that belong to a user.
type Ownable interface {
	GetUserID() uint
}

// OwnershipPolicy allows access only to the resource's owner. Approval
// decisions are the exception: the owner asked for them, someone else
// decides them, so ActionApprove skips the ownership check.
type OwnershipPolicy struct{}

func NewOwnershipPolicy() *OwnershipPolicy {
	return &OwnershipPolicy{}
}

// Can checks ownership. For list/create (resource nil) the role permission
// alone decides. Resources that do not implement Ownable are denied.
func (p *OwnershipPolicy) Can(_ context.Context, userID uint, action gate.Action, resource any) bool {
	if resource == nil {
		return true
	}
	if action == gate.ActionApprove {
		return true
	}
	ownable, ok := resource.(Ownable)
	if !ok {
		return false
	}
	return ownable.GetUserID() == userID
}

// CanDecideOverallDiscount reports whether the user may approve or reject
// the quote's pending overall discount: the user's role must be the one the
// request named.
func CanDecideOverallDiscount(user models.User, q *models.Quote) bool {
	if q.DiscountStatus != models.DiscountStatusPending || q.RequiredApproverRoleID == nil {
		return false
	}
	return user.RoleID != nil && *user.RoleID == *q.RequiredApproverRoleID
}

// CanDecideLineDiscount reports whether the user may decide a pending line
// item discount. The required role lives on the pending approval request
// for that line item.
func CanDecideLineDiscount(user models.User, li *models.QuoteLineItem, pending *models.ApprovalRequest) bool {
	if li.LineDiscountStatus != models.DiscountStatusPending || pending == nil {
		return false
	}
	return user.RoleID != nil && *user.RoleID == pending.RequiredRoleID
}
