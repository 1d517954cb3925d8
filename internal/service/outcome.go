package service

import "errors"

var (
	ErrCartNotFound  = errors.New("team cart not found")
	errMissingCartID = errors.New("team cart document has no id")
)

// Outcome tells the caller what became of a mutation. Mutations never fail
// with an error; callers that do not care can ignore the outcome entirely.
type Outcome string

const (
	OutcomeCommitted            Outcome = "COMMITTED"
	OutcomeUnchanged            Outcome = "UNCHANGED"
	OutcomeNotFound             Outcome = "NOT_FOUND"
	OutcomeConcurrencyExhausted Outcome = "CONCURRENCY_EXHAUSTED"
	OutcomeCancelled            Outcome = "CANCELLED"
	OutcomeFailed               Outcome = "FAILED"
)

type Result struct {
	Outcome  Outcome `json:"outcome"`
	Attempts int     `json:"attempts"`
	Version  int64   `json:"version,omitempty"`
}

func (r Result) Applied() bool {
	return r.Outcome == OutcomeCommitted
}

type MutationKind string

const (
	KindCreated                 MutationKind = "created"
	KindDeleted                 MutationKind = "deleted"
	KindCompleted               MutationKind = "completed"
	KindMemberAdded             MutationKind = "member_added"
	KindItemAdded               MutationKind = "item_added"
	KindItemQuantityUpdated     MutationKind = "item_quantity_updated"
	KindItemRemoved             MutationKind = "item_removed"
	KindLocked                  MutationKind = "locked"
	KindTipApplied              MutationKind = "tip_applied"
	KindCouponApplied           MutationKind = "coupon_applied"
	KindCouponRemoved           MutationKind = "coupon_removed"
	KindCashOnDeliveryCommitted MutationKind = "cod_committed"
	KindOnlinePaymentSucceeded  MutationKind = "online_payment_succeeded"
	KindOnlinePaymentFailed     MutationKind = "online_payment_failed"
)
