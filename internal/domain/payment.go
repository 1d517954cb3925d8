package domain

import "github.com/shopspring/decimal"

type PaymentStatus string

const (
	PaymentPending        PaymentStatus = "PENDING"
	PaymentCommittedToCOD PaymentStatus = "COMMITTED_TO_COD"
	PaymentPaidOnline     PaymentStatus = "PAID_ONLINE"
	PaymentFailed         PaymentStatus = "FAILED"
)

// CommitCashOnDelivery moves a pending member to CommittedToCOD and adds amount
// to the cart's cash-on-delivery portion.
func (c TeamCart) CommitCashOnDelivery(userID string, amount decimal.Decimal) (TeamCart, error) {
	m, ok := c.Members[userID]
	if !ok || m.PaymentStatus != PaymentPending {
		return c, ErrNoChange
	}
	m.PaymentStatus = PaymentCommittedToCOD
	m.CommittedAmount = amount
	m.OnlineTransactionID = nil
	c = c.WithMember(m)
	c.CashOnDeliveryPortion = c.CashOnDeliveryPortion.Add(amount)
	return c, nil
}

func (c TeamCart) RecordOnlinePaymentSuccess(userID string, amount decimal.Decimal, transactionID string) (TeamCart, error) {
	m, ok := c.Members[userID]
	if !ok || m.PaymentStatus != PaymentPending {
		return c, ErrNoChange
	}
	m.PaymentStatus = PaymentPaidOnline
	m.CommittedAmount = amount
	m.OnlineTransactionID = &transactionID
	return c.WithMember(m), nil
}

// RecordOnlinePaymentFailure marks the member Failed. A failure never keeps a
// partial commitment: the amount goes back to zero and the transaction id is dropped.
func (c TeamCart) RecordOnlinePaymentFailure(userID string) (TeamCart, error) {
	m, ok := c.Members[userID]
	if !ok {
		return c, ErrNoChange
	}
	if m.PaymentStatus != PaymentPending && m.PaymentStatus != PaymentPaidOnline {
		return c, ErrNoChange
	}
	m.PaymentStatus = PaymentFailed
	m.CommittedAmount = decimal.Zero
	m.OnlineTransactionID = nil
	return c.WithMember(m), nil
}
