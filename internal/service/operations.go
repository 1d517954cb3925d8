package service

import (
	"context"
	"time"

	"github.com/fjod/go_cart/teamcart-service/internal/domain"
	"github.com/shopspring/decimal"
)

func (s *TeamCartService) AddMember(ctx context.Context, cartID string, member domain.Member) Result {
	return s.mutate(ctx, cartID, mutation{kind: KindMemberAdded, apply: addMember(member)})
}

func (s *TeamCartService) AddItem(ctx context.Context, cartID string, item domain.Item) Result {
	return s.mutate(ctx, cartID, mutation{kind: KindItemAdded, recalc: true, apply: addItem(item, s.now())})
}

func (s *TeamCartService) UpdateItemQuantity(ctx context.Context, cartID, itemID string, quantity int) Result {
	return s.mutate(ctx, cartID, mutation{kind: KindItemQuantityUpdated, recalc: true, apply: updateItemQuantity(itemID, quantity)})
}

func (s *TeamCartService) RemoveItem(ctx context.Context, cartID, itemID string) Result {
	return s.mutate(ctx, cartID, mutation{kind: KindItemRemoved, recalc: true, apply: removeItem(itemID)})
}

func (s *TeamCartService) LockCart(ctx context.Context, cartID string) Result {
	return s.mutate(ctx, cartID, mutation{kind: KindLocked, apply: lockCart})
}

func (s *TeamCartService) ApplyTip(ctx context.Context, cartID string, tip decimal.Decimal) Result {
	return s.mutate(ctx, cartID, mutation{kind: KindTipApplied, recalc: true, apply: applyTip(tip)})
}

func (s *TeamCartService) ApplyCoupon(ctx context.Context, cartID, code string, discount decimal.Decimal) Result {
	return s.mutate(ctx, cartID, mutation{kind: KindCouponApplied, recalc: true, apply: applyCoupon(code, discount)})
}

func (s *TeamCartService) RemoveCoupon(ctx context.Context, cartID string) Result {
	return s.mutate(ctx, cartID, mutation{kind: KindCouponRemoved, recalc: true, apply: removeCoupon})
}

func (s *TeamCartService) CommitCashOnDelivery(ctx context.Context, cartID, userID string, amount decimal.Decimal) Result {
	return s.mutate(ctx, cartID, mutation{
		kind: KindCashOnDeliveryCommitted,
		apply: func(c domain.TeamCart) (domain.TeamCart, error) {
			return c.CommitCashOnDelivery(userID, amount)
		},
	})
}

func (s *TeamCartService) RecordOnlinePaymentSuccess(ctx context.Context, cartID, userID string, amount decimal.Decimal, transactionID string) Result {
	return s.mutate(ctx, cartID, mutation{
		kind: KindOnlinePaymentSucceeded,
		apply: func(c domain.TeamCart) (domain.TeamCart, error) {
			return c.RecordOnlinePaymentSuccess(userID, amount, transactionID)
		},
	})
}

func (s *TeamCartService) RecordOnlinePaymentFailure(ctx context.Context, cartID, userID string) Result {
	return s.mutate(ctx, cartID, mutation{
		kind: KindOnlinePaymentFailed,
		apply: func(c domain.TeamCart) (domain.TeamCart, error) {
			return c.RecordOnlinePaymentFailure(userID)
		},
	})
}

func addMember(m domain.Member) transform {
	return func(c domain.TeamCart) (domain.TeamCart, error) {
		if m.UserID == "" {
			return c, domain.ErrNoChange
		}
		if _, exists := c.Member(m.UserID); exists {
			return c, domain.ErrNoChange
		}
		if m.Role == "" {
			m.Role = domain.RoleGuest
		}
		m.PaymentStatus = domain.PaymentPending
		m.CommittedAmount = decimal.Zero
		m.OnlineTransactionID = nil
		return c.WithMember(m), nil
	}
}

func addItem(it domain.Item, now time.Time) transform {
	return func(c domain.TeamCart) (domain.TeamCart, error) {
		if it.ItemID == "" || it.Quantity <= 0 {
			return c, domain.ErrNoChange
		}
		if _, exists := c.Item(it.ItemID); exists {
			return c, domain.ErrNoChange
		}
		if it.AddedAt.IsZero() {
			it.AddedAt = now
		}
		return c.WithItem(it), nil
	}
}

func updateItemQuantity(itemID string, quantity int) transform {
	return func(c domain.TeamCart) (domain.TeamCart, error) {
		it, ok := c.Item(itemID)
		if !ok || quantity <= 0 || it.Quantity == quantity {
			return c, domain.ErrNoChange
		}
		it.Quantity = quantity
		return c.WithItem(it), nil
	}
}

func removeItem(itemID string) transform {
	return func(c domain.TeamCart) (domain.TeamCart, error) {
		if _, ok := c.Item(itemID); !ok {
			return c, domain.ErrNoChange
		}
		return c.WithoutItem(itemID), nil
	}
}

func lockCart(c domain.TeamCart) (domain.TeamCart, error) {
	if c.Status == domain.StatusLocked {
		return c, domain.ErrNoChange
	}
	c.Status = domain.StatusLocked
	return c, nil
}

func applyTip(tip decimal.Decimal) transform {
	return func(c domain.TeamCart) (domain.TeamCart, error) {
		c.Tip = tip
		return c, nil
	}
}

func applyCoupon(code string, discount decimal.Decimal) transform {
	return func(c domain.TeamCart) (domain.TeamCart, error) {
		c.CouponCode = code
		c.Discount = discount
		return c, nil
	}
}

func removeCoupon(c domain.TeamCart) (domain.TeamCart, error) {
	if c.CouponCode == "" && c.Discount.IsZero() {
		return c, domain.ErrNoChange
	}
	c.CouponCode = ""
	c.Discount = decimal.Zero
	return c, nil
}
