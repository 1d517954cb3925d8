package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoChange is returned by a transform when applying it would leave the cart as it is.
var ErrNoChange = errors.New("mutation leaves cart unchanged")

type CartStatus string

const (
	StatusOpen      CartStatus = "OPEN"
	StatusLocked    CartStatus = "LOCKED"
	StatusExpired   CartStatus = "EXPIRED"
	StatusCancelled CartStatus = "CANCELLED"
)

type MemberRole string

const (
	RoleHost  MemberRole = "HOST"
	RoleGuest MemberRole = "GUEST"
)

// TeamCart is the shared document of one group-ordering session.
// Values are treated as immutable: the With*/Without* helpers return copies.
type TeamCart struct {
	ID                    string            `json:"id"`
	RestaurantID          string            `json:"restaurant_id"`
	Status                CartStatus        `json:"status"`
	Deadline              *time.Time        `json:"deadline,omitempty"`
	ExpiresAt             time.Time         `json:"expires_at"`
	Members               map[string]Member `json:"members"`
	Items                 map[string]Item   `json:"items"`
	Tip                   decimal.Decimal   `json:"tip"`
	CouponCode            string            `json:"coupon_code,omitempty"`
	Discount              decimal.Decimal   `json:"discount"`
	Subtotal              decimal.Decimal   `json:"subtotal"`
	DeliveryFee           decimal.Decimal   `json:"delivery_fee"`
	Tax                   decimal.Decimal   `json:"tax"`
	Total                 decimal.Decimal   `json:"total"`
	CashOnDeliveryPortion decimal.Decimal   `json:"cash_on_delivery_portion"`
	Version               int64             `json:"version"`
}

type Member struct {
	UserID              string          `json:"user_id"`
	Name                string          `json:"name"`
	Role                MemberRole      `json:"role"`
	PaymentStatus       PaymentStatus   `json:"payment_status"`
	CommittedAmount     decimal.Decimal `json:"committed_amount"`
	OnlineTransactionID *string         `json:"online_transaction_id,omitempty"`
}

type Item struct {
	ItemID         string          `json:"item_id"`
	AddedByUserID  string          `json:"added_by_user_id"`
	Name           string          `json:"name"`
	Quantity       int             `json:"quantity"`
	UnitBasePrice  decimal.Decimal `json:"unit_base_price"`
	LineTotal      decimal.Decimal `json:"line_total"`
	Customizations []Customization `json:"customizations,omitempty"`
	AddedAt        time.Time       `json:"added_at"`
}

type Customization struct {
	Name       string          `json:"name"`
	PriceDelta decimal.Decimal `json:"price_delta"`
}

// NewTeamCart returns an empty open cart at version 1.
func NewTeamCart(cartID, restaurantID string, host Member, deadline *time.Time, expiresAt time.Time) TeamCart {
	cart := TeamCart{
		ID:           cartID,
		RestaurantID: restaurantID,
		Status:       StatusOpen,
		Deadline:     deadline,
		ExpiresAt:    expiresAt,
		Members:      map[string]Member{},
		Items:        map[string]Item{},
		Version:      1,
	}
	if host.UserID != "" {
		host.Role = RoleHost
		host.PaymentStatus = PaymentPending
		cart.Members[host.UserID] = host
	}
	return cart
}

func (c TeamCart) Member(userID string) (Member, bool) {
	m, ok := c.Members[userID]
	return m, ok
}

func (c TeamCart) Item(itemID string) (Item, bool) {
	it, ok := c.Items[itemID]
	return it, ok
}

// WithMember returns a copy of c with m stored under m.UserID, replacing any previous entry.
func (c TeamCart) WithMember(m Member) TeamCart {
	members := make(map[string]Member, len(c.Members)+1)
	for id, existing := range c.Members {
		members[id] = existing
	}
	members[m.UserID] = m
	c.Members = members
	return c
}

// WithItem returns a copy of c with it stored under it.ItemID, replacing any previous entry.
func (c TeamCart) WithItem(it Item) TeamCart {
	items := make(map[string]Item, len(c.Items)+1)
	for id, existing := range c.Items {
		items[id] = existing
	}
	it.Customizations = append([]Customization(nil), it.Customizations...)
	items[it.ItemID] = it
	c.Items = items
	return c
}

func (c TeamCart) WithoutItem(itemID string) TeamCart {
	items := make(map[string]Item, len(c.Items))
	for id, existing := range c.Items {
		if id != itemID {
			items[id] = existing
		}
	}
	c.Items = items
	return c
}
