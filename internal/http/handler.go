package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_cart/teamcart-service/internal/domain"
	s "github.com/fjod/go_cart/teamcart-service/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxQuantity = 99

// CartStore is the part of the team cart service the HTTP layer drives.
type CartStore interface {
	CreateCart(ctx context.Context, p s.CreateCartParams) s.Result
	GetDocument(ctx context.Context, cartID string) (*domain.TeamCart, error)
	GetSnapshot(ctx context.Context, cartID string) (*domain.TeamCart, error)
	DeleteCart(ctx context.Context, cartID string) s.Result
	AddMember(ctx context.Context, cartID string, member domain.Member) s.Result
	AddItem(ctx context.Context, cartID string, item domain.Item) s.Result
	UpdateItemQuantity(ctx context.Context, cartID, itemID string, quantity int) s.Result
	RemoveItem(ctx context.Context, cartID, itemID string) s.Result
	LockCart(ctx context.Context, cartID string) s.Result
	ApplyTip(ctx context.Context, cartID string, tip decimal.Decimal) s.Result
	ApplyCoupon(ctx context.Context, cartID, code string, discount decimal.Decimal) s.Result
	RemoveCoupon(ctx context.Context, cartID string) s.Result
	CommitCashOnDelivery(ctx context.Context, cartID, userID string, amount decimal.Decimal) s.Result
	RecordOnlinePaymentSuccess(ctx context.Context, cartID, userID string, amount decimal.Decimal, transactionID string) s.Result
	RecordOnlinePaymentFailure(ctx context.Context, cartID, userID string) s.Result
}

type TeamCartHandler struct {
	carts   CartStore
	timeout time.Duration
	logger  *zap.Logger
}

func NewTeamCartHandler(carts CartStore, timeout time.Duration, logger *zap.Logger) *TeamCartHandler {
	return &TeamCartHandler{
		carts:   carts,
		timeout: timeout,
		logger:  logger,
	}
}

type MemberDTO struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role,omitempty"`
}

type CreateCartRequestDTO struct {
	CartID       string     `json:"cart_id,omitempty"`
	RestaurantID string     `json:"restaurant_id"`
	Host         MemberDTO  `json:"host"`
	Deadline     *time.Time `json:"deadline,omitempty"`
}

type CreateCartResponseDTO struct {
	CartID string   `json:"cart_id"`
	Result s.Result `json:"result"`
}

type CustomizationDTO struct {
	Name       string          `json:"name"`
	PriceDelta decimal.Decimal `json:"price_delta"`
}

type AddItemRequestDTO struct {
	ItemID         string             `json:"item_id,omitempty"`
	UserID         string             `json:"user_id"`
	Name           string             `json:"name"`
	Quantity       int                `json:"quantity"`
	UnitBasePrice  decimal.Decimal    `json:"unit_base_price"`
	Customizations []CustomizationDTO `json:"customizations,omitempty"`
}

type AddItemResponseDTO struct {
	ItemID string   `json:"item_id"`
	Result s.Result `json:"result"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type AmountRequestDTO struct {
	Amount decimal.Decimal `json:"amount"`
}

type CouponRequestDTO struct {
	Code     string          `json:"code"`
	Discount decimal.Decimal `json:"discount"`
}

type OnlinePaymentRequestDTO struct {
	Amount        decimal.Decimal `json:"amount"`
	TransactionID string          `json:"transaction_id"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (h *TeamCartHandler) CreateCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CreateCartRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	if req.RestaurantID == "" {
		respondError(w, http.StatusBadRequest, "invalid_restaurant_id", "restaurant_id is required")
		return
	}
	if req.Host.UserID == "" {
		respondError(w, http.StatusBadRequest, "invalid_host", "host.user_id is required")
		return
	}
	if req.CartID == "" {
		req.CartID = uuid.NewString()
	}

	res := h.carts.CreateCart(ctx, s.CreateCartParams{
		CartID:       req.CartID,
		RestaurantID: req.RestaurantID,
		Host:         domain.Member{UserID: req.Host.UserID, Name: req.Host.Name},
		Deadline:     req.Deadline,
	})

	status := http.StatusCreated
	switch res.Outcome {
	case s.OutcomeUnchanged:
		status = http.StatusConflict
	case s.OutcomeFailed:
		status = http.StatusServiceUnavailable
	case s.OutcomeCancelled:
		status = http.StatusGatewayTimeout
	}
	respondJSON(w, status, CreateCartResponseDTO{CartID: req.CartID, Result: res})
}

func (h *TeamCartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.GetDocument(ctx, chi.URLParam(r, "cartID"))
	if errors.Is(err, s.ErrCartNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "team cart not found")
		return
	}
	if err != nil {
		h.logger.Error("get team cart failed", zap.Error(err))
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "team cart store unavailable")
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

// GetSnapshot serves the archived final document of a cart whose checkout completed.
func (h *TeamCartHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.GetSnapshot(ctx, chi.URLParam(r, "cartID"))
	if errors.Is(err, s.ErrCartNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "team cart snapshot not found")
		return
	}
	if err != nil {
		h.logger.Error("get team cart snapshot failed", zap.Error(err))
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "snapshot archive unavailable")
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *TeamCartHandler) DeleteCart(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, cartID string) s.Result {
		return h.carts.DeleteCart(ctx, cartID)
	})
}

func (h *TeamCartHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req MemberDTO
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "user_id is required")
		return
	}
	role := domain.RoleGuest
	if req.Role == string(domain.RoleHost) {
		role = domain.RoleHost
	}
	h.mutate(w, r, func(ctx context.Context, cartID string) s.Result {
		return h.carts.AddMember(ctx, cartID, domain.Member{UserID: req.UserID, Name: req.Name, Role: role})
	})
}

func (h *TeamCartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "user_id is required")
		return
	}
	if !validQuantity(w, req.Quantity) || !nonNegative(w, "unit_base_price", req.UnitBasePrice) {
		return
	}
	if req.ItemID == "" {
		req.ItemID = uuid.NewString()
	}

	item := domain.Item{
		ItemID:        req.ItemID,
		AddedByUserID: req.UserID,
		Name:          req.Name,
		Quantity:      req.Quantity,
		UnitBasePrice: req.UnitBasePrice,
	}
	for _, c := range req.Customizations {
		item.Customizations = append(item.Customizations, domain.Customization{Name: c.Name, PriceDelta: c.PriceDelta})
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	res := h.carts.AddItem(ctx, chi.URLParam(r, "cartID"), item)
	respondJSON(w, statusFor(res), AddItemResponseDTO{ItemID: req.ItemID, Result: res})
}

func (h *TeamCartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequestDTO
	if !decodeBody(w, r, &req) || !validQuantity(w, req.Quantity) {
		return
	}
	itemID := chi.URLParam(r, "itemID")
	h.mutate(w, r, func(ctx context.Context, cartID string) s.Result {
		return h.carts.UpdateItemQuantity(ctx, cartID, itemID, req.Quantity)
	})
}

func (h *TeamCartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	h.mutate(w, r, func(ctx context.Context, cartID string) s.Result {
		return h.carts.RemoveItem(ctx, cartID, itemID)
	})
}

func (h *TeamCartHandler) LockCart(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.carts.LockCart)
}

func (h *TeamCartHandler) ApplyTip(w http.ResponseWriter, r *http.Request) {
	var req AmountRequestDTO
	if !decodeBody(w, r, &req) || !nonNegative(w, "amount", req.Amount) {
		return
	}
	h.mutate(w, r, func(ctx context.Context, cartID string) s.Result {
		return h.carts.ApplyTip(ctx, cartID, req.Amount)
	})
}

func (h *TeamCartHandler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req CouponRequestDTO
	if !decodeBody(w, r, &req) || !nonNegative(w, "discount", req.Discount) {
		return
	}
	if req.Code == "" {
		respondError(w, http.StatusBadRequest, "invalid_code", "code is required")
		return
	}
	h.mutate(w, r, func(ctx context.Context, cartID string) s.Result {
		return h.carts.ApplyCoupon(ctx, cartID, req.Code, req.Discount)
	})
}

func (h *TeamCartHandler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.carts.RemoveCoupon)
}

func (h *TeamCartHandler) CommitCashOnDelivery(w http.ResponseWriter, r *http.Request) {
	var req AmountRequestDTO
	if !decodeBody(w, r, &req) || !nonNegative(w, "amount", req.Amount) {
		return
	}
	userID := chi.URLParam(r, "userID")
	h.mutate(w, r, func(ctx context.Context, cartID string) s.Result {
		return h.carts.CommitCashOnDelivery(ctx, cartID, userID, req.Amount)
	})
}

func (h *TeamCartHandler) RecordOnlinePayment(w http.ResponseWriter, r *http.Request) {
	var req OnlinePaymentRequestDTO
	if !decodeBody(w, r, &req) || !nonNegative(w, "amount", req.Amount) {
		return
	}
	if req.TransactionID == "" {
		respondError(w, http.StatusBadRequest, "invalid_transaction_id", "transaction_id is required")
		return
	}
	userID := chi.URLParam(r, "userID")
	h.mutate(w, r, func(ctx context.Context, cartID string) s.Result {
		return h.carts.RecordOnlinePaymentSuccess(ctx, cartID, userID, req.Amount, req.TransactionID)
	})
}

func (h *TeamCartHandler) RecordOnlinePaymentFailure(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	h.mutate(w, r, func(ctx context.Context, cartID string) s.Result {
		return h.carts.RecordOnlinePaymentFailure(ctx, cartID, userID)
	})
}

func (h *TeamCartHandler) mutate(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, cartID string) s.Result) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res := op(ctx, chi.URLParam(r, "cartID"))
	respondJSON(w, statusFor(res), res)
}

// statusFor maps a mutation outcome onto HTTP. Dropped and no-op mutations are
// still 202: the request was taken, the body says what became of it.
func statusFor(res s.Result) int {
	switch res.Outcome {
	case s.OutcomeNotFound:
		return http.StatusNotFound
	case s.OutcomeFailed:
		return http.StatusServiceUnavailable
	case s.OutcomeCancelled:
		return http.StatusGatewayTimeout
	default:
		return http.StatusAccepted
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func validQuantity(w http.ResponseWriter, quantity int) bool {
	if quantity <= 0 || quantity > maxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return false
	}
	return true
}

func nonNegative(w http.ResponseWriter, field string, amount decimal.Decimal) bool {
	if amount.IsNegative() {
		respondError(w, http.StatusBadRequest, "invalid_"+field, field+" must not be negative")
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}
