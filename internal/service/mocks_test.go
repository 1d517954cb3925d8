package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_cart/teamcart-service/internal/domain"
	"github.com/fjod/go_cart/teamcart-service/internal/notifier"
	"github.com/fjod/go_cart/teamcart-service/internal/repository"
	"github.com/fjod/go_cart/teamcart-service/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type recordingNotifier struct {
	m      sync.Mutex
	events []notifier.Event
	err    error
}

func (r *recordingNotifier) Publish(_ context.Context, event notifier.Event) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) kinds() []string {
	r.m.Lock()
	defer r.m.Unlock()
	kinds := make([]string, 0, len(r.events))
	for _, e := range r.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// casHookStore runs beforeCAS ahead of every compare-and-swap so tests can
// slip a competing write in between the read and the conditional write.
type casHookStore struct {
	store.DocumentStore
	m          sync.Mutex
	calls      int
	beforeCAS  func(call int)
	alwaysLose bool
}

func (h *casHookStore) CompareAndSwap(ctx context.Context, cartID string, expected, next []byte) (bool, error) {
	h.m.Lock()
	h.calls++
	call := h.calls
	h.m.Unlock()

	if h.beforeCAS != nil {
		h.beforeCAS(call)
	}
	if h.alwaysLose {
		return false, nil
	}
	return h.DocumentStore.CompareAndSwap(ctx, cartID, expected, next)
}

type archiveMock struct {
	m      sync.Mutex
	calls  int
	saved  []domain.TeamCart
	err    error
	onSave func(call int)
}

func (a *archiveMock) SaveSnapshot(_ context.Context, cart domain.TeamCart) error {
	a.m.Lock()
	a.calls++
	call := a.calls
	a.m.Unlock()

	if a.onSave != nil {
		a.onSave(call)
	}

	a.m.Lock()
	defer a.m.Unlock()
	if a.err != nil {
		return a.err
	}
	a.saved = append(a.saved, cart)
	return nil
}

func (a *archiveMock) GetSnapshot(_ context.Context, cartID string) (*domain.TeamCart, error) {
	a.m.Lock()
	defer a.m.Unlock()
	for i := len(a.saved) - 1; i >= 0; i-- {
		if a.saved[i].ID == cartID {
			cart := a.saved[i]
			return &cart, nil
		}
	}
	return nil, repository.ErrSnapshotNotFound
}

// gateStore holds every Get until release is closed, honouring the caller's ctx.
type gateStore struct {
	store.DocumentStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gateStore) Get(ctx context.Context, cartID string) ([]byte, error) {
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.DocumentStore.Get(ctx, cartID)
}

var errBrokerDown = errors.New("broker down")

type testEnv struct {
	mr       *miniredis.Miniredis
	client   *redis.Client
	store    *store.RedisStore
	notifier *recordingNotifier
	service  *TeamCartService
}

func testOptions() Options {
	return Options{
		TTL:         30 * time.Minute,
		MaxAttempts: 5,
		JitterMin:   time.Millisecond,
		JitterMax:   3 * time.Millisecond,
	}
}

func setupTestService(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	s := store.NewRedisStore(client, "test", 30*time.Minute)
	n := &recordingNotifier{}
	return &testEnv{
		mr:       mr,
		client:   client,
		store:    s,
		notifier: n,
		service:  NewTeamCartService(s, n, zap.NewNop(), testOptions()),
	}
}

func (e *testEnv) withStore(s store.DocumentStore, opts Options) *TeamCartService {
	return NewTeamCartService(s, e.notifier, zap.NewNop(), opts)
}

func (e *testEnv) createCart(t *testing.T, cartID string) {
	t.Helper()
	res := e.service.CreateCart(context.Background(), CreateCartParams{
		CartID:       cartID,
		RestaurantID: "rest-1",
		Host:         domain.Member{UserID: "host", Name: "Host"},
	})
	assert.Equal(t, OutcomeCommitted, res.Outcome)
}

func (e *testEnv) document(t *testing.T, cartID string) *domain.TeamCart {
	t.Helper()
	cart, err := e.service.GetDocument(context.Background(), cartID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	return cart
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, money(want).Equal(got), "expected %s, got %s", want, got)
}

func item(id, price string, qty int) domain.Item {
	return domain.Item{
		ItemID:        id,
		AddedByUserID: "host",
		Name:          "item " + id,
		Quantity:      qty,
		UnitBasePrice: money(price),
	}
}
