package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/teamcart-service/internal/domain"
	"github.com/fjod/go_cart/teamcart-service/internal/notifier"
	"github.com/fjod/go_cart/teamcart-service/internal/repository"
	"github.com/fjod/go_cart/teamcart-service/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	publishTimeout = 2 * time.Second
	refreshTimeout = time.Second
	readTimeout    = 3 * time.Second
)

// SnapshotArchive keeps the final document of a completed session.
type SnapshotArchive interface {
	SaveSnapshot(ctx context.Context, cart domain.TeamCart) error
	GetSnapshot(ctx context.Context, cartID string) (*domain.TeamCart, error)
}

type Options struct {
	TTL         time.Duration
	MaxAttempts int
	JitterMin   time.Duration
	JitterMax   time.Duration
}

func DefaultOptions() Options {
	return Options{
		TTL:         30 * time.Minute,
		MaxAttempts: 5,
		JitterMin:   5 * time.Millisecond,
		JitterMax:   25 * time.Millisecond,
	}
}

type TeamCartService struct {
	store    store.DocumentStore
	notifier notifier.Notifier
	archive  SnapshotArchive
	logger   *zap.Logger
	opts     Options
	sfg      singleflight.Group // collapses concurrent reads of one cart
	now      func() time.Time
}

func NewTeamCartService(s store.DocumentStore, n notifier.Notifier, logger *zap.Logger, opts Options) *TeamCartService {
	if n == nil {
		n = notifier.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.JitterMax < opts.JitterMin {
		opts.JitterMax = opts.JitterMin
	}
	return &TeamCartService{
		store:    s,
		notifier: n,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

// WithArchive makes CompleteCart persist the final document before deleting it.
func (s *TeamCartService) WithArchive(archive SnapshotArchive) *TeamCartService {
	s.archive = archive
	return s
}

type CreateCartParams struct {
	CartID       string
	RestaurantID string
	Host         domain.Member
	Deadline     *time.Time
}

// CreateCart stores a fresh version 1 document. An existing cart with the same id is left alone.
func (s *TeamCartService) CreateCart(ctx context.Context, p CreateCartParams) Result {
	log := s.logger.With(zap.String("cart_id", p.CartID))

	cart := domain.NewTeamCart(p.CartID, p.RestaurantID, p.Host, p.Deadline, s.now().Add(s.opts.TTL))
	data, err := json.Marshal(cart)
	if err != nil {
		log.Error("failed to encode team cart", zap.Error(err))
		return Result{Outcome: OutcomeFailed, Attempts: 1}
	}

	created, err := s.store.Create(ctx, p.CartID, data)
	if err != nil {
		if ctx.Err() != nil {
			return Result{Outcome: OutcomeCancelled, Attempts: 1}
		}
		log.Error("failed to create team cart", zap.Error(err))
		return Result{Outcome: OutcomeFailed, Attempts: 1}
	}
	if !created {
		log.Warn("team cart already exists")
		return Result{Outcome: OutcomeUnchanged, Attempts: 1}
	}

	s.publish(ctx, p.CartID, KindCreated)
	return Result{Outcome: OutcomeCommitted, Attempts: 1, Version: cart.Version}
}

// GetDocument returns the current document and slides its expiry forward.
// The refresh runs in the background and never fails the read.
func (s *TeamCartService) GetDocument(ctx context.Context, cartID string) (*domain.TeamCart, error) {
	// the shared read outlives any single caller, each caller waits on its own ctx
	ch := s.sfg.DoChan(cartID, func() (interface{}, error) {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), readTimeout)
		defer cancel()

		raw, err := s.store.Get(readCtx, cartID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCartNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read team cart: %w", err)
		}

		go s.refresh(cartID)

		return raw, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}

	// decoded per caller so that nobody shares maps with another request
	cart, err := decode(res.Val.([]byte))
	if err != nil {
		s.logger.Warn("team cart document is unreadable", zap.String("cart_id", cartID), zap.Error(err))
		return nil, ErrCartNotFound
	}
	return &cart, nil
}

// GetSnapshot returns the archived final document of a completed cart.
func (s *TeamCartService) GetSnapshot(ctx context.Context, cartID string) (*domain.TeamCart, error) {
	if s.archive == nil {
		return nil, ErrCartNotFound
	}
	cart, err := s.archive.GetSnapshot(ctx, cartID)
	if errors.Is(err, repository.ErrSnapshotNotFound) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return cart, nil
}

func (s *TeamCartService) DeleteCart(ctx context.Context, cartID string) Result {
	if err := s.store.Delete(ctx, cartID); err != nil {
		if ctx.Err() != nil {
			return Result{Outcome: OutcomeCancelled, Attempts: 1}
		}
		s.logger.Error("failed to delete team cart", zap.String("cart_id", cartID), zap.Error(err))
		return Result{Outcome: OutcomeFailed, Attempts: 1}
	}
	s.publish(ctx, cartID, KindDeleted)
	return Result{Outcome: OutcomeCommitted, Attempts: 1}
}

// CompleteCart archives the final document, when an archive is configured, and then deletes it.
// The delete only goes through if nobody wrote in between; otherwise the newer
// document is archived again. The document is kept if archiving fails.
func (s *TeamCartService) CompleteCart(ctx context.Context, cartID string) Result {
	log := s.logger.With(zap.String("cart_id", cartID), zap.String("kind", string(KindCompleted)))

	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		raw, err := s.store.Get(ctx, cartID)
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("team cart not found")
			return Result{Outcome: OutcomeNotFound, Attempts: attempt}
		}
		if err != nil {
			return s.storeFailure(ctx, log, err, attempt)
		}

		var version int64
		if s.archive != nil {
			cart, err := decode(raw)
			if err != nil {
				log.Warn("team cart document is unreadable, nothing to archive", zap.Error(err))
			} else if err := s.archive.SaveSnapshot(ctx, cart); err != nil {
				log.Error("failed to archive team cart", zap.Error(err))
				return Result{Outcome: OutcomeFailed, Attempts: attempt}
			} else {
				version = cart.Version
			}
		}

		deleted, err := s.store.DeleteIfUnchanged(ctx, cartID, raw)
		if err != nil {
			return s.storeFailure(ctx, log, err, attempt)
		}
		if deleted {
			s.publish(ctx, cartID, KindCompleted)
			return Result{Outcome: OutcomeCommitted, Attempts: attempt, Version: version}
		}

		log.Debug("team cart changed while completing", zap.Int("attempt", attempt))
		if attempt < s.opts.MaxAttempts && !s.pause(ctx) {
			log.Info("completion cancelled", zap.Int("attempt", attempt))
			return Result{Outcome: OutcomeCancelled, Attempts: attempt}
		}
	}

	log.Warn("completion dropped, retries exhausted", zap.Int("attempts", s.opts.MaxAttempts))
	return Result{Outcome: OutcomeConcurrencyExhausted, Attempts: s.opts.MaxAttempts}
}

func (s *TeamCartService) refresh(cartID string) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	if err := s.store.Refresh(ctx, cartID); err != nil {
		s.logger.Debug("team cart ttl refresh failed", zap.String("cart_id", cartID), zap.Error(err))
	}
}

// publish never reports failure: the write it announces is already committed.
func (s *TeamCartService) publish(ctx context.Context, cartID string, kind MutationKind) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err := s.notifier.Publish(ctx, notifier.Event{CartID: cartID, Kind: string(kind)})
	if err != nil {
		s.logger.Debug("team cart notification failed",
			zap.String("cart_id", cartID),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
}

func decode(raw []byte) (domain.TeamCart, error) {
	var cart domain.TeamCart
	if err := json.Unmarshal(raw, &cart); err != nil {
		return domain.TeamCart{}, fmt.Errorf("unmarshal team cart failed: %w", err)
	}
	if cart.ID == "" {
		return domain.TeamCart{}, errMissingCartID
	}
	return cart, nil
}
