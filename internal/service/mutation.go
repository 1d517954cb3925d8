package service

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/fjod/go_cart/teamcart-service/internal/domain"
	"github.com/fjod/go_cart/teamcart-service/internal/store"
	"go.uber.org/zap"
)

// transform derives the next document from the current one. It must not touch
// anything but its argument; returning domain.ErrNoChange skips the write.
type transform func(domain.TeamCart) (domain.TeamCart, error)

type mutation struct {
	kind   MutationKind
	recalc bool // items, tip or discount changed
	apply  transform
}

// mutate runs the optimistic read, transform, compare-and-swap loop. A lost
// race is retried after a jittered pause until MaxAttempts is used up, then
// the mutation is dropped.
func (s *TeamCartService) mutate(ctx context.Context, cartID string, m mutation) Result {
	log := s.logger.With(zap.String("cart_id", cartID), zap.String("kind", string(m.kind)))

	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			log.Info("mutation cancelled", zap.Int("attempt", attempt))
			return Result{Outcome: OutcomeCancelled, Attempts: attempt - 1}
		}

		raw, err := s.store.Get(ctx, cartID)
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("team cart not found")
			return Result{Outcome: OutcomeNotFound, Attempts: attempt}
		}
		if err != nil {
			return s.storeFailure(ctx, log, err, attempt)
		}

		current, err := decode(raw)
		if err != nil {
			log.Warn("team cart document is unreadable", zap.Error(err))
			return Result{Outcome: OutcomeNotFound, Attempts: attempt}
		}

		next, err := m.apply(current)
		if err != nil {
			if !errors.Is(err, domain.ErrNoChange) {
				log.Warn("mutation rejected", zap.Error(err))
			}
			return Result{Outcome: OutcomeUnchanged, Attempts: attempt, Version: current.Version}
		}
		next.Version = current.Version + 1
		if m.recalc {
			next = next.Recalculated()
		}
		next.ExpiresAt = s.now().Add(s.opts.TTL)

		data, err := json.Marshal(next)
		if err != nil {
			log.Error("failed to encode team cart", zap.Error(err))
			return Result{Outcome: OutcomeFailed, Attempts: attempt}
		}

		swapped, err := s.store.CompareAndSwap(ctx, cartID, raw, data)
		if err != nil {
			return s.storeFailure(ctx, log, err, attempt)
		}
		if swapped {
			s.publish(ctx, cartID, m.kind)
			return Result{Outcome: OutcomeCommitted, Attempts: attempt, Version: next.Version}
		}

		log.Debug("lost compare-and-swap race", zap.Int("attempt", attempt))
		if attempt < s.opts.MaxAttempts && !s.pause(ctx) {
			log.Info("mutation cancelled", zap.Int("attempt", attempt))
			return Result{Outcome: OutcomeCancelled, Attempts: attempt}
		}
	}

	log.Warn("mutation dropped, retries exhausted", zap.Int("attempts", s.opts.MaxAttempts))
	return Result{Outcome: OutcomeConcurrencyExhausted, Attempts: s.opts.MaxAttempts}
}

func (s *TeamCartService) storeFailure(ctx context.Context, log *zap.Logger, err error, attempt int) Result {
	if ctx.Err() != nil {
		log.Info("mutation cancelled", zap.Int("attempt", attempt))
		return Result{Outcome: OutcomeCancelled, Attempts: attempt}
	}
	log.Error("team cart store failure", zap.Int("attempt", attempt), zap.Error(err))
	return Result{Outcome: OutcomeFailed, Attempts: attempt}
}

// pause sleeps for a random duration within the jitter bounds. It reports
// false if ctx ended first.
func (s *TeamCartService) pause(ctx context.Context) bool {
	timer := time.NewTimer(s.jitter())
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *TeamCartService) jitter() time.Duration {
	spread := s.opts.JitterMax - s.opts.JitterMin
	if spread <= 0 {
		return s.opts.JitterMin
	}
	return s.opts.JitterMin + rand.N(spread+1)
}
