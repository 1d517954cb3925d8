package poller

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	s "github.com/fjod/go_cart/teamcart-service/internal/service"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	statusCompleted = "completed"
	statusCancelled = "cancelled"

	defaultRetryDelay = 2 * time.Second
)

// SessionCloser ends team cart sessions once checkout has settled them.
type SessionCloser interface {
	CompleteCart(ctx context.Context, cartID string) s.Result
	DeleteCart(ctx context.Context, cartID string) s.Result
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type checkoutEvent struct {
	TeamCartID string `json:"team_cart_id"`
	Status     string `json:"status"`
}

// Poller consumes checkout outcomes and removes the team carts they settle.
type Poller struct {
	carts      SessionCloser
	reader     messageReader
	logger     *zap.Logger
	retryDelay time.Duration
}

func NewPoller(carts SessionCloser, logger *zap.Logger, topic, groupID string, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{carts: carts, reader: reader, logger: logger, retryDelay: defaultRetryDelay}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.readAndCloseSession(ctx)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.logger.Warn("error closing reader", zap.Error(err))
	}
}

// readAndCloseSession commits a message only once its cart is settled. A cart
// that could not be closed is retried in place, so the offset never moves past it.
func (p *Poller) readAndCloseSession(ctx context.Context) {
	m, err := p.reader.FetchMessage(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			p.logger.Warn("error fetching message", zap.Error(err))
		}
		return
	}

	for !p.handle(ctx, m.Value) {
		if !p.wait(ctx) {
			// left uncommitted, the group redelivers it after restart
			return
		}
	}

	if err := p.reader.CommitMessages(ctx, m); err != nil {
		p.logger.Warn("error committing message", zap.Error(err), zap.Int64("offset", m.Offset))
	}
}

func (p *Poller) wait(ctx context.Context) bool {
	timer := time.NewTimer(p.retryDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// handle reports whether the message is done with. Unparseable and unrelated
// messages are done with too.
func (p *Poller) handle(ctx context.Context, value []byte) bool {
	var event checkoutEvent
	if err := json.Unmarshal(value, &event); err != nil {
		p.logger.Warn("error parsing message", zap.Error(err))
		return true
	}
	// plain single-user checkouts share the topic
	if event.TeamCartID == "" {
		return true
	}

	var res s.Result
	switch event.Status {
	case statusCompleted, "":
		res = p.carts.CompleteCart(ctx, event.TeamCartID)
	case statusCancelled:
		res = p.carts.DeleteCart(ctx, event.TeamCartID)
	default:
		p.logger.Debug("ignoring checkout status", zap.String("status", event.Status))
		return true
	}

	switch res.Outcome {
	case s.OutcomeFailed, s.OutcomeCancelled, s.OutcomeConcurrencyExhausted:
		p.logger.Error("failed to close team cart session",
			zap.String("cart_id", event.TeamCartID),
			zap.String("status", event.Status),
			zap.String("outcome", string(res.Outcome)))
		return false
	}
	return true
}
