package notifier

import (
	"context"
	"encoding/json"
	"fmt"
)

// Event announces that a team cart changed. Subscribers fetch the document
// themselves if they need its state.
type Event struct {
	CartID string `json:"cart_id"`
	Kind   string `json:"kind"`
}

type Notifier interface {
	Publish(ctx context.Context, event Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

func encode(event Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event failed: %w", err)
	}
	return data, nil
}
