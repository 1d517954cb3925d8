package store

import (
	"context"
	"errors"
)

// DocumentStore holds serialized team cart documents keyed by cart id.
type DocumentStore interface {
	Get(ctx context.Context, cartID string) ([]byte, error)
	Create(ctx context.Context, cartID string, data []byte) (bool, error)
	CompareAndSwap(ctx context.Context, cartID string, expected, next []byte) (bool, error)
	Refresh(ctx context.Context, cartID string) error
	Delete(ctx context.Context, cartID string) error
	DeleteIfUnchanged(ctx context.Context, cartID string, expected []byte) (bool, error)
}

var ErrNotFound = errors.New("document not found")
