// Package catalog owns the shop's product data: a durable store of items
// plus a read-through cache for listings. Orders reference items by id and
// snapshot their prices at submit time.
package catalog

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("item not found")
	ErrInvalidItem  = errors.New("item name must not be empty")
	ErrInvalidPrice = errors.New("item price must not be negative")
)

// Item is a catalog entry. Immutable once created.
type Item struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository is the durable key-value view of the catalog.
type Repository interface {
	Create(ctx context.Context, item *Item) error
	FindByIDs(ctx context.Context, ids []string) ([]Item, error)
	FindAll(ctx context.Context) ([]Item, error)
}
