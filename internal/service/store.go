// Package service holds the QR code lifecycle: code generation, the
// registry, the assignment state machine, bulk issuance, and the account
// management used by the admin screens.  Persistence is reached through
// the interfaces below, implemented by the MySQL repositories and by
// repository.MemoryStore.
package service

import (
	"context"
	"time"

	"github.com/addwise/addwise-hub/internal/model"
	"github.com/addwise/addwise-hub/internal/queue"
	"github.com/addwise/addwise-hub/internal/repository"
)

// QRStore is the persistence contract of the QR registry.
type QRStore interface {
	CreateBatch(ctx context.Context, codes []*model.QRCode) error
	GetByID(ctx context.Context, id string) (*model.QRCode, error)
	GetByValue(ctx context.Context, value string) (*model.QRCode, error)
	ValueExists(ctx context.Context, value string) (bool, error)
	ListAll(ctx context.Context) ([]*model.QRCode, error)
	ListForOwner(ctx context.Context, ownerID string) ([]*model.QRCode, error)
	ListByIDs(ctx context.Context, ids []string) ([]*model.QRCode, error)
	Update(ctx context.Context, id string, upd repository.QRUpdate) (*model.QRCode, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
	Mutate(ctx context.Context, lk repository.Lookup, fn repository.MutateFunc) (*model.QRCode, error)
}

// UserStore is the persistence contract for accounts.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	ListByRole(ctx context.Context, role string) ([]*model.User, error)
	Update(ctx context.Context, u *model.User) error
	Delete(ctx context.Context, id string) error
}

// TokenStore persists hashed refresh tokens.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (string, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

// EventPublisher receives domain events after successful mutations.
// Publishing is best effort; failures are logged, never returned.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}
