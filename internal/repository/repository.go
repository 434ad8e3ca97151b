package repository

import (
	"context"

	"github.com/splax/crate/internal/domain"
)

// UserRepository persists users.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

// ItemRepository persists items. Ownership is not enforced here.
type ItemRepository interface {
	CreateItem(ctx context.Context, item *domain.Item) error
	GetItemByID(ctx context.Context, id string) (*domain.Item, error)
	UpdateItem(ctx context.Context, item *domain.Item) error
	DeleteItem(ctx context.Context, id string) (*domain.Item, error)
	ListItemsByOwner(ctx context.Context, owner string) ([]domain.Item, error)
}

// Store bundles every repository with lifecycle hooks.
type Store interface {
	UserRepository
	ItemRepository
	Ping(ctx context.Context) error
	Close() error
}
