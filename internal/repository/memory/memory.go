// Package memory keeps users and items in process memory. Records are copied
// on the way in and out so callers never share state with the store.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/splax/crate/internal/domain"
	"github.com/splax/crate/internal/repository"
)

// Repository implements repository.Store in memory.
type Repository struct {
	mu        sync.RWMutex
	users     map[string]domain.User
	items     map[string]domain.Item
	itemOrder []string
}

var _ repository.Store = (*Repository)(nil)

// New constructs an empty Repository.
func New() *Repository {
	return &Repository{
		users: make(map[string]domain.User),
		items: make(map[string]domain.Item),
	}
}

// CreateUser inserts a user; the email acts as a unique index.
func (r *Repository) CreateUser(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[user.Email]; exists {
		return repository.ErrConflict
	}
	stored := *user
	stored.PasswordHash = slices.Clone(user.PasswordHash)
	r.users[user.Email] = stored
	return nil
}

// GetUserByEmail fetches a user by email.
func (r *Repository) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u.PasswordHash = slices.Clone(u.PasswordHash)
	return &u, nil
}

// CreateItem inserts an item.
func (r *Repository) CreateItem(_ context.Context, item *domain.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[item.ID]; exists {
		return repository.ErrConflict
	}
	r.items[item.ID] = *item
	r.itemOrder = append(r.itemOrder, item.ID)
	return nil
}

// GetItemByID fetches an item.
func (r *Repository) GetItemByID(_ context.Context, id string) (*domain.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &item, nil
}

// UpdateItem replaces the stored item with the same id.
func (r *Repository) UpdateItem(_ context.Context, item *domain.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[item.ID]; !ok {
		return repository.ErrNotFound
	}
	r.items[item.ID] = *item
	return nil
}

// DeleteItem removes an item and returns what was removed.
func (r *Repository) DeleteItem(_ context.Context, id string) (*domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(r.items, id)
	r.itemOrder = slices.DeleteFunc(r.itemOrder, func(v string) bool { return v == id })
	return &item, nil
}

// ListItemsByOwner returns the owner's items in insertion order.
func (r *Repository) ListItemsByOwner(_ context.Context, owner string) ([]domain.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]domain.Item, 0)
	for _, id := range r.itemOrder {
		if item := r.items[id]; item.Owner == owner {
			items = append(items, item)
		}
	}
	return items, nil
}

// Ping always succeeds.
func (r *Repository) Ping(context.Context) error { return nil }

// Close is a no-op.
func (r *Repository) Close() error { return nil }
