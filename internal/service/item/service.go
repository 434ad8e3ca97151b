package item

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/splax/crate/internal/domain"
	"github.com/splax/crate/internal/repository"
)

// Service manages items. Ownership checks belong to callers.
type Service struct {
	items  repository.ItemRepository
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Service.
func New(items repository.ItemRepository, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{items: items, logger: logger, now: time.Now}
}

// CreateInput holds the fields of a new item. A nil IsPublic means public.
type CreateInput struct {
	Title       string
	Description string
	IsPublic    *bool
}

// Create stores a new item owned by owner.
func (s Service) Create(ctx context.Context, owner string, in CreateInput) (*domain.Item, error) {
	isPublic := true
	if in.IsPublic != nil {
		isPublic = *in.IsPublic
	}
	item := &domain.Item{
		ID:          uuid.NewString(),
		Owner:       owner,
		Title:       in.Title,
		Description: in.Description,
		IsPublic:    isPublic,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.items.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	s.logger.Info("item created", "item_id", item.ID, "owner", owner)
	return item, nil
}

// FindByID returns the item or nil when it does not exist.
func (s Service) FindByID(ctx context.Context, id string) (*domain.Item, error) {
	item, err := s.items.GetItemByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return item, nil
}

// Update applies patch on top of existing and persists the result. It returns
// nil when the item was deleted in the meantime.
func (s Service) Update(ctx context.Context, existing *domain.Item, patch domain.ItemPatch) (*domain.Item, error) {
	merged := *existing
	if patch.Title != nil {
		merged.Title = *patch.Title
	}
	if patch.Description != nil {
		merged.Description = *patch.Description
	}
	if patch.IsPublic != nil {
		merged.IsPublic = *patch.IsPublic
	}
	if err := s.items.UpdateItem(ctx, &merged); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("update item: %w", err)
	}
	s.logger.Info("item updated", "item_id", merged.ID)
	return &merged, nil
}

// Remove deletes an item and returns it, or nil when nothing was deleted.
func (s Service) Remove(ctx context.Context, id string) (*domain.Item, error) {
	item, err := s.items.DeleteItem(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("remove item: %w", err)
	}
	s.logger.Info("item removed", "item_id", id)
	return item, nil
}

// ListByOwner returns every item owned by owner.
func (s Service) ListByOwner(ctx context.Context, owner string) ([]domain.Item, error) {
	items, err := s.items.ListItemsByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// PublicView projects a stored item to its client representation.
func PublicView(item *domain.Item) domain.ItemView {
	return domain.ItemView{
		ID:          item.ID,
		Owner:       item.Owner,
		Title:       item.Title,
		Description: item.Description,
		IsPublic:    item.IsPublic,
	}
}

// PublicViews projects a list; the result is never nil.
func PublicViews(items []domain.Item) []domain.ItemView {
	views := make([]domain.ItemView, 0, len(items))
	for i := range items {
		views = append(views, PublicView(&items[i]))
	}
	return views
}
