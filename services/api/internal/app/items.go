package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"arview/internal/util"
	"arview/pkg/analytics"
	"arview/pkg/domain"
	"arview/pkg/slug"
	"arview/pkg/store"
)

// maxSlugInsertAttempts bounds re-resolution when a concurrent insert
// claims the resolved slug first.
const maxSlugInsertAttempts = 3

type CreateItemInput struct {
	Name         string `json:"name"`
	Slug         string `json:"slug,omitempty"`
	Description  string `json:"description,omitempty"`
	ModelURL     string `json:"modelUrl"`
	USDZURL      string `json:"usdzUrl,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

func (in CreateItemInput) Validate() ValidationResult {
	var r ValidationResult
	r.length("name", in.Name, 2, 100)
	if in.Slug != "" {
		r.slug("slug", in.Slug)
	}
	r.length("description", in.Description, 0, 500)
	if r.required("modelUrl", in.ModelURL) {
		r.url("modelUrl", in.ModelURL)
	}
	if in.USDZURL != "" {
		r.url("usdzUrl", in.USDZURL)
	}
	if in.ThumbnailURL != "" {
		r.url("thumbnailUrl", in.ThumbnailURL)
	}
	return r
}

// UpdateItemInput is a partial update; nil fields are left unchanged.
type UpdateItemInput struct {
	Name         *string `json:"name,omitempty"`
	Slug         *string `json:"slug,omitempty"`
	Description  *string `json:"description,omitempty"`
	ModelURL     *string `json:"modelUrl,omitempty"`
	USDZURL      *string `json:"usdzUrl,omitempty"`
	ThumbnailURL *string `json:"thumbnailUrl,omitempty"`
}

func (in UpdateItemInput) Validate() ValidationResult {
	var r ValidationResult
	if in.Name != nil {
		r.length("name", *in.Name, 2, 100)
	}
	if in.Slug != nil && *in.Slug != "" {
		r.slug("slug", *in.Slug)
	}
	if in.Description != nil {
		r.length("description", *in.Description, 0, 500)
	}
	if in.ModelURL != nil {
		r.url("modelUrl", *in.ModelURL)
	}
	if in.USDZURL != nil && *in.USDZURL != "" {
		r.url("usdzUrl", *in.USDZURL)
	}
	if in.ThumbnailURL != nil && *in.ThumbnailURL != "" {
		r.url("thumbnailUrl", *in.ThumbnailURL)
	}
	return r
}

// CreateItem stores a new item under merchantID with a unique slug derived
// from the explicit slug or the name.
func (a *App) CreateItem(ctx context.Context, merchantID string, in CreateItemInput) (domain.Item, error) {
	if err := in.Validate().Err(); err != nil {
		return domain.Item{}, err
	}
	base := in.Slug
	if base == "" {
		base = slug.Generate(in.Name)
	}
	now := a.clock()
	item := domain.Item{
		ID:           uuid.NewString(),
		MerchantID:   merchantID,
		Name:         in.Name,
		Description:  in.Description,
		ModelURL:     in.ModelURL,
		USDZURL:      in.USDZURL,
		ThumbnailURL: in.ThumbnailURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for attempt := 0; attempt < maxSlugInsertAttempts; attempt++ {
		resolved, err := a.resolveSlug(base, "")
		if err != nil {
			return domain.Item{}, err
		}
		item.Slug = resolved
		err = a.store.CreateItem(item)
		if err == nil {
			return item, nil
		}
		if !errors.Is(err, store.ErrDuplicateKey) {
			return domain.Item{}, fmt.Errorf("create item: %w", err)
		}
		util.LoggerFromContext(ctx).Info("slug taken concurrently, retrying", "slug", resolved, "attempt", attempt+1)
	}
	return domain.Item{}, ErrSlugConflict
}

// ListItems returns the merchant's items, newest first, with scan totals.
func (a *App) ListItems(ctx context.Context, merchantID string) ([]domain.ItemWithScans, error) {
	items, err := a.store.ListItemsByMerchant(merchantID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return a.withScanCounts(items)
}

// ItemBySlug is the public lookup used by the AR viewer.
func (a *App) ItemBySlug(ctx context.Context, s string) (domain.Item, error) {
	item, ok, err := a.store.GetItemBySlug(strings.TrimSpace(s))
	if err != nil {
		return domain.Item{}, fmt.Errorf("get item by slug: %w", err)
	}
	if !ok {
		return domain.Item{}, ErrItemNotFound
	}
	return item, nil
}

// ItemWithStats returns an owned item with total and unique scan counts.
func (a *App) ItemWithStats(ctx context.Context, id, merchantID string) (domain.ItemWithStats, error) {
	item, err := a.ownedItem(id, merchantID)
	if err != nil {
		return domain.ItemWithStats{}, err
	}
	events, err := a.store.ListScanEventsByItem(item.ID)
	if err != nil {
		return domain.ItemWithStats{}, fmt.Errorf("list scan events: %w", err)
	}
	return domain.ItemWithStats{
		Item:        item,
		TotalScans:  len(events),
		UniqueScans: analytics.UniqueSessions(events),
	}, nil
}

// UpdateItem applies a partial update. A new slug is re-resolved against
// every item except this one.
func (a *App) UpdateItem(ctx context.Context, id, merchantID string, in UpdateItemInput) (domain.Item, error) {
	if err := in.Validate().Err(); err != nil {
		return domain.Item{}, err
	}
	item, err := a.ownedItem(id, merchantID)
	if err != nil {
		return domain.Item{}, err
	}
	if in.Name != nil {
		item.Name = *in.Name
	}
	if in.Description != nil {
		item.Description = *in.Description
	}
	if in.ModelURL != nil {
		item.ModelURL = *in.ModelURL
	}
	if in.USDZURL != nil {
		item.USDZURL = *in.USDZURL
	}
	if in.ThumbnailURL != nil {
		item.ThumbnailURL = *in.ThumbnailURL
	}
	item.UpdatedAt = a.clock()

	wantSlug := in.Slug != nil && *in.Slug != ""
	for attempt := 0; attempt < maxSlugInsertAttempts; attempt++ {
		if wantSlug {
			resolved, err := a.resolveSlug(*in.Slug, item.ID)
			if err != nil {
				return domain.Item{}, err
			}
			item.Slug = resolved
		}
		err := a.store.UpdateItem(item)
		if err == nil {
			return item, nil
		}
		if !errors.Is(err, store.ErrDuplicateKey) || !wantSlug {
			return domain.Item{}, fmt.Errorf("update item: %w", err)
		}
	}
	return domain.Item{}, ErrSlugConflict
}

// DeleteItem removes an owned item, its scan events with it, and schedules
// removal of the item's stored assets.
func (a *App) DeleteItem(ctx context.Context, id, merchantID string) error {
	item, err := a.ownedItem(id, merchantID)
	if err != nil {
		return err
	}
	if err := a.store.DeleteItem(item.ID); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	a.scheduleAssetCleanup(ctx, item)
	return nil
}

// ownedItem loads id and checks it belongs to merchantID.
func (a *App) ownedItem(id, merchantID string) (domain.Item, error) {
	item, ok, err := a.store.GetItem(strings.TrimSpace(id))
	if err != nil {
		return domain.Item{}, fmt.Errorf("get item: %w", err)
	}
	if !ok {
		return domain.Item{}, ErrItemNotFound
	}
	if item.MerchantID != merchantID {
		return domain.Item{}, ErrForbidden
	}
	return item, nil
}

func (a *App) resolveSlug(base, excludeID string) (string, error) {
	resolved, err := slug.Resolve(base, func(candidate string) (bool, error) {
		return a.store.SlugExists(candidate, excludeID)
	})
	if errors.Is(err, slug.ErrExhausted) {
		return "", ErrSlugConflict
	}
	if err != nil {
		return "", fmt.Errorf("resolve slug: %w", err)
	}
	return resolved, nil
}

func (a *App) withScanCounts(items []domain.Item) ([]domain.ItemWithScans, error) {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	counts, err := a.store.CountScansByItem(ids)
	if err != nil {
		return nil, fmt.Errorf("count scans: %w", err)
	}
	out := make([]domain.ItemWithScans, len(items))
	for i, it := range items {
		out[i] = domain.ItemWithScans{Item: it, TotalScans: counts[it.ID]}
	}
	return out, nil
}
