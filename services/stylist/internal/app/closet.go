package app

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"gauge/internal/util"
	"gauge/pkg/domain"
)

const maxItemNameLength = 120

// ItemInput carries the editable fields of a closet item. Image is
// optional; on update a nil Image keeps the current photo.
type ItemInput struct {
	Type     domain.GarmentType `json:"type"`
	Name     string             `json:"name"`
	Colors   []string           `json:"colors"`
	Material string             `json:"material"`
	Brand    string             `json:"brand"`
	Pattern  string             `json:"pattern"`
	Season   string             `json:"season"`
	Notes    string             `json:"notes"`
	Image    *Image             `json:"image,omitempty"`
}

// ItemGroup is the closet items of one garment type.
type ItemGroup struct {
	Type  domain.GarmentType  `json:"type"`
	Items []domain.ClosetItem `json:"items"`
}

// ListItems returns the closet with presigned photo URLs filled in.
func (a *App) ListItems(ctx context.Context, installationID string) ([]domain.ClosetItem, error) {
	items, err := a.records.LoadCloset(ctx, installationID)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("load closet failed", "installation_id", installationID, "err", err)
		return nil, err
	}
	for i := range items {
		a.attachImageURL(ctx, &items[i])
	}
	return items, nil
}

func (a *App) GetItem(ctx context.Context, installationID, itemID string) (domain.ClosetItem, error) {
	items, err := a.records.LoadCloset(ctx, installationID)
	if err != nil {
		return domain.ClosetItem{}, err
	}
	idx := indexOfItem(items, itemID)
	if idx < 0 {
		return domain.ClosetItem{}, ErrItemNotFound
	}
	item := items[idx]
	a.attachImageURL(ctx, &item)
	return item, nil
}

// AddItem validates the input, stores the optional photo and appends the item.
func (a *App) AddItem(ctx context.Context, installationID string, in ItemInput) (domain.ClosetItem, error) {
	if err := normalizeItemInput(&in); err != nil {
		return domain.ClosetItem{}, err
	}
	now := a.clock()
	item := domain.ClosetItem{ID: util.NewID(), CreatedAt: now}
	applyItemInput(&item, in, now)
	if in.Image != nil {
		key, err := a.putImage(ctx, installationID, item.ID, *in.Image)
		if err != nil {
			return domain.ClosetItem{}, err
		}
		item.ImageKey = key
	}
	items, err := a.records.LoadCloset(ctx, installationID)
	if err != nil {
		a.deleteImage(ctx, installationID, item.ImageKey)
		return domain.ClosetItem{}, err
	}
	items = append(items, item)
	if err := a.records.SaveCloset(ctx, installationID, items); err != nil {
		util.LoggerFromContext(ctx).Error("save closet failed", "installation_id", installationID, "err", err)
		a.deleteImage(ctx, installationID, item.ImageKey)
		return domain.ClosetItem{}, err
	}
	a.attachImageURL(ctx, &item)
	return item, nil
}

// UpdateItem replaces the editable fields of an item; id and creation time are kept.
func (a *App) UpdateItem(ctx context.Context, installationID, itemID string, in ItemInput) (domain.ClosetItem, error) {
	if err := normalizeItemInput(&in); err != nil {
		return domain.ClosetItem{}, err
	}
	items, err := a.records.LoadCloset(ctx, installationID)
	if err != nil {
		return domain.ClosetItem{}, err
	}
	idx := indexOfItem(items, itemID)
	if idx < 0 {
		return domain.ClosetItem{}, ErrItemNotFound
	}
	item := items[idx]
	oldKey := item.ImageKey
	applyItemInput(&item, in, a.clock())
	if in.Image != nil {
		key, err := a.putImage(ctx, installationID, util.NewID(), *in.Image)
		if err != nil {
			return domain.ClosetItem{}, err
		}
		item.ImageKey = key
	}
	items[idx] = item
	if err := a.records.SaveCloset(ctx, installationID, items); err != nil {
		util.LoggerFromContext(ctx).Error("save closet failed", "installation_id", installationID, "err", err)
		if item.ImageKey != oldKey {
			a.deleteImage(ctx, installationID, item.ImageKey)
		}
		return domain.ClosetItem{}, err
	}
	if item.ImageKey != oldKey {
		a.deleteImage(ctx, installationID, oldKey)
	}
	a.attachImageURL(ctx, &item)
	return item, nil
}

// DeleteItem removes the item and its photo. History entries that mention
// the item keep their own copy.
func (a *App) DeleteItem(ctx context.Context, installationID, itemID string) error {
	items, err := a.records.LoadCloset(ctx, installationID)
	if err != nil {
		return err
	}
	idx := indexOfItem(items, itemID)
	if idx < 0 {
		return ErrItemNotFound
	}
	removed := items[idx]
	items = append(items[:idx], items[idx+1:]...)
	if err := a.records.SaveCloset(ctx, installationID, items); err != nil {
		util.LoggerFromContext(ctx).Error("save closet failed", "installation_id", installationID, "err", err)
		return err
	}
	a.deleteImage(ctx, installationID, removed.ImageKey)
	return nil
}

// GroupByType groups items in garment display order. Types outside the
// known list come last, sorted by name.
func GroupByType(items []domain.ClosetItem) []ItemGroup {
	byType := make(map[domain.GarmentType][]domain.ClosetItem)
	for _, item := range items {
		byType[item.Type] = append(byType[item.Type], item)
	}
	groups := make([]ItemGroup, 0, len(byType))
	for _, t := range domain.GarmentTypes {
		if list, ok := byType[t]; ok {
			groups = append(groups, ItemGroup{Type: t, Items: list})
			delete(byType, t)
		}
	}
	rest := make([]domain.GarmentType, 0, len(byType))
	for t := range byType {
		rest = append(rest, t)
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	for _, t := range rest {
		groups = append(groups, ItemGroup{Type: t, Items: byType[t]})
	}
	return groups
}

func normalizeItemInput(in *ItemInput) error {
	in.Type = domain.GarmentType(strings.ToLower(strings.TrimSpace(string(in.Type))))
	in.Name = strings.TrimSpace(in.Name)
	in.Colors = cleanList(in.Colors)
	if !in.Type.Valid() {
		return invalid("type", fmt.Sprintf("unknown garment type %q", in.Type))
	}
	if in.Name == "" && len(in.Colors) == 0 {
		return invalid("name", "a name or at least one color is required")
	}
	if len(in.Name) > maxItemNameLength {
		return invalid("name", "too long")
	}
	return nil
}

func applyItemInput(item *domain.ClosetItem, in ItemInput, now time.Time) {
	item.Type = in.Type
	item.Name = in.Name
	item.Colors = in.Colors
	item.Material = strings.TrimSpace(in.Material)
	item.Brand = strings.TrimSpace(in.Brand)
	item.Pattern = strings.TrimSpace(in.Pattern)
	item.Season = strings.TrimSpace(in.Season)
	item.Notes = strings.TrimSpace(in.Notes)
	item.ImageURL = ""
	item.UpdatedAt = now
}

func indexOfItem(items []domain.ClosetItem, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

func (a *App) putImage(ctx context.Context, installationID, name string, img Image) (string, error) {
	data, mediaType, err := a.decodeImage(img)
	if err != nil {
		return "", err
	}
	key := "closet/" + installationID + "/" + name + imageExtensions[mediaType]
	if err := a.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), mediaType); err != nil {
		util.LoggerFromContext(ctx).Error("upload closet photo failed", "installation_id", installationID, "err", err)
		return "", fmt.Errorf("store photo: %w", err)
	}
	return key, nil
}

func (a *App) deleteImage(ctx context.Context, installationID, key string) {
	if key == "" {
		return
	}
	if err := a.objects.Delete(ctx, key); err != nil {
		util.LoggerFromContext(ctx).Warn("delete closet photo failed", "installation_id", installationID, "key", key, "err", err)
	}
}

func (a *App) attachImageURL(ctx context.Context, item *domain.ClosetItem) {
	item.ImageURL = ""
	if item.ImageKey == "" {
		return
	}
	url, err := a.objects.PresignGet(ctx, item.ImageKey, a.imageURLExpiry)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("presign closet photo failed", "key", item.ImageKey, "err", err)
		return
	}
	item.ImageURL = url
}
