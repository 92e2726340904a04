package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/fellowship/internal/access"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/config"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/content"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/identity"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/store"
)

var (
	ErrItemNotFound   = errors.New("item not found")
	ErrParentNotFound = errors.New("parent thread not found")
)

// RejectedError is returned when the content filter refuses a payload.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return "content rejected: " + e.Reason
}

// ContentService is the create/edit/remove engine shared by every
// collection. None of its writes touch a live mirror; callers observe their
// own writes through the next notification like everyone else.
type ContentService struct {
	store  store.Adapter
	filter *ContentFilter
}

func NewContentService(a store.Adapter, filter *ContentFilter) *ContentService {
	if filter == nil {
		filter = NewContentFilter(config.DefaultFilter())
	}
	return &ContentService{store: a, filter: filter}
}

// Create appends a new item authored by actor and returns its store key.
func (s *ContentService) Create(ctx context.Context, actor *identity.User, c content.Collection, d content.Draft) (string, error) {
	if err := access.CanPerform(actor, access.OpCreate, c, nil).Err(access.OpCreate); err != nil {
		return "", err
	}
	if err := s.screen(c, d); err != nil {
		return "", err
	}
	if c.ParentField != "" {
		if err := s.checkParent(ctx, actor, c); err != nil {
			return "", err
		}
	}

	fields := content.Record(c, d, actor.UID, actor.Username, store.ServerTimestamp, nil)
	key, err := s.store.Append(ctx, c.Path, fields)
	if err != nil {
		slog.Error("create item failed", "collection", c.Path, "actor_id", actor.UID, "error", err)
		return "", err
	}

	slog.Info("item created", "collection", c.Path, "item_id", key, "actor_id", actor.UID)
	return key, nil
}

// Edit overwrites item with the fields of d and a fresh editedAt stamp.
// uid, createdAt and the author are carried over unchanged.
func (s *ContentService) Edit(ctx context.Context, actor *identity.User, c content.Collection, item content.Item, d content.Draft) error {
	if err := access.CanPerform(actor, access.OpEdit, c, &item).Err(access.OpEdit); err != nil {
		return err
	}
	if err := s.screen(c, d); err != nil {
		return err
	}

	fields := content.Record(c, d, item.UserID, item.Username, item.CreatedAt, store.ServerTimestamp)
	if err := s.store.Overwrite(ctx, c.Path, item.UID, fields); err != nil {
		slog.Error("edit item failed", "collection", c.Path, "item_id", item.UID, "actor_id", actor.UID, "error", err)
		return err
	}

	slog.Info("item edited", "collection", c.Path, "item_id", item.UID, "actor_id", actor.UID)
	return nil
}

// Remove hard-deletes item.
func (s *ContentService) Remove(ctx context.Context, actor *identity.User, c content.Collection, item content.Item) error {
	if err := access.CanPerform(actor, access.OpDelete, c, &item).Err(access.OpDelete); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, c.Path, item.UID); err != nil {
		slog.Error("remove item failed", "collection", c.Path, "item_id", item.UID, "actor_id", actor.UID, "error", err)
		return err
	}

	slog.Info("item removed", "collection", c.Path, "item_id", item.UID, "actor_id", actor.UID)
	return nil
}

// Lookup reads a single item by key.
func (s *ContentService) Lookup(ctx context.Context, c content.Collection, uid string) (content.Item, error) {
	rec, ok, err := s.store.Read(ctx, c.Path, uid)
	if err != nil {
		return content.Item{}, err
	}
	if !ok {
		return content.Item{}, ErrItemNotFound
	}
	return content.Decode(c, rec.Key, rec.Fields)
}

func (s *ContentService) screen(c content.Collection, d content.Draft) error {
	if err := d.Validate(c); err != nil {
		return err
	}
	if ok, reason := s.filter.Check(d.Text); !ok {
		return &RejectedError{Reason: reason}
	}
	if c.Titled {
		if ok, reason := s.filter.Check(d.Title); !ok {
			return &RejectedError{Reason: reason}
		}
	}
	return nil
}

// checkParent makes sure a reply hangs off an existing thread the actor can
// see.
func (s *ContentService) checkParent(ctx context.Context, actor *identity.User, c content.Collection) error {
	parent, err := content.Lookup(string(c.ParentKind))
	if err != nil {
		return err
	}
	item, err := s.Lookup(ctx, parent, c.ParentID)
	if errors.Is(err, ErrItemNotFound) {
		return fmt.Errorf("%w: %s/%s", ErrParentNotFound, parent.Path, c.ParentID)
	}
	if err != nil {
		return err
	}
	if !access.CanView(actor, parent, item) {
		return fmt.Errorf("%w: %s/%s", ErrParentNotFound, parent.Path, c.ParentID)
	}
	return nil
}
