package handlers

import (
	"context"
	"time"

	"github.com/ahmetcoskunkizilkaya/fellowship/internal/access"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/config"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/content"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/dto"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/live"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/services"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/session"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/store"
	"github.com/gofiber/fiber/v2"
)

const snapshotTimeout = 5 * time.Second

// ContentHandler serves every collection, top-level and reply threads, from
// one set of handlers keyed by the route parameters.
type ContentHandler struct {
	store          store.Adapter
	contentService *services.ContentService
	cfg            *config.Config
	now            func() time.Time
}

func NewContentHandler(a store.Adapter, contentService *services.ContentService, cfg *config.Config) *ContentHandler {
	return &ContentHandler{store: a, contentService: contentService, cfg: cfg, now: time.Now}
}

// collection resolves /c/:collection or /threads/:kind/:parent/replies.
func collection(c *fiber.Ctx) (content.Collection, error) {
	if parent := c.Params("parent"); parent != "" {
		return content.Replies(content.Kind(c.Params("kind")), parent)
	}
	return content.Lookup(c.Params("collection"))
}

// List returns a one-shot snapshot of the last window items.
func (h *ContentHandler) List(c *fiber.Ctx) error {
	actor, err := session.GetActor(c)
	if err != nil {
		return unauthorized(c)
	}
	coll, err := collection(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := access.CanPerform(actor, access.OpRead, coll, nil).Err(access.OpRead); err != nil {
		return respondError(c, err)
	}

	window := h.cfg.ClampWindow(c.QueryInt("window", h.cfg.WindowDefault))
	ctx, cancel := context.WithTimeout(c.UserContext(), snapshotTimeout)
	defer cancel()

	snap, err := live.Fetch(ctx, h.store, coll, live.Options{
		Window:  window,
		Filters: live.ViewerFilters(coll, *actor, h.now),
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.SnapshotResponse{
		Collection: coll.Path,
		Window:     window,
		Empty:      snap.Empty,
		Items:      content.Views(snap.Items, actor.UID),
	})
}

func (h *ContentHandler) Create(c *fiber.Ctx) error {
	actor, err := session.GetActor(c)
	if err != nil {
		return unauthorized(c)
	}
	coll, err := collection(c)
	if err != nil {
		return respondError(c, err)
	}

	var draft content.Draft
	if err := c.BodyParser(&draft); err != nil {
		return badBody(c)
	}

	id, err := h.contentService.Create(c.UserContext(), actor, coll, draft)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.CreatedResponse{ID: id})
}

// Update overwrites an item. Fields missing from the body keep their
// current values, so the write is still a full overwrite of the record.
func (h *ContentHandler) Update(c *fiber.Ctx) error {
	actor, err := session.GetActor(c)
	if err != nil {
		return unauthorized(c)
	}
	coll, err := collection(c)
	if err != nil {
		return respondError(c, err)
	}
	item, err := h.contentService.Lookup(c.UserContext(), coll, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	draft := content.DraftOf(item)
	if err := c.BodyParser(&draft); err != nil {
		return badBody(c)
	}

	if err := h.contentService.Edit(c.UserContext(), actor, coll, item, draft); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Item updated"})
}

func (h *ContentHandler) Delete(c *fiber.Ctx) error {
	actor, err := session.GetActor(c)
	if err != nil {
		return unauthorized(c)
	}
	coll, err := collection(c)
	if err != nil {
		return respondError(c, err)
	}
	item, err := h.contentService.Lookup(c.UserContext(), coll, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	if err := h.contentService.Remove(c.UserContext(), actor, coll, item); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Item removed"})
}
