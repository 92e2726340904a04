package content

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies one of the five collection variants.
type Kind string

const (
	KindMessages      Kind = "messages"
	KindAnnouncements Kind = "announcements"
	KindPrayers       Kind = "prayers"
	KindSupports      Kind = "supports"
	KindReplies       Kind = "replies"
)

// OrderField is the creation-time field every collection is ordered by.
const OrderField = "createdAt"

var ErrUnknownCollection = errors.New("unknown collection")

// Collection describes where a variant lives in the store and which extra
// fields its items carry. One generic engine handles all five variants by
// reading this descriptor.
type Collection struct {
	Kind       Kind
	Path       string
	OrderField string

	// Expires marks collections whose items carry endDate and are hidden
	// once it has passed.
	Expires bool
	// Titled collections carry a title.
	Titled bool
	// Anonymous collections carry isAnonymous.
	Anonymous bool
	// Private collections are listed only to the author and staff.
	Private bool

	// Parent is set for replies: the thread kind and its item uid.
	ParentKind  Kind
	ParentID    string
	ParentField string
}

func Messages() Collection {
	return Collection{Kind: KindMessages, Path: "messages", OrderField: OrderField}
}

func Announcements() Collection {
	return Collection{Kind: KindAnnouncements, Path: "announcements", OrderField: OrderField, Expires: true, Titled: true}
}

func Prayers() Collection {
	return Collection{Kind: KindPrayers, Path: "prayers", OrderField: OrderField}
}

func Supports() Collection {
	return Collection{Kind: KindSupports, Path: "supports", OrderField: OrderField, Anonymous: true, Private: true}
}

// Replies returns the reply thread under one prayer or support request.
func Replies(parentKind Kind, parentID string) (Collection, error) {
	var field string
	switch parentKind {
	case KindPrayers:
		field = "prayerId"
	case KindSupports:
		field = "supportId"
	default:
		return Collection{}, fmt.Errorf("%w: replies cannot hang off %q", ErrUnknownCollection, parentKind)
	}
	if parentID == "" || strings.Contains(parentID, "/") {
		return Collection{}, fmt.Errorf("%w: invalid parent id %q", ErrUnknownCollection, parentID)
	}
	return Collection{
		Kind:        KindReplies,
		Path:        "replies/" + string(parentKind) + "/" + parentID,
		OrderField:  OrderField,
		Anonymous:   true,
		Private:     true,
		ParentKind:  parentKind,
		ParentID:    parentID,
		ParentField: field,
	}, nil
}

// Lookup resolves a top-level collection by its path name.
func Lookup(name string) (Collection, error) {
	switch Kind(name) {
	case KindMessages:
		return Messages(), nil
	case KindAnnouncements:
		return Announcements(), nil
	case KindPrayers:
		return Prayers(), nil
	case KindSupports:
		return Supports(), nil
	}
	return Collection{}, fmt.Errorf("%w: %q", ErrUnknownCollection, name)
}

// Resolve accepts either a top-level name or "replies" plus a
// "<kind>/<id>" parent reference.
func Resolve(name, parent string) (Collection, error) {
	if Kind(name) != KindReplies {
		return Lookup(name)
	}
	kind, id, ok := strings.Cut(parent, "/")
	if !ok {
		return Collection{}, fmt.Errorf("%w: replies need a parent", ErrUnknownCollection)
	}
	return Replies(Kind(kind), id)
}

// GateKind is the kind whose access rules apply. Replies inherit the rules
// of their parent thread.
func (c Collection) GateKind() Kind {
	if c.Kind == KindReplies {
		return c.ParentKind
	}
	return c.Kind
}
