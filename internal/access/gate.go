// Package access decides whether an actor may perform an operation on a
// collection or item. Every function here is pure: no store calls, no
// logging, no clock.
package access

import (
	"errors"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/fellowship/internal/content"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/identity"
)

// Operation is what the actor is trying to do.
type Operation string

const (
	OpRead     Operation = "read"
	OpCreate   Operation = "create"
	OpEdit     Operation = "edit"
	OpDelete   Operation = "delete"
	OpModerate Operation = "moderate"
	OpReview   Operation = "review"
)

// Reason codes returned with every denial.
const (
	ReasonUnauthenticated = "unauthenticated"
	ReasonBanned          = "banned"
	ReasonUnapproved      = "unapproved"
	ReasonProbation       = "probation"
	ReasonNotOwner        = "not_owner"
	ReasonNotAdmin        = "not_admin"
	ReasonNotStaff        = "not_staff"
	ReasonNoItem          = "no_item"
	ReasonUnsupported     = "unsupported"
)

// Decision is the gate's answer. Reason is empty when Allowed.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision             { return Decision{Allowed: true} }
func deny(reason string) Decision { return Decision{Reason: reason} }

// Err converts a denial into a *DeniedError for op.
func (d Decision) Err(op Operation) error {
	if d.Allowed {
		return nil
	}
	return &DeniedError{Operation: op, Reason: d.Reason}
}

// DeniedError is returned to callers when the gate refuses an operation.
type DeniedError struct {
	Operation Operation
	Reason    string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s denied: %s", e.Operation, e.Reason)
}

// IsDenied unwraps err to a *DeniedError.
func IsDenied(err error) (*DeniedError, bool) {
	var de *DeniedError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// CanPerform evaluates op for user against collection c. item is required
// for edit and delete and ignored otherwise. Banned takes precedence over
// every other flag, including ADMIN.
func CanPerform(user *identity.User, op Operation, c content.Collection, item *content.Item) Decision {
	if user == nil || user.UID == "" {
		return deny(ReasonUnauthenticated)
	}
	state := user.State()
	if state == identity.StateBanned {
		return deny(ReasonBanned)
	}

	switch op {
	case OpRead:
		return canRead(user, state, c.GateKind())
	case OpCreate:
		return canCreate(user, state, c.GateKind())
	case OpEdit:
		if item == nil {
			return deny(ReasonNoItem)
		}
		if d := probationWrite(state, c.GateKind()); !d.Allowed {
			return d
		}
		if item.UserID == user.UID {
			return allow()
		}
		return deny(ReasonNotOwner)
	case OpDelete:
		if item == nil {
			return deny(ReasonNoItem)
		}
		if d := probationWrite(state, c.GateKind()); !d.Allowed {
			return d
		}
		if item.UserID == user.UID {
			return allow()
		}
		if c.Kind == content.KindAnnouncements && user.IsStaff() {
			return allow()
		}
		return deny(ReasonNotOwner)
	}
	return deny(ReasonUnsupported)
}

func canRead(user *identity.User, state identity.State, kind content.Kind) Decision {
	switch kind {
	case content.KindMessages:
		return approvedNotProbation(state)
	case content.KindAnnouncements:
		if state == identity.StateUnapproved {
			return deny(ReasonUnapproved)
		}
		return allow()
	case content.KindPrayers, content.KindSupports:
		if state != identity.StateUnapproved || user.IsStaff() {
			return allow()
		}
		return deny(ReasonUnapproved)
	}
	return deny(ReasonUnsupported)
}

func canCreate(user *identity.User, state identity.State, kind content.Kind) Decision {
	switch kind {
	case content.KindMessages:
		return approvedNotProbation(state)
	case content.KindPrayers:
		if state == identity.StateOnProbation {
			return deny(ReasonProbation)
		}
		if state == identity.StateApproved || user.IsStaff() {
			return allow()
		}
		return deny(ReasonUnapproved)
	case content.KindSupports:
		if state != identity.StateUnapproved || user.IsStaff() {
			return allow()
		}
		return deny(ReasonUnapproved)
	case content.KindAnnouncements:
		if user.IsStaff() {
			return allow()
		}
		return deny(ReasonNotStaff)
	}
	return deny(ReasonUnsupported)
}

// probationWrite blocks every write on the chat and prayer threads while
// the actor is on probation. Edits and deletes count as writes.
func probationWrite(state identity.State, kind content.Kind) Decision {
	if state == identity.StateOnProbation && (kind == content.KindMessages || kind == content.KindPrayers) {
		return deny(ReasonProbation)
	}
	return allow()
}

func approvedNotProbation(state identity.State) Decision {
	switch state {
	case identity.StateApproved:
		return allow()
	case identity.StateOnProbation:
		return deny(ReasonProbation)
	default:
		return deny(ReasonUnapproved)
	}
}

// CanModerate gates admin-only moderation transitions.
func CanModerate(user *identity.User) Decision {
	if user == nil || user.UID == "" {
		return deny(ReasonUnauthenticated)
	}
	if user.State() == identity.StateBanned {
		return deny(ReasonBanned)
	}
	if !user.IsAdmin() {
		return deny(ReasonNotAdmin)
	}
	return allow()
}

// CanReview gates the report queue, open to moderators and admins.
func CanReview(user *identity.User) Decision {
	if user == nil || user.UID == "" {
		return deny(ReasonUnauthenticated)
	}
	if user.State() == identity.StateBanned {
		return deny(ReasonBanned)
	}
	if !user.IsStaff() {
		return deny(ReasonNotStaff)
	}
	return allow()
}

// CanView reports whether a single item in c should be listed to user.
// Private collections are listed only to the author and to staff.
func CanView(user *identity.User, c content.Collection, item content.Item) bool {
	if !c.Private {
		return true
	}
	if user == nil {
		return false
	}
	return item.UserID == user.UID || user.IsStaff()
}

// VisibleTo returns a snapshot stage that drops items user may not see.
func VisibleTo(user identity.User, c content.Collection) func([]content.Item) []content.Item {
	return func(items []content.Item) []content.Item {
		if items == nil || !c.Private {
			return items
		}
		out := make([]content.Item, 0, len(items))
		for _, it := range items {
			if CanView(&user, c, it) {
				out = append(out, it)
			}
		}
		return out
	}
}
