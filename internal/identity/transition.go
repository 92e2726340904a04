package identity

import (
	"errors"
	"fmt"
)

// Action is an admin-driven moderation transition.
type Action string

const (
	ActionApprove   Action = "approve"
	ActionProbate   Action = "probate"
	ActionReinstate Action = "reinstate"
	ActionBan       Action = "ban"
)

var (
	ErrUnknownAction     = errors.New("unknown moderation action")
	ErrInvalidTransition = errors.New("invalid moderation transition")
)

// ParseAction validates a path/body value.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionApprove, ActionProbate, ActionReinstate, ActionBan:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Apply returns the roles after performing action on a user currently
// holding roles. Capability flags are never touched. Banned is terminal.
//
//	Unapproved --approve--> Approved
//	Approved   --probate--> OnProbation --reinstate--> Approved
//	any        --ban------> Banned
//
// Re-applying the edge that leads to the current state is a no-op, ban
// included.
func Apply(roles Roles, action Action) (Roles, error) {
	from := User{Roles: roles}.State()
	if from == StateBanned {
		if action == ActionBan {
			return roles, nil
		}
		return roles, fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, from)
	}

	next := roles
	switch action {
	case ActionApprove:
		if from != StateUnapproved && from != StateApproved {
			return roles, fmt.Errorf("%w: cannot approve from %s", ErrInvalidTransition, from)
		}
		next.Approved = true
		next.Probation = false
	case ActionProbate:
		if from != StateApproved && from != StateOnProbation {
			return roles, fmt.Errorf("%w: cannot probate from %s", ErrInvalidTransition, from)
		}
		next.Probation = true
	case ActionReinstate:
		if from != StateOnProbation && from != StateApproved {
			return roles, fmt.Errorf("%w: cannot reinstate from %s", ErrInvalidTransition, from)
		}
		next.Probation = false
	case ActionBan:
		next.Banned = true
	default:
		return roles, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	return next, nil
}
