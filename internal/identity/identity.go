// Package identity models community members and their moderation state.
//
// Role flags are stored as an open bag (APPROVED, BANNED, PROBATION, ADMIN,
// MODERATOR) but are read through State, which collapses the base flags into
// one of four moderation states. ADMIN and MODERATOR are capabilities layered
// on top of whatever state the user is in.
package identity

import (
	"errors"
	"fmt"
	"strings"
)

// Role flag names as they appear in stored user records.
const (
	RoleApproved  = "APPROVED"
	RoleBanned    = "BANNED"
	RoleProbation = "PROBATION"
	RoleAdmin     = "ADMIN"
	RoleModerator = "MODERATOR"
)

var ErrMalformed = errors.New("malformed user record")

// State is the moderation state derived from a user's base flags.
type State int

const (
	StateUnapproved State = iota
	StateApproved
	StateOnProbation
	StateBanned
)

func (s State) String() string {
	switch s {
	case StateApproved:
		return "approved"
	case StateOnProbation:
		return "on_probation"
	case StateBanned:
		return "banned"
	default:
		return "unapproved"
	}
}

// Roles is the set of flags carried by a user. Several may be set at once.
type Roles struct {
	Approved  bool
	Banned    bool
	Probation bool
	Admin     bool
	Moderator bool
}

// User is the authenticated actor passed explicitly into every gate and
// CRUD call.
type User struct {
	UID      string
	Email    string
	Username string
	Roles    Roles
}

// State collapses the base flags. Banned wins over everything, an account
// that was never approved stays Unapproved even if PROBATION is set.
func (u User) State() State {
	switch {
	case u.Roles.Banned:
		return StateBanned
	case !u.Roles.Approved:
		return StateUnapproved
	case u.Roles.Probation:
		return StateOnProbation
	default:
		return StateApproved
	}
}

func (u User) IsAdmin() bool     { return u.Roles.Admin }
func (u User) IsModerator() bool { return u.Roles.Moderator }

// IsStaff reports whether the user holds either capability flag.
func (u User) IsStaff() bool { return u.Roles.Admin || u.Roles.Moderator }

// RoleMap renders the flags in the stored wire shape, set flags only.
func (r Roles) RoleMap() map[string]any {
	m := make(map[string]any)
	if r.Approved {
		m[RoleApproved] = RoleApproved
	}
	if r.Banned {
		m[RoleBanned] = RoleBanned
	}
	if r.Probation {
		m[RoleProbation] = RoleProbation
	}
	if r.Admin {
		m[RoleAdmin] = RoleAdmin
	}
	if r.Moderator {
		m[RoleModerator] = RoleModerator
	}
	return m
}

// Names lists the set flags, in a fixed order.
func (r Roles) Names() []string {
	names := make([]string, 0, 5)
	for _, pair := range []struct {
		set  bool
		name string
	}{
		{r.Approved, RoleApproved},
		{r.Probation, RoleProbation},
		{r.Banned, RoleBanned},
		{r.Moderator, RoleModerator},
		{r.Admin, RoleAdmin},
	} {
		if pair.set {
			names = append(names, pair.name)
		}
	}
	return names
}

// Fields renders a user into a flat store record. The key (uid) is not part
// of the record.
func (u User) Fields() map[string]any {
	return map[string]any{
		"email":    u.Email,
		"username": u.Username,
		"roles":    u.Roles.RoleMap(),
	}
}

// Decode reads a user record pushed by the store. A record whose roles map
// is missing has not finished being written; it is reported as ErrMalformed
// so callers can treat the user as "not yet loaded".
func Decode(uid string, fields map[string]any) (User, error) {
	if uid == "" || fields == nil {
		return User{}, ErrMalformed
	}
	raw, ok := fields["roles"]
	if !ok || raw == nil {
		return User{}, fmt.Errorf("%w: %s has no roles", ErrMalformed, uid)
	}
	roleMap, ok := raw.(map[string]any)
	if !ok {
		return User{}, fmt.Errorf("%w: %s roles is %T", ErrMalformed, uid, raw)
	}

	u := User{UID: uid}
	u.Email, _ = fields["email"].(string)
	u.Username, _ = fields["username"].(string)
	u.Roles = Roles{
		Approved:  truthy(roleMap[RoleApproved]),
		Banned:    truthy(roleMap[RoleBanned]),
		Probation: truthy(roleMap[RoleProbation]),
		Admin:     truthy(roleMap[RoleAdmin]),
		Moderator: truthy(roleMap[RoleModerator]),
	}
	return u, nil
}

// truthy accepts both the boolean form and the legacy "FLAG": "FLAG" form.
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != "" && !strings.EqualFold(t, "false")
	case float64:
		return t != 0
	case int64:
		return t != 0
	case int:
		return t != 0
	default:
		return false
	}
}
