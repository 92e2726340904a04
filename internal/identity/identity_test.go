package identity

import (
	"errors"
	"testing"
)

func TestState(t *testing.T) {
	tests := []struct {
		name  string
		roles Roles
		want  State
	}{
		{"no flags", Roles{}, StateUnapproved},
		{"approved", Roles{Approved: true}, StateApproved},
		{"probation", Roles{Approved: true, Probation: true}, StateOnProbation},
		{"probation without approval", Roles{Probation: true}, StateUnapproved},
		{"banned wins over approved", Roles{Approved: true, Banned: true}, StateBanned},
		{"banned admin", Roles{Admin: true, Approved: true, Banned: true}, StateBanned},
		{"admin is orthogonal", Roles{Admin: true}, StateUnapproved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (User{Roles: tt.roles}).State(); got != tt.want {
				t.Errorf("State() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	u, err := Decode("u1", map[string]any{
		"email":    "a@example.com",
		"username": "alice",
		"roles":    map[string]any{"APPROVED": "APPROVED", "MODERATOR": true, "BANNED": false},
	})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if u.UID != "u1" || u.Username != "alice" {
		t.Errorf("user = %+v", u)
	}
	if !u.Roles.Approved || !u.Roles.Moderator || u.Roles.Banned {
		t.Errorf("roles = %+v", u.Roles)
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name   string
		uid    string
		fields map[string]any
	}{
		{"nil record", "u1", nil},
		{"missing uid", "", map[string]any{"roles": map[string]any{}}},
		{"roles not written yet", "u1", map[string]any{"email": "a@example.com"}},
		{"roles null", "u1", map[string]any{"roles": nil}},
		{"roles wrong type", "u1", map[string]any{"roles": "APPROVED"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.uid, tt.fields); !errors.Is(err, ErrMalformed) {
				t.Errorf("err = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestFieldsRoundTrip(t *testing.T) {
	in := User{UID: "u1", Email: "a@example.com", Username: "alice", Roles: Roles{Approved: true, Admin: true}}
	out, err := Decode(in.UID, in.Fields())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out != in {
		t.Errorf("got %+v, want %+v", out, in)
	}
}

func TestApply(t *testing.T) {
	approved := Roles{Approved: true}
	probation := Roles{Approved: true, Probation: true}

	tests := []struct {
		name    string
		from    Roles
		action  Action
		want    State
		wantErr error
	}{
		{"approve new member", Roles{}, ActionApprove, StateApproved, nil},
		{"approve is idempotent", approved, ActionApprove, StateApproved, nil},
		{"probate", approved, ActionProbate, StateOnProbation, nil},
		{"reinstate", probation, ActionReinstate, StateApproved, nil},
		{"approve from probation", probation, ActionApprove, StateOnProbation, ErrInvalidTransition},
		{"ban from anywhere", probation, ActionBan, StateBanned, nil},
		{"ban unapproved", Roles{}, ActionBan, StateBanned, nil},
		{"cannot probate unapproved", Roles{}, ActionProbate, StateUnapproved, ErrInvalidTransition},
		{"banned is terminal", Roles{Approved: true, Banned: true}, ActionApprove, StateBanned, ErrInvalidTransition},
		{"banned cannot be reinstated", Roles{Approved: true, Banned: true}, ActionReinstate, StateBanned, ErrInvalidTransition},
		{"re-ban is a no-op", Roles{Approved: true, Banned: true}, ActionBan, StateBanned, nil},
		{"unknown action", approved, Action("promote"), StateApproved, ErrUnknownAction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(tt.from, tt.action)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if s := (User{Roles: got}).State(); s != tt.want {
				t.Errorf("state = %s, want %s", s, tt.want)
			}
		})
	}
}

func TestApplyKeepsCapabilities(t *testing.T) {
	got, err := Apply(Roles{Approved: true, Admin: true, Moderator: true}, ActionBan)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Admin || !got.Moderator || !got.Approved {
		t.Errorf("capabilities dropped: %+v", got)
	}
}

func TestParseAction(t *testing.T) {
	if a, err := ParseAction("ban"); err != nil || a != ActionBan {
		t.Errorf("ParseAction(ban) = %q, %v", a, err)
	}
	if _, err := ParseAction("delete"); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("err = %v, want ErrUnknownAction", err)
	}
}
