package access

import (
	"testing"

	"github.com/ahmetcoskunkizilkaya/fellowship/internal/content"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/identity"
)

func user(uid string, roles identity.Roles) *identity.User {
	return &identity.User{UID: uid, Username: uid, Roles: roles}
}

var (
	unapproved = identity.Roles{}
	approved   = identity.Roles{Approved: true}
	probation  = identity.Roles{Approved: true, Probation: true}
	banned     = identity.Roles{Approved: true, Banned: true}
	admin      = identity.Roles{Approved: true, Admin: true}
	moderator  = identity.Roles{Moderator: true}
)

func TestCanPerformCollectionRules(t *testing.T) {
	replies, err := content.Replies(content.KindPrayers, "p1")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		roles  identity.Roles
		op     Operation
		coll   content.Collection
		allow  bool
		reason string
	}{
		{"approved reads messages", approved, OpRead, content.Messages(), true, ""},
		{"approved writes messages", approved, OpCreate, content.Messages(), true, ""},
		{"unapproved reads messages", unapproved, OpRead, content.Messages(), false, ReasonUnapproved},
		{"probation reads messages", probation, OpRead, content.Messages(), false, ReasonProbation},
		{"probation reads announcements", probation, OpRead, content.Announcements(), true, ""},
		{"probation reads prayers", probation, OpRead, content.Prayers(), true, ""},
		{"probation writes messages", probation, OpCreate, content.Messages(), false, ReasonProbation},
		{"probation writes prayers", probation, OpCreate, content.Prayers(), false, ReasonProbation},
		{"probation writes supports", probation, OpCreate, content.Supports(), true, ""},
		{"unapproved writes supports", unapproved, OpCreate, content.Supports(), false, ReasonUnapproved},
		{"unapproved moderator writes supports", moderator, OpCreate, content.Supports(), true, ""},
		{"approved announces", approved, OpCreate, content.Announcements(), false, ReasonNotStaff},
		{"admin announces", admin, OpCreate, content.Announcements(), true, ""},
		{"replies follow prayers", probation, OpCreate, replies, false, ReasonProbation},
		{"approved replies to prayer", approved, OpCreate, replies, true, ""},
		{"moderate is not a collection op", admin, OpModerate, content.Messages(), false, ReasonUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := CanPerform(user("u1", tt.roles), tt.op, tt.coll, nil)
			if d.Allowed != tt.allow || d.Reason != tt.reason {
				t.Errorf("got %+v, want allowed=%v reason=%q", d, tt.allow, tt.reason)
			}
		})
	}
}

func TestBannedDeniedEverything(t *testing.T) {
	// The stale APPROVED and ADMIN flags do not help a banned user.
	u := user("u1", identity.Roles{Approved: true, Admin: true, Moderator: true, Banned: true})
	own := &content.Item{UID: "i1", UserID: "u1"}

	for _, c := range []content.Collection{content.Messages(), content.Announcements(), content.Prayers(), content.Supports()} {
		for _, op := range []Operation{OpRead, OpCreate, OpEdit, OpDelete} {
			d := CanPerform(u, op, c, own)
			if d.Allowed || d.Reason != ReasonBanned {
				t.Errorf("%s %s: got %+v, want banned", op, c.Kind, d)
			}
		}
	}
	if d := CanModerate(u); d.Allowed || d.Reason != ReasonBanned {
		t.Errorf("CanModerate = %+v", d)
	}
	if d := CanReview(u); d.Allowed || d.Reason != ReasonBanned {
		t.Errorf("CanReview = %+v", d)
	}
}

func TestUnauthenticated(t *testing.T) {
	for _, u := range []*identity.User{nil, {}} {
		d := CanPerform(u, OpRead, content.Messages(), nil)
		if d.Allowed || d.Reason != ReasonUnauthenticated {
			t.Errorf("got %+v", d)
		}
	}
}

func TestOwnership(t *testing.T) {
	anon := &content.Item{UID: "s1", UserID: "author", IsAnonymous: true}
	ann := &content.Item{UID: "a1", UserID: "admin"}

	tests := []struct {
		name  string
		actor *identity.User
		op    Operation
		coll  content.Collection
		item  *content.Item
		allow bool
	}{
		{"owner edits anonymous item", user("author", approved), OpEdit, content.Supports(), anon, true},
		{"owner deletes anonymous item", user("author", approved), OpDelete, content.Supports(), anon, true},
		{"other user edits", user("other", approved), OpEdit, content.Supports(), anon, false},
		{"admin cannot edit others' support", user("boss", admin), OpEdit, content.Supports(), anon, false},
		{"moderator deletes announcement", user("mod", moderator), OpDelete, content.Announcements(), ann, true},
		{"moderator cannot edit announcement", user("mod", moderator), OpEdit, content.Announcements(), ann, false},
		{"missing item", user("author", approved), OpEdit, content.Supports(), nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if d := CanPerform(tt.actor, tt.op, tt.coll, tt.item); d.Allowed != tt.allow {
				t.Errorf("got %+v, want allowed=%v", d, tt.allow)
			}
		})
	}
}

func TestProbationRevokesWrites(t *testing.T) {
	probated := user("author", probation)
	own := &content.Item{UID: "i1", UserID: "author"}
	prayerReplies, err := content.Replies(content.KindPrayers, "p1")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		op     Operation
		coll   content.Collection
		allow  bool
		reason string
	}{
		{"edit own message", OpEdit, content.Messages(), false, ReasonProbation},
		{"delete own message", OpDelete, content.Messages(), false, ReasonProbation},
		{"edit own prayer", OpEdit, content.Prayers(), false, ReasonProbation},
		{"delete own prayer", OpDelete, content.Prayers(), false, ReasonProbation},
		{"edit own prayer reply", OpEdit, prayerReplies, false, ReasonProbation},
		{"edit own support request", OpEdit, content.Supports(), true, ""},
		{"delete own support request", OpDelete, content.Supports(), true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := CanPerform(probated, tt.op, tt.coll, own)
			if d.Allowed != tt.allow || d.Reason != tt.reason {
				t.Errorf("got %+v, want allowed=%v reason=%q", d, tt.allow, tt.reason)
			}
		})
	}

	// Reinstated owners get their edit rights back.
	if d := CanPerform(user("author", approved), OpEdit, content.Messages(), own); !d.Allowed {
		t.Errorf("approved owner edit = %+v", d)
	}
}

func TestDecisionErr(t *testing.T) {
	d := CanPerform(user("u1", probation), OpCreate, content.Messages(), nil)
	err := d.Err(OpCreate)
	de, ok := IsDenied(err)
	if !ok {
		t.Fatalf("IsDenied(%v) = false", err)
	}
	if de.Operation != OpCreate || de.Reason != ReasonProbation {
		t.Errorf("got %+v", de)
	}
	if err := allow().Err(OpCreate); err != nil {
		t.Errorf("allowed decision returned %v", err)
	}
}

func TestStaffGates(t *testing.T) {
	if d := CanModerate(user("m", moderator)); d.Allowed || d.Reason != ReasonNotAdmin {
		t.Errorf("moderator CanModerate = %+v", d)
	}
	if d := CanModerate(user("a", admin)); !d.Allowed {
		t.Errorf("admin CanModerate = %+v", d)
	}
	if d := CanReview(user("m", moderator)); !d.Allowed {
		t.Errorf("moderator CanReview = %+v", d)
	}
	if d := CanReview(user("u", approved)); d.Allowed || d.Reason != ReasonNotStaff {
		t.Errorf("member CanReview = %+v", d)
	}
}

func TestVisibleTo(t *testing.T) {
	items := []content.Item{
		{UID: "1", UserID: "alice"},
		{UID: "2", UserID: "bob", IsAnonymous: true},
		{UID: "3", UserID: "alice", IsAnonymous: true},
	}

	got := VisibleTo(*user("alice", approved), content.Supports())(items)
	if len(got) != 2 || got[0].UID != "1" || got[1].UID != "3" {
		t.Errorf("member sees %+v", got)
	}

	if got := VisibleTo(*user("mod", moderator), content.Supports())(items); len(got) != 3 {
		t.Errorf("staff sees %d items, want 3", len(got))
	}
	if got := VisibleTo(*user("carol", approved), content.Prayers())(items); len(got) != 3 {
		t.Errorf("public collection filtered to %d items", len(got))
	}
	if got := VisibleTo(*user("alice", approved), content.Supports())(nil); got != nil {
		t.Errorf("nil snapshot became %v", got)
	}
	if got := VisibleTo(*user("carol", approved), content.Supports())(items); got == nil || len(got) != 0 {
		t.Errorf("want empty non-nil, got %#v", got)
	}
}
