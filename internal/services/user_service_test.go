package services

import (
	"context"
	"errors"
	"testing"

	"github.com/ahmetcoskunkizilkaya/fellowship/internal/access"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/dto"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/identity"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/session"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/store"
)

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	docs := newCountingStore(t)
	cfg := testConfig()
	svc := NewUserService(docs, cfg)

	resp, err := svc.Register(ctx, &dto.RegisterRequest{Email: " Alice@Example.com ", Password: "password1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if resp.User.Email != "alice@example.com" || resp.User.Username != "alice" {
		t.Errorf("user = %+v", resp.User)
	}
	if resp.User.State != identity.StateUnapproved.String() || len(resp.User.Roles) != 0 {
		t.Errorf("new member state = %s roles = %v", resp.User.State, resp.User.Roles)
	}
	uid, err := session.ParseToken(cfg.JWTSecret, resp.AccessToken)
	if err != nil || uid != resp.User.ID {
		t.Errorf("ParseToken = %q, %v", uid, err)
	}

	if _, err := svc.Register(ctx, &dto.RegisterRequest{Email: "alice@example.com", Password: "password2"}); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate register err = %v", err)
	}

	login, err := svc.Login(ctx, &dto.LoginRequest{Email: "ALICE@example.com", Password: "password1"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if login.User.ID != resp.User.ID {
		t.Errorf("login uid = %s, want %s", login.User.ID, resp.User.ID)
	}

	for _, req := range []*dto.LoginRequest{
		{Email: "alice@example.com", Password: "wrong-password"},
		{Email: "nobody@example.com", Password: "password1"},
	} {
		if _, err := svc.Login(ctx, req); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login(%s) err = %v", req.Email, err)
		}
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewUserService(newCountingStore(t), testConfig())
	for _, req := range []*dto.RegisterRequest{
		{Email: "not-an-email", Password: "password1"},
		{Email: "bob@example.com", Password: "short"},
	} {
		if _, err := svc.Register(context.Background(), req); !errors.Is(err, ErrInvalidSignup) {
			t.Errorf("Register(%+v) err = %v", req, err)
		}
	}
}

func TestAdminBootstrap(t *testing.T) {
	ctx := context.Background()
	docs := newCountingStore(t)
	svc := NewUserService(docs, testConfig())

	resp, err := svc.Register(ctx, &dto.RegisterRequest{Email: "admin@example.com", Password: "password1", Username: "Pastor"})
	if err != nil {
		t.Fatal(err)
	}
	u, err := svc.Get(ctx, resp.User.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !u.IsAdmin() || u.State() != identity.StateApproved || u.Username != "Pastor" {
		t.Errorf("bootstrap admin = %+v", u)
	}

	users, err := svc.List(ctx, &u)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(users) != 1 || users[0].UID != u.UID {
		t.Errorf("List = %+v", users)
	}
}

func TestGetMalformedAndMissing(t *testing.T) {
	ctx := context.Background()
	docs := newCountingStore(t)
	svc := NewUserService(docs, testConfig())

	if err := docs.Overwrite(ctx, UsersPath, "half", map[string]any{"email": "half@example.com", "createdAt": store.ServerTimestamp}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Get(ctx, "half"); !errors.Is(err, identity.ErrMalformed) {
		t.Errorf("Get(half) err = %v, want ErrMalformed", err)
	}
	if _, err := svc.Get(ctx, "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Get(ghost) err = %v, want ErrUserNotFound", err)
	}
}

func TestListRequiresAdmin(t *testing.T) {
	svc := NewUserService(newCountingStore(t), testConfig())
	_, err := svc.List(context.Background(), member("mod", identity.Roles{Approved: true, Moderator: true}))
	if de, ok := access.IsDenied(err); !ok || de.Reason != access.ReasonNotAdmin {
		t.Errorf("err = %v, want not_admin", err)
	}
}
