package services

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/fellowship/internal/access"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/config"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/dto"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/identity"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	UsersPath       = "users"
	CredentialsPath = "credentials"

	// directoryLimit bounds the admin user listing.
	directoryLimit = 1000
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidSignup      = errors.New("invalid registration")
)

// UserService owns user records and credentials. Users live in the store
// under users/<uid>; credentials are keyed by a hash of the email so login
// is a single read.
type UserService struct {
	store  store.Adapter
	cfg    *config.Config
	admins map[string]bool
}

func NewUserService(a store.Adapter, cfg *config.Config) *UserService {
	admins := make(map[string]bool)
	for _, e := range strings.Split(cfg.AdminEmails, ",") {
		if e = normalizeEmail(e); e != "" {
			admins[e] = true
		}
	}
	return &UserService{store: a, cfg: cfg, admins: admins}
}

func (s *UserService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	email := normalizeEmail(req.Email)
	if _, err := mail.ParseAddress(email); err != nil || len(req.Password) < 8 {
		return nil, fmt.Errorf("%w: valid email required and password must be at least 8 characters", ErrInvalidSignup)
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		username, _, _ = strings.Cut(email, "@")
	}

	credKey := emailKey(email)
	if _, exists, err := s.store.Read(ctx, CredentialsPath, credKey); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := identity.User{
		UID:      uuid.New().String(),
		Email:    email,
		Username: username,
	}
	if s.admins[email] {
		user.Roles.Admin = true
		user.Roles.Approved = true
	}

	fields := user.Fields()
	fields["createdAt"] = store.ServerTimestamp
	if err := s.store.Overwrite(ctx, UsersPath, user.UID, fields); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	cred := map[string]any{
		"uid":          user.UID,
		"passwordHash": string(hash),
		"createdAt":    store.ServerTimestamp,
	}
	if err := s.store.Overwrite(ctx, CredentialsPath, credKey, cred); err != nil {
		return nil, fmt.Errorf("failed to store credentials: %w", err)
	}

	slog.Info("user registered", "actor_id", user.UID, "admin", user.Roles.Admin)
	return s.authResponse(user)
}

func (s *UserService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	rec, ok, err := s.store.Read(ctx, CredentialsPath, emailKey(normalizeEmail(req.Email)))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	hash, _ := rec.Fields["passwordHash"].(string)
	uid, _ := rec.Fields["uid"].(string)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	return s.authResponse(user)
}

// Get re-reads a user record. A record without roles is reported as
// identity.ErrMalformed.
func (s *UserService) Get(ctx context.Context, uid string) (identity.User, error) {
	if uid == "" {
		return identity.User{}, ErrUserNotFound
	}
	rec, ok, err := s.store.Read(ctx, UsersPath, uid)
	if err != nil {
		return identity.User{}, err
	}
	if !ok {
		return identity.User{}, ErrUserNotFound
	}
	return identity.Decode(rec.Key, rec.Fields)
}

// List returns the user directory, oldest account first. Admin only.
func (s *UserService) List(ctx context.Context, actor *identity.User) ([]identity.User, error) {
	if err := access.CanModerate(actor).Err(access.OpModerate); err != nil {
		return nil, err
	}
	records, err := store.Once(ctx, s.store, UsersPath, store.IndexedField, directoryLimit)
	if err != nil {
		return nil, err
	}
	users := make([]identity.User, 0, len(records))
	for _, r := range records {
		u, err := identity.Decode(r.Key, r.Fields)
		if err != nil {
			slog.Warn("skipping malformed user record", "actor_id", r.Key, "error", err)
			continue
		}
		users = append(users, u)
	}
	return users, nil
}

func (s *UserService) authResponse(user identity.User) (*dto.AuthResponse, error) {
	token, err := s.generateAccessToken(user)
	if err != nil {
		return nil, err
	}
	return &dto.AuthResponse{
		AccessToken: token,
		User:        UserResponse(user),
	}, nil
}

func (s *UserService) generateAccessToken(user identity.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":   user.UID,
		"email": user.Email,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(s.cfg.JWTAccessExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

// UserResponse renders a user for API responses.
func UserResponse(u identity.User) dto.UserResponse {
	return dto.UserResponse{
		ID:       u.UID,
		Email:    u.Email,
		Username: u.Username,
		State:    u.State().String(),
		Roles:    u.Roles.Names(),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func emailKey(email string) string {
	h := sha256.Sum256([]byte(email))
	return fmt.Sprintf("%x", h)
}
