package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"pulse/internal/domain"
	"pulse/internal/repo"
)

// RegisterOptions are the self-service registration fields. Role defaults to
// CLIENT when empty; ADMIN accounts are created through the CLI.
type RegisterOptions struct {
	Name     string
	Email    string
	Password string
	Role     string
}

func (e Engine) Register(ctx context.Context, opts RegisterOptions) (domain.User, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return domain.User{}, ValidationError{Message: "Name is required."}
	}
	email := strings.ToLower(strings.TrimSpace(opts.Email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, ValidationError{Message: "A valid email is required."}
	}
	if len(opts.Password) < 8 {
		return domain.User{}, ValidationError{Message: "Password must be at least 8 characters."}
	}
	role := opts.Role
	if role == "" {
		role = domain.RoleClient
	}
	if !domain.ValidRole(role) {
		return domain.User{}, ValidationError{Message: "Unknown role: " + role}
	}
	if _, err := e.Repo.GetUserByEmail(ctx, email); err == nil {
		return domain.User{}, ConflictError{Message: "Email already registered."}
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}
	u := domain.User{
		ID:           uuid.New().String(),
		Name:         strings.TrimSpace(opts.Name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertUser(ctx, u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// Authenticate verifies a password login. The error is identical for unknown
// email and wrong password.
func (e Engine) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	u, err := e.Repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.User{}, AuthorizationError{Message: "Invalid email or password."}
		}
		return domain.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return domain.User{}, AuthorizationError{Message: "Invalid email or password."}
	}
	return u, nil
}

func (e Engine) ListUsers(ctx context.Context, req Requester) ([]domain.User, error) {
	if err := requireAdmin(req); err != nil {
		return nil, err
	}
	return e.Repo.ListUsers(ctx)
}

func (e Engine) DeleteUser(ctx context.Context, req Requester, id string) error {
	if err := requireAdmin(req); err != nil {
		return err
	}
	if err := e.Repo.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NotFoundError{Message: "User not found"}
		}
		return err
	}
	return nil
}

// CreateAPIKey mints a new API key for a user and returns the plaintext key
// once. Only the SHA-256 digest is stored.
func (e Engine) CreateAPIKey(ctx context.Context, userID, name string) (domain.APIKey, string, error) {
	if _, err := e.Repo.GetUser(ctx, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.APIKey{}, "", NotFoundError{Message: "User not found"}
		}
		return domain.APIKey{}, "", err
	}
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return domain.APIKey{}, "", err
	}
	plaintext := "pulse_" + hex.EncodeToString(raw)
	key := domain.APIKey{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		KeyHash:   repo.HashAPIKey(plaintext),
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertAPIKey(ctx, key); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, plaintext, nil
}
