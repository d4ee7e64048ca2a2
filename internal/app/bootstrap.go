package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"pulse/internal/config"
	"pulse/internal/domain"
	"pulse/internal/repo"
)

// EnsureAdmin seeds the bootstrap admin account from config when no account
// with that email exists yet. It returns the admin's user ID.
func EnsureAdmin(ctx context.Context, r repo.Repo, cfg config.Bootstrap) (string, error) {
	if cfg.AdminEmail == "" {
		return "", nil
	}
	if u, err := r.GetUserByEmail(ctx, cfg.AdminEmail); err == nil {
		return u.ID, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return "", err
	}
	if cfg.AdminPassword == "" {
		return "", fmt.Errorf("bootstrap admin %s has no password configured", cfg.AdminEmail)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	name := cfg.AdminName
	if name == "" {
		name = "Administrator"
	}
	u := domain.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        cfg.AdminEmail,
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	if err := r.InsertUser(ctx, u); err != nil {
		return "", fmt.Errorf("seed admin: %w", err)
	}
	return u.ID, nil
}
