package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/iliyamo/portfolio-backend/internal/config"
	"github.com/iliyamo/portfolio-backend/internal/model"
	"github.com/iliyamo/portfolio-backend/internal/repository"
	"github.com/iliyamo/portfolio-backend/internal/utils"
)

// SeedAdmin creates the administrator account described by cfg unless an
// account with that email already exists.  It reports whether an account
// was created.  An empty email or password skips seeding.
func SeedAdmin(ctx context.Context, cfg config.AdminConfig, accounts *repository.AccountRepo, hasher utils.PasswordHasher, logger *slog.Logger) (bool, error) {
	email := strings.ToLower(strings.TrimSpace(cfg.Email))
	if email == "" || cfg.Password == "" {
		logger.Debug("admin seeding skipped: ADMIN_EMAIL or ADMIN_PASSWORD not set")
		return false, nil
	}
	existing, err := accounts.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if !existing.IsAdmin() {
			logger.Warn("admin seeding: account exists without admin role", "email", email)
		}
		return false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return false, fmt.Errorf("lookup admin: %w", err)
	}

	hash, err := hasher.Hash(cfg.Password)
	if err != nil {
		return false, fmt.Errorf("hash admin password: %w", err)
	}
	acc := &model.Account{Name: cfg.Name, Email: email, PasswordHash: hash, Role: model.RoleAdmin}
	if err := accounts.Create(ctx, acc); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return false, nil
		}
		return false, fmt.Errorf("create admin: %w", err)
	}
	logger.Info("administrator account created", "email", email, "id", acc.ID)
	return true, nil
}
