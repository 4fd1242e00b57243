package db

import (
	"context"
	"errors"

	"github.com/geocoder89/enrollhub/internal/config"
	"github.com/geocoder89/enrollhub/internal/domain/user"
)

type AdminRegistrar interface {
	Register(ctx context.Context, req user.RegisterRequest) (user.User, error)
}

// EnsureAdminUser creates the configured admin account once. An existing
// account with that email is left untouched.
func EnsureAdminUser(ctx context.Context, accounts AdminRegistrar, cfg config.Config) (bool, error) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return false, nil
	}

	_, err := accounts.Register(ctx, user.RegisterRequest{
		Name:     cfg.AdminName,
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
		Role:     user.RoleAdmin,
	})

	if errors.Is(err, user.ErrEmailTaken) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}
