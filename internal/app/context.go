package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"comassist/internal/config"
	"comassist/internal/repo"
)

// ResolveUserAndConfig picks the active user and ensures a user + config
// exist in DB, seeding defaults if missing. It prefers overrides, then
// single-user DB. If the user does not exist, it is created on the fly.
func ResolveUserAndConfig(ctx context.Context, userOverride string, r repo.Repo) (string, *config.Config, error) {
	userID := userOverride
	if userID == "" {
		if u, err := r.SingleUser(ctx); err == nil {
			userID = u.ID
		} else {
			return "", nil, fmt.Errorf("user not specified; use --user")
		}
	}
	seedCfg := config.Default(userID)

	if _, err := r.GetUser(ctx, userID); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", nil, err
		}
		if err := createUser(ctx, r, userID, seedCfg); err != nil {
			return "", nil, err
		}
	}
	cfg, err := r.GetUserConfig(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			if err := r.UpsertUserConfig(ctx, userID, seedCfg); err != nil {
				return "", nil, fmt.Errorf("seed user config: %w", err)
			}
			cfg = seedCfg
		} else {
			return "", nil, err
		}
	}
	cfg.User.ID = userID
	return userID, cfg, nil
}

// createUser inserts a minimal user footprint with the seed config.
func createUser(ctx context.Context, r repo.Repo, userID string, seedCfg *config.Config) error {
	if seedCfg == nil {
		seedCfg = config.Default(userID)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := r.EnsureUser(ctx, tx, userID, now); err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	if err := r.UpsertUserConfigTx(ctx, tx, userID, seedCfg); err != nil {
		return fmt.Errorf("insert user config: %w", err)
	}
	return tx.Commit()
}
