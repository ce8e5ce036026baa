package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/models"
)

type workspaceServiceImpl struct {
	db *sql.DB
}

func NewWorkspaceService(db *sql.DB) WorkspaceService {
	return &workspaceServiceImpl{db: db}
}

// ActiveAccount returns the stored partition, demo when none was chosen.
func (s *workspaceServiceImpl) ActiveAccount(ctx context.Context, userID int64) (models.AccountLabel, error) {
	var active string
	err := s.db.QueryRowContext(ctx, `SELECT active_account FROM user_preferences WHERE user_id = ?`, userID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AccountDemo, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load active account: %w", err)
	}
	account, err := models.ParseAccountLabel(active)
	if err != nil {
		logger.FromContext(ctx).Warn("Stored account preference is invalid, falling back to demo", "value", active)
		return models.AccountDemo, nil
	}
	return account, nil
}

func (s *workspaceServiceImpl) SetActiveAccount(ctx context.Context, userID int64, account models.AccountLabel) error {
	if err := checkAccount(account); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO user_preferences (user_id, active_account, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			active_account = excluded.active_account,
			updated_at = excluded.updated_at`, userID, account, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save active account: %w", err)
	}
	logger.FromContext(ctx).Info("Active account switched", "account", account)
	return nil
}

// Reset clears the persisted workspace on sign-out. The next session starts on demo.
func (s *workspaceServiceImpl) Reset(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_preferences WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to reset workspace: %w", err)
	}
	return nil
}
