package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gerenciause-netizen/smart-trader/src/database"
	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/models"
)

type balanceServiceImpl struct {
	db       *sql.DB
	demoCash float64
}

// NewBalanceService returns a BalanceService. demoCash seeds a demo partition
// the first time it is read; real partitions start at zero.
func NewBalanceService(db *sql.DB, demoCash float64) BalanceService {
	return &balanceServiceImpl{db: db, demoCash: demoCash}
}

func (s *balanceServiceImpl) Get(ctx context.Context, userID int64, account models.AccountLabel) (*models.AccountBalance, error) {
	if err := checkAccount(account); err != nil {
		return nil, err
	}

	balance := &models.AccountBalance{AccountLabel: account}
	err := s.db.QueryRowContext(ctx, `SELECT starting_cash, updated_at FROM account_balances
		WHERE user_id = ? AND account_label = ?`, userID, account).Scan(&balance.StartingCash, &balance.UpdatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if account == models.AccountDemo && s.demoCash > 0 {
			logger.FromContext(ctx).Info("Seeding demo balance", "userID", userID, "startingCash", s.demoCash)
			return s.Set(ctx, userID, account, s.demoCash)
		}
		return balance, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load balance for %s: %w", account, err)
	}
	return balance, nil
}

// Set upserts the baseline keyed by (user, account).
func (s *balanceServiceImpl) Set(ctx context.Context, userID int64, account models.AccountLabel, startingCash float64) (*models.AccountBalance, error) {
	if err := checkAccount(account); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `INSERT INTO account_balances (user_id, account_label, starting_cash, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, account_label) DO UPDATE SET
			starting_cash = excluded.starting_cash,
			updated_at = excluded.updated_at`, userID, account, startingCash, now)
	if err != nil {
		err = database.TranslateUpsertError(err, "account_balances", "user_id", "account_label")
		logger.FromContext(ctx).Error("Balance upsert failed", "account", account, "error", err)
		return nil, fmt.Errorf("failed to save balance for %s: %w", account, err)
	}
	return &models.AccountBalance{AccountLabel: account, StartingCash: startingCash, UpdatedAt: now}, nil
}
