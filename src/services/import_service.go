package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/models"
	"github.com/gerenciause-netizen/smart-trader/src/parsers"
	"github.com/gerenciause-netizen/smart-trader/src/security/validation"
)

type importServiceImpl struct {
	transactions TransactionService
	balances     BalanceService
	now          Clock
}

func NewImportService(transactions TransactionService, balances BalanceService, now Clock) ImportService {
	if now == nil {
		now = time.Now
	}
	return &importServiceImpl{transactions: transactions, balances: balances, now: now}
}

// Import parses a statement into the partition. A starting-cash override wins
// over the value detected in the statement. An empty statement is accepted
// only when it comes with an override, in which case only the balance changes.
func (s *importServiceImpl) Import(ctx context.Context, userID int64, account models.AccountLabel, req ImportRequest) (*ImportSummary, error) {
	if err := checkAccount(account); err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx).With("account", account, "source", req.Source)

	var content []byte
	if req.Content != nil {
		raw, err := io.ReadAll(req.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to read statement: %w", err)
		}
		content = bytes.TrimSpace(raw)
	}

	summary := &ImportSummary{}
	if len(content) == 0 {
		if req.StartingCashOverride == nil {
			return nil, parsers.ErrNoInput
		}
		if _, err := s.balances.Set(ctx, userID, account, *req.StartingCashOverride); err != nil {
			return nil, err
		}
		summary.StartingCash = req.StartingCashOverride
		log.Info("Balance-only import applied", "startingCash", *req.StartingCashOverride)
		return summary, nil
	}

	parser, err := parsers.GetParser(req.Source)
	if err != nil {
		return nil, err
	}
	result, err := parser.Parse(bytes.NewReader(content), models.ImportOptions{
		AccountLabel: account,
		Strategy:     validation.CleanUserText(req.Strategy),
		Today:        s.now(),
	})
	if err != nil {
		log.Warn("Statement rejected", "error", err)
		return nil, err
	}

	stored, err := s.transactions.InsertBatch(ctx, userID, account, result.Transactions)
	if err != nil {
		return nil, err
	}
	summary.Imported = len(stored)
	summary.SkippedRows = result.SkippedRows

	cash := result.StartingCash
	if req.StartingCashOverride != nil {
		cash = req.StartingCashOverride
	}
	if cash != nil {
		if _, err := s.balances.Set(ctx, userID, account, *cash); err != nil {
			return nil, err
		}
		summary.StartingCash = cash
	}

	log.Info("Statement imported", "imported", summary.Imported, "skipped", summary.SkippedRows, "cashUpdated", cash != nil)
	return summary, nil
}
