package services

import (
	"context"

	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/models"
	"github.com/gerenciause-netizen/smart-trader/src/processors"
)

type dashboardServiceImpl struct {
	transactions TransactionService
	balances     BalanceService
	consolidator processors.TradeConsolidator
}

func NewDashboardService(transactions TransactionService, balances BalanceService, consolidator processors.TradeConsolidator) DashboardService {
	return &dashboardServiceImpl{transactions: transactions, balances: balances, consolidator: consolidator}
}

// Build derives trades, stats and the equity curve from the stored rows. It
// holds no state; every call recomputes from the database.
func (s *dashboardServiceImpl) Build(ctx context.Context, userID int64, account models.AccountLabel) (*models.Dashboard, error) {
	balance, err := s.balances.Get(ctx, userID, account)
	if err != nil {
		return nil, err
	}
	txs, err := s.transactions.List(ctx, userID, account)
	if err != nil {
		return nil, err
	}

	dashboard := s.consolidator.Consolidate(txs, balance.StartingCash)
	dashboard.AccountLabel = account
	logger.FromContext(ctx).Debug("Dashboard built", "account", account, "trades", len(dashboard.Trades), "unconfigured", dashboard.Unconfigured())
	return &dashboard, nil
}
