package services

import (
	"context"
	"testing"

	"github.com/gerenciause-netizen/smart-trader/src/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionListOrdersByDateDesc(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	uid := newTestUser(t, db, "alice")
	svc := NewTransactionService(db)

	stored := seedTransactions(t, svc, uid, models.AccountDemo,
		execution("2024-01-10", "AAPL", 10, 185, -1851, "Breakout"),
		execution("2024-01-15", "TSLA", 5, 210, -1051, ""),
		execution("2024-01-12", "AAPL", -10, 190, 1899, "Breakout"),
	)
	require.Len(t, stored, 3)
	for _, tx := range stored {
		assert.NotEmpty(t, tx.ID)
		assert.Equal(t, models.AccountDemo, tx.AccountLabel)
		assert.Equal(t, "Data", tx.Header)
	}

	txs, err := svc.List(ctx, uid, models.AccountDemo)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, []string{"2024-01-15", "2024-01-12", "2024-01-10"}, []string{txs[0].Date, txs[1].Date, txs[2].Date})
}

func TestTransactionPartitionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")
	svc := NewTransactionService(db)

	demo := seedTransactions(t, svc, alice, models.AccountDemo, execution("2024-01-10", "AAPL", 1, 1, -1, ""))
	seedTransactions(t, svc, alice, models.AccountReal, execution("2024-01-10", "MSFT", 1, 1, -1, ""))
	seedTransactions(t, svc, bob, models.AccountDemo, execution("2024-01-10", "NVDA", 1, 1, -1, ""))

	real, err := svc.List(ctx, alice, models.AccountReal)
	require.NoError(t, err)
	require.Len(t, real, 1)
	assert.Equal(t, "MSFT", real[0].Symbol)

	_, err = svc.Get(ctx, alice, models.AccountReal, demo[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, bob, models.AccountDemo, demo[0].ID), ErrNotFound)

	_, err = svc.List(ctx, alice, models.AccountLabel("paper"))
	assert.ErrorIs(t, err, ErrInvalidAccount)
}

func TestTransactionUpdate(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	uid := newTestUser(t, db, "alice")
	svc := NewTransactionService(db)
	stored := seedTransactions(t, svc, uid, models.AccountDemo, execution("2024-01-10", "AAPL", 10, 185, -1851, "Breakout"))

	_, err := svc.Update(ctx, uid, models.AccountDemo, stored[0].ID, models.TransactionUpdate{})
	assert.ErrorIs(t, err, ErrEmptyUpdate)

	strategy := "Gap and Go"
	net := -1850.5
	updated, err := svc.Update(ctx, uid, models.AccountDemo, stored[0].ID, models.TransactionUpdate{Strategy: &strategy, NetAmount: &net})
	require.NoError(t, err)
	assert.Equal(t, "Gap and Go", updated.Strategy)
	assert.Equal(t, -1850.5, updated.NetAmount)
	assert.Equal(t, 185.0, updated.Price)

	_, err = svc.Update(ctx, uid, models.AccountDemo, "missing", models.TransactionUpdate{Strategy: &strategy})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransactionDelete(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	uid := newTestUser(t, db, "alice")
	svc := NewTransactionService(db)
	stored := seedTransactions(t, svc, uid, models.AccountDemo, execution("2024-01-10", "AAPL", 10, 185, -1851, ""))

	require.NoError(t, svc.Delete(ctx, uid, models.AccountDemo, stored[0].ID))
	txs, err := svc.List(ctx, uid, models.AccountDemo)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestSetSymbolStrategyAndLinkEvidence(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	uid := newTestUser(t, db, "alice")
	svc := NewTransactionService(db)
	seedTransactions(t, svc, uid, models.AccountDemo,
		execution("2024-01-10", "AAPL", 10, 185, -1851, "Breakout"),
		execution("2024-01-12", "AAPL", -10, 190, 1899, "Breakout"),
		execution("2024-01-15", "TSLA", 5, 210, -1051, ""),
	)

	n, err := svc.SetSymbolStrategy(ctx, uid, models.AccountDemo, "AAPL", "Pullback")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, err = svc.SetSymbolStrategy(ctx, uid, models.AccountReal, "AAPL", "Pullback")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err = svc.LinkEvidence(ctx, uid, models.AccountDemo, "AAPL", EvidenceLink{AnalysisID: "an-1", ImageURL: "http://x/chart.png"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	// a manual image replaces the URL and keeps the analysis reference
	_, err = svc.LinkEvidence(ctx, uid, models.AccountDemo, "AAPL", EvidenceLink{ImageURL: "http://x/manual.png"})
	require.NoError(t, err)

	txs, err := svc.List(ctx, uid, models.AccountDemo)
	require.NoError(t, err)
	for _, tx := range txs {
		if tx.Symbol != "AAPL" {
			assert.Empty(t, tx.AnalysisID)
			assert.Equal(t, "", tx.Strategy)
			continue
		}
		assert.Equal(t, "Pullback", tx.Strategy)
		assert.Equal(t, "an-1", tx.AnalysisID)
		assert.Equal(t, "http://x/manual.png", tx.AnalysisImageURL)
	}
}
