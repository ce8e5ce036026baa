package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/gerenciause-netizen/smart-trader/src/database"
	"github.com/gerenciause-netizen/smart-trader/src/model"
	"github.com/gerenciause-netizen/smart-trader/src/models"
	"github.com/gerenciause-netizen/smart-trader/src/storage"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "services.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestUser(t *testing.T, db *sql.DB, name string) int64 {
	t.Helper()
	u := &model.User{Username: name, Email: name + "@example.com", Password: "hash"}
	require.NoError(t, u.CreateUser(db))
	return u.ID
}

func newTestStore(t *testing.T) *storage.LocalStore {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)
	return store
}

func seedTransactions(t *testing.T, svc TransactionService, userID int64, account models.AccountLabel, txs ...models.Transaction) []models.Transaction {
	t.Helper()
	stored, err := svc.InsertBatch(context.Background(), userID, account, txs)
	require.NoError(t, err)
	return stored
}

func execution(date, symbol string, qty, price, net float64, strategy string) models.Transaction {
	return models.Transaction{Date: date, Symbol: symbol, Quantity: qty, Price: price, NetAmount: net, Strategy: strategy}
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
