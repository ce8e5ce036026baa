package services

import (
	"context"
	"strings"
	"testing"

	"github.com/gerenciause-netizen/smart-trader/src/database"
	"github.com/gerenciause-netizen/smart-trader/src/models"
	"github.com/gerenciause-netizen/smart-trader/src/parsers"
	"github.com/gerenciause-netizen/smart-trader/src/processors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statement = `Summary,Header,Field Name,Field Value
Summary,Data,Starting Cash,5000
Transaction History,Header,Date,Account,Description,Transaction Type,Symbol,Quantity,Price,Gross Amount,Commission,Net Amount
Transaction History,Data,2024-01-10,U1,APPLE INC,Buy,AAPL,10,185,-1850,-1,-1851
Transaction History,Data,2024-01-12,U1,APPLE INC,Sell,AAPL,-10,190,1900,-1,1899
Transaction History,Data,,,,,Total,,,,,48
`

type importFixture struct {
	uid          int64
	transactions TransactionService
	balances     BalanceService
	imports      ImportService
}

func newImportFixture(t *testing.T) importFixture {
	db := newTestDB(t)
	f := importFixture{
		uid:          newTestUser(t, db, "alice"),
		transactions: NewTransactionService(db),
		balances:     NewBalanceService(db, 50000),
	}
	f.imports = NewImportService(f.transactions, f.balances, fixedClock)
	return f
}

func TestBalanceSeedsDemoOnly(t *testing.T) {
	ctx := context.Background()
	f := newImportFixture(t)

	demo, err := f.balances.Get(ctx, f.uid, models.AccountDemo)
	require.NoError(t, err)
	assert.Equal(t, 50000.0, demo.StartingCash)

	real, err := f.balances.Get(ctx, f.uid, models.AccountReal)
	require.NoError(t, err)
	assert.Equal(t, 0.0, real.StartingCash)

	_, err = f.balances.Set(ctx, f.uid, models.AccountReal, 1200)
	require.NoError(t, err)
	_, err = f.balances.Set(ctx, f.uid, models.AccountReal, 2500)
	require.NoError(t, err)
	real, err = f.balances.Get(ctx, f.uid, models.AccountReal)
	require.NoError(t, err)
	assert.Equal(t, 2500.0, real.StartingCash)
}

func TestBalanceSetReportsMissingConstraint(t *testing.T) {
	db, err := database.Open(t.TempDir() + "/broken.db")
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE TABLE account_balances (user_id INTEGER, account_label TEXT, starting_cash REAL, updated_at DATETIME)`)
	require.NoError(t, err)

	_, err = NewBalanceService(db, 0).Set(context.Background(), 1, models.AccountReal, 10)
	assert.ErrorIs(t, err, database.ErrMissingUniqueConstraint)
}

func TestImportStoresRowsAndDetectedCash(t *testing.T) {
	ctx := context.Background()
	f := newImportFixture(t)

	summary, err := f.imports.Import(ctx, f.uid, models.AccountReal, ImportRequest{Content: strings.NewReader(statement)})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Imported)
	assert.Equal(t, 1, summary.SkippedRows)
	require.NotNil(t, summary.StartingCash)
	assert.Equal(t, 5000.0, *summary.StartingCash)

	txs, err := f.transactions.List(ctx, f.uid, models.AccountReal)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, models.DefaultImportStrategy, txs[0].Strategy)

	bal, err := f.balances.Get(ctx, f.uid, models.AccountReal)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, bal.StartingCash)

	demo, err := f.transactions.List(ctx, f.uid, models.AccountDemo)
	require.NoError(t, err)
	assert.Empty(t, demo)
}

func TestImportOverrideWinsOverDetectedCash(t *testing.T) {
	ctx := context.Background()
	f := newImportFixture(t)
	override := 12000.0

	summary, err := f.imports.Import(ctx, f.uid, models.AccountReal, ImportRequest{
		Content:              strings.NewReader(statement),
		Strategy:             "  Swing  ",
		StartingCashOverride: &override,
	})
	require.NoError(t, err)
	assert.Equal(t, 12000.0, *summary.StartingCash)

	txs, err := f.transactions.List(ctx, f.uid, models.AccountReal)
	require.NoError(t, err)
	assert.Equal(t, "Swing", txs[0].Strategy)

	bal, err := f.balances.Get(ctx, f.uid, models.AccountReal)
	require.NoError(t, err)
	assert.Equal(t, 12000.0, bal.StartingCash)
}

func TestImportBalanceOnly(t *testing.T) {
	ctx := context.Background()
	f := newImportFixture(t)
	override := 7500.0

	summary, err := f.imports.Import(ctx, f.uid, models.AccountReal, ImportRequest{Content: strings.NewReader("   \n"), StartingCashOverride: &override})
	require.NoError(t, err)
	assert.Zero(t, summary.Imported)

	bal, err := f.balances.Get(ctx, f.uid, models.AccountReal)
	require.NoError(t, err)
	assert.Equal(t, 7500.0, bal.StartingCash)

	_, err = f.imports.Import(ctx, f.uid, models.AccountReal, ImportRequest{})
	assert.ErrorIs(t, err, parsers.ErrNoInput)
}

func TestImportRejectsStatementWithoutHeader(t *testing.T) {
	ctx := context.Background()
	f := newImportFixture(t)

	_, err := f.imports.Import(ctx, f.uid, models.AccountReal, ImportRequest{Content: strings.NewReader("foo,bar\n1,2\n")})
	assert.ErrorIs(t, err, parsers.ErrHeaderNotFound)
	assert.True(t, parsers.IsValidationError(err))

	txs, err := f.transactions.List(ctx, f.uid, models.AccountReal)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestDashboardBuild(t *testing.T) {
	ctx := context.Background()
	f := newImportFixture(t)
	dashboards := NewDashboardService(f.transactions, f.balances, processors.NewTradeConsolidator())

	empty, err := dashboards.Build(ctx, f.uid, models.AccountReal)
	require.NoError(t, err)
	assert.True(t, empty.Unconfigured())
	assert.Equal(t, models.AccountReal, empty.AccountLabel)

	_, err = f.imports.Import(ctx, f.uid, models.AccountReal, ImportRequest{Content: strings.NewReader(statement)})
	require.NoError(t, err)

	d, err := dashboards.Build(ctx, f.uid, models.AccountReal)
	require.NoError(t, err)
	require.NotNil(t, d.Stats)
	require.Len(t, d.Trades, 1)
	assert.Equal(t, models.TradeClosed, d.Trades[0].Status)
	assert.InDelta(t, 48.0, d.Stats.TotalPnL, 1e-9)
	assert.InDelta(t, 5048.0, d.Stats.CurrentBalance, 1e-9)
	assert.Equal(t, 5000.0, d.EquityCurve[0].Balance)
}
