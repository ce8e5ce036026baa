package processors

import (
	"testing"

	"github.com/gerenciause-netizen/smart-trader/src/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tx(date, symbol string, qty, price, net float64, strategy string) models.Transaction {
	return models.Transaction{
		Header: "Data", Date: date, Symbol: symbol, Quantity: qty, Price: price,
		NetAmount: net, Strategy: strategy, AccountLabel: models.AccountDemo,
	}
}

func sampleTransactions() []models.Transaction {
	return []models.Transaction{
		tx("2024-01-12", "AAPL", -10, 190, 1899, "Breakout"),
		tx("2024-01-10", "AAPL", 10, 185, -1851, "Breakout"),
		tx("2024-01-15", "TSLA", 5, 210, -1051, ""),
		tx("2024-01-11", "MSFT", 4, 400, -1601, "Pullback"),
		tx("2024-01-20", "MSFT", -4, 420, 1679, "Pullback"),
	}
}

func findTrade(t *testing.T, d models.Dashboard, symbol string) models.ConsolidatedTrade {
	t.Helper()
	for _, tr := range d.Trades {
		if tr.Symbol == symbol {
			return tr
		}
	}
	require.FailNow(t, "trade not found", symbol)
	return models.ConsolidatedTrade{}
}

func TestConsolidateUnconfigured(t *testing.T) {
	d := NewTradeConsolidator().Consolidate(nil, 0)
	assert.True(t, d.Unconfigured())
	assert.Empty(t, d.Trades)
	assert.Empty(t, d.EquityCurve)
}

func TestConsolidateOnlyStartingCash(t *testing.T) {
	d := NewTradeConsolidator().Consolidate(nil, 50000)
	require.NotNil(t, d.Stats)
	assert.Equal(t, 50000.0, d.Stats.CurrentBalance)
	assert.Equal(t, 0.0, d.Stats.ROI)
	assert.Equal(t, models.StrategyStat{Name: "N/A"}, d.Stats.BestStrategy)
	assert.Equal(t, []models.EquityPoint{{Date: "Inicio", Balance: 50000}}, d.EquityCurve)
}

func TestConsolidateGroupsPerSymbol(t *testing.T) {
	d := NewTradeConsolidator().Consolidate(sampleTransactions(), 10000)
	require.Len(t, d.Trades, 3)

	aapl := findTrade(t, d, "AAPL")
	assert.Equal(t, models.TradeClosed, aapl.Status)
	assert.InDelta(t, 48.0, aapl.TotalPnL, 1e-9)
	assert.Equal(t, 185.0, aapl.AvgEntryPrice)
	assert.Equal(t, 190.0, aapl.AvgExitPrice)
	assert.Equal(t, "2024-01-12", aapl.LastDate)
	require.Len(t, aapl.Executions, 2)
	assert.Equal(t, "2024-01-10", aapl.Executions[0].Date, "executions are in ascending date order")

	tsla := findTrade(t, d, "TSLA")
	assert.Equal(t, models.TradeOpen, tsla.Status)
	assert.Equal(t, "Sin Estrategia", tsla.Strategy)
	assert.Equal(t, 0.0, tsla.AvgExitPrice)

	// journal order: most recent last execution first
	assert.Equal(t, []string{"MSFT", "TSLA", "AAPL"}, []string{d.Trades[0].Symbol, d.Trades[1].Symbol, d.Trades[2].Symbol})
}

func TestConsolidatePnLMatchesNetAmounts(t *testing.T) {
	txs := sampleTransactions()
	d := NewTradeConsolidator().Consolidate(txs, 10000)

	var sumNet, sumGroups float64
	for _, tx := range txs {
		sumNet += tx.NetAmount
	}
	for _, tr := range d.Trades {
		sumGroups += tr.TotalPnL
	}
	assert.InDelta(t, sumNet, sumGroups, 1e-9)
	assert.InDelta(t, sumNet, d.Stats.TotalPnL, 1e-9)
	assert.InDelta(t, 10000+sumNet, d.Stats.CurrentBalance, 1e-9)
}

func TestConsolidateStats(t *testing.T) {
	d := NewTradeConsolidator().Consolidate(sampleTransactions(), 10000)
	s := d.Stats
	require.NotNil(t, s)

	assert.InDelta(t, -925.0, s.TotalPnL, 1e-9)
	assert.InDelta(t, -9.25, s.ROI, 1e-9)
	assert.Equal(t, 1, s.OpenPositions)
	assert.Equal(t, 2, s.ClosedTrades)

	require.Len(t, s.StrategyList, 3)
	assert.Equal(t, "Pullback", s.StrategyList[0].Name)
	assert.InDelta(t, 78.0, s.StrategyList[0].PnL, 1e-9)
	assert.Equal(t, "Breakout", s.StrategyList[1].Name)
	assert.Equal(t, "Sin Estrategia", s.StrategyList[2].Name)
	assert.Equal(t, s.StrategyList[0], s.BestStrategy)
}

func TestConsolidateKeepsStrategyNamesVerbatim(t *testing.T) {
	d := NewTradeConsolidator().Consolidate([]models.Transaction{
		tx("2024-01-10", "AAPL", 1, 100, -100, "Breakout"),
		tx("2024-01-11", "MSFT", 1, 100, -100, "Breakout "),
		tx("2024-01-12", "TSLA", 1, 100, -100, ""),
	}, 1000)

	assert.Equal(t, "Breakout ", findTrade(t, d, "MSFT").Strategy)
	assert.Equal(t, "Sin Estrategia", findTrade(t, d, "TSLA").Strategy)
	require.NotNil(t, d.Stats)
	assert.Len(t, d.Stats.StrategyList, 3)
}

func TestConsolidateROIZeroGuard(t *testing.T) {
	d := NewTradeConsolidator().Consolidate(sampleTransactions(), 0)
	require.NotNil(t, d.Stats)
	assert.Equal(t, 0.0, d.Stats.ROI)
}

func TestConsolidateEquityCurve(t *testing.T) {
	d := NewTradeConsolidator().Consolidate(sampleTransactions(), 10000)
	require.Len(t, d.EquityCurve, 4)

	assert.Equal(t, models.EquityPoint{Date: "Balance Inicial", Balance: 10000}, d.EquityCurve[0])
	assert.Equal(t, models.EquityPoint{Date: "2024-01-12", Balance: 10048}, d.EquityCurve[1])
	assert.Equal(t, models.EquityPoint{Date: "2024-01-15", Balance: 8997}, d.EquityCurve[2])
	assert.Equal(t, models.EquityPoint{Date: "2024-01-20", Balance: 9075}, d.EquityCurve[3])

	last := d.EquityCurve[len(d.EquityCurve)-1]
	assert.InDelta(t, d.Stats.CurrentBalance, last.Balance, 0.005)
}

func TestConsolidateEquityRounding(t *testing.T) {
	txs := []models.Transaction{
		tx("2024-01-01", "A", 1, 1, 0.005, "x"),
		tx("2024-01-02", "B", 1, 1, 0.001, "x"),
	}
	d := NewTradeConsolidator().Consolidate(txs, 100)
	assert.Equal(t, 100.01, d.EquityCurve[1].Balance)
	assert.Equal(t, 100.01, d.EquityCurve[2].Balance)
}

func TestConsolidateStatusEpsilon(t *testing.T) {
	txs := []models.Transaction{
		tx("2024-01-01", "FRAC", 0.33335, 10, -3.3, "x"),
		tx("2024-01-02", "FRAC", -0.3333, 11, 3.6, "x"),
		tx("2024-01-01", "OPEN", 0.001, 10, -0.01, "x"),
	}
	d := NewTradeConsolidator().Consolidate(txs, 100)
	assert.Equal(t, models.TradeClosed, findTrade(t, d, "FRAC").Status)
	assert.Equal(t, models.TradeOpen, findTrade(t, d, "OPEN").Status)
}

func TestConsolidateEvidenceLinkFromFirstTaggedExecution(t *testing.T) {
	first := tx("2024-01-01", "NVDA", 2, 500, -1000, "x")
	second := tx("2024-01-02", "NVDA", -1, 510, 510, "x")
	second.AnalysisID = "an-1"
	second.AnalysisImageURL = "http://localhost/storage/chart-images/1/charts/a.jpg"
	third := tx("2024-01-03", "NVDA", -1, 520, 520, "x")
	third.AnalysisID = "an-2"

	d := NewTradeConsolidator().Consolidate([]models.Transaction{third, first, second}, 0)
	tr := findTrade(t, d, "NVDA")
	assert.Equal(t, "an-1", tr.AnalysisID)
	assert.Equal(t, second.AnalysisImageURL, tr.AnalysisImageURL)
}

func TestParseExecutionDate(t *testing.T) {
	assert.Equal(t, 2024, parseExecutionDate("2024-05-06").Year())
	assert.Equal(t, 15, parseExecutionDate("2024-05-06, 15:04:05").Hour())
	assert.True(t, parseExecutionDate("not a date").IsZero())
}
