package processors

import (
	"sort"
	"strings"
	"time"

	"github.com/gerenciause-netizen/smart-trader/src/models"
	"github.com/shopspring/decimal"
)

const (
	// closedQuantityEpsilon absorbs float noise from fractional fills.
	closedQuantityEpsilon = 1e-4

	unnamedStrategy     = "Sin Estrategia"
	equityStartLabel    = "Balance Inicial"
	equityOnlyCashLabel = "Inicio"
)

var executionDateLayouts = []string{
	"2006-01-02",
	"2006-01-02, 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"20060102",
	"2006/01/02",
}

// tradeConsolidatorImpl groups executions per symbol as one continuous position.
type tradeConsolidatorImpl struct{}

func NewTradeConsolidator() TradeConsolidator {
	return &tradeConsolidatorImpl{}
}

// Consolidate recomputes everything from txs. P&L always sums net_amount.
func (c *tradeConsolidatorImpl) Consolidate(txs []models.Transaction, startingCash float64) models.Dashboard {
	dashboard := models.Dashboard{
		StartingCash: startingCash,
		Trades:       []models.ConsolidatedTrade{},
		EquityCurve:  []models.EquityPoint{},
	}
	if len(txs) == 0 && startingCash == 0 {
		return dashboard
	}

	trades := groupBySymbol(txs)

	totalPnL := decimal.Zero
	stats := &models.PortfolioStats{StrategyList: []models.StrategyStat{}}
	strategyIdx := make(map[string]int)
	strategyPnL := []decimal.Decimal{}
	for _, t := range trades {
		pnl := decimal.NewFromFloat(t.TotalPnL)
		totalPnL = totalPnL.Add(pnl)

		if t.Status == models.TradeOpen {
			stats.OpenPositions++
		} else {
			stats.ClosedTrades++
		}

		idx, ok := strategyIdx[t.Strategy]
		if !ok {
			idx = len(stats.StrategyList)
			strategyIdx[t.Strategy] = idx
			stats.StrategyList = append(stats.StrategyList, models.StrategyStat{Name: t.Strategy})
			strategyPnL = append(strategyPnL, decimal.Zero)
		}
		strategyPnL[idx] = strategyPnL[idx].Add(pnl)
		stats.StrategyList[idx].Count++
	}
	for i := range stats.StrategyList {
		stats.StrategyList[i].PnL = strategyPnL[i].InexactFloat64()
	}
	sort.SliceStable(stats.StrategyList, func(i, j int) bool {
		return stats.StrategyList[i].PnL > stats.StrategyList[j].PnL
	})

	stats.TotalPnL = totalPnL.InexactFloat64()
	stats.CurrentBalance = decimal.NewFromFloat(startingCash).Add(totalPnL).InexactFloat64()
	if startingCash > 0 {
		stats.ROI = stats.TotalPnL / startingCash * 100
	}
	if len(stats.StrategyList) > 0 {
		stats.BestStrategy = stats.StrategyList[0]
	} else {
		stats.BestStrategy = models.StrategyStat{Name: "N/A"}
	}

	dashboard.Stats = stats
	dashboard.EquityCurve = buildEquityCurve(trades, startingCash)

	sort.SliceStable(trades, func(i, j int) bool {
		return parseExecutionDate(trades[i].LastDate).After(parseExecutionDate(trades[j].LastDate))
	})
	dashboard.Trades = trades
	return dashboard
}

// groupBySymbol keeps groups in order of first appearance.
func groupBySymbol(txs []models.Transaction) []models.ConsolidatedTrade {
	order := []string{}
	groups := make(map[string][]models.Transaction)
	for _, tx := range txs {
		if _, ok := groups[tx.Symbol]; !ok {
			order = append(order, tx.Symbol)
		}
		groups[tx.Symbol] = append(groups[tx.Symbol], tx)
	}

	trades := make([]models.ConsolidatedTrade, 0, len(order))
	for _, symbol := range order {
		trades = append(trades, consolidateGroup(symbol, groups[symbol]))
	}
	return trades
}

func consolidateGroup(symbol string, executions []models.Transaction) models.ConsolidatedTrade {
	sorted := make([]models.Transaction, len(executions))
	copy(sorted, executions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return parseExecutionDate(sorted[i].Date).Before(parseExecutionDate(sorted[j].Date))
	})

	qty, pnl := decimal.Zero, decimal.Zero
	buyNotional, buyQty := decimal.Zero, decimal.Zero
	sellNotional, sellQty := decimal.Zero, decimal.Zero
	var analysisID, analysisURL string
	linked := false
	for _, tx := range sorted {
		q := decimal.NewFromFloat(tx.Quantity)
		qty = qty.Add(q)
		pnl = pnl.Add(decimal.NewFromFloat(tx.NetAmount))

		notional := decimal.NewFromFloat(tx.Price).Mul(q)
		switch {
		case tx.Quantity > 0:
			buyNotional, buyQty = buyNotional.Add(notional), buyQty.Add(q)
		case tx.Quantity < 0:
			sellNotional, sellQty = sellNotional.Add(notional), sellQty.Add(q)
		}

		if !linked && (tx.AnalysisImageURL != "" || tx.AnalysisID != "") {
			analysisID, analysisURL, linked = tx.AnalysisID, tx.AnalysisImageURL, true
		}
	}

	trade := models.ConsolidatedTrade{
		Symbol:           symbol,
		Strategy:         sorted[0].Strategy,
		TotalQuantity:    qty.InexactFloat64(),
		TotalPnL:         pnl.InexactFloat64(),
		Executions:       sorted,
		Status:           models.TradeOpen,
		LastDate:         sorted[len(sorted)-1].Date,
		AnalysisID:       analysisID,
		AnalysisImageURL: analysisURL,
	}
	if trade.Strategy == "" {
		trade.Strategy = unnamedStrategy
	}
	if qty.Abs().LessThan(decimal.NewFromFloat(closedQuantityEpsilon)) {
		trade.Status = models.TradeClosed
	}
	if !buyQty.IsZero() {
		trade.AvgEntryPrice = buyNotional.Div(buyQty).InexactFloat64()
	}
	if !sellQty.IsZero() {
		trade.AvgExitPrice = sellNotional.Div(sellQty).Abs().InexactFloat64()
	}
	return trade
}

// buildEquityCurve accumulates P&L in order of each trade's last execution.
func buildEquityCurve(trades []models.ConsolidatedTrade, startingCash float64) []models.EquityPoint {
	if len(trades) == 0 {
		if startingCash > 0 {
			return []models.EquityPoint{{Date: equityOnlyCashLabel, Balance: startingCash}}
		}
		return []models.EquityPoint{}
	}

	byClose := make([]models.ConsolidatedTrade, len(trades))
	copy(byClose, trades)
	sort.SliceStable(byClose, func(i, j int) bool {
		return parseExecutionDate(byClose[i].LastDate).Before(parseExecutionDate(byClose[j].LastDate))
	})

	curve := make([]models.EquityPoint, 0, len(byClose)+1)
	curve = append(curve, models.EquityPoint{Date: equityStartLabel, Balance: startingCash})
	cumulative := decimal.NewFromFloat(startingCash)
	for _, t := range byClose {
		cumulative = cumulative.Add(decimal.NewFromFloat(t.TotalPnL))
		curve = append(curve, models.EquityPoint{Date: t.LastDate, Balance: cumulative.Round(2).InexactFloat64()})
	}
	return curve
}

// parseExecutionDate returns the zero time for unparseable dates, which
// therefore sort before every dated execution.
func parseExecutionDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range executionDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
