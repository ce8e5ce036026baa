package models

// TradeStatus is Open while the summed quantity is away from zero.
type TradeStatus string

const (
	TradeOpen   TradeStatus = "Open"
	TradeClosed TradeStatus = "Closed"
)

// ConsolidatedTrade aggregates every execution of one symbol as a single position.
type ConsolidatedTrade struct {
	Symbol           string        `json:"symbol"`
	Strategy         string        `json:"strategy"`
	TotalQuantity    float64       `json:"totalQuantity"`
	AvgEntryPrice    float64       `json:"avgEntryPrice"`
	AvgExitPrice     float64       `json:"avgExitPrice"`
	TotalPnL         float64       `json:"totalPnL"`
	Executions       []Transaction `json:"executions"`
	Status           TradeStatus   `json:"status"`
	LastDate         string        `json:"lastDate"`
	AnalysisImageURL string        `json:"analysis_image_url,omitempty"`
	AnalysisID       string        `json:"analysis_id,omitempty"`
}

// StrategyStat is one leaderboard entry.
type StrategyStat struct {
	Name  string  `json:"name"`
	PnL   float64 `json:"pnl"`
	Count int     `json:"count"`
}

// PortfolioStats are the partition-level aggregates shown on the dashboard.
type PortfolioStats struct {
	TotalPnL       float64        `json:"totalPnL"`
	ROI            float64        `json:"roi"`
	CurrentBalance float64        `json:"currentBalance"`
	OpenPositions  int            `json:"openPositions"`
	ClosedTrades   int            `json:"closedTrades"`
	BestStrategy   StrategyStat   `json:"bestStrategy"`
	StrategyList   []StrategyStat `json:"strategyList"`
}

// EquityPoint is one running-balance sample. Date is a broker date or a synthetic label.
type EquityPoint struct {
	Date    string  `json:"date"`
	Balance float64 `json:"balance"`
}

// Dashboard is the full derived view of one partition. Stats is nil for an
// unconfigured partition (no transactions and no starting cash).
type Dashboard struct {
	AccountLabel AccountLabel        `json:"account_label"`
	StartingCash float64             `json:"starting_cash"`
	Trades       []ConsolidatedTrade `json:"trades"`
	Stats        *PortfolioStats     `json:"stats"`
	EquityCurve  []EquityPoint       `json:"equityCurve"`
}

// Unconfigured reports the distinguished empty state.
func (d Dashboard) Unconfigured() bool { return d.Stats == nil }
