package audit

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gerenciause-netizen/smart-trader/src/models"
)

// DefaultInsightRowLimit is how many transactions feed a performance insight.
const DefaultInsightRowLimit = 40

const (
	uncategorizedStrategy = "Uncategorized"
	citationsHeading      = "\n\n---\n**Fuentes de Mercado:**\n"
)

type performanceRow struct {
	Date     string  `json:"date"`
	Symbol   string  `json:"symbol"`
	PnL      float64 `json:"pnl"`
	Strategy string  `json:"strategy"`
	Type     string  `json:"type"`
}

// BuildPerformancePrompt summarizes the first limit transactions, in the order
// given, and returns the prompt with the number of rows used.
func BuildPerformancePrompt(txs []models.Transaction, limit int) (string, int, error) {
	if limit <= 0 {
		limit = DefaultInsightRowLimit
	}
	if len(txs) > limit {
		txs = txs[:limit]
	}

	rows := make([]performanceRow, 0, len(txs))
	for _, tx := range txs {
		strategy := tx.Strategy
		if strings.TrimSpace(strategy) == "" {
			strategy = uncategorizedStrategy
		}
		rows = append(rows, performanceRow{
			Date:     tx.Date,
			Symbol:   tx.Symbol,
			PnL:      tx.NetAmount,
			Strategy: strategy,
			Type:     tx.TransactionType,
		})
	}

	data, err := json.Marshal(rows)
	if err != nil {
		return "", 0, fmt.Errorf("failed to encode performance summary: %w", err)
	}
	return performancePrompt(string(data)), len(rows), nil
}

// AppendCitations adds a markdown source list under the market sources heading.
func AppendCitations(markdown string, citations []models.Citation) string {
	if len(citations) == 0 {
		return markdown
	}
	lines := make([]string, 0, len(citations))
	for _, c := range citations {
		lines = append(lines, fmt.Sprintf("- [%s](%s)", c.Title, c.URI))
	}
	return markdown + citationsHeading + strings.Join(lines, "\n")
}
