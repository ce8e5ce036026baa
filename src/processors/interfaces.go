package processors

import "github.com/gerenciause-netizen/smart-trader/src/models"

// TradeConsolidator derives the journal analytics of one account partition.
type TradeConsolidator interface {
	Consolidate(txs []models.Transaction, startingCash float64) models.Dashboard
}
