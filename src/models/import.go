package models

import (
	"errors"
	"time"
)

// Import validation errors. The batch is aborted and nothing is persisted.
var (
	ErrImportNoInput        = errors.New("no data to process and no starting cash provided")
	ErrImportHeaderNotFound = errors.New("'Transaction History' header not found")
	ErrImportNoValidRows    = errors.New("no valid transactions detected")
)

// DefaultImportStrategy tags imported rows when no batch strategy is given.
const DefaultImportStrategy = "Importación IBKR"

// ImportOptions tune a single parse.
type ImportOptions struct {
	AccountLabel AccountLabel
	Strategy     string    // Applied to every row of the batch when set
	Today        time.Time // Fallback date for rows without one; zero means now
}

// ImportResult is what a statement parser extracted.
type ImportResult struct {
	Transactions []Transaction `json:"transactions" yaml:"transactions"`
	StartingCash *float64      `json:"starting_cash,omitempty" yaml:"starting_cash,omitempty"`
	SkippedRows  int           `json:"skipped_rows" yaml:"skipped_rows"` // Subtotal or symbol-less data rows
}
