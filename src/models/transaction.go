package models

import "time"

// Transaction is one brokerage execution line as stored for a user and account partition.
type Transaction struct {
	ID               string       `json:"id" yaml:"id,omitempty"`
	Header           string       `json:"header" yaml:"header"` // "Data" for imported rows
	Date             string       `json:"date" yaml:"date"`     // Broker date text, normally YYYY-MM-DD
	Account          string       `json:"account" yaml:"account"`
	Description      string       `json:"description" yaml:"description"`
	TransactionType  string       `json:"transaction_type" yaml:"transaction_type"` // BUY/SELL or the broker label
	Symbol           string       `json:"symbol" yaml:"symbol"`
	Quantity         float64      `json:"quantity" yaml:"quantity"` // Positive buys, negative sells
	Price            float64      `json:"price" yaml:"price"`
	GrossAmount      float64      `json:"gross_amount" yaml:"gross_amount"`
	Commission       float64      `json:"commission" yaml:"commission"`
	NetAmount        float64      `json:"net_amount" yaml:"net_amount"` // Signed realized cash effect
	Strategy         string       `json:"strategy" yaml:"strategy"`
	AccountLabel     AccountLabel `json:"account_label" yaml:"account_label"`
	CreatedAt        time.Time    `json:"created_at,omitempty" yaml:"-"`
	AnalysisID       string       `json:"analysis_id,omitempty" yaml:"analysis_id,omitempty"`
	AnalysisImageURL string       `json:"analysis_image_url,omitempty" yaml:"analysis_image_url,omitempty"`
}

// TransactionUpdate is a partial update; nil fields are left untouched.
type TransactionUpdate struct {
	Date             *string  `json:"date,omitempty"`
	Account          *string  `json:"account,omitempty"`
	Description      *string  `json:"description,omitempty"`
	TransactionType  *string  `json:"transaction_type,omitempty"`
	Symbol           *string  `json:"symbol,omitempty"`
	Quantity         *float64 `json:"quantity,omitempty"`
	Price            *float64 `json:"price,omitempty"`
	GrossAmount      *float64 `json:"gross_amount,omitempty"`
	Commission       *float64 `json:"commission,omitempty"`
	NetAmount        *float64 `json:"net_amount,omitempty"`
	Strategy         *string  `json:"strategy,omitempty"`
	AnalysisID       *string  `json:"analysis_id,omitempty"`
	AnalysisImageURL *string  `json:"analysis_image_url,omitempty"`
}

// IsEmpty reports whether the update would change nothing.
func (u TransactionUpdate) IsEmpty() bool {
	return u.Date == nil && u.Account == nil && u.Description == nil && u.TransactionType == nil &&
		u.Symbol == nil && u.Quantity == nil && u.Price == nil && u.GrossAmount == nil &&
		u.Commission == nil && u.NetAmount == nil && u.Strategy == nil &&
		u.AnalysisID == nil && u.AnalysisImageURL == nil
}
