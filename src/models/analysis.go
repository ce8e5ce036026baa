package models

import "time"

// Sentiment is the long/short split decoded from an audit trailer.
type Sentiment struct {
	Long  int `json:"long"`
	Short int `json:"short"`
}

// TradePlan is the entry/stop/target triple decoded from an audit trailer.
// Values are kept verbatim since the model may answer with ranges or prose.
type TradePlan struct {
	Entry  string `json:"entry"`
	Stop   string `json:"stop"`
	Target string `json:"target"`
}

// ChartAnalysis is one stored audit result.
type ChartAnalysis struct {
	ID               string       `json:"id"`
	UserID           int64        `json:"user_id"`
	AccountLabel     AccountLabel `json:"account_label"`
	ImageURL         string       `json:"image_url"`
	CalendarImageURL string       `json:"calendar_image_url,omitempty"`
	AnalysisText     string       `json:"analysis_text"`
	CreatedAt        time.Time    `json:"created_at"`

	// Decoded on read, never stored.
	DisplayText string     `json:"display_text"`
	DisplayHTML string     `json:"display_html,omitempty"`
	Sentiment   *Sentiment `json:"sentiment,omitempty"`
	TradePlan   *TradePlan `json:"trade_plan,omitempty"`
}

// StrategyCard is a user-curated reference setup fed to chart audits.
type StrategyCard struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"user_id"`
	ImageURL    string    `json:"image_url"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// DailyCalendar is the macro-calendar snapshot saved for one day.
type DailyCalendar struct {
	Date      string    `json:"date"`
	ImageURL  string    `json:"image_url"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PerformanceInsight is the AI commentary on a partition's history.
type PerformanceInsight struct {
	Markdown  string     `json:"markdown"`
	HTML      string     `json:"html"`
	Citations []Citation `json:"citations,omitempty"`
	RowsUsed  int        `json:"rows_used"`
}

// Citation is a web source returned by search grounding.
type Citation struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}
