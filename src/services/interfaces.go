package services

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gerenciause-netizen/smart-trader/src/audit"
	"github.com/gerenciause-netizen/smart-trader/src/models"
)

// Define common service errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidAccount = errors.New("invalid account partition")
	ErrAIKeyMissing   = errors.New("AI API key is not configured")
	ErrEmptyUpdate    = errors.New("no fields to update")
)

func checkAccount(account models.AccountLabel) error {
	if !account.Valid() {
		return ErrInvalidAccount
	}
	return nil
}

// TransactionService owns the journal rows of a partition.
type TransactionService interface {
	List(ctx context.Context, userID int64, account models.AccountLabel) ([]models.Transaction, error)
	Get(ctx context.Context, userID int64, account models.AccountLabel, id string) (*models.Transaction, error)
	InsertBatch(ctx context.Context, userID int64, account models.AccountLabel, txs []models.Transaction) ([]models.Transaction, error)
	Update(ctx context.Context, userID int64, account models.AccountLabel, id string, upd models.TransactionUpdate) (*models.Transaction, error)
	Delete(ctx context.Context, userID int64, account models.AccountLabel, id string) error
	SetSymbolStrategy(ctx context.Context, userID int64, account models.AccountLabel, symbol, strategy string) (int64, error)
	LinkEvidence(ctx context.Context, userID int64, account models.AccountLabel, symbol string, link EvidenceLink) (int64, error)
}

// EvidenceLink is attached to every execution of a symbol. AnalysisID is empty
// for a manually uploaded image.
type EvidenceLink struct {
	AnalysisID string
	ImageURL   string
}

// BalanceService owns the starting cash of each partition.
type BalanceService interface {
	Get(ctx context.Context, userID int64, account models.AccountLabel) (*models.AccountBalance, error)
	Set(ctx context.Context, userID int64, account models.AccountLabel, startingCash float64) (*models.AccountBalance, error)
}

// ImportRequest is one bulk import into the active partition.
type ImportRequest struct {
	Source               string
	Content              io.Reader
	Strategy             string
	StartingCashOverride *float64
}

// ImportSummary reports what an import changed.
type ImportSummary struct {
	Imported     int      `json:"imported"`
	SkippedRows  int      `json:"skipped_rows"`
	StartingCash *float64 `json:"starting_cash,omitempty"`
}

type ImportService interface {
	Import(ctx context.Context, userID int64, account models.AccountLabel, req ImportRequest) (*ImportSummary, error)
}

type DashboardService interface {
	Build(ctx context.Context, userID int64, account models.AccountLabel) (*models.Dashboard, error)
}

// UploadedImage is an image received from the client.
type UploadedImage struct {
	Data        []byte
	ContentType string
}

// ChartAuditInput is one chart audit request.
type ChartAuditInput struct {
	Chart    UploadedImage
	Calendar *UploadedImage
}

type ChartService interface {
	Analyze(ctx context.Context, userID int64, account models.AccountLabel, in ChartAuditInput) (*models.ChartAnalysis, error)
	List(ctx context.Context, userID int64, account models.AccountLabel, limit int) ([]models.ChartAnalysis, error)
	Get(ctx context.Context, userID int64, account models.AccountLabel, id string) (*models.ChartAnalysis, error)
	Delete(ctx context.Context, userID int64, account models.AccountLabel, id string) error
	UploadEvidence(ctx context.Context, userID int64, img UploadedImage) (string, error)
	// DiscardEvidence removes an uploaded evidence image that could not be linked.
	DiscardEvidence(ctx context.Context, imageURL string)
}

type StrategyService interface {
	Create(ctx context.Context, userID int64, title, description string, img UploadedImage) (*models.StrategyCard, error)
	List(ctx context.Context, userID int64) ([]models.StrategyCard, error)
	Delete(ctx context.Context, userID int64, id string) error
}

type CalendarService interface {
	Today(ctx context.Context, userID int64) (*models.DailyCalendar, error)
	SetToday(ctx context.Context, userID int64, img UploadedImage) (*models.DailyCalendar, error)
	Upsert(ctx context.Context, userID int64, date, imageURL string) (*models.DailyCalendar, error)
}

// AIService talks to the generative model.
type AIService interface {
	AnalyzePerformance(ctx context.Context, txs []models.Transaction) (*models.PerformanceInsight, error)
	AnalyzeChart(ctx context.Context, req audit.ChartAuditRequest) (string, error)
}

type WorkspaceService interface {
	ActiveAccount(ctx context.Context, userID int64) (models.AccountLabel, error)
	SetActiveAccount(ctx context.Context, userID int64, account models.AccountLabel) error
	Reset(ctx context.Context, userID int64) error
}

// AccountService removes a user and everything they own.
type AccountService interface {
	DeleteAccount(ctx context.Context, userID int64) error
}

// Clock lets tests pin "today".
type Clock func() time.Time
