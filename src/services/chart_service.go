package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gerenciause-netizen/smart-trader/src/audit"
	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/models"
	"github.com/gerenciause-netizen/smart-trader/src/storage"
	"github.com/google/uuid"
)

type chartServiceImpl struct {
	db         *sql.DB
	store      storage.ObjectStore
	ai         AIService
	images     audit.ImageLoader
	calendars  CalendarService
	strategies StrategyService
	now        Clock
}

// NewChartService wires the audit pipeline. ai may be nil when no API key is
// configured; Analyze then fails with ErrAIKeyMissing while the history stays readable.
func NewChartService(db *sql.DB, store storage.ObjectStore, ai AIService, images audit.ImageLoader,
	calendars CalendarService, strategies StrategyService, now Clock) ChartService {
	if now == nil {
		now = time.Now
	}
	return &chartServiceImpl{
		db:         db,
		store:      store,
		ai:         ai,
		images:     images,
		calendars:  calendars,
		strategies: strategies,
		now:        now,
	}
}

// Analyze audits a chart against the day's calendar and the user's strategy
// cards, then stores the images and the result. A calendar sent with the
// request becomes the calendar of the day.
func (s *chartServiceImpl) Analyze(ctx context.Context, userID int64, account models.AccountLabel, in ChartAuditInput) (*models.ChartAnalysis, error) {
	if err := checkAccount(account); err != nil {
		return nil, err
	}
	if s.ai == nil {
		return nil, ErrAIKeyMissing
	}
	if len(in.Chart.Data) == 0 {
		return nil, errors.New("chart image is required")
	}
	log := logger.FromContext(ctx).With("account", account)

	req := audit.ChartAuditRequest{Chart: audit.Image{Data: in.Chart.Data, MIMEType: in.Chart.ContentType}}
	calendarURL := ""
	if in.Calendar != nil {
		req.Calendar = &audit.Image{Data: in.Calendar.Data, MIMEType: in.Calendar.ContentType}
	} else if saved, err := s.calendars.Today(ctx, userID); err == nil {
		img, err := s.loadImage(ctx, saved.ImageURL)
		if err != nil {
			log.Warn("Saved calendar unavailable, auditing without it", "error", err)
		} else {
			req.Calendar = &img
			calendarURL = saved.ImageURL
		}
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	cards, err := s.strategies.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cards) > audit.MaxStrategyReferences {
		cards = cards[:audit.MaxStrategyReferences]
	}
	req.Strategies = cards

	text, err := s.ai.AnalyzeChart(ctx, req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	chartPath := storage.GenerateObjectPath(userID, storage.CategoryCharts, storage.ExtensionForContentType(in.Chart.ContentType), now)
	chartURL, err := s.store.Upload(ctx, chartPath, bytes.NewReader(in.Chart.Data), in.Chart.ContentType)
	if err != nil {
		return nil, err
	}

	if in.Calendar != nil {
		cal, err := s.calendars.SetToday(ctx, userID, *in.Calendar)
		if err != nil {
			removeQuietly(ctx, s.store, chartPath)
			return nil, err
		}
		calendarURL = cal.ImageURL
	}

	analysis := &models.ChartAnalysis{
		ID:               uuid.NewString(),
		UserID:           userID,
		AccountLabel:     account,
		ImageURL:         chartURL,
		CalendarImageURL: calendarURL,
		AnalysisText:     text,
		CreatedAt:        now.UTC(),
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO chart_analyses (id, user_id, account_label, image_url, calendar_image_url, analysis_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, analysis.ID, userID, account, analysis.ImageURL,
		nullIfEmpty(analysis.CalendarImageURL), analysis.AnalysisText, analysis.CreatedAt)
	if err != nil {
		removeQuietly(ctx, s.store, chartPath)
		return nil, fmt.Errorf("failed to save chart analysis: %w", err)
	}

	audit.Decorate(analysis)
	log.Info("Chart analysis stored", "analysisID", analysis.ID, "references", len(cards), "withCalendar", req.Calendar != nil)
	return analysis, nil
}

func (s *chartServiceImpl) loadImage(ctx context.Context, url string) (audit.Image, error) {
	if s.images == nil {
		return audit.Image{}, errors.New("no image loader configured")
	}
	return s.images.LoadImage(ctx, url)
}

const chartAnalysisColumns = `id, user_id, account_label, image_url, calendar_image_url, analysis_text, created_at`

func scanChartAnalysis(row rowScanner) (*models.ChartAnalysis, error) {
	var a models.ChartAnalysis
	var label string
	var calendar sql.NullString
	if err := row.Scan(&a.ID, &a.UserID, &label, &a.ImageURL, &calendar, &a.AnalysisText, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.AccountLabel = models.AccountLabel(label)
	a.CalendarImageURL = calendar.String
	audit.Decorate(&a)
	return &a, nil
}

// List returns the partition's analyses, newest first. A limit of zero or less returns all.
func (s *chartServiceImpl) List(ctx context.Context, userID int64, account models.AccountLabel, limit int) ([]models.ChartAnalysis, error) {
	if err := checkAccount(account); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+chartAnalysisColumns+` FROM chart_analyses
		WHERE user_id = ? AND account_label = ?
		ORDER BY created_at DESC, id LIMIT ?`, userID, account, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chart analyses: %w", err)
	}
	defer rows.Close()

	out := []models.ChartAnalysis{}
	for rows.Next() {
		a, err := scanChartAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chart analysis: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *chartServiceImpl) Get(ctx context.Context, userID int64, account models.AccountLabel, id string) (*models.ChartAnalysis, error) {
	if err := checkAccount(account); err != nil {
		return nil, err
	}
	a, err := scanChartAnalysis(s.db.QueryRowContext(ctx, `SELECT `+chartAnalysisColumns+` FROM chart_analyses
		WHERE id = ? AND user_id = ? AND account_label = ?`, id, userID, account))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load chart analysis %s: %w", id, err)
	}
	return a, nil
}

// Delete removes the chart image, then the row, and unlinks trades that
// pointed at it. The calendar image is shared by the day and stays.
func (s *chartServiceImpl) Delete(ctx context.Context, userID int64, account models.AccountLabel, id string) error {
	a, err := s.Get(ctx, userID, account, id)
	if err != nil {
		return err
	}
	if err := removeByURL(ctx, s.store, a.ImageURL); err != nil {
		return err
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, `UPDATE transactions SET analysis_id = NULL, analysis_image_url = NULL
		WHERE user_id = ? AND analysis_id = ?`, userID, id); err != nil {
		return fmt.Errorf("failed to unlink analysis %s: %w", id, err)
	}
	if _, err := dbTx.ExecContext(ctx, `DELETE FROM chart_analyses WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return fmt.Errorf("failed to delete analysis %s: %w", id, err)
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	logger.FromContext(ctx).Info("Chart analysis deleted", "analysisID", id)
	return nil
}

// UploadEvidence stores a manually attached trade image and returns its URL.
func (s *chartServiceImpl) UploadEvidence(ctx context.Context, userID int64, img UploadedImage) (string, error) {
	if len(img.Data) == 0 {
		return "", errors.New("evidence image is required")
	}
	objectPath := storage.GenerateObjectPath(userID, storage.CategoryManualEvidence, storage.ExtensionForContentType(img.ContentType), s.now())
	return s.store.Upload(ctx, objectPath, bytes.NewReader(img.Data), img.ContentType)
}

func (s *chartServiceImpl) DiscardEvidence(ctx context.Context, imageURL string) {
	objectPath, ok := s.store.PathFromURL(imageURL)
	if !ok {
		return
	}
	removeQuietly(ctx, s.store, objectPath)
}
