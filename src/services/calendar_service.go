package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gerenciause-netizen/smart-trader/src/database"
	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/models"
	"github.com/gerenciause-netizen/smart-trader/src/storage"
)

const calendarDateLayout = "2006-01-02"

type calendarServiceImpl struct {
	db    *sql.DB
	store storage.ObjectStore
	now   Clock
}

func NewCalendarService(db *sql.DB, store storage.ObjectStore, now Clock) CalendarService {
	if now == nil {
		now = time.Now
	}
	return &calendarServiceImpl{db: db, store: store, now: now}
}

func (s *calendarServiceImpl) today() string {
	return s.now().Format(calendarDateLayout)
}

// Today returns the calendar saved for the current day, or ErrNotFound.
func (s *calendarServiceImpl) Today(ctx context.Context, userID int64) (*models.DailyCalendar, error) {
	cal := &models.DailyCalendar{}
	err := s.db.QueryRowContext(ctx, `SELECT date, image_url, updated_at FROM daily_calendars
		WHERE user_id = ? AND date = ?`, userID, s.today()).Scan(&cal.Date, &cal.ImageURL, &cal.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load today's calendar: %w", err)
	}
	return cal, nil
}

// SetToday stores img and makes it the calendar of the current day.
func (s *calendarServiceImpl) SetToday(ctx context.Context, userID int64, img UploadedImage) (*models.DailyCalendar, error) {
	objectPath := storage.GenerateObjectPath(userID, storage.CategoryCalendars, storage.ExtensionForContentType(img.ContentType), s.now())
	url, err := s.store.Upload(ctx, objectPath, bytes.NewReader(img.Data), img.ContentType)
	if err != nil {
		return nil, err
	}
	cal, err := s.Upsert(ctx, userID, s.today(), url)
	if err != nil {
		removeQuietly(ctx, s.store, objectPath)
		return nil, err
	}
	return cal, nil
}

// Upsert replaces the image of (user, date). The previous image is left in
// the bucket since stored analyses may still reference it.
func (s *calendarServiceImpl) Upsert(ctx context.Context, userID int64, date, imageURL string) (*models.DailyCalendar, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `INSERT INTO daily_calendars (user_id, date, image_url, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, date) DO UPDATE SET
			image_url = excluded.image_url,
			updated_at = excluded.updated_at`, userID, date, imageURL, now)
	if err != nil {
		err = database.TranslateUpsertError(err, "daily_calendars", "user_id", "date")
		return nil, fmt.Errorf("failed to save calendar for %s: %w", date, err)
	}
	logger.FromContext(ctx).Info("Daily calendar saved", "date", date)
	return &models.DailyCalendar{Date: date, ImageURL: imageURL, UpdatedAt: now}, nil
}

// removeQuietly undoes an upload whose row could not be written.
func removeQuietly(ctx context.Context, store storage.ObjectStore, objectPath string) {
	if err := store.Remove(ctx, objectPath); err != nil {
		logger.FromContext(ctx).Warn("Failed to remove orphaned object", "path", objectPath, "error", err)
	}
}
