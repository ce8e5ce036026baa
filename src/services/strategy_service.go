package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gerenciause-netizen/smart-trader/src/audit"
	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/models"
	"github.com/gerenciause-netizen/smart-trader/src/security/validation"
	"github.com/gerenciause-netizen/smart-trader/src/storage"
	"github.com/google/uuid"
)

const (
	maxStrategyTitleLength       = 120
	maxStrategyDescriptionLength = 2000
)

// imageForgetter is implemented by image loaders that cache by URL.
type imageForgetter interface {
	Forget(url string)
}

type strategyServiceImpl struct {
	db     *sql.DB
	store  storage.ObjectStore
	images imageForgetter
	now    Clock
}

// NewStrategyService returns a StrategyService. images may be nil; when it
// caches by URL, deleted cards are evicted from it.
func NewStrategyService(db *sql.DB, store storage.ObjectStore, images audit.ImageLoader, now Clock) StrategyService {
	if now == nil {
		now = time.Now
	}
	s := &strategyServiceImpl{db: db, store: store, now: now}
	if f, ok := images.(imageForgetter); ok {
		s.images = f
	}
	return s
}

func (s *strategyServiceImpl) Create(ctx context.Context, userID int64, title, description string, img UploadedImage) (*models.StrategyCard, error) {
	title = validation.CleanUserText(title)
	description = validation.CleanUserText(description)
	if err := validation.ValidateStringNotEmpty(title, "title"); err != nil {
		return nil, err
	}
	if err := validation.ValidateStringMaxLength(title, maxStrategyTitleLength, "title"); err != nil {
		return nil, err
	}
	if err := validation.ValidateStringMaxLength(description, maxStrategyDescriptionLength, "description"); err != nil {
		return nil, err
	}

	now := s.now()
	objectPath := storage.GenerateObjectPath(userID, storage.CategoryStrategies, storage.ExtensionForContentType(img.ContentType), now)
	url, err := s.store.Upload(ctx, objectPath, bytes.NewReader(img.Data), img.ContentType)
	if err != nil {
		return nil, err
	}

	card := &models.StrategyCard{
		ID:          uuid.NewString(),
		UserID:      userID,
		ImageURL:    url,
		Title:       title,
		Description: description,
		CreatedAt:   now.UTC(),
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO strategy_cards (id, user_id, title, description, image_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`, card.ID, userID, card.Title, card.Description, card.ImageURL, card.CreatedAt)
	if err != nil {
		removeQuietly(ctx, s.store, objectPath)
		return nil, fmt.Errorf("failed to save strategy card: %w", err)
	}

	logger.FromContext(ctx).Info("Strategy card created", "cardID", card.ID)
	return card, nil
}

// List returns the user's cards, newest first. Cards are shared by both partitions.
func (s *strategyServiceImpl) List(ctx context.Context, userID int64) ([]models.StrategyCard, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, title, description, image_url, created_at
		FROM strategy_cards WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query strategy cards: %w", err)
	}
	defer rows.Close()

	cards := []models.StrategyCard{}
	for rows.Next() {
		var c models.StrategyCard
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.Description, &c.ImageURL, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan strategy card: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// Delete removes the card image and then the row.
func (s *strategyServiceImpl) Delete(ctx context.Context, userID int64, id string) error {
	var imageURL string
	err := s.db.QueryRowContext(ctx, `SELECT image_url FROM strategy_cards WHERE id = ? AND user_id = ?`, id, userID).Scan(&imageURL)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load strategy card %s: %w", id, err)
	}

	if err := removeByURL(ctx, s.store, imageURL); err != nil {
		return err
	}
	if s.images != nil {
		s.images.Forget(imageURL)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM strategy_cards WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return fmt.Errorf("failed to delete strategy card %s: %w", id, err)
	}
	logger.FromContext(ctx).Info("Strategy card deleted", "cardID", id)
	return nil
}

// removeByURL deletes the object behind a public URL. URLs that do not point
// into the bucket are skipped.
func removeByURL(ctx context.Context, store storage.ObjectStore, publicURL string) error {
	if strings.TrimSpace(publicURL) == "" {
		return nil
	}
	objectPath, ok := store.PathFromURL(publicURL)
	if !ok {
		logger.FromContext(ctx).Warn("Stored URL is outside the bucket, skipping object removal", "url", publicURL)
		return nil
	}
	if err := store.Remove(ctx, objectPath); err != nil {
		return fmt.Errorf("failed to remove %s: %w", objectPath, err)
	}
	return nil
}
