package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/model"
	"github.com/gerenciause-netizen/smart-trader/src/storage"
)

type accountServiceImpl struct {
	db    *sql.DB
	store storage.ObjectStore
}

func NewAccountService(db *sql.DB, store storage.ObjectStore) AccountService {
	return &accountServiceImpl{db: db, store: store}
}

// ownedImageQuery lists every image URL a user's rows reference.
const ownedImageQuery = `
	SELECT image_url FROM chart_analyses WHERE user_id = ?1
	UNION SELECT calendar_image_url FROM chart_analyses WHERE user_id = ?1 AND calendar_image_url IS NOT NULL
	UNION SELECT image_url FROM strategy_cards WHERE user_id = ?1
	UNION SELECT image_url FROM daily_calendars WHERE user_id = ?1
	UNION SELECT analysis_image_url FROM transactions WHERE user_id = ?1 AND analysis_image_url IS NOT NULL`

// DeleteAccount removes the user's stored objects and then the user row;
// every owned table row goes with it through ON DELETE CASCADE.
func (s *accountServiceImpl) DeleteAccount(ctx context.Context, userID int64) error {
	log := logger.FromContext(ctx)

	rows, err := s.db.QueryContext(ctx, ownedImageQuery, userID)
	if err != nil {
		return fmt.Errorf("failed to list owned objects: %w", err)
	}
	var paths []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan owned object: %w", err)
		}
		if p, ok := s.store.PathFromURL(url); ok {
			paths = append(paths, p)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if len(paths) > 0 {
		if err := s.store.Remove(ctx, paths...); err != nil {
			log.Error("Failed to remove user objects", "userID", userID, "error", err)
			return err
		}
	}

	if err := model.DeleteUser(s.db, userID); err != nil {
		return err
	}
	log.Info("Account deleted", "userID", userID, "objectsRemoved", len(paths))
	return nil
}
