package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wardenbot/warden/internal/db"
)

// Expiry is compared against a bound timestamp, not datetime('now'):
// the driver stores time.Time as RFC3339 text, which does not collate
// with sqlite's own datetime format.
func (c *sqliteClient) GetOverride(ctx context.Context, communityID, userID int64) (*db.SuspicionOverride, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var override db.SuspicionOverride
	err := c.db.GetContext(ctx, &override, `
		SELECT community_id, user_id, level, reason, set_by, expires_at
		FROM suspicion_overrides
		WHERE community_id = ? AND user_id = ?
		AND (expires_at IS NULL OR expires_at > ?)
	`, communityID, userID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get override: %w", err)
	}
	return &override, nil
}

func (c *sqliteClient) SetOverride(ctx context.Context, override *db.SuspicionOverride) error {
	if err := override.Validate(); err != nil {
		return fmt.Errorf("failed to validate override: %w", err)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO suspicion_overrides (community_id, user_id, level, reason, set_by, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(community_id, user_id) DO UPDATE SET
		level = excluded.level,
		reason = excluded.reason,
		set_by = excluded.set_by,
		expires_at = excluded.expires_at
	`
	_, err := c.db.ExecContext(ctx, query,
		override.CommunityID,
		override.UserID,
		override.Level,
		override.Reason,
		override.SetBy,
		override.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to set override: %w", err)
	}
	return nil
}

func (c *sqliteClient) DeleteOverride(ctx context.Context, communityID, userID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, err := c.db.ExecContext(ctx, `
		DELETE FROM suspicion_overrides WHERE community_id = ? AND user_id = ?
	`, communityID, userID); err != nil {
		return fmt.Errorf("failed to delete override: %w", err)
	}
	return nil
}
