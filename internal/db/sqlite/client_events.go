package sqlite

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wardenbot/warden/internal/db"
)

func (c *sqliteClient) InsertThreatEvent(ctx context.Context, event *db.ThreatEvent) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO threat_events (id, community_id, user_id, type, severity, occurred_at, resolved)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := c.db.ExecContext(ctx, query,
		event.ID,
		event.CommunityID,
		event.UserID,
		event.Type,
		event.Severity,
		event.OccurredAt,
		event.Resolved,
	)
	if err != nil {
		return fmt.Errorf("failed to insert threat event: %w", err)
	}
	return nil
}

func (c *sqliteClient) GetThreatEvents(ctx context.Context, communityID int64, since time.Time) ([]*db.ThreatEvent, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var events []*db.ThreatEvent
	err := c.db.SelectContext(ctx, &events, `
		SELECT id, community_id, user_id, type, severity, occurred_at, resolved
		FROM threat_events
		WHERE community_id = ? AND occurred_at > ?
		ORDER BY occurred_at ASC
	`, communityID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get threat events: %w", err)
	}
	return events, nil
}

func (c *sqliteClient) CountThreatEvents(ctx context.Context, communityID int64, since time.Time) (int, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var count int
	err := c.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM threat_events
		WHERE community_id = ? AND occurred_at > ?
	`, communityID, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count threat events: %w", err)
	}
	return count, nil
}

func (c *sqliteClient) GetUserThreatStats(ctx context.Context, communityID int64, since time.Time) (map[int64]db.UserThreatStats, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	rows, err := c.db.QueryxContext(ctx, `
		SELECT user_id, type, COUNT(*) AS cnt
		FROM threat_events
		WHERE community_id = ? AND user_id != 0 AND resolved = FALSE AND occurred_at > ?
		GROUP BY user_id, type
	`, communityID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query user threat stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[int64]db.UserThreatStats)
	for rows.Next() {
		var (
			userID int64
			kind   string
			count  int
		)
		if err := rows.Scan(&userID, &kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan user threat stats: %w", err)
		}
		entry := stats[userID]
		entry.Count += count
		entry.Kinds = append(entry.Kinds, kind)
		stats[userID] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user threat stats: %w", err)
	}

	for userID, entry := range stats {
		sort.Strings(entry.Kinds)
		stats[userID] = entry
	}
	return stats, nil
}
