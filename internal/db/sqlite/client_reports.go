package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wardenbot/warden/internal/db"
)

func (c *sqliteClient) InsertRiskReport(ctx context.Context, report *db.RiskReport, flagged []*db.FlaggedUser, predictions []*db.ThreatPrediction) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	rollback := true
	defer func() {
		if rollback {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO risk_reports (id, community_id, score, level, vulnerabilities, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		report.ID,
		report.CommunityID,
		report.Score,
		report.Level,
		report.Vulnerabilities,
		report.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert risk report: %w", err)
	}

	for _, fu := range flagged {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO flagged_users (report_id, community_id, user_id, username, score, action, reasons)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			fu.ReportID,
			fu.CommunityID,
			fu.UserID,
			fu.Username,
			fu.Score,
			fu.Action,
			fu.Reasons,
		); err != nil {
			return fmt.Errorf("failed to insert flagged user %d: %w", fu.UserID, err)
		}
	}

	for _, p := range predictions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO threat_predictions (report_id, community_id, category, horizon, probability, trend_direction, indicators, mitigations)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			p.ReportID,
			p.CommunityID,
			p.Category,
			p.Horizon,
			p.Probability,
			p.TrendDirection,
			p.Indicators,
			p.Mitigations,
		); err != nil {
			return fmt.Errorf("failed to insert prediction %s: %w", p.Category, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	rollback = false
	return nil
}

func (c *sqliteClient) GetLatestRiskReport(ctx context.Context, communityID int64) (*db.RiskReport, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var report db.RiskReport
	err := c.db.GetContext(ctx, &report, `
		SELECT id, community_id, score, level, vulnerabilities, created_at
		FROM risk_reports
		WHERE community_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, communityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest risk report: %w", err)
	}
	return &report, nil
}

func (c *sqliteClient) GetFlaggedUsers(ctx context.Context, reportID string) ([]*db.FlaggedUser, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var flagged []*db.FlaggedUser
	err := c.db.SelectContext(ctx, &flagged, `
		SELECT report_id, community_id, user_id, username, score, action, reasons
		FROM flagged_users
		WHERE report_id = ?
		ORDER BY score DESC, user_id ASC
	`, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to get flagged users: %w", err)
	}
	return flagged, nil
}

func (c *sqliteClient) GetThreatPredictions(ctx context.Context, reportID string) ([]*db.ThreatPrediction, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var predictions []*db.ThreatPrediction
	err := c.db.SelectContext(ctx, &predictions, `
		SELECT report_id, community_id, category, horizon, probability, trend_direction, indicators, mitigations
		FROM threat_predictions
		WHERE report_id = ?
		ORDER BY category ASC
	`, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to get threat predictions: %w", err)
	}
	return predictions, nil
}
