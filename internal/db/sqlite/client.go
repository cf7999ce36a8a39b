package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/wardenbot/warden/internal/db"
	"github.com/wardenbot/warden/resources"
)

type sqliteClient struct {
	db    *sqlx.DB
	mutex sync.RWMutex
}

func NewSQLiteClient(ctx context.Context, dir, file string) (*sqliteClient, error) {
	dbx, err := sqlx.Open("sqlite", filepath.Join(dir, file))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	dbx.SetMaxOpenConns(42)
	if _, err := dbx.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	migrationsSource := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: resources.FS,
		Root:       "migrations",
	}
	n, err := migrate.Exec(dbx.DB, "sqlite3", migrationsSource, migrate.Up)
	if err != nil {
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	if n > 0 {
		log.Infof("applied %d migrations", n)
	}

	return &sqliteClient{db: dbx}, nil
}

func (c *sqliteClient) Close() error {
	return c.db.Close()
}

func (c *sqliteClient) GetSettings(ctx context.Context, communityID int64) (*db.CommunitySettings, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	settings := &db.CommunitySettings{}
	err := c.db.GetContext(ctx, settings, `
		SELECT id, enabled, level, updated_by, updated_at
		FROM community_settings
		WHERE id = ?
	`, communityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return settings, nil
}

func (c *sqliteClient) SetSettings(ctx context.Context, settings *db.CommunitySettings) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("failed to validate settings: %w", err)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO community_settings (id, enabled, level, updated_by, updated_at)
		VALUES (:id, :enabled, :level, :updated_by, :updated_at)
		ON CONFLICT(id) DO UPDATE SET
		enabled = excluded.enabled,
		level = excluded.level,
		updated_by = excluded.updated_by,
		updated_at = excluded.updated_at
	`
	if settings.UpdatedAt.IsZero() {
		settings.UpdatedAt = time.Now().UTC()
	}
	if _, err := c.db.NamedExecContext(ctx, query, settings); err != nil {
		return fmt.Errorf("failed to set settings: %w", err)
	}
	return nil
}

func (c *sqliteClient) ListEnabledCommunities(ctx context.Context) ([]*db.CommunitySettings, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var communities []*db.CommunitySettings
	err := c.db.SelectContext(ctx, &communities, `
		SELECT id, enabled, level, updated_by, updated_at
		FROM community_settings
		WHERE enabled = TRUE
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled communities: %w", err)
	}
	return communities, nil
}
