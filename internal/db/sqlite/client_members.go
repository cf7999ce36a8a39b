package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wardenbot/warden/internal/db"
)

const upsertMemberQuery = `
	INSERT INTO members (
		community_id, user_id, username, account_created_at, joined_at,
		reputation_score, has_default_avatar, is_privileged, is_protected, is_bot
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(community_id, user_id) DO UPDATE SET
	username = excluded.username,
	account_created_at = excluded.account_created_at,
	joined_at = excluded.joined_at,
	reputation_score = excluded.reputation_score,
	has_default_avatar = excluded.has_default_avatar,
	is_privileged = excluded.is_privileged,
	is_protected = excluded.is_protected,
	is_bot = excluded.is_bot
`

func (c *sqliteClient) UpsertMember(ctx context.Context, member *db.Member) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, upsertMemberQuery,
		member.CommunityID,
		member.UserID,
		member.Username,
		member.AccountCreatedAt,
		member.JoinedAt,
		member.ReputationScore,
		member.HasDefaultAvatar,
		member.IsPrivileged,
		member.IsProtected,
		member.IsBot,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert member: %w", err)
	}
	return nil
}

func (c *sqliteClient) UpsertMembers(ctx context.Context, members []*db.Member) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	rollback := true
	defer func() {
		if rollback {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, upsertMemberQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, member := range members {
		if _, err := stmt.ExecContext(ctx,
			member.CommunityID,
			member.UserID,
			member.Username,
			member.AccountCreatedAt,
			member.JoinedAt,
			member.ReputationScore,
			member.HasDefaultAvatar,
			member.IsPrivileged,
			member.IsProtected,
			member.IsBot,
		); err != nil {
			return fmt.Errorf("failed to upsert member %d: %w", member.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	rollback = false
	return nil
}

func (c *sqliteClient) GetMember(ctx context.Context, communityID, userID int64) (*db.Member, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var member db.Member
	err := c.db.GetContext(ctx, &member, `
		SELECT community_id, user_id, username, account_created_at, joined_at,
			reputation_score, has_default_avatar, is_privileged, is_protected, is_bot
		FROM members
		WHERE community_id = ? AND user_id = ?
	`, communityID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return &member, nil
}

func (c *sqliteClient) GetMembers(ctx context.Context, communityID int64) ([]*db.Member, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var members []*db.Member
	err := c.db.SelectContext(ctx, &members, `
		SELECT community_id, user_id, username, account_created_at, joined_at,
			reputation_score, has_default_avatar, is_privileged, is_protected, is_bot
		FROM members
		WHERE community_id = ?
		ORDER BY user_id ASC
	`, communityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	return members, nil
}
