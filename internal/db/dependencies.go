package db

import (
	"context"
	"time"
)

// UserThreatStats summarizes a member's unresolved event history within
// a window: how many events and which distinct kinds.
type UserThreatStats struct {
	Count int
	Kinds []string
}

type Client interface {
	Close() error

	GetSettings(ctx context.Context, communityID int64) (*CommunitySettings, error)
	SetSettings(ctx context.Context, settings *CommunitySettings) error
	ListEnabledCommunities(ctx context.Context) ([]*CommunitySettings, error)

	GetOverride(ctx context.Context, communityID, userID int64) (*SuspicionOverride, error)
	SetOverride(ctx context.Context, override *SuspicionOverride) error
	DeleteOverride(ctx context.Context, communityID, userID int64) error

	UpsertMember(ctx context.Context, member *Member) error
	UpsertMembers(ctx context.Context, members []*Member) error
	GetMember(ctx context.Context, communityID, userID int64) (*Member, error)
	GetMembers(ctx context.Context, communityID int64) ([]*Member, error)

	InsertThreatEvent(ctx context.Context, event *ThreatEvent) error
	GetThreatEvents(ctx context.Context, communityID int64, since time.Time) ([]*ThreatEvent, error)
	CountThreatEvents(ctx context.Context, communityID int64, since time.Time) (int, error)
	GetUserThreatStats(ctx context.Context, communityID int64, since time.Time) (map[int64]UserThreatStats, error)

	InsertRiskReport(ctx context.Context, report *RiskReport, flagged []*FlaggedUser, predictions []*ThreatPrediction) error
	GetLatestRiskReport(ctx context.Context, communityID int64) (*RiskReport, error)
	GetFlaggedUsers(ctx context.Context, reportID string) ([]*FlaggedUser, error)
	GetThreatPredictions(ctx context.Context, reportID string) ([]*ThreatPrediction, error)

	GetKV(ctx context.Context, key string) (string, error)
	SetKV(ctx context.Context, key string, value string) error
}
