package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/wardenbot/warden/internal/engine"
)

type (
	CommunitySettings struct {
		ID        int64     `db:"id"`
		Enabled   bool      `db:"enabled"`
		Level     int       `db:"level"`
		UpdatedBy int64     `db:"updated_by"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	SuspicionOverride struct {
		CommunityID int64      `db:"community_id"`
		UserID      int64      `db:"user_id"`
		Level       int        `db:"level"`
		Reason      string     `db:"reason"`
		SetBy       int64      `db:"set_by"`
		ExpiresAt   *time.Time `db:"expires_at"`
	}

	Member struct {
		CommunityID      int64      `db:"community_id"`
		UserID           int64      `db:"user_id"`
		Username         string     `db:"username"`
		AccountCreatedAt time.Time  `db:"account_created_at"`
		JoinedAt         *time.Time `db:"joined_at"`
		ReputationScore  int        `db:"reputation_score"`
		HasDefaultAvatar bool       `db:"has_default_avatar"`
		IsPrivileged     bool       `db:"is_privileged"`
		IsProtected      bool       `db:"is_protected"`
		IsBot            bool       `db:"is_bot"`
	}

	ThreatEvent struct {
		ID          string    `db:"id"`
		CommunityID int64     `db:"community_id"`
		UserID      int64     `db:"user_id"`
		Type        string    `db:"type"`
		Severity    string    `db:"severity"`
		OccurredAt  time.Time `db:"occurred_at"`
		Resolved    bool      `db:"resolved"`
	}

	RiskReport struct {
		ID              string     `db:"id"`
		CommunityID     int64      `db:"community_id"`
		Score           int        `db:"score"`
		Level           string     `db:"level"`
		Vulnerabilities StringList `db:"vulnerabilities"`
		CreatedAt       time.Time  `db:"created_at"`
	}

	FlaggedUser struct {
		ReportID    string     `db:"report_id"`
		CommunityID int64      `db:"community_id"`
		UserID      int64      `db:"user_id"`
		Username    string     `db:"username"`
		Score       float64    `db:"score"`
		Action      string     `db:"action"`
		Reasons     ReasonList `db:"reasons"`
	}

	ThreatPrediction struct {
		ReportID       string     `db:"report_id"`
		CommunityID    int64      `db:"community_id"`
		Category       string     `db:"category"`
		Horizon        string     `db:"horizon"`
		Probability    int        `db:"probability"`
		TrendDirection string     `db:"trend_direction"`
		Indicators     StringList `db:"indicators"`
		Mitigations    StringList `db:"mitigations"`
	}

	StringList []string
	ReasonList []engine.Reason
)

func (l StringList) Value() (driver.Value, error) {
	return json.Marshal(l)
}

func (l *StringList) Scan(v any) error {
	if v == nil {
		return nil
	}
	switch data := v.(type) {
	case string:
		return json.Unmarshal([]byte(data), l)
	case []byte:
		return json.Unmarshal(data, l)
	default:
		return fmt.Errorf("cannot scan type %T into StringList", v)
	}
}

func (l ReasonList) Value() (driver.Value, error) {
	return json.Marshal(l)
}

func (l *ReasonList) Scan(v any) error {
	if v == nil {
		return nil
	}
	switch data := v.(type) {
	case string:
		return json.Unmarshal([]byte(data), l)
	case []byte:
		return json.Unmarshal(data, l)
	default:
		return fmt.Errorf("cannot scan type %T into ReasonList", v)
	}
}

func (s *CommunitySettings) Validate() error {
	if s == nil {
		return errors.New("nil settings")
	}
	if s.ID == 0 {
		return errors.New("settings without a community id")
	}
	if s.Level < engine.MinLevel || s.Level > engine.MaxLevel {
		return errors.Errorf("aggressiveness level %d is outside %d..%d", s.Level, engine.MinLevel, engine.MaxLevel)
	}
	return nil
}

func (o *SuspicionOverride) Validate() error {
	if o == nil {
		return errors.New("nil override")
	}
	if o.CommunityID == 0 || o.UserID == 0 {
		return errors.New("override without a full identity")
	}
	if o.Level < engine.MinLevel || o.Level > engine.MaxLevel {
		return errors.Errorf("override level %d is outside %d..%d", o.Level, engine.MinLevel, engine.MaxLevel)
	}
	return nil
}

// Engine converts the stored override into its evaluation form.
func (o *SuspicionOverride) Engine() *engine.UserOverride {
	if o == nil {
		return nil
	}
	return &engine.UserOverride{
		Level:     o.Level,
		Reason:    o.Reason,
		SetBy:     o.SetBy,
		ExpiresAt: o.ExpiresAt,
	}
}

// Engine converts the stored event into its evaluation form.
func (e *ThreatEvent) Engine() engine.ThreatEvent {
	return engine.ThreatEvent{
		ID:          e.ID,
		Type:        engine.EventType(e.Type),
		Severity:    engine.Severity(e.Severity),
		CommunityID: e.CommunityID,
		UserID:      e.UserID,
		At:          e.OccurredAt,
		Resolved:    e.Resolved,
	}
}

// BaseSignals builds the raw signal snapshot the member row carries.
// Threat history fields stay zero, the caller fills them from the event
// log before normalization.
func (m *Member) BaseSignals() engine.RawSignals {
	if m == nil {
		return engine.RawSignals{}
	}
	raw := engine.RawSignals{
		UserID:           m.UserID,
		CommunityID:      m.CommunityID,
		Username:         m.Username,
		AccountCreatedAt: m.AccountCreatedAt,
		ReputationScore:  m.ReputationScore,
		HasDefaultAvatar: m.HasDefaultAvatar,
		IsPrivileged:     m.IsPrivileged,
		IsProtected:      m.IsProtected,
	}
	if m.JoinedAt != nil {
		raw.JoinedAt = *m.JoinedAt
	}
	return raw
}
