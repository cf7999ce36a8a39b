package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/wardenbot/warden/internal/utils/text"
)

// RawSignals is the unprocessed snapshot a member provider hands over.
// Identity and the account timestamp are mandatory, everything else is
// best effort and gets sanitized during normalization.
type RawSignals struct {
	UserID      int64 `validate:"required"`
	CommunityID int64 `validate:"required"`

	Username         string
	AccountCreatedAt time.Time `validate:"required"`
	JoinedAt         time.Time

	ReputationScore   int
	RecentThreatCount int
	ThreatKinds       []string

	HasDefaultAvatar bool
	IsPrivileged     bool
	IsProtected      bool
}

// UserSignals is the normalized, scorer-ready view of a member.
type UserSignals struct {
	UserID      int64
	CommunityID int64
	Username    string

	AccountAgeDays float64
	JoinAgeDays    float64

	ReputationScore   int
	RecentThreatCount int
	ThreatKinds       []string

	UsernameAnomalyCount int

	HasDefaultAvatar bool
	IsPrivileged     bool
	IsProtected      bool
}

var signalCheck = validator.New()

// NormalizeSignals validates a raw snapshot and converts it into scorer
// input: ages relative to now clamped to zero, reputation clamped to the
// configured floor, threat kinds deduplicated and sorted, username
// anomalies counted. Missing identity or account timestamp yields
// ErrInvalidSignal.
func NormalizeSignals(raw RawSignals, w Weights, now time.Time) (UserSignals, error) {
	if err := signalCheck.Struct(raw); err != nil {
		return UserSignals{}, fmt.Errorf("%w: %v", ErrInvalidSignal, err)
	}

	joined := raw.JoinedAt
	if joined.IsZero() {
		joined = raw.AccountCreatedAt
	}

	reputation := raw.ReputationScore
	if reputation < w.ReputationFloor {
		reputation = w.ReputationFloor
	}

	threats := raw.RecentThreatCount
	if threats < 0 {
		threats = 0
	}

	return UserSignals{
		UserID:      raw.UserID,
		CommunityID: raw.CommunityID,
		Username:    raw.Username,

		AccountAgeDays: ageDays(raw.AccountCreatedAt, now),
		JoinAgeDays:    ageDays(joined, now),

		ReputationScore:   reputation,
		RecentThreatCount: threats,
		ThreatKinds:       normalizeKinds(raw.ThreatKinds),

		UsernameAnomalyCount: text.CountAnomalousRunes(raw.Username),

		HasDefaultAvatar: raw.HasDefaultAvatar,
		IsPrivileged:     raw.IsPrivileged,
		IsProtected:      raw.IsProtected,
	}, nil
}

func ageDays(from, now time.Time) float64 {
	days := now.Sub(from).Hours() / 24
	if days < 0 {
		return 0
	}
	return days
}

func normalizeKinds(kinds []string) []string {
	if len(kinds) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(kinds))
	out := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		kind = strings.TrimSpace(kind)
		if kind == "" {
			continue
		}
		if _, ok := seen[kind]; ok {
			continue
		}
		seen[kind] = struct{}{}
		out = append(out, kind)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}
