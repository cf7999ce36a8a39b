package engine

import (
	"fmt"
	"math"
	"time"
)

const (
	// MinLevel is the most permissive aggressiveness level.
	MinLevel = 1
	// MaxLevel is the strictest aggressiveness level.
	MaxLevel = 10
)

// UserOverride pins a specific member to its own aggressiveness level,
// fully replacing the community default while active. Overrides are never
// blended with the default.
type UserOverride struct {
	Level     int
	Reason    string
	SetBy     int64
	ExpiresAt *time.Time
}

// ActiveAt reports whether the override applies at the given instant.
// A nil override or a past expiry means the community default stands.
func (o *UserOverride) ActiveAt(now time.Time) bool {
	if o == nil {
		return false
	}
	return o.ExpiresAt == nil || o.ExpiresAt.After(now)
}

// PolicyThresholds is a fully resolved enforcement policy. Values are
// computed, never persisted; persist the level and resolve again instead.
type PolicyThresholds struct {
	// Level is the effective aggressiveness the policy was resolved
	// from. Scorer rules that depend on strictness read it back.
	Level int

	MinAccountAgeDays     int
	MaxJoinsPerMinute     int
	MaxMessagesPerMinute  int
	MaxDuplicateMessages  int
	MaxMentionsPerMessage int
	MaxLinksPerMessage    int
	AIConfidenceFloor     float64

	// SuspicionThreshold is the score at which a member stops being
	// clean. Action bands build on it, see ScoreUser.
	SuspicionThreshold int

	AutoQuarantine bool
	AutoBan        bool
}

type anchorPair struct {
	permissive float64 // level 1
	maximum    float64 // level 10
}

// Threshold anchors. Every pair tightens from level 1 to level 10;
// intermediate levels interpolate linearly.
var policyAnchors = struct {
	minAccountAgeDays     anchorPair
	maxJoinsPerMinute     anchorPair
	maxMessagesPerMinute  anchorPair
	maxDuplicateMessages  anchorPair
	maxMentionsPerMessage anchorPair
	maxLinksPerMessage    anchorPair
	aiConfidenceFloor     anchorPair
}{
	minAccountAgeDays:     anchorPair{permissive: 30, maximum: 7},
	maxJoinsPerMinute:     anchorPair{permissive: 8, maximum: 1},
	maxMessagesPerMinute:  anchorPair{permissive: 20, maximum: 5},
	maxDuplicateMessages:  anchorPair{permissive: 5, maximum: 1},
	maxMentionsPerMessage: anchorPair{permissive: 8, maximum: 2},
	maxLinksPerMessage:    anchorPair{permissive: 5, maximum: 1},
	aiConfidenceFloor:     anchorPair{permissive: 0.95, maximum: 0.55},
}

// ResolvePolicy turns an aggressiveness level into concrete thresholds.
// An active, unexpired override replaces the community level entirely; an
// expired or absent one falls back silently. The applied level must sit
// within MinLevel..MaxLevel or ErrInvalidLevel is returned.
func ResolvePolicy(communityLevel int, override *UserOverride, now time.Time) (PolicyThresholds, error) {
	level := communityLevel
	overridden := false
	if override.ActiveAt(now) {
		level = override.Level
		overridden = true
	}
	if level < MinLevel || level > MaxLevel {
		source := "community"
		if overridden {
			source = "override"
		}
		return PolicyThresholds{}, fmt.Errorf("%w: %s level %d is outside %d..%d", ErrInvalidLevel, source, level, MinLevel, MaxLevel)
	}

	return PolicyThresholds{
		Level: level,

		MinAccountAgeDays:     interpolateInt(policyAnchors.minAccountAgeDays, level),
		MaxJoinsPerMinute:     interpolateInt(policyAnchors.maxJoinsPerMinute, level),
		MaxMessagesPerMinute:  interpolateInt(policyAnchors.maxMessagesPerMinute, level),
		MaxDuplicateMessages:  interpolateInt(policyAnchors.maxDuplicateMessages, level),
		MaxMentionsPerMessage: interpolateInt(policyAnchors.maxMentionsPerMessage, level),
		MaxLinksPerMessage:    interpolateInt(policyAnchors.maxLinksPerMessage, level),
		AIConfidenceFloor:     interpolateHundredths(policyAnchors.aiConfidenceFloor, level),

		SuspicionThreshold: suspicionThresholdFor(level),

		AutoQuarantine: level >= 5,
		AutoBan:        level >= 8,
	}, nil
}

func interpolate(a anchorPair, level int) float64 {
	span := float64(level-MinLevel) / float64(MaxLevel-MinLevel)
	return a.permissive + (a.maximum-a.permissive)*span
}

func interpolateInt(a anchorPair, level int) int {
	return roundInt(interpolate(a, level))
}

func interpolateHundredths(a anchorPair, level int) float64 {
	return math.Round(interpolate(a, level)*100) / 100
}

func suspicionThresholdFor(level int) int {
	switch {
	case level >= 9:
		return 40
	case level >= 7:
		return 60
	case level >= 5:
		return 80
	default:
		return 100
	}
}
