package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// EventType categorizes a recorded security event.
type EventType string

const (
	EventRaid         EventType = "raid"
	EventSpam         EventType = "spam"
	EventNSFW         EventType = "nsfw"
	EventBypass       EventType = "bypass"
	EventConfigChange EventType = "config_change"
	EventOther        EventType = "other"

	// CategoryGeneral pools every category during trend analysis. It is
	// not a storable event type.
	CategoryGeneral EventType = "general"
)

// Severity grades a threat event.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ThreatEvent is one immutable entry of the community's security log.
// A zero UserID means the event is not attributed to a member.
type ThreatEvent struct {
	ID          string
	Type        EventType
	Severity    Severity
	CommunityID int64
	UserID      int64
	At          time.Time
	Resolved    bool
}

// TrendDirection summarizes week-over-week movement.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// Horizon is the forecast timeframe. It picks the frequency baseline
// window and the report label; the week-over-week trend windows stay
// fixed regardless.
type Horizon string

const (
	HorizonDay   Horizon = "24h"
	HorizonWeek  Horizon = "7d"
	HorizonMonth Horizon = "30d"
)

// Lookback returns the horizon's baseline window. Unknown horizons fall
// back to a week.
func (h Horizon) Lookback() time.Duration {
	switch h {
	case HorizonDay:
		return 24 * time.Hour
	case HorizonMonth:
		return 30 * 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

// ParseHorizon validates a horizon label from configuration or storage.
func ParseHorizon(s string) (Horizon, error) {
	switch Horizon(s) {
	case HorizonDay, HorizonWeek, HorizonMonth:
		return Horizon(s), nil
	}
	return "", fmt.Errorf("unknown prediction horizon %q", s)
}

// ThreatPrediction is the trend analyzer output for one category.
type ThreatPrediction struct {
	Category       EventType
	Horizon        Horizon
	Probability    int
	TrendDirection TrendDirection
	Indicators     []string
	Mitigations    []string
}

const (
	trendWindow     = 7 * 24 * time.Hour
	trendWindowDays = 7.0
	maxProbability  = 95
)

// AnalyzeTrend projects the probability of further events of the given
// category within the horizon. An empty category pools all events.
// Events may arrive in any order; only their timestamps matter. The
// result is deterministic for identical inputs and now.
func AnalyzeTrend(events []ThreatEvent, horizon Horizon, category EventType, profiles TrendProfiles, now time.Time) ThreatPrediction {
	if category == "" {
		category = CategoryGeneral
	}
	profile := profiles.forCategory(category)

	recent := countBetween(events, category, now.Add(-trendWindow), now)
	prior := countBetween(events, category, now.Add(-2*trendWindow), now.Add(-trendWindow))

	recentFreq := float64(recent) / trendWindowDays
	priorFreq := float64(prior) / trendWindowDays

	// No prior baseline means no trend, never a division blowup.
	trend := 0.0
	if priorFreq > 0 {
		trend = (recentFreq - priorFreq) / priorFreq
	}

	direction := TrendStable
	switch {
	case trend > 0.3:
		direction = TrendIncreasing
	case trend < -0.3:
		direction = TrendDecreasing
	}

	lookback := horizon.Lookback()
	baseline := countBetween(events, category, now.Add(-lookback), now)
	doubled := countBetween(events, category, now.Add(-2*lookback), now)

	probability := profile.FloorProbability
	if doubled > 0 {
		frequency := float64(baseline) / (lookback.Hours() / 24)
		raw := profile.FrequencyFactor * frequency * (1 + math.Max(0, trend*0.5))
		probability = roundInt(raw) + burstBonus(profile, events, category, now, recent)
	}
	probability = clampInt(probability, 0, maxProbability)

	repl := strings.NewReplacer(
		"{recent}", strconv.Itoa(recent),
		"{prior}", strconv.Itoa(prior),
		"{trend}", fmt.Sprintf("%+.0f%%", trend*100),
		"{category}", string(category),
		"{horizon}", string(horizon),
	)

	return ThreatPrediction{
		Category:       category,
		Horizon:        horizon,
		Probability:    probability,
		TrendDirection: direction,
		Indicators:     renderPlaybook(profile.Indicators, repl),
		Mitigations:    renderPlaybook(profile.Mitigations, repl),
	}
}

var allCategories = []EventType{EventRaid, EventSpam, EventNSFW, EventBypass, EventConfigChange, EventOther}

// AnalyzeAllTrends runs AnalyzeTrend for every concrete category in a
// fixed order.
func AnalyzeAllTrends(events []ThreatEvent, horizon Horizon, profiles TrendProfiles, now time.Time) []ThreatPrediction {
	out := make([]ThreatPrediction, 0, len(allCategories))
	for _, category := range allCategories {
		out = append(out, AnalyzeTrend(events, horizon, category, profiles, now))
	}
	return out
}

func matchesCategory(ev ThreatEvent, category EventType) bool {
	return category == CategoryGeneral || ev.Type == category
}

// countBetween counts matching events with At in (from, to].
func countBetween(events []ThreatEvent, category EventType, from, to time.Time) int {
	n := 0
	for _, ev := range events {
		if !matchesCategory(ev, category) {
			continue
		}
		if ev.At.After(from) && !ev.At.After(to) {
			n++
		}
	}
	return n
}

func burstBonus(profile TrendProfile, events []ThreatEvent, category EventType, now time.Time, recent int) int {
	if profile.SeverityBurst {
		critical, high := 0, 0
		from := now.Add(-trendWindow)
		for _, ev := range events {
			if !matchesCategory(ev, category) || !ev.At.After(from) || ev.At.After(now) {
				continue
			}
			switch ev.Severity {
			case SeverityCritical:
				critical++
			case SeverityHigh:
				high++
			}
		}
		if critical > 2 || high > 5 {
			return profile.BurstBonus
		}
		return 0
	}
	if recent > profile.BurstThreshold {
		return profile.BurstBonus
	}
	return 0
}

func renderPlaybook(templates []string, repl *strings.Replacer) []string {
	if len(templates) == 0 {
		return nil
	}
	out := make([]string, len(templates))
	for i, tpl := range templates {
		out[i] = repl.Replace(tpl)
	}
	return out
}
