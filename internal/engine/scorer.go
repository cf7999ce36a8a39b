package engine

import (
	"fmt"
	"strings"
)

// Action is the enforcement recommendation attached to a score. The
// engine never executes any of these, callers decide what to do with
// the recommendation.
type Action string

const (
	ActionNone       Action = "none"
	ActionFlag       Action = "flag"
	ActionQuarantine Action = "quarantine"
	ActionBan        Action = "ban"
)

// Reason is one scored justification. The reason list replays the exact
// rule firings that produced the total, in rule order.
type Reason struct {
	Label  string
	Weight float64
}

// AISignal is an optional classifier verdict injected by the caller.
// The engine never talks to a model itself.
type AISignal struct {
	Label      string
	Confidence float64
}

// SuspicionResult is the scorer output for a single member.
type SuspicionResult struct {
	UserID            int64
	Username          string
	Score             float64
	Reasons           []Reason
	RecommendedAction Action
}

// ScoreUser runs the additive rule set over normalized signals under the
// given policy. Rules are independent; age and reputation bands are
// mutually exclusive with the steepest band winning. A protected member
// short-circuits to a zero score before any rule runs. The AI signal is
// optional and only counts when its confidence clears the policy floor.
func ScoreUser(sig UserSignals, th PolicyThresholds, ai *AISignal, w Weights) SuspicionResult {
	res := SuspicionResult{
		UserID:            sig.UserID,
		Username:          sig.Username,
		RecommendedAction: ActionNone,
	}

	if sig.IsProtected {
		res.Reasons = []Reason{{Label: "protected member, scoring skipped", Weight: 0}}
		return res
	}

	add := func(weight float64, label string) {
		res.Score += weight
		res.Reasons = append(res.Reasons, Reason{Label: label, Weight: weight})
	}

	switch {
	case sig.AccountAgeDays < 1:
		add(w.AccountUnderDay, "account younger than a day")
	case sig.AccountAgeDays < 3:
		add(w.AccountUnderThreeDays, "account younger than three days")
	case sig.AccountAgeDays < 7:
		add(w.AccountUnderWeek, "account younger than a week")
	case sig.AccountAgeDays < 14 && th.MinAccountAgeDays >= 14:
		add(w.AccountUnderFortnight, "account younger than the required minimum age")
	}

	switch {
	case sig.ReputationScore < 20:
		add(w.ReputationDire, fmt.Sprintf("reputation critically low (%d)", sig.ReputationScore))
	case sig.ReputationScore < 50:
		add(w.ReputationLow, fmt.Sprintf("reputation low (%d)", sig.ReputationScore))
	case sig.ReputationScore < 80:
		add(w.ReputationWeak, fmt.Sprintf("reputation below neutral (%d)", sig.ReputationScore))
	}

	if n := sig.RecentThreatCount; n > 0 {
		label := fmt.Sprintf("%d recent threat events", n)
		if n == 1 {
			label = "1 recent threat event"
		}
		if len(sig.ThreatKinds) > 0 {
			label += " (" + strings.Join(sig.ThreatKinds, ", ") + ")"
		}
		add(w.PerThreatEvent*float64(n), label)
	}

	switch {
	case sig.UsernameAnomalyCount > 15:
		add(w.UsernameHeavyAnomaly, fmt.Sprintf("username is mostly decorative (%d unusual characters)", sig.UsernameAnomalyCount))
	case sig.UsernameAnomalyCount > 8:
		add(w.UsernameMildAnomaly, fmt.Sprintf("username carries unusual characters (%d)", sig.UsernameAnomalyCount))
	}

	if sig.HasDefaultAvatar && sig.AccountAgeDays < 7 {
		add(w.StockAvatarNewcomer, "default avatar on a fresh account")
	}

	// Join recency only matters under near-maximum strictness, a quiet
	// community should not care when an established account joined.
	if sig.JoinAgeDays < 1 && th.Level >= 9 {
		add(w.FreshJoin, "joined less than a day ago")
	}

	if sig.IsPrivileged && sig.AccountAgeDays < 30 {
		add(w.YoungPrivileged, "privileged role on an account younger than thirty days")
	}

	if ai != nil && ai.Confidence >= th.AIConfidenceFloor {
		label := ai.Label
		if label == "" {
			label = "unlabeled verdict"
		}
		add(ai.Confidence*w.AIMultiplier, "classifier: "+label)
	}

	res.RecommendedAction = recommendAction(res.Score, th, w)
	return res
}

func recommendAction(score float64, th PolicyThresholds, w Weights) Action {
	threshold := float64(th.SuspicionThreshold)
	switch {
	case score < threshold:
		return ActionNone
	case score < threshold+w.ActionGap:
		return ActionFlag
	}
	if th.AutoBan && score >= w.BanScoreFloor {
		return ActionBan
	}
	if th.AutoQuarantine {
		return ActionQuarantine
	}
	return ActionFlag
}
