package engine

import (
	"fmt"
	"sort"
)

// CommunityStats is the roll-up input describing community composition
// and recent security log volume.
type CommunityStats struct {
	MemberCount     int
	PrivilegedCount int
	BotCount        int
	NewAccountCount int
	RecentEvents24h int
	RecentEvents7d  int
}

// RiskLevel grades an aggregate risk score.
type RiskLevel string

const (
	RiskExcellent RiskLevel = "excellent"
	RiskGood      RiskLevel = "good"
	RiskFair      RiskLevel = "fair"
	RiskPoor      RiskLevel = "poor"
)

// CommunityRiskReport is the aggregate health picture of one community.
type CommunityRiskReport struct {
	Score           int
	Level           RiskLevel
	Vulnerabilities []string
	FlaggedUsers    []SuspicionResult
}

// AggregateRisk rolls member composition, recent event volume and the
// flagged member batch into a single report. The flagged slice is copied
// and sorted by score descending, the input is never mutated.
func AggregateRisk(stats CommunityStats, flagged []SuspicionResult) CommunityRiskReport {
	score := 100
	var vulnerabilities []string

	penalty := func(points int, detail string) {
		score -= points
		vulnerabilities = append(vulnerabilities, detail)
	}

	if stats.PrivilegedCount > 5 {
		penalty(15, fmt.Sprintf("elevated privileged member count: %d (recommended at most 5)", stats.PrivilegedCount))
	}
	if stats.BotCount > 10 {
		penalty(10, fmt.Sprintf("large bot population: %d (recommended at most 10)", stats.BotCount))
	}
	if float64(stats.NewAccountCount) > 0.2*float64(stats.MemberCount) {
		penalty(20, fmt.Sprintf("new accounts exceed a fifth of the community: %d of %d members", stats.NewAccountCount, stats.MemberCount))
	}
	if stats.RecentEvents7d > 10 {
		penalty(15, fmt.Sprintf("busy security log: %d events in the last 7 days", stats.RecentEvents7d))
	}
	if stats.RecentEvents24h > 5 {
		penalty(10, fmt.Sprintf("active incident window: %d events in the last 24 hours", stats.RecentEvents24h))
	}

	if stats.PrivilegedCount <= 3 {
		score += 5
	}
	if stats.RecentEvents7d == 0 {
		score += 10
	}

	score = clampInt(score, 0, 100)

	if len(vulnerabilities) == 0 {
		vulnerabilities = []string{"no critical vulnerabilities detected"}
	}

	sorted := make([]SuspicionResult, len(flagged))
	copy(sorted, flagged)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	return CommunityRiskReport{
		Score:           score,
		Level:           riskLevelFor(score),
		Vulnerabilities: vulnerabilities,
		FlaggedUsers:    sorted,
	}
}

func riskLevelFor(score int) RiskLevel {
	switch {
	case score >= 90:
		return RiskExcellent
	case score >= 75:
		return RiskGood
	case score >= 50:
		return RiskFair
	default:
		return RiskPoor
	}
}
