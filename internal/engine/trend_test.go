package engine

import (
	"fmt"
	"testing"
	"time"
)

const day = 24 * time.Hour

func testEvents(typ EventType, sev Severity, now time.Time, ages ...time.Duration) []ThreatEvent {
	out := make([]ThreatEvent, 0, len(ages))
	for i, age := range ages {
		out = append(out, ThreatEvent{
			ID:          fmt.Sprintf("ev-%s-%d", typ, i),
			Type:        typ,
			Severity:    sev,
			CommunityID: 7,
			At:          now.Add(-age),
		})
	}
	return out
}

func TestAnalyzeTrendNoHistory(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	profiles := DefaultTrendProfiles()

	tests := []struct {
		category EventType
		want     int
	}{
		{category: EventRaid, want: 5},
		{category: EventBypass, want: 5},
		{category: EventSpam, want: 15},
		{category: EventNSFW, want: 10},
		{category: CategoryGeneral, want: 10},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.category), func(t *testing.T) {
			t.Parallel()
			got := AnalyzeTrend(nil, HorizonWeek, tt.category, profiles, now)
			if got.Probability != tt.want {
				t.Fatalf("unexpected floor probability: got %d, want %d", got.Probability, tt.want)
			}
			if got.TrendDirection != TrendStable {
				t.Fatalf("no history must read stable: got %q", got.TrendDirection)
			}
			if len(got.Indicators) == 0 || len(got.Mitigations) == 0 {
				t.Fatalf("playbook must not be empty: %#v", got)
			}
		})
	}
}

func TestAnalyzeTrendZeroPriorBaseline(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := testEvents(EventRaid, SeverityHigh, now, 2*day, 2*day, 2*day)

	got := AnalyzeTrend(events, HorizonWeek, EventRaid, DefaultTrendProfiles(), now)
	if got.TrendDirection != TrendStable {
		t.Fatalf("zero prior baseline must not explode the trend: got %q", got.TrendDirection)
	}
	if got.Probability != 43 {
		t.Fatalf("unexpected probability: got %d, want 43", got.Probability)
	}
}

func TestAnalyzeTrendDirections(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("increasing", func(t *testing.T) {
		t.Parallel()
		events := testEvents(EventSpam, SeverityMedium, now, 1*day, 2*day, 3*day, 4*day, 5*day, 8*day, 9*day, 10*day)
		got := AnalyzeTrend(events, HorizonWeek, EventSpam, DefaultTrendProfiles(), now)
		if got.TrendDirection != TrendIncreasing {
			t.Fatalf("unexpected direction: got %q, want %q", got.TrendDirection, TrendIncreasing)
		}
		if got.Probability != 76 {
			t.Fatalf("unexpected probability: got %d, want 76", got.Probability)
		}
	})

	t.Run("decreasing", func(t *testing.T) {
		t.Parallel()
		events := testEvents(EventRaid, SeverityHigh, now, 1*day, 8*day, 9*day, 10*day, 11*day, 12*day)
		got := AnalyzeTrend(events, HorizonWeek, EventRaid, DefaultTrendProfiles(), now)
		if got.TrendDirection != TrendDecreasing {
			t.Fatalf("unexpected direction: got %q, want %q", got.TrendDirection, TrendDecreasing)
		}
		if got.Probability != 14 {
			t.Fatalf("unexpected probability: got %d, want 14", got.Probability)
		}
	})
}

func TestAnalyzeTrendBurstBonus(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("raid count burst", func(t *testing.T) {
		t.Parallel()
		events := testEvents(EventRaid, SeverityHigh, now, 1*day, 2*day, 3*day, 4*day)
		got := AnalyzeTrend(events, HorizonWeek, EventRaid, DefaultTrendProfiles(), now)
		if got.Probability != 77 { // round(100*4/7) + 20
			t.Fatalf("unexpected probability: got %d, want 77", got.Probability)
		}
	})

	t.Run("severity burst for pooled events", func(t *testing.T) {
		t.Parallel()
		events := testEvents(EventOther, SeverityCritical, now, 1*day, 2*day, 3*day)
		got := AnalyzeTrend(events, HorizonWeek, "", DefaultTrendProfiles(), now)
		if got.Category != CategoryGeneral {
			t.Fatalf("empty category must pool as general: got %q", got.Category)
		}
		if got.Probability != 36 { // round(60*3/7) + 10
			t.Fatalf("unexpected probability: got %d, want 36", got.Probability)
		}
	})
}

func TestAnalyzeTrendProbabilityBounds(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	heavy := make([]ThreatEvent, 0, 50)
	for i := 0; i < 50; i++ {
		heavy = append(heavy, ThreatEvent{
			ID:          fmt.Sprintf("ev-%d", i),
			Type:        EventRaid,
			Severity:    SeverityCritical,
			CommunityID: 7,
			At:          now.Add(-time.Hour),
		})
	}

	for _, horizon := range []Horizon{HorizonDay, HorizonWeek, HorizonMonth} {
		for _, events := range [][]ThreatEvent{nil, heavy} {
			got := AnalyzeTrend(events, horizon, EventRaid, DefaultTrendProfiles(), now)
			if got.Probability < 0 || got.Probability > 95 {
				t.Fatalf("probability out of range for horizon %q: %d", horizon, got.Probability)
			}
		}
	}
}

func TestAnalyzeTrendHorizonWindows(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("events outside a short horizon fall to the floor", func(t *testing.T) {
		t.Parallel()
		events := testEvents(EventRaid, SeverityHigh, now, 3*day, 3*day, 3*day, 3*day)
		got := AnalyzeTrend(events, HorizonDay, EventRaid, DefaultTrendProfiles(), now)
		if got.Probability != 5 {
			t.Fatalf("unexpected probability: got %d, want floor 5", got.Probability)
		}
	})

	t.Run("long horizon still sees old events", func(t *testing.T) {
		t.Parallel()
		events := testEvents(EventRaid, SeverityHigh, now, 20*day, 20*day, 20*day, 20*day)
		got := AnalyzeTrend(events, HorizonMonth, EventRaid, DefaultTrendProfiles(), now)
		if got.Probability != 13 { // round(100*4/30)
			t.Fatalf("unexpected probability: got %d, want 13", got.Probability)
		}
		if got.TrendDirection != TrendStable {
			t.Fatalf("events outside both trend windows must read stable: got %q", got.TrendDirection)
		}
	})
}

func TestAnalyzeAllTrends(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := append(
		testEvents(EventRaid, SeverityHigh, now, 1*day, 2*day),
		testEvents(EventSpam, SeverityMedium, now, 1*day)...,
	)

	got := AnalyzeAllTrends(events, HorizonWeek, DefaultTrendProfiles(), now)
	wantOrder := []EventType{EventRaid, EventSpam, EventNSFW, EventBypass, EventConfigChange, EventOther}
	if len(got) != len(wantOrder) {
		t.Fatalf("unexpected prediction count: got %d, want %d", len(got), len(wantOrder))
	}
	for i, p := range got {
		if p.Category != wantOrder[i] {
			t.Fatalf("unexpected category at %d: got %q, want %q", i, p.Category, wantOrder[i])
		}
		if p.Probability < 0 || p.Probability > 95 {
			t.Fatalf("probability out of range for %q: %d", p.Category, p.Probability)
		}
		if p.Horizon != HorizonWeek {
			t.Fatalf("unexpected horizon for %q: %q", p.Category, p.Horizon)
		}
	}
}

func TestParseHorizon(t *testing.T) {
	t.Parallel()

	for _, ok := range []string{"24h", "7d", "30d"} {
		if _, err := ParseHorizon(ok); err != nil {
			t.Fatalf("unexpected error for %q: %v", ok, err)
		}
	}
	if _, err := ParseHorizon("90d"); err == nil {
		t.Fatalf("expected error for unknown horizon")
	}
}
