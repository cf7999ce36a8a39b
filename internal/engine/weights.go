package engine

// Weights holds every tunable constant of the suspicion scorer. The zero
// value is unusable, start from DefaultWeights and override selectively
// via a tuning profile.
type Weights struct {
	AccountUnderDay       float64 `yaml:"account_under_day"`
	AccountUnderThreeDays float64 `yaml:"account_under_three_days"`
	AccountUnderWeek      float64 `yaml:"account_under_week"`
	AccountUnderFortnight float64 `yaml:"account_under_fortnight"`

	ReputationDire float64 `yaml:"reputation_dire"`
	ReputationLow  float64 `yaml:"reputation_low"`
	ReputationWeak float64 `yaml:"reputation_weak"`

	PerThreatEvent float64 `yaml:"per_threat_event"`

	UsernameHeavyAnomaly float64 `yaml:"username_heavy_anomaly"`
	UsernameMildAnomaly  float64 `yaml:"username_mild_anomaly"`

	StockAvatarNewcomer float64 `yaml:"stock_avatar_newcomer"`
	FreshJoin           float64 `yaml:"fresh_join"`
	YoungPrivileged     float64 `yaml:"young_privileged"`

	AIMultiplier float64 `yaml:"ai_multiplier"`

	// ActionGap is the width of the flag band between the suspicion
	// threshold and the quarantine boundary.
	ActionGap float64 `yaml:"action_gap"`
	// BanScoreFloor is the minimum score at which auto-ban policies
	// escalate quarantine to ban.
	BanScoreFloor float64 `yaml:"ban_score_floor"`
	// ReputationFloor caps how low a raw reputation score may sink
	// before normalization clamps it.
	ReputationFloor int `yaml:"reputation_floor"`
}

// DefaultWeights returns the stock scoring constants.
func DefaultWeights() Weights {
	return Weights{
		AccountUnderDay:       90,
		AccountUnderThreeDays: 80,
		AccountUnderWeek:      60,
		AccountUnderFortnight: 40,

		ReputationDire: 80,
		ReputationLow:  50,
		ReputationWeak: 30,

		PerThreatEvent: 30,

		UsernameHeavyAnomaly: 60,
		UsernameMildAnomaly:  40,

		StockAvatarNewcomer: 30,
		FreshJoin:           50,
		YoungPrivileged:     40,

		AIMultiplier: 50,

		ActionGap:       30,
		BanScoreFloor:   70,
		ReputationFloor: -1000,
	}
}

// TrendProfile parameterizes trend analysis for one event category:
// how strongly frequency converts into probability, the floor applied
// when a category has no history at all, and the burst bonus rules.
type TrendProfile struct {
	FrequencyFactor  float64 `yaml:"frequency_factor"`
	FloorProbability int     `yaml:"floor_probability"`

	// BurstThreshold is compared against the recent 7-day event count.
	// Ignored when SeverityBurst is set.
	BurstThreshold int `yaml:"burst_threshold"`
	// SeverityBurst switches the burst test to severity counts: more
	// than two critical or more than five high events in the recent
	// window.
	SeverityBurst bool `yaml:"severity_burst"`
	BurstBonus    int  `yaml:"burst_bonus"`

	// Indicators and Mitigations are templated playbook lines. The
	// placeholders {recent}, {prior}, {trend}, {category} and {horizon}
	// are expanded with the computed values.
	Indicators  []string `yaml:"indicators"`
	Mitigations []string `yaml:"mitigations"`
}

// TrendProfiles maps an event category to its analysis profile. The
// CategoryGeneral entry doubles as the fallback for categories without
// an explicit profile.
type TrendProfiles map[EventType]TrendProfile

// DefaultTrendProfiles returns the built-in per-category playbooks.
func DefaultTrendProfiles() TrendProfiles {
	general := TrendProfile{
		FrequencyFactor:  60,
		FloorProbability: 10,
		SeverityBurst:    true,
		BurstBonus:       10,
		Indicators: []string{
			"{recent} {category} events in the last 7 days ({trend} week over week)",
			"severity mix of the recent window drives the burst bonus",
		},
		Mitigations: []string{
			"review the flagged member queue for {category} activity",
			"consider raising the aggressiveness level one notch",
		},
	}
	return TrendProfiles{
		EventRaid: {
			FrequencyFactor:  100,
			FloorProbability: 5,
			BurstThreshold:   3,
			BurstBonus:       20,
			Indicators: []string{
				"{recent} raid events in the last 7 days ({trend} week over week)",
				"join velocity is the leading raid signal over the {horizon} horizon",
			},
			Mitigations: []string{
				"tighten join rate thresholds by raising the aggressiveness level",
				"quarantine accounts younger than the minimum age on join",
				"audit recent joiners that share default avatars",
			},
		},
		EventSpam: {
			FrequencyFactor:  80,
			FloorProbability: 15,
			BurstThreshold:   5,
			BurstBonus:       15,
			Indicators: []string{
				"{recent} spam events in the last 7 days ({trend} week over week)",
				"duplicate message pressure over the {horizon} horizon",
			},
			Mitigations: []string{
				"lower the duplicate message allowance",
				"cap links and mentions per message",
				"route first messages of new accounts through the classifier",
			},
		},
		EventBypass: {
			FrequencyFactor:  60,
			FloorProbability: 5,
			SeverityBurst:    true,
			BurstBonus:       10,
			Indicators: []string{
				"{recent} filter bypass events in the last 7 days ({trend} week over week)",
				"confusable character churn in recent usernames",
			},
			Mitigations: []string{
				"refresh the confusable character tables",
				"lower the AI confidence floor to widen classifier coverage",
			},
		},
		EventNSFW:         general,
		EventConfigChange: general,
		EventOther:        general,
		CategoryGeneral:   general,
	}
}

func (p TrendProfiles) forCategory(category EventType) TrendProfile {
	if profile, ok := p[category]; ok {
		return profile
	}
	if profile, ok := p[CategoryGeneral]; ok {
		return profile
	}
	return DefaultTrendProfiles()[CategoryGeneral]
}
