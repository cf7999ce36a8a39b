package patrol

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/wardenbot/warden/internal/adapters"
	"github.com/wardenbot/warden/internal/adapters/llm"
	"github.com/wardenbot/warden/internal/config"
	"github.com/wardenbot/warden/internal/db"
	"github.com/wardenbot/warden/internal/engine"
	"github.com/wardenbot/warden/internal/event"
	"github.com/wardenbot/warden/internal/infra/reg"
)

type fakeStore struct {
	mu          sync.Mutex
	settings    map[int64]*db.CommunitySettings
	overrides   map[string]*db.SuspicionOverride
	members     map[int64][]*db.Member
	events      map[int64][]*db.ThreatEvent
	threatStats map[int64]map[int64]db.UserThreatStats
	kv          map[string]string

	membersErr map[int64]error

	reports     []*db.RiskReport
	flagged     [][]*db.FlaggedUser
	predictions [][]*db.ThreatPrediction
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		settings:    map[int64]*db.CommunitySettings{},
		overrides:   map[string]*db.SuspicionOverride{},
		members:     map[int64][]*db.Member{},
		events:      map[int64][]*db.ThreatEvent{},
		threatStats: map[int64]map[int64]db.UserThreatStats{},
		kv:          map[string]string{},
		membersErr:  map[int64]error{},
	}
}

func (f *fakeStore) ListEnabledCommunities(_ context.Context) ([]*db.CommunitySettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, 0, len(f.settings))
	for id, settings := range f.settings {
		if settings.Enabled {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*db.CommunitySettings, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.settings[id])
	}
	return out, nil
}

func (f *fakeStore) GetSettings(_ context.Context, communityID int64) (*db.CommunitySettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	settings, ok := f.settings[communityID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return settings, nil
}

func (f *fakeStore) GetOverride(_ context.Context, communityID, userID int64) (*db.SuspicionOverride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.overrides[fmt.Sprintf("%d:%d", communityID, userID)], nil
}

func (f *fakeStore) GetMember(_ context.Context, communityID, userID int64) (*db.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, member := range f.members[communityID] {
		if member.UserID == userID {
			return member, nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeStore) GetMembers(_ context.Context, communityID int64) ([]*db.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.membersErr[communityID]; err != nil {
		return nil, err
	}
	return f.members[communityID], nil
}

func (f *fakeStore) GetThreatEvents(_ context.Context, communityID int64, since time.Time) ([]*db.ThreatEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*db.ThreatEvent
	for _, ev := range f.events[communityID] {
		if ev.OccurredAt.After(since) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeStore) CountThreatEvents(_ context.Context, communityID int64, since time.Time) (int, error) {
	events, _ := f.GetThreatEvents(context.Background(), communityID, since)
	return len(events), nil
}

func (f *fakeStore) GetUserThreatStats(_ context.Context, communityID int64, _ time.Time) (map[int64]db.UserThreatStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := f.threatStats[communityID]
	if stats == nil {
		stats = map[int64]db.UserThreatStats{}
	}
	return stats, nil
}

func (f *fakeStore) InsertRiskReport(_ context.Context, report *db.RiskReport, flagged []*db.FlaggedUser, predictions []*db.ThreatPrediction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, report)
	f.flagged = append(f.flagged, flagged)
	f.predictions = append(f.predictions, predictions)
	return nil
}

func (f *fakeStore) GetKV(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.kv[key], nil
}

func (f *fakeStore) SetKV(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kv[key] = value
	return nil
}

type fixedProfile struct{}

func (fixedProfile) Current() config.Profile {
	return config.Profile{
		Weights: engine.DefaultWeights(),
		Trend:   engine.DefaultTrendProfiles(),
	}
}

type stubClassifier struct {
	mu       sync.Mutex
	err      error
	verdicts map[string]llm.Verdict
	calls    int
}

func (s *stubClassifier) ClassifyMember(_ context.Context, dossier llm.MemberDossier) (*llm.Verdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	verdict, ok := s.verdicts[dossier.Username]
	if !ok {
		verdict = llm.Verdict{Label: llm.BenignLabel, Confidence: 0.99}
	}
	return &verdict, nil
}

func (s *stubClassifier) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testConfig() config.Config {
	return config.Config{
		LLM: config.LLM{Timeout: time.Second, Type: "stub"},
		Patrol: config.Patrol{
			SweepInterval: time.Hour,
			Concurrency:   4,
			Horizon:       "7d",
			ReassessDelay: time.Hour,
		},
	}
}

func newTestPatrol(t *testing.T, store *fakeStore, classifier *stubClassifier) *Patrol {
	t.Helper()
	var c adapters.Classifier
	if classifier != nil {
		c = classifier
	}
	p, err := New(store, c, fixedProfile{}, testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return p
}

func seedCommunity(store *fakeStore, communityID int64, level int, now time.Time) {
	halfDay := now.Add(-12 * time.Hour)
	joined := now.Add(-5 * time.Hour)
	old := now.Add(-400 * 24 * time.Hour)

	store.settings[communityID] = &db.CommunitySettings{ID: communityID, Enabled: true, Level: level}
	store.members[communityID] = []*db.Member{
		{CommunityID: communityID, UserID: 1, Username: "elder", AccountCreatedAt: old, JoinedAt: &old, ReputationScore: 100},
		{CommunityID: communityID, UserID: 2, Username: "riskbot", AccountCreatedAt: halfDay, JoinedAt: &joined, ReputationScore: 10, HasDefaultAvatar: true},
		{CommunityID: communityID, UserID: 3, Username: "founder", AccountCreatedAt: old, JoinedAt: &old, ReputationScore: 100, IsProtected: true},
	}
	store.threatStats[communityID] = map[int64]db.UserThreatStats{
		2: {Count: 2, Kinds: []string{"raid"}},
	}
	twoDays := now.Add(-2 * 24 * time.Hour)
	for i := 0; i < 3; i++ {
		store.events[communityID] = append(store.events[communityID], &db.ThreatEvent{
			ID:          fmt.Sprintf("ev-%d", i),
			CommunityID: communityID,
			UserID:      2,
			Type:        string(engine.EventRaid),
			Severity:    string(engine.SeverityHigh),
			OccurredAt:  twoDays,
		})
	}
}

func TestSweepCommunityPersistsReport(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	now := time.Now().UTC()
	seedCommunity(store, 77, 9, now)

	p := newTestPatrol(t, store, nil)
	if err := p.sweepCommunity(context.Background(), store.settings[77]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.reports) != 1 {
		t.Fatalf("expected one report, got %d", len(store.reports))
	}
	report := store.reports[0]
	if report.ID == "" || report.CommunityID != 77 {
		t.Fatalf("unexpected report identity: %#v", report)
	}
	// 3 members, 1 newcomer out of 3 exceeds the one-fifth bound (-20),
	// no privileged members (+5).
	if report.Score != 85 || report.Level != string(engine.RiskGood) {
		t.Fatalf("unexpected report grade: score %d level %s", report.Score, report.Level)
	}
	if len(report.Vulnerabilities) != 1 {
		t.Fatalf("unexpected vulnerabilities: %v", report.Vulnerabilities)
	}

	flagged := store.flagged[0]
	if len(flagged) != 1 {
		t.Fatalf("expected one flagged member, got %#v", flagged)
	}
	hot := flagged[0]
	if hot.UserID != 2 || hot.Username != "riskbot" {
		t.Fatalf("unexpected flagged member: %#v", hot)
	}
	// 90 age + 80 reputation + 60 threats + 30 avatar + 50 fresh join.
	if hot.Score != 310 || hot.Action != string(engine.ActionBan) {
		t.Fatalf("unexpected flagged verdict: score %v action %s", hot.Score, hot.Action)
	}
	if hot.ReportID != report.ID || len(hot.Reasons) != 5 {
		t.Fatalf("unexpected flagged row: %#v", hot)
	}

	predictions := store.predictions[0]
	if len(predictions) != 6 {
		t.Fatalf("expected six predictions, got %d", len(predictions))
	}
	raid := predictions[0]
	if raid.Category != string(engine.EventRaid) || raid.Probability != 43 {
		t.Fatalf("unexpected raid prediction: %#v", raid)
	}
	if raid.TrendDirection != string(engine.TrendStable) || raid.Horizon != "7d" {
		t.Fatalf("unexpected raid prediction shape: %#v", raid)
	}

	if store.kv["last_sweep_77"] == "" {
		t.Fatal("sweep stamp not written")
	}
	if cached := reg.Get().GetReport(77); cached == nil || cached.ID != report.ID {
		t.Fatalf("report not cached: %#v", cached)
	}
}

func TestSweepAllContinuesAfterFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	now := time.Now().UTC()
	seedCommunity(store, 88, 5, now)
	seedCommunity(store, 89, 5, now)
	store.membersErr[88] = errors.New("disk on fire")

	p := newTestPatrol(t, store, nil)
	if err := p.SweepAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.reports) != 1 || store.reports[0].CommunityID != 89 {
		t.Fatalf("expected a single report for the healthy community, got %#v", store.reports)
	}
}

func TestClassifierFailureDegradesToHeuristics(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()

	plain := newFakeStore()
	seedCommunity(plain, 90, 9, now)
	p := newTestPatrol(t, plain, nil)
	if err := p.sweepCommunity(context.Background(), plain.settings[90]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	broken := newFakeStore()
	seedCommunity(broken, 91, 9, now)
	failing := &stubClassifier{err: errors.New("model offline")}
	pb := newTestPatrol(t, broken, failing)
	if err := pb.sweepCommunity(context.Background(), broken.settings[91]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if failing.callCount() == 0 {
		t.Fatal("classifier never consulted")
	}
	if plain.flagged[0][0].Score != broken.flagged[0][0].Score {
		t.Fatalf("degraded run diverged: %v vs %v", plain.flagged[0][0].Score, broken.flagged[0][0].Score)
	}
}

func TestClassifierVerdictRaisesScore(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	now := time.Now().UTC()
	seedCommunity(store, 92, 9, now)

	classifier := &stubClassifier{verdicts: map[string]llm.Verdict{
		"riskbot": {Label: "spam bot", Confidence: 0.9},
	}}
	p := newTestPatrol(t, store, classifier)
	if err := p.sweepCommunity(context.Background(), store.settings[92]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	flagged := store.flagged[0]
	if len(flagged) != 1 {
		t.Fatalf("benign verdicts must not flag members: %#v", flagged)
	}
	// Heuristic 310 plus 0.9 × 50 classifier weight.
	if flagged[0].Score != 355 {
		t.Fatalf("unexpected enriched score: %v", flagged[0].Score)
	}
	last := flagged[0].Reasons[len(flagged[0].Reasons)-1]
	if last.Label != "classifier: spam bot" || last.Weight != 45 {
		t.Fatalf("unexpected classifier reason: %#v", last)
	}
}

func TestAssessMemberOutsideSweep(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	now := time.Now().UTC()
	seedCommunity(store, 501, 9, now)

	p := newTestPatrol(t, store, nil)
	result, err := p.AssessMember(context.Background(), 501, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Score != 310 || result.RecommendedAction != engine.ActionBan {
		t.Fatalf("unexpected assessment: %#v", result)
	}

	if _, err := p.AssessMember(context.Background(), 501, 999); err == nil {
		t.Fatal("expected error for unknown member")
	}
}

func TestAssessMemberUsesCachedSettings(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	now := time.Now().UTC()
	seedCommunity(store, 502, 9, now)
	// The settings row vanishes from the store but stays cached.
	cached := store.settings[502]
	delete(store.settings, 502)
	reg.Get().SetSettings(cached)

	p := newTestPatrol(t, store, nil)
	result, err := p.AssessMember(context.Background(), 502, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Score != 0 || result.RecommendedAction != engine.ActionNone {
		t.Fatalf("unexpected assessment: %#v", result)
	}
}

func TestAssessMemberDisabledCommunity(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	now := time.Now().UTC()
	seedCommunity(store, 503, 9, now)
	store.settings[503].Enabled = false

	p := newTestPatrol(t, store, nil)
	if _, err := p.AssessMember(context.Background(), 503, 1); err == nil {
		t.Fatal("expected error for disabled community")
	}
}

func TestHandleReassessEvent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	now := time.Now().UTC()
	seedCommunity(store, 504, 9, now)

	p := newTestPatrol(t, store, nil)

	due := newReassessEvent(504, 2, 0)
	p.HandleReassessEvent(due)
	if !due.IsProcessed() {
		t.Fatal("reassess event not marked processed")
	}

	foreign := event.CreateBase("unrelated", now, now.Add(time.Hour))
	p.HandleReassessEvent(foreign)
	if !foreign.IsDropped() {
		t.Fatal("foreign event not dropped")
	}
}
