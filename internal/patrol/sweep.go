package patrol

import (
	"context"
	"fmt"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/iamwavecut/tool"
	"github.com/pborman/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wardenbot/warden/internal/adapters/llm"
	"github.com/wardenbot/warden/internal/config"
	"github.com/wardenbot/warden/internal/db"
	"github.com/wardenbot/warden/internal/engine"
	"github.com/wardenbot/warden/internal/event"
	"github.com/wardenbot/warden/internal/infra/reg"
	"github.com/wardenbot/warden/internal/observability"
)

// newcomerWindow is the account age below which a member counts toward
// the community's new account pressure.
const newcomerWindow = 7 * 24 * time.Hour

// SweepAll assesses every enabled community once. Per-community failures
// are logged and do not abort the remaining communities.
func (p *Patrol) SweepAll(ctx context.Context) error {
	tracer := otel.Tracer("warden/patrol")
	ctx, span := tracer.Start(ctx, "sweep_all")
	defer span.End()

	communities, err := p.store.ListEnabledCommunities(ctx)
	if err != nil {
		return fmt.Errorf("failed to list enabled communities: %w", err)
	}

	var swept, failed int
	for _, settings := range communities {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := p.sweepCommunity(ctx, settings); err != nil {
			if errorsIsCanceled(err) {
				return err
			}
			failed++
			log.WithError(err).WithField("community", settings.ID).Error("failed to sweep community")
			continue
		}
		swept++
	}

	log.WithField("communities", swept).WithField("failed", failed).Info("sweep finished")
	return nil
}

func (p *Patrol) sweepCommunity(ctx context.Context, settings *db.CommunitySettings) error {
	finish := observability.StartSweep()
	now := time.Now().UTC()
	profile := p.profiles.Current()

	tracer := otel.Tracer("warden/patrol")
	ctx, span := tracer.Start(ctx, "sweep_community")
	span.SetAttributes(attribute.Int64("community.id", settings.ID))
	defer span.End()

	members, err := p.store.GetMembers(ctx, settings.ID)
	if err != nil {
		finish("failed")
		return fmt.Errorf("failed to load members: %w", err)
	}
	threatStats, err := p.store.GetUserThreatStats(ctx, settings.ID, now.Add(-threatStatsWindow))
	if err != nil {
		finish("failed")
		return fmt.Errorf("failed to load member threat stats: %w", err)
	}

	// Trend analysis reads two adjacent windows, fetch enough history to
	// fill both whatever the horizon.
	eventsSince := now.Add(-max(2*p.horizon.Lookback(), 14*24*time.Hour))
	events, err := p.store.GetThreatEvents(ctx, settings.ID, eventsSince)
	if err != nil {
		finish("failed")
		return fmt.Errorf("failed to load threat events: %w", err)
	}
	count24, err := p.store.CountThreatEvents(ctx, settings.ID, now.Add(-24*time.Hour))
	if err != nil {
		finish("failed")
		return fmt.Errorf("failed to count events in the day window: %w", err)
	}
	count7d, err := p.store.CountThreatEvents(ctx, settings.ID, now.Add(-7*24*time.Hour))
	if err != nil {
		finish("failed")
		return fmt.Errorf("failed to count events in the week window: %w", err)
	}

	results := make([]engine.SuspicionResult, len(members))
	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i, member := range members {
		i, member := i, member
		g.Go(func() error {
			result, err := p.assess(groupCtx, settings, member, threatStats[member.UserID], profile, now)
			if err != nil {
				if errorsIsCanceled(err) {
					return err
				}
				log.WithError(err).WithField("user", member.UserID).Warn("failed to assess member, skipping")
				return nil
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		finish("failed")
		return err
	}

	stats := engine.CommunityStats{
		MemberCount:     len(members),
		RecentEvents24h: count24,
		RecentEvents7d:  count7d,
	}
	newcomerCutoff := now.Add(-newcomerWindow)
	for _, member := range members {
		if member.IsPrivileged {
			stats.PrivilegedCount++
		}
		if member.IsBot {
			stats.BotCount++
		}
		if member.AccountCreatedAt.After(newcomerCutoff) {
			stats.NewAccountCount++
		}
	}

	flagged := make([]engine.SuspicionResult, 0, len(results))
	for _, result := range results {
		if result.UserID != 0 && result.RecommendedAction != engine.ActionNone {
			flagged = append(flagged, result)
		}
	}

	report := engine.AggregateRisk(stats, flagged)

	engineEvents := make([]engine.ThreatEvent, 0, len(events))
	for _, ev := range events {
		engineEvents = append(engineEvents, ev.Engine())
	}
	predictions := engine.AnalyzeAllTrends(engineEvents, p.horizon, profile.Trend, now)

	if err := p.persist(ctx, settings, report, predictions, now); err != nil {
		finish("failed")
		return err
	}

	observability.SetCommunityRisk(settings.ID, report.Score)
	reg.Get().SetSettings(settings)

	for _, result := range report.FlaggedUsers {
		if tool.In(string(result.RecommendedAction), string(engine.ActionQuarantine), string(engine.ActionBan)) {
			event.Bus.NQ(newReassessEvent(settings.ID, result.UserID, p.cfg.ReassessDelay))
		}
	}

	auditLogger().Info("community swept",
		zap.Int64("community", settings.ID),
		zap.Int("risk_score", report.Score),
		zap.String("risk_level", string(report.Level)),
		zap.Int("members", len(members)),
		zap.Int("flagged", len(report.FlaggedUsers)),
	)
	if p.cfg.Verbose {
		log.Debug(spew.Sdump(report))
	}

	finish("ok")
	return nil
}

func (p *Patrol) assess(ctx context.Context, settings *db.CommunitySettings, member *db.Member, threatStats db.UserThreatStats, profile config.Profile, now time.Time) (engine.SuspicionResult, error) {
	override, err := p.store.GetOverride(ctx, settings.ID, member.UserID)
	if err != nil {
		return engine.SuspicionResult{}, fmt.Errorf("failed to get override for user %d: %w", member.UserID, err)
	}
	policy, err := engine.ResolvePolicy(settings.Level, override.Engine(), now)
	if err != nil {
		return engine.SuspicionResult{}, fmt.Errorf("failed to resolve policy for user %d: %w", member.UserID, err)
	}

	raw := member.BaseSignals()
	raw.RecentThreatCount = threatStats.Count
	raw.ThreatKinds = threatStats.Kinds
	sig, err := engine.NormalizeSignals(raw, profile.Weights, now)
	if err != nil {
		return engine.SuspicionResult{}, fmt.Errorf("failed to normalize signals for user %d: %w", member.UserID, err)
	}

	ai := p.classify(ctx, sig)
	result := engine.ScoreUser(sig, policy, ai, profile.Weights)
	observability.RecordMemberAction(string(result.RecommendedAction))
	return result, nil
}

// classify asks the backend for a verdict, degrading to heuristic-only
// scoring on any failure. A benign verdict also yields no signal.
func (p *Patrol) classify(ctx context.Context, sig engine.UserSignals) *engine.AISignal {
	if p.classifier == nil {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, p.llmTimeout)
	defer cancel()

	dossier := llm.MemberDossier{
		Username:         sig.Username,
		AccountAgeDays:   sig.AccountAgeDays,
		ReputationScore:  sig.ReputationScore,
		RecentThreats:    sig.RecentThreatCount,
		ThreatKinds:      sig.ThreatKinds,
		HasDefaultAvatar: sig.HasDefaultAvatar,
	}
	verdict, err := p.classifier.ClassifyMember(callCtx, dossier)
	if err != nil {
		observability.RecordClassifierDegraded(p.backend)
		log.WithError(err).WithField("user", sig.UserID).Debug("classifier degraded, scoring on heuristics only")
		return nil
	}
	if verdict == nil || verdict.Label == llm.BenignLabel {
		return nil
	}

	clamped := verdict.Clamped()
	return &engine.AISignal{Label: clamped.Label, Confidence: clamped.Confidence}
}

func (p *Patrol) persist(ctx context.Context, settings *db.CommunitySettings, report engine.CommunityRiskReport, predictions []engine.ThreatPrediction, now time.Time) error {
	stored := &db.RiskReport{
		ID:              uuid.New(),
		CommunityID:     settings.ID,
		Score:           report.Score,
		Level:           string(report.Level),
		Vulnerabilities: report.Vulnerabilities,
		CreatedAt:       now,
	}
	flagged := make([]*db.FlaggedUser, 0, len(report.FlaggedUsers))
	for _, result := range report.FlaggedUsers {
		flagged = append(flagged, &db.FlaggedUser{
			ReportID:    stored.ID,
			CommunityID: settings.ID,
			UserID:      result.UserID,
			Username:    result.Username,
			Score:       result.Score,
			Action:      string(result.RecommendedAction),
			Reasons:     result.Reasons,
		})
	}
	storedPredictions := make([]*db.ThreatPrediction, 0, len(predictions))
	for _, prediction := range predictions {
		storedPredictions = append(storedPredictions, &db.ThreatPrediction{
			ReportID:       stored.ID,
			CommunityID:    settings.ID,
			Category:       string(prediction.Category),
			Horizon:        string(prediction.Horizon),
			Probability:    prediction.Probability,
			TrendDirection: string(prediction.TrendDirection),
			Indicators:     prediction.Indicators,
			Mitigations:    prediction.Mitigations,
		})
	}

	if err := p.store.InsertRiskReport(ctx, stored, flagged, storedPredictions); err != nil {
		return fmt.Errorf("failed to persist risk report: %w", err)
	}
	if err := p.store.SetKV(ctx, fmt.Sprintf("last_sweep_%d", settings.ID), now.Format(time.RFC3339)); err != nil {
		log.WithError(err).Warn("failed to stamp sweep time")
	}
	reg.Get().SetReport(stored)
	return nil
}
