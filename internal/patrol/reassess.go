package patrol

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/wardenbot/warden/internal/engine"
	"github.com/wardenbot/warden/internal/event"
	"github.com/wardenbot/warden/internal/infra/reg"
)

// ReassessEventType identifies queued single-member reassessments.
const ReassessEventType = "reassess_member"

// reassessTTL bounds how long a queued reassessment stays meaningful.
const reassessTTL = 24 * time.Hour

// reassessTimeout bounds a single reassessment run.
const reassessTimeout = time.Minute

// ReassessEvent asks for one member to be scored again after the
// enforcement recommendation had time to cool down.
type ReassessEvent struct {
	*event.Base
	CommunityID int64
	UserID      int64
}

func newReassessEvent(communityID, userID int64, delay time.Duration) *ReassessEvent {
	now := time.Now()
	return &ReassessEvent{
		Base:        event.CreateBase(ReassessEventType, now.Add(delay), now.Add(reassessTTL)),
		CommunityID: communityID,
		UserID:      userID,
	}
}

// HandleReassessEvent consumes one queued reassessment. Register it with
// the event worker before the worker starts.
func (p *Patrol) HandleReassessEvent(queued event.Queueable) {
	re, ok := queued.(*ReassessEvent)
	if !ok {
		queued.Drop()
		return
	}
	defer re.Process()

	ctx, cancel := context.WithTimeout(context.Background(), reassessTimeout)
	defer cancel()

	result, err := p.AssessMember(ctx, re.CommunityID, re.UserID)
	if err != nil {
		log.WithError(err).
			WithField("community", re.CommunityID).
			WithField("user", re.UserID).
			Warn("failed to reassess member")
		return
	}

	auditLogger().Info("member reassessed",
		zap.Int64("community", re.CommunityID),
		zap.Int64("user", re.UserID),
		zap.Float64("score", result.Score),
		zap.String("action", string(result.RecommendedAction)),
	)
}

// AssessMember runs a one-off assessment outside the sweep cycle.
func (p *Patrol) AssessMember(ctx context.Context, communityID, userID int64) (engine.SuspicionResult, error) {
	settings := reg.Get().GetSettings(communityID)
	if settings == nil {
		var err error
		settings, err = p.store.GetSettings(ctx, communityID)
		if err != nil {
			return engine.SuspicionResult{}, fmt.Errorf("failed to get settings: %w", err)
		}
	}
	if !settings.Enabled {
		reg.Get().RemoveSettings(communityID)
		return engine.SuspicionResult{}, fmt.Errorf("community %d is disabled", communityID)
	}

	member, err := p.store.GetMember(ctx, communityID, userID)
	if err != nil {
		return engine.SuspicionResult{}, fmt.Errorf("failed to get member: %w", err)
	}

	now := time.Now().UTC()
	threatStats, err := p.store.GetUserThreatStats(ctx, communityID, now.Add(-threatStatsWindow))
	if err != nil {
		return engine.SuspicionResult{}, fmt.Errorf("failed to load member threat stats: %w", err)
	}

	return p.assess(ctx, settings, member, threatStats[userID], p.profiles.Current(), now)
}
