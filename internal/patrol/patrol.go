// Package patrol runs the periodic assessment loop: it walks every
// enabled community, scores members against the resolved policy, rolls
// the results into a risk report with threat predictions and persists
// the outcome. It only recommends, enforcement stays with the platform
// integration consuming the reports.
package patrol

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/wardenbot/warden/internal/adapters"
	"github.com/wardenbot/warden/internal/config"
	"github.com/wardenbot/warden/internal/db"
	"github.com/wardenbot/warden/internal/engine"
	"github.com/wardenbot/warden/internal/observability"
)

// threatStatsWindow bounds how far back member threat history counts
// toward the suspicion score.
const threatStatsWindow = 30 * 24 * time.Hour

type patrolStore interface {
	ListEnabledCommunities(ctx context.Context) ([]*db.CommunitySettings, error)
	GetSettings(ctx context.Context, communityID int64) (*db.CommunitySettings, error)
	GetOverride(ctx context.Context, communityID, userID int64) (*db.SuspicionOverride, error)
	GetMember(ctx context.Context, communityID, userID int64) (*db.Member, error)
	GetMembers(ctx context.Context, communityID int64) ([]*db.Member, error)
	GetThreatEvents(ctx context.Context, communityID int64, since time.Time) ([]*db.ThreatEvent, error)
	CountThreatEvents(ctx context.Context, communityID int64, since time.Time) (int, error)
	GetUserThreatStats(ctx context.Context, communityID int64, since time.Time) (map[int64]db.UserThreatStats, error)
	InsertRiskReport(ctx context.Context, report *db.RiskReport, flagged []*db.FlaggedUser, predictions []*db.ThreatPrediction) error
	GetKV(ctx context.Context, key string) (string, error)
	SetKV(ctx context.Context, key string, value string) error
}

// profileSource serves the current tuning profile. The watcher behind it
// may swap profiles between sweeps, a single sweep always reads once.
type profileSource interface {
	Current() config.Profile
}

type Patrol struct {
	store      patrolStore
	classifier adapters.Classifier
	profiles   profileSource
	cfg        config.Patrol
	llmTimeout time.Duration
	backend    string
	horizon    engine.Horizon

	runMutex  sync.Mutex
	started   bool
	runCancel context.CancelFunc
	workersWg sync.WaitGroup
}

func New(store patrolStore, classifier adapters.Classifier, profiles profileSource, cfg config.Config) (*Patrol, error) {
	horizon, err := engine.ParseHorizon(cfg.Patrol.Horizon)
	if err != nil {
		return nil, err
	}
	patrolCfg := cfg.Patrol
	if patrolCfg.Concurrency < 1 {
		patrolCfg.Concurrency = 1
	}
	return &Patrol{
		store:      store,
		classifier: classifier,
		profiles:   profiles,
		cfg:        patrolCfg,
		llmTimeout: cfg.LLM.Timeout,
		backend:    cfg.LLM.Type,
		horizon:    horizon,
	}, nil
}

func (p *Patrol) Start(ctx context.Context) error {
	p.runMutex.Lock()
	defer p.runMutex.Unlock()
	if p.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.runCancel = cancel

	p.workersWg.Add(1)
	go func() {
		defer p.workersWg.Done()
		if err := p.SweepAll(runCtx); err != nil && !errorsIsCanceled(err) {
			log.WithError(err).Error("failed to run initial sweep")
		}
	}()

	p.workersWg.Add(1)
	go func() {
		defer p.workersWg.Done()
		ticker := time.NewTicker(p.cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if err := p.SweepAll(runCtx); err != nil && !errorsIsCanceled(err) {
					log.WithError(err).Error("failed to run sweep")
				}
			}
		}
	}()

	p.started = true
	return nil
}

func (p *Patrol) Stop(ctx context.Context) error {
	p.runMutex.Lock()
	if !p.started {
		p.runMutex.Unlock()
		return nil
	}
	p.started = false
	cancel := p.runCancel
	p.runMutex.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.workersWg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func errorsIsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func auditLogger() *zap.Logger {
	if observability.Logger != nil {
		return observability.Logger
	}
	return zap.NewNop()
}
