package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/wardenbot/warden/internal/adapters"
	"github.com/wardenbot/warden/internal/config"
	"github.com/wardenbot/warden/internal/db/sqlite"
	"github.com/wardenbot/warden/internal/event"
	"github.com/wardenbot/warden/internal/infra"
	"github.com/wardenbot/warden/internal/lifecycle"
	"github.com/wardenbot/warden/internal/observability"
	"github.com/wardenbot/warden/internal/patrol"
)

func main() {
	cfg := config.Get()
	log.SetFormatter(&config.WdFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.Level(cfg.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.WithError(err).Errorln("cant keep running")
		time.Sleep(1 * time.Second)
		log.Fatalln("exiting")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	workDir := infra.GetWorkDir(cfg.DotPath)

	store, err := sqlite.NewSQLiteClient(ctx, workDir, cfg.Database.File)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.WithError(err).Errorln("cant close database")
		}
	}()

	if err := observability.Init(ctx, cfg.Observability.MetricsListenAddr, cfg.Observability.TraceEnabled); err != nil {
		return err
	}

	profiles, err := config.NewProfileWatcher(cfg.Patrol.ProfilePath)
	if err != nil {
		return err
	}

	classifier, err := adapters.Build(cfg.LLM, workDir)
	if err != nil {
		return err
	}

	p, err := patrol.New(store, classifier, profiles, cfg)
	if err != nil {
		return err
	}

	// Subscriptions must be in place before the worker starts draining.
	event.Subscribe(patrol.ReassessEventType, p.HandleReassessEvent)
	defer event.RunWorker()()

	rt := lifecycle.NewRuntime()
	rt.Register("profile_watcher", profiles)
	rt.Register("patrol", p)
	if err := rt.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		log.Infoln("shutdown signal received")
	case <-infra.MonitorExecutable(ctx):
		log.Errorln("executable file was modified")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	return rt.Stop(stopCtx)
}
