package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type (
	Config struct {
		LogLevel int    `env:"LOG_LEVEL,default=2"`
		DotPath  string `env:"DOT_PATH,default=~/.wardend"`

		Database      Database
		LLM           LLM
		Patrol        Patrol
		Observability Observability
	}

	Database struct {
		File string `env:"DB_FILE,default=warden.db"`
	}

	// LLM.Model is backend-specific, every backend falls back to its own
	// default when unset.
	LLM struct {
		APIKey    string        `env:"LLM_API_KEY"`
		Model     string        `env:"LLM_API_MODEL"`
		BaseURL   string        `env:"LLM_API_URL,default=https://api.openai.com/v1"`
		Type      string        `env:"LLM_API_TYPE,default=off"`
		Timeout   time.Duration `env:"LLM_TIMEOUT,default=5s"`
		CacheSize int           `env:"LLM_CACHE_SIZE,default=1024"`
	}

	Patrol struct {
		SweepInterval time.Duration `env:"PATROL_SWEEP_INTERVAL,default=15m"`
		Concurrency   int           `env:"PATROL_CONCURRENCY,default=8"`
		Horizon       string        `env:"PATROL_HORIZON,default=7d"`
		ReassessDelay time.Duration `env:"PATROL_REASSESS_DELAY,default=30m"`
		ProfilePath   string        `env:"PROFILE_PATH"`
		Verbose       bool          `env:"PATROL_VERBOSE,default=false"`
	}

	Observability struct {
		MetricsListenAddr string `env:"METRICS_LISTEN_ADDR,default=:9464"`
		TraceEnabled      bool   `env:"TRACE_ENABLED,default=false"`
	}
)

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

func Load() (Config, error) {
	once.Do(func() {
		cfg := &Config{}
		envcfg := envconfig.Config{
			Lookuper: envconfig.PrefixLookuper("WD_", envconfig.OsLookuper()),
			Target:   cfg,
		}
		if err := envconfig.ProcessWith(context.Background(), &envcfg); err != nil {
			globalErr = fmt.Errorf("process env config: %w", err)
			return
		}
		home, err := os.UserHomeDir()
		if err != nil {
			globalErr = fmt.Errorf("get user home directory: %w", err)
			return
		}
		cfg.DotPath = strings.Replace(cfg.DotPath, "~", home, 1)
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

func Get() Config {
	cfg, err := Load()
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load config")
	}
	return cfg
}
