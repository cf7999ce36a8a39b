package adapters

import (
	"fmt"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/wardenbot/warden/internal/adapters/llm/gemini"
	"github.com/wardenbot/warden/internal/adapters/llm/local"
	"github.com/wardenbot/warden/internal/adapters/llm/openai"
	"github.com/wardenbot/warden/internal/config"
)

// Build constructs the classifier backend selected by cfg.Type and wraps
// it in the verdict cache. Type "off" (or empty) disables enrichment and
// returns nil without error.
func Build(cfg config.LLM, workDir string) (Classifier, error) {
	logger := log.WithField("context", "classifier")

	var backend Classifier
	switch cfg.Type {
	case "", "off":
		return nil, nil
	case "openai":
		backend = openai.NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL, logger)
	case "gemini":
		backend = gemini.NewGemini(cfg.APIKey, cfg.Model, logger)
	case "local":
		var err error
		backend, err = local.NewLocal(filepath.Join(workDir, "models"), cfg.Model, logger)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown classifier type %q", cfg.Type)
	}

	if cfg.CacheSize > 0 {
		return NewCached(backend, cfg.CacheSize)
	}
	return backend, nil
}
