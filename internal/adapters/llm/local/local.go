package local

import (
	"context"
	"fmt"

	"github.com/nlpodyssey/cybertron/pkg/tasks"
	"github.com/nlpodyssey/cybertron/pkg/tasks/zeroshotclassifier"
	"github.com/rs/zerolog"
	log "github.com/sirupsen/logrus"

	"github.com/wardenbot/warden/internal/adapters/llm"
)

type API struct {
	model  zeroshotclassifier.Interface
	params zeroshotclassifier.Parameters
	logger *log.Entry
}

const DefaultModel = "MoritzLaurer/mDeBERTa-v3-base-mnli-xnli"

// NewLocal loads a zero-shot classification model from modelsDir,
// downloading and converting it on first use. Loading is slow and memory
// heavy, construct once per process.
func NewLocal(modelsDir, modelName string, logger *log.Entry) (*API, error) {
	// The model runtime logs through zerolog, keep it to warnings.
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	if modelName == "" {
		modelName = DefaultModel
	}
	m, err := tasks.Load[zeroshotclassifier.Interface](&tasks.Config{
		ModelsDir:           modelsDir,
		ModelName:           modelName,
		DownloadPolicy:      tasks.DownloadMissing,
		ConversionPolicy:    tasks.ConvertMissing,
		ConversionPrecision: tasks.F32,
	})
	if err != nil {
		return nil, fmt.Errorf("load zero-shot model: %w", err)
	}
	return &API{
		model: m,
		params: zeroshotclassifier.Parameters{
			CandidateLabels:    llm.CandidateLabels(),
			HypothesisTemplate: "This account is {}.",
			MultiLabel:         false,
		},
		logger: logger,
	}, nil
}

func (a *API) ClassifyMember(ctx context.Context, dossier llm.MemberDossier) (*llm.Verdict, error) {
	result, err := a.model.Classify(ctx, dossier.Render(), a.params)
	if err != nil {
		return nil, err
	}
	if len(result.Labels) == 0 || len(result.Scores) == 0 {
		return nil, fmt.Errorf("empty classification result")
	}

	verdict := llm.Verdict{
		Label:      result.Labels[0],
		Confidence: result.Scores[0],
	}.Clamped()
	return &verdict, nil
}
