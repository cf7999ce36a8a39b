package openai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"github.com/wardenbot/warden/internal/adapters/llm"
)

type API struct {
	client *openai.Client
	model  string
	logger *log.Entry
}

const DefaultModel = "gpt-4o-mini"

func NewOpenAI(apiKey, model, baseURL string, logger *log.Entry) *API {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL
	if model == "" {
		model = DefaultModel
	}
	return &API{
		client: openai.NewClientWithConfig(config),
		model:  model,
		logger: logger,
	}
}

func (o *API) ClassifyMember(ctx context.Context, dossier llm.MemberDossier) (*llm.Verdict, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: llm.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: dossier.Render()},
		},
		Temperature: 0.1,
		MaxTokens:   32,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response choices available")
	}

	verdict, err := llm.ParseVerdict(resp.Choices[0].Message.Content)
	if err != nil {
		o.logger.WithError(err).Debug("discarding unparseable verdict")
		return nil, err
	}
	return verdict, nil
}
