package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"github.com/wardenbot/warden/internal/adapters/llm"
)

type API struct {
	client *genai.Client
	model  *genai.GenerativeModel
	logger *log.Entry
}

const DefaultModel = "gemini-2.5-flash-lite"

func NewGemini(apiKey, model string, logger *log.Entry) *API {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		logger.Fatalf("Error creating client: %v", err)
	}
	if model == "" {
		model = DefaultModel
	}
	gm := client.GenerativeModel(model)
	gm.SetTemperature(0.1)
	gm.SetMaxOutputTokens(32)
	gm.ResponseMIMEType = "text/plain"
	gm.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(llm.SystemPrompt)},
	}
	return &API{
		client: client,
		model:  gm,
		logger: logger,
	}
}

func (g *API) ClassifyMember(ctx context.Context, dossier llm.MemberDossier) (*llm.Verdict, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(dossier.Render()))
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no response candidates available")
	}

	response := ""
	for _, part := range resp.Candidates[0].Content.Parts {
		response += fmt.Sprintf("%v", part)
	}

	verdict, err := llm.ParseVerdict(response)
	if err != nil {
		g.logger.WithError(err).Debug("discarding unparseable verdict")
		return nil, err
	}
	return verdict, nil
}
