package adapters

import (
	"context"

	"github.com/wardenbot/warden/internal/adapters/llm"
)

// Classifier is the optional AI enrichment backend. Implementations
// judge a member dossier against the shared label set and return a
// verdict with a confidence in [0, 1].
type Classifier interface {
	ClassifyMember(ctx context.Context, dossier llm.MemberDossier) (*llm.Verdict, error)
}
