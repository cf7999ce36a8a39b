package adapters

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/wardenbot/warden/internal/adapters/llm"
)

// Cached memoizes verdicts by dossier fingerprint. Sweeps revisit the
// same unchanged members every interval, the cache keeps backend spend
// proportional to what actually changed. Errors are not cached.
type Cached struct {
	backend Classifier
	cache   *lru.Cache[string, llm.Verdict]
}

func NewCached(backend Classifier, size int) (*Cached, error) {
	cache, err := lru.New[string, llm.Verdict](size)
	if err != nil {
		return nil, err
	}
	return &Cached{backend: backend, cache: cache}, nil
}

func (c *Cached) ClassifyMember(ctx context.Context, dossier llm.MemberDossier) (*llm.Verdict, error) {
	key := dossier.Fingerprint()
	if verdict, ok := c.cache.Get(key); ok {
		return &verdict, nil
	}
	verdict, err := c.backend.ClassifyMember(ctx, dossier)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, *verdict)
	return verdict, nil
}
