package retrieval

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/schema"

	"sociofi/internal/models"
)

// keywordEmbedder maps texts onto fixed axes by keyword so similarities are predictable.
type keywordEmbedder struct {
	axes  []string
	calls int
	err   error
}

func (e *keywordEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		vec := make([]float64, len(e.axes))
		lower := strings.ToLower(text)
		for j, axis := range e.axes {
			if strings.Contains(lower, axis) {
				vec[j] = 1
			}
		}
		out[i] = vec
	}
	return out, nil
}

type staticLoader struct {
	docs []*schema.Document
	err  error
}

func (l staticLoader) Load(_ context.Context, _ document.Source, _ ...document.LoaderOption) ([]*schema.Document, error) {
	return l.docs, l.err
}

type memoryStore struct {
	mu      sync.Mutex
	records []models.DocumentEmbedding
}

func (s *memoryStore) ListForRole(_ context.Context, role string) ([]models.DocumentEmbedding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.DocumentEmbedding
	for _, r := range s.records {
		if slices.Contains(r.AllowedRoles, models.AccessAll) || slices.Contains(r.AllowedRoles, role) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memoryStore) ReplaceDocument(_ context.Context, name string, records []models.DocumentEmbedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = slices.DeleteFunc(s.records, func(r models.DocumentEmbedding) bool { return r.DocumentName == name })
	s.records = append(s.records, records...)
	return nil
}

var errEmbed = errors.New("embedding quota exhausted")
