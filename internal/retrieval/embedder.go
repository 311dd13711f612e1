package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	aclopenai "github.com/cloudwego/eino-ext/libs/acl/openai"
	"github.com/cloudwego/eino/components/embedding"
	"google.golang.org/genai"

	"sociofi/internal/config"
)

var ErrNoEmbedding = errors.New("embedder returned no vectors")

// NewEmbedder builds the embedding client named by cfg.Provider.
func NewEmbedder(ctx context.Context, cfg config.EmbeddingConfig) (embedding.Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai", "":
		client, err := aclopenai.NewEmbeddingClient(ctx, &aclopenai.EmbeddingConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("create openai embedder: %w", err)
		}
		return client, nil
	case "gemini":
		client, err := newGenAIEmbedder(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

type genaiEmbedder struct {
	client *genai.Client
	model  string
}

func newGenAIEmbedder(ctx context.Context, cfg config.EmbeddingConfig) (*genaiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini embedding api key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-embedding-001"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &genaiEmbedder{client: client, model: model}, nil
}

func (e *genaiEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("genai embed: %w", err)
	}
	out := make([][]float64, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		vec := make([]float64, len(emb.Values))
		for j, v := range emb.Values {
			vec[j] = float64(v)
		}
		out[i] = vec
	}
	return out, nil
}

// embedOne embeds a single query string.
func embedOne(ctx context.Context, e embedding.Embedder, text string) ([]float32, error) {
	vecs, err := e.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, ErrNoEmbedding
	}
	return toFloat32(vecs[0]), nil
}
