package retrieval

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/embedding"
	"go.uber.org/zap"

	"sociofi/internal/models"
)

// Store is the embedding storage the retriever and indexer need.
type Store interface {
	ListForRole(ctx context.Context, role string) ([]models.DocumentEmbedding, error)
	ReplaceDocument(ctx context.Context, name string, records []models.DocumentEmbedding) error
}

// Retriever selects the stored document chunks relevant to a query.
type Retriever struct {
	embedder embedding.Embedder
	store    Store
	logger   *zap.Logger
}

func NewRetriever(embedder embedding.Embedder, store Store, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{embedder: embedder, store: store, logger: logger}
}

// Retrieve embeds query and returns the contents visible to role that clear the threshold.
func (r *Retriever) Retrieve(ctx context.Context, role, query string) ([]string, error) {
	vec, err := embedOne(ctx, r.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	docs, err := r.store.ListForRole(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	selected := Score(vec, docs)
	r.logger.Debug("retrieved context",
		zap.String("role", role),
		zap.Int("candidates", len(docs)),
		zap.Int("selected", len(selected)))
	return selected, nil
}
