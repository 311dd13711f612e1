package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"sociofi/internal/models"
)

const (
	ChunkSizeDefault = 1000
	ChunkSizeMin     = 500
	ChunkSizeMax     = 2000
)

var ErrEmptyDocument = errors.New("document has no readable text content")

// Indexer turns an uploaded file into stored, embedded chunks.
type Indexer struct {
	loader    document.Loader
	embedder  embedding.Embedder
	store     Store
	chunkSize int
	logger    *zap.Logger
}

// NewIndexer builds an indexer backed by the eino file loader. Unknown
// extensions are parsed as plain text.
func NewIndexer(ctx context.Context, embedder embedding.Embedder, store Store, chunkSize int, logger *zap.Logger) (*Indexer, error) {
	parserExt, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("init parser: %w", err)
	}
	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      parserExt,
	})
	if err != nil {
		return nil, fmt.Errorf("init file loader: %w", err)
	}
	return newIndexer(loader, embedder, store, chunkSize, logger), nil
}

func newIndexer(loader document.Loader, embedder embedding.Embedder, store Store, chunkSize int, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		loader:    loader,
		embedder:  embedder,
		store:     store,
		chunkSize: clampChunkSize(chunkSize),
		logger:    logger,
	}
}

func clampChunkSize(size int) int {
	if size <= 0 || size > ChunkSizeMax {
		return ChunkSizeDefault
	}
	if size < ChunkSizeMin {
		return ChunkSizeMin
	}
	return size
}

// Index loads path, embeds every chunk and replaces any earlier version of name.
// It returns the number of stored chunks.
func (ix *Indexer) Index(ctx context.Context, path, name string, allowedRoles []string) (int, error) {
	docs, err := ix.loader.Load(ctx, document.Source{URI: path})
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", name, err)
	}
	var builder strings.Builder
	for _, doc := range docs {
		content := strings.TrimSpace(doc.Content)
		if content == "" {
			continue
		}
		builder.WriteString(content)
		builder.WriteString("\n\n")
	}
	chunks := Chunk(strings.TrimSpace(builder.String()), ix.chunkSize)
	if len(chunks) == 0 {
		return 0, ErrEmptyDocument
	}

	vecs, err := ix.embedder.EmbedStrings(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed %s: %w", name, err)
	}
	if len(vecs) != len(chunks) {
		return 0, fmt.Errorf("embed %s: got %d vectors for %d chunks", name, len(vecs), len(chunks))
	}

	roles := models.NormalizeAccess(allowedRoles)
	now := time.Now().UTC()
	records := make([]models.DocumentEmbedding, len(chunks))
	for i, chunk := range chunks {
		records[i] = models.DocumentEmbedding{
			ID:           uuid.NewString(),
			DocumentName: name,
			ChunkIndex:   i,
			Content:      chunk,
			Embedding:    pgvector.NewVector(toFloat32(vecs[i])),
			AllowedRoles: roles,
			CreatedAt:    now,
		}
	}
	if err := ix.store.ReplaceDocument(ctx, name, records); err != nil {
		return 0, fmt.Errorf("store %s: %w", name, err)
	}
	ix.logger.Info("document indexed",
		zap.String("document", name),
		zap.Int("chunks", len(records)),
		zap.Strings("allowed_roles", roles))
	return len(records), nil
}

// Chunk splits text into pieces of at most size runes.
func Chunk(text string, size int) []string {
	runes := []rune(text)
	if len(runes) == 0 || size <= 0 {
		return nil
	}
	out := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}
