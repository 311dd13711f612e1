package retrieval

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sociofi/internal/models"
)

func TestChunk(t *testing.T) {
	assert.Nil(t, Chunk("", 10))
	assert.Equal(t, []string{"abc", "def", "g"}, Chunk("abcdefg", 3))
	assert.Equal(t, []string{"日本", "語"}, Chunk("日本語", 2))
}

func TestClampChunkSize(t *testing.T) {
	assert.Equal(t, ChunkSizeDefault, clampChunkSize(0))
	assert.Equal(t, ChunkSizeDefault, clampChunkSize(ChunkSizeMax+1))
	assert.Equal(t, ChunkSizeMin, clampChunkSize(10))
	assert.Equal(t, 1500, clampChunkSize(1500))
}

func TestIndexStoresEmbeddedChunks(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{}
	embedder := &keywordEmbedder{axes: []string{"leave", "salary"}}
	loader := staticLoader{docs: []*schema.Document{
		{Content: strings.Repeat("leave ", 120)},
		{Content: "   "},
		{Content: "salary bands"},
	}}
	ix := newIndexer(loader, embedder, store, ChunkSizeMin, zap.NewNop())

	n, err := ix.Index(ctx, "/tmp/handbook.txt", "handbook.txt", []string{"CTO"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, store.records, 2)
	for i, r := range store.records {
		assert.Equal(t, "handbook.txt", r.DocumentName)
		assert.Equal(t, i, r.ChunkIndex)
		assert.Equal(t, []string{"CTO"}, r.AllowedRoles)
		assert.Len(t, r.Embedding.Slice(), 2)
	}

	// Reindexing replaces the previous chunks.
	n, err = ix.Index(ctx, "/tmp/handbook.txt", "handbook.txt", []string{"All"})
	require.NoError(t, err)
	assert.Len(t, store.records, n)
	assert.Equal(t, models.AccessLevels, store.records[0].AllowedRoles)
}

func TestIndexRejectsEmptyDocument(t *testing.T) {
	ix := newIndexer(staticLoader{docs: []*schema.Document{{Content: " \n "}}}, &keywordEmbedder{}, &memoryStore{}, 0, nil)
	_, err := ix.Index(context.Background(), "x.txt", "x.txt", nil)
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestIndexPropagatesEmbedError(t *testing.T) {
	store := &memoryStore{}
	ix := newIndexer(staticLoader{docs: []*schema.Document{{Content: "text"}}}, &keywordEmbedder{err: errEmbed}, store, 0, nil)
	_, err := ix.Index(context.Background(), "x.txt", "x.txt", nil)
	assert.ErrorIs(t, err, errEmbed)
	assert.Empty(t, store.records)
}

func TestIndexerReadsTextFileFromDisk(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "policy.txt")
	require.NoError(t, os.WriteFile(path, []byte("Annual leave is twenty days."), 0o600))

	store := &memoryStore{}
	ix, err := NewIndexer(ctx, &keywordEmbedder{axes: []string{"leave"}}, store, 0, zap.NewNop())
	require.NoError(t, err)

	n, err := ix.Index(ctx, path, "policy.txt", []string{"Employees"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "Annual leave is twenty days.", store.records[0].Content)
}
