package retrieval

import (
	"math"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"sociofi/internal/models"
)

func doc(content string, vec ...float32) models.DocumentEmbedding {
	return models.DocumentEmbedding{Content: content, Embedding: pgvector.NewVector(vec)}
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-2, 0}), 1e-9)
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 0}))
	assert.Zero(t, Cosine([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Zero(t, Cosine(nil, nil))
}

func TestRelevantBoundaryIsExclusive(t *testing.T) {
	assert.False(t, Relevant(0.7))
	assert.False(t, Relevant(0.69))
	assert.True(t, Relevant(math.Nextafter(0.7, 1)))
	assert.True(t, Relevant(1))
}

func TestScoreKeepsOrderWithoutCap(t *testing.T) {
	docs := []models.DocumentEmbedding{
		doc("leave policy", 1, 0.1),
		doc("unrelated", 0, 1),
		doc("holiday list", 0.9, 0.2),
		doc("opposite", -1, 0),
		doc("payroll", 1, 0),
	}
	got := Score([]float32{1, 0}, docs)
	assert.Equal(t, []string{"leave policy", "holiday list", "payroll"}, got)
	assert.Equal(t, "leave policy\nholiday list\npayroll", BuildContext(got))
}

func TestScoreEmpty(t *testing.T) {
	assert.Empty(t, Score([]float32{1, 0}, nil))
	assert.Equal(t, "", BuildContext(nil))
}

func vectorGen(n int) *rapid.Generator[[]float32] {
	return rapid.SliceOfN(rapid.Float32Range(-10, 10), n, n)
}

func TestPropertyCosineBoundedAndSymmetric(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 16).Draw(rt, "dims")
		a := vectorGen(n).Draw(rt, "a")
		b := vectorGen(n).Draw(rt, "b")

		ab, ba := Cosine(a, b), Cosine(b, a)
		if math.Abs(ab-ba) > 1e-9 {
			rt.Fatalf("Cosine not symmetric: %v vs %v", ab, ba)
		}
		if ab < -1-1e-9 || ab > 1+1e-9 {
			rt.Fatalf("Cosine out of range: %v", ab)
		}
	})
}

func TestPropertyScoreIsOrderedSubsetAboveThreshold(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(rt, "dims")
		query := vectorGen(n).Draw(rt, "query")
		count := rapid.IntRange(0, 10).Draw(rt, "docs")
		docs := make([]models.DocumentEmbedding, count)
		var want []string
		for i := range docs {
			vec := vectorGen(n).Draw(rt, "vec")
			docs[i] = models.DocumentEmbedding{Content: string(rune('a' + i)), Embedding: pgvector.NewVector(vec)}
			if Cosine(query, vec) > Threshold {
				want = append(want, docs[i].Content)
			}
		}

		got := Score(query, docs)
		if len(got) != len(want) {
			rt.Fatalf("Score kept %d docs, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				rt.Fatalf("Score[%d] = %q, want %q", i, got[i], want[i])
			}
		}
	})
}
