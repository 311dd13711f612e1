package retrieval

import (
	"math"
	"strings"

	"sociofi/internal/models"
)

// Threshold is the similarity a document must exceed to ground a reply.
const Threshold = 0.7

// Cosine returns dot(a,b) / (|a|*|b|). Mismatched lengths and zero vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Relevant reports whether a similarity clears the threshold. The bound is exclusive.
func Relevant(similarity float64) bool {
	return similarity > Threshold
}

// Score keeps the contents of docs that are relevant to query, in input order.
func Score(query []float32, docs []models.DocumentEmbedding) []string {
	var out []string
	for _, doc := range docs {
		if Relevant(Cosine(query, doc.Embedding.Slice())) {
			out = append(out, doc.Content)
		}
	}
	return out
}

// BuildContext joins the selected contents with newlines.
func BuildContext(contents []string) string {
	return strings.Join(contents, "\n")
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
