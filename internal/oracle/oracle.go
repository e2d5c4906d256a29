// Package oracle wraps the external embedding and completion providers behind
// narrow interfaces. Both are treated as opaque, possibly-unreliable scoring
// oracles: callers get degraded results, never panics, when a provider
// misbehaves.
package oracle

import (
	"math"

	"tasksync/internal/types"
)

// EmbeddingProvider produces one vector per input text, order-preserving.
// Individual slots may be nil when the provider failed for that text; callers
// must treat a nil vector as "skip this candidate".
type EmbeddingProvider interface {
	Embed(texts []string) ([][]float64, error)
}

// CompletionOracle returns an LLM-adjudicated similarity verdict in [0,1].
type CompletionOracle interface {
	ScoreSimilarity(textA, textB string) (float64, error)
}

// BatchSummarizer produces digests for a set of tasks, keyed by task id.
// Implementations may take minutes to hours; the matching core only ever
// consumes the completed map.
type BatchSummarizer interface {
	Summarize(tasks []*types.Task) (map[string]string, error)
}

// CosineSimilarity computes similarity between two embeddings (-1 to 1)
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
