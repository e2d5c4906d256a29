package summarize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"tasksync/internal/chunk"
	"tasksync/internal/logging"
)

// Generator produces a text completion for a prompt.
type Generator interface {
	Generate(prompt string) (string, error)
}

// defaultWindow is how many trailing chunk summaries feed the rolling digest.
const defaultWindow = 3

// Summarizer runs incremental sliding-window compression over transcripts.
type Summarizer struct {
	store         *Store
	gen           Generator
	maxChunkChars int
	window        int
}

// NewSummarizer creates a summarizer. window <= 0 uses the default of 3.
func NewSummarizer(store *Store, gen Generator, maxChunkChars, window int) *Summarizer {
	if maxChunkChars <= 0 {
		maxChunkChars = 10000
	}
	if window <= 0 {
		window = defaultWindow
	}
	return &Summarizer{
		store:         store,
		gen:           gen,
		maxChunkChars: maxChunkChars,
		window:        window,
	}
}

// Compress produces a rolling digest of the transcript identified by threadID.
// A transcript that fits in one chunk is compressed directly. Larger ones are
// split at day boundaries; only chunks covering unprocessed days (or absent
// from the summary cache) are re-summarized, then the trailing summaries are
// folded with the previous digest into the updated one.
func (s *Summarizer) Compress(threadID, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", nil
	}

	if len(transcript) <= s.maxChunkChars {
		digest, err := s.gen.Generate(buildChunkPrompt(transcript))
		if err != nil {
			return "", fmt.Errorf("compress transcript: %w", err)
		}
		if err := s.store.PutDigest(threadID, digest); err != nil {
			return "", err
		}
		return digest, nil
	}

	chunks := chunk.Split(transcript, s.maxChunkChars)
	logging.Info("summarize", "thread %s: %d chars in %d chunks", threadID, len(transcript), len(chunks))

	processed, err := s.store.ProcessedDates()
	if err != nil {
		return "", err
	}

	summaries := make([]string, len(chunks))
	var newDates []string

	for i, c := range chunks {
		hash := chunkHash(c.Text)

		cached, err := s.store.GetSummary(hash)
		if err != nil {
			return "", err
		}

		if cached != "" && !hasNewDates(c.DateRange, processed) {
			summaries[i] = cached
			logging.Debug("summarize", "chunk %d/%d cached (%s)", i+1, len(chunks), hash)
			continue
		}

		summary, err := s.gen.Generate(buildChunkPrompt(c.Text))
		if err != nil {
			// A lost chunk must not sink the run; the raw text still carries
			// the information, just uncompressed.
			logging.Warn("summarize", "chunk %d/%d failed, keeping raw text: %v", i+1, len(chunks), err)
			summaries[i] = c.Text
			continue
		}

		summaries[i] = summary
		if err := s.store.PutSummary(hash, summary); err != nil {
			return "", err
		}
		for _, d := range c.DateRange {
			if !processed[d] {
				newDates = append(newDates, d)
				processed[d] = true
			}
		}
	}

	if err := s.store.MarkDatesProcessed(newDates); err != nil {
		return "", err
	}

	digest, err := s.fold(threadID, summaries)
	if err != nil {
		return "", err
	}
	if err := s.store.PutDigest(threadID, digest); err != nil {
		return "", err
	}
	return digest, nil
}

// fold merges the previous digest with the trailing window of chunk summaries.
func (s *Summarizer) fold(threadID string, summaries []string) (string, error) {
	prev, err := s.store.GetDigest(threadID)
	if err != nil {
		return "", err
	}

	recent := summaries
	if len(recent) > s.window {
		recent = recent[len(recent)-s.window:]
	}

	digest, err := s.gen.Generate(buildFoldPrompt(prev, recent))
	if err != nil {
		// Degrade to the concatenated summaries rather than losing the run.
		logging.Warn("summarize", "digest fold failed, joining summaries: %v", err)
		return strings.Join(recent, "\n\n"), nil
	}
	return digest, nil
}

// chunkHash identifies a chunk by content; 16 hex chars is plenty at this
// cardinality.
func chunkHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

func hasNewDates(dates []string, processed map[string]bool) bool {
	for _, d := range dates {
		if !processed[d] {
			return true
		}
	}
	return false
}
