// Package extractor builds the text projections of a task that downstream
// stages consume: a short summary for reports, a full text for LLM
// verification, and a compact embedding text. When a pre-computed digest
// exists for a task it is preferred over raw notes, since digestion already
// stripped the noise that hurts embedding quality.
package extractor

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/tsawler/prose/v3"

	"tasksync/internal/types"
)

// embeddingTextLimit is the provider input ceiling.
const embeddingTextLimit = 8000

// rawNotesExcerpt bounds how much of undigested notes feeds the embedding.
const rawNotesExcerpt = 2000

// chatContextExcerpt bounds how much raw chat context feeds the embedding.
const chatContextExcerpt = 1500

// Context is the extracted view of one task.
type Context struct {
	Summary       string
	FullText      string
	EmbeddingText string
	Status        string
	KeyPoints     []string
	HasNotes      bool
	UsesDigest    bool
}

// Extractor builds task contexts. Digests are injected once after the batch
// summarization step; extraction itself never calls a provider.
type Extractor struct {
	mu      sync.RWMutex
	digests map[string]string
}

// New creates an extractor with no digests.
func New() *Extractor {
	return &Extractor{digests: make(map[string]string)}
}

// SetDigests replaces the digest lookup table, keyed by task id.
func (e *Extractor) SetDigests(digests map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.digests = make(map[string]string, len(digests))
	for id, d := range digests {
		e.digests[id] = d
	}
}

func (e *Extractor) digestFor(id string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.digests[id]
}

// Extract builds the context for a task based on its source.
func (e *Extractor) Extract(task *types.Task) Context {
	if task.Source == types.SourceChat {
		return e.chatContext(task)
	}
	return e.pmContext(task)
}

func (e *Extractor) pmContext(task *types.Task) Context {
	notes := strings.TrimSpace(task.Description)
	digest := e.digestFor(task.ID)

	content := notes
	usesDigest := false
	if digest != "" {
		content = digest
		usesDigest = true
	}

	metadata := metadataLine(task)
	keyPoints := extractKeyPoints(notes)

	var fullParts []string
	fullParts = append(fullParts, task.Title)
	if metadata != "" {
		fullParts = append(fullParts, metadata)
	}
	if content != "" {
		fullParts = append(fullParts, content)
	}
	fullText := strings.Join(fullParts, " ")

	var embedParts []string
	embedParts = append(embedParts, task.Title)
	if metadata != "" {
		embedParts = append(embedParts, metadata)
	}
	if content != "" {
		if usesDigest {
			// The digest is already compact; take all of it.
			embedParts = append(embedParts, content)
		} else {
			embedParts = append(embedParts, sentenceExcerpt(content, rawNotesExcerpt))
			if len(keyPoints) > 0 {
				n := len(keyPoints)
				if n > 3 {
					n = 3
				}
				embedParts = append(embedParts, strings.Join(keyPoints[:n], " "))
			}
		}
	}
	embeddingText := cut(strings.Join(embedParts, " "), embeddingTextLimit)

	summary := task.Title
	if content != "" {
		if usesDigest {
			summary += "\n" + clip(content, 500)
		} else {
			summary += "\n" + clip(content, 300)
		}
	}

	return Context{
		Summary:       summary,
		FullText:      fullText,
		EmbeddingText: embeddingText,
		Status:        pmStatus(task),
		KeyPoints:     keyPoints,
		HasNotes:      notes != "",
		UsesDigest:    usesDigest,
	}
}

func (e *Extractor) chatContext(task *types.Task) Context {
	desc := strings.TrimSpace(task.Description)
	ctx := strings.TrimSpace(task.FreeContext)

	var fullParts []string
	fullParts = append(fullParts, task.Title)
	if desc != "" {
		fullParts = append(fullParts, desc)
	}
	if ctx != "" {
		fullParts = append(fullParts, ctx)
	}
	fullText := strings.Join(fullParts, "\n")

	var embedParts []string
	embedParts = append(embedParts, task.Title)
	if desc != "" {
		embedParts = append(embedParts, desc)
	}
	if ctx != "" {
		embedParts = append(embedParts, sentenceExcerpt(ctx, chatContextExcerpt))
	}
	embeddingText := cut(strings.Join(embedParts, " "), embeddingTextLimit)

	body := desc
	if body == "" {
		body = ctx
	}
	summary := task.Title
	if body != "" {
		summary += "\n" + clip(body, 300)
	}

	return Context{
		Summary:       summary,
		FullText:      fullText,
		EmbeddingText: embeddingText,
		Status:        string(task.Status),
		HasNotes:      desc != "" || ctx != "",
	}
}

// metadataLine renders the PM fields that help disambiguate same-title tasks:
// who owns it and when it lived.
func metadataLine(task *types.Task) string {
	var parts []string
	if task.Assignee != "" {
		parts = append(parts, fmt.Sprintf("Assignee: %s", task.Assignee))
	}
	if task.DueOn != "" {
		parts = append(parts, fmt.Sprintf("Due: %s", task.DueOn))
	}
	if d := datePart(task.CreatedAt); d != "" {
		parts = append(parts, fmt.Sprintf("Created: %s", d))
	}
	if d := datePart(task.ModifiedAt); d != "" {
		parts = append(parts, fmt.Sprintf("Modified: %s", d))
	}
	return strings.Join(parts, " ")
}

func datePart(iso string) string {
	if i := strings.IndexByte(iso, 'T'); i > 0 {
		return iso[:i]
	}
	return iso
}

func pmStatus(task *types.Task) string {
	if task.Completed || task.Status == types.StatusDone {
		return "completed"
	}
	return "in_progress"
}

// extractKeyPoints pulls the significant lines out of raw notes, capped at 5.
func extractKeyPoints(notes string) []string {
	if notes == "" {
		return nil
	}
	var points []string
	for _, line := range strings.Split(notes, "\n") {
		line = strings.TrimSpace(line)
		if len(line) <= 20 {
			continue
		}
		points = append(points, clipHard(line, 200))
		if len(points) == 5 {
			break
		}
	}
	return points
}

// sentenceExcerpt truncates text to at most limit characters, preferring a
// sentence boundary. Falls back to a hard cut when segmentation fails or the
// first sentence alone is over the limit.
func sentenceExcerpt(text string, limit int) string {
	text = strings.TrimSpace(text)
	if len(text) <= limit {
		return text
	}

	// Segmenting megabytes of notes to keep 2000 chars is wasted work.
	window := cut(text, limit*2)

	doc, err := prose.NewDocument(window, prose.WithTagging(false), prose.WithExtraction(false))
	if err != nil {
		return clipHard(text, limit)
	}

	var b strings.Builder
	for _, sent := range doc.Sentences() {
		s := strings.TrimSpace(sent.Text)
		if s == "" {
			continue
		}
		if b.Len() > 0 && b.Len()+1+len(s) > limit {
			break
		}
		if b.Len() == 0 && len(s) > limit {
			return clipHard(text, limit)
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s)
	}
	if b.Len() == 0 {
		return clipHard(text, limit)
	}
	return b.String()
}

// clip truncates with an ellipsis marker when anything was cut.
func clip(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return strings.TrimSpace(cut(s, limit)) + "..."
}

func clipHard(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return strings.TrimSpace(cut(s, limit))
}

// cut truncates s to at most limit bytes without splitting a rune.
func cut(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
