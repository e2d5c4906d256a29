package summarize

import (
	"fmt"
	"strings"
	"testing"
)

type fakeGen struct {
	calls   []string
	failOn  func(prompt string) bool
	respond func(prompt string) string
}

func (g *fakeGen) Generate(prompt string) (string, error) {
	g.calls = append(g.calls, prompt)
	if g.failOn != nil && g.failOn(prompt) {
		return "", fmt.Errorf("provider unavailable")
	}
	if g.respond != nil {
		return g.respond(prompt), nil
	}
	return "summary", nil
}

func (g *fakeGen) chunkCalls() int {
	n := 0
	for _, c := range g.calls {
		if strings.HasPrefix(c, "You are compressing") {
			n++
		}
	}
	return n
}

func (g *fakeGen) foldCalls() int {
	n := 0
	for _, c := range g.calls {
		if strings.HasPrefix(c, "You maintain") {
			n++
		}
	}
	return n
}

func transcriptDays(dates []string, messagesPerDay int) string {
	var b strings.Builder
	for _, d := range dates {
		fmt.Fprintf(&b, "📅 %s\n", d)
		for i := 0; i < messagesPerDay; i++ {
			fmt.Fprintf(&b, "[%s 09:%02d] bob: progress update %d on the migration work\n", d, i, i)
		}
	}
	return b.String()
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreRoundtrip(t *testing.T) {
	store := openTestStore(t)

	if err := store.PutSummary("abc123", "the summary"); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetSummary("abc123")
	if err != nil || got != "the summary" {
		t.Errorf("GetSummary = %q, %v", got, err)
	}
	if got, _ := store.GetSummary("missing"); got != "" {
		t.Errorf("missing hash should return empty, got %q", got)
	}

	if err := store.MarkDatesProcessed([]string{"2025-06-01", "2025-06-02"}); err != nil {
		t.Fatal(err)
	}
	dates, err := store.ProcessedDates()
	if err != nil {
		t.Fatal(err)
	}
	if !dates["2025-06-01"] || !dates["2025-06-02"] || len(dates) != 2 {
		t.Errorf("ProcessedDates = %v", dates)
	}

	if err := store.PutDigest("thread-1", "digest v1"); err != nil {
		t.Fatal(err)
	}
	if err := store.PutDigest("thread-1", "digest v2"); err != nil {
		t.Fatal(err)
	}
	if got, _ := store.GetDigest("thread-1"); got != "digest v2" {
		t.Errorf("GetDigest = %q, want replacement", got)
	}
}

func TestCompressSmallTranscriptSkipsChunking(t *testing.T) {
	store := openTestStore(t)
	gen := &fakeGen{respond: func(string) string { return "tiny digest" }}
	s := NewSummarizer(store, gen, 10000, 3)

	digest, err := s.Compress("t1", "📅 2025-06-01\nshort chat")
	if err != nil {
		t.Fatal(err)
	}
	if digest != "tiny digest" {
		t.Errorf("digest = %q", digest)
	}
	if len(gen.calls) != 1 || gen.foldCalls() != 0 {
		t.Errorf("expected exactly one direct compression call, got %d calls", len(gen.calls))
	}
	if got, _ := store.GetDigest("t1"); got != "tiny digest" {
		t.Errorf("digest not persisted: %q", got)
	}
}

func TestCompressOnlyReprocessesNewDates(t *testing.T) {
	store := openTestStore(t)
	gen := &fakeGen{respond: func(prompt string) string {
		if strings.HasPrefix(prompt, "You maintain") {
			return "folded digest"
		}
		return "chunk summary"
	}}
	s := NewSummarizer(store, gen, 1200, 3)

	base := transcriptDays([]string{"2025-06-01", "2025-06-02", "2025-06-03"}, 15)
	if _, err := s.Compress("t1", base); err != nil {
		t.Fatal(err)
	}
	firstChunkCalls := gen.chunkCalls()
	if firstChunkCalls == 0 {
		t.Fatal("first run should summarize chunks")
	}
	if gen.foldCalls() != 1 {
		t.Errorf("fold calls = %d, want 1", gen.foldCalls())
	}

	// Same transcript again: everything is cached, only the fold runs.
	gen.calls = nil
	if _, err := s.Compress("t1", base); err != nil {
		t.Fatal(err)
	}
	if gen.chunkCalls() != 0 {
		t.Errorf("second run re-summarized %d chunks, want 0", gen.chunkCalls())
	}
	if gen.foldCalls() != 1 {
		t.Errorf("second run fold calls = %d, want 1", gen.foldCalls())
	}

	// New days appended: only chunks covering them get summarized.
	gen.calls = nil
	extended := base + transcriptDays([]string{"2025-06-04"}, 15)
	if _, err := s.Compress("t1", extended); err != nil {
		t.Fatal(err)
	}
	if gen.chunkCalls() == 0 {
		t.Error("new day should trigger at least one chunk summary")
	}
	if gen.chunkCalls() >= firstChunkCalls {
		t.Errorf("append reprocessed %d chunks, first run did %d", gen.chunkCalls(), firstChunkCalls)
	}
}

func TestCompressFoldUsesPreviousDigest(t *testing.T) {
	store := openTestStore(t)
	var foldPrompt string
	gen := &fakeGen{respond: func(prompt string) string {
		if strings.HasPrefix(prompt, "You maintain") {
			foldPrompt = prompt
			return "digest"
		}
		return "chunk summary"
	}}
	s := NewSummarizer(store, gen, 1200, 3)
	if err := store.PutDigest("t1", "carried-over facts"); err != nil {
		t.Fatal(err)
	}

	base := transcriptDays([]string{"2025-06-01", "2025-06-02"}, 15)
	if _, err := s.Compress("t1", base); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(foldPrompt, "carried-over facts") {
		t.Error("fold prompt should include the previous digest")
	}
}

func TestCompressChunkFailureFallsBackToRawText(t *testing.T) {
	store := openTestStore(t)
	gen := &fakeGen{
		failOn: func(prompt string) bool {
			return strings.HasPrefix(prompt, "You are compressing")
		},
		respond: func(string) string { return "digest" },
	}
	s := NewSummarizer(store, gen, 1200, 3)

	base := transcriptDays([]string{"2025-06-01", "2025-06-02"}, 15)
	digest, err := s.Compress("t1", base)
	if err != nil {
		t.Fatalf("chunk failures should not fail the run: %v", err)
	}
	if digest != "digest" {
		t.Errorf("digest = %q", digest)
	}

	// Failed chunks stay out of the cache so a later run retries them.
	gen.calls = nil
	gen.failOn = nil
	if _, err := s.Compress("t1", base); err != nil {
		t.Fatal(err)
	}
	if gen.chunkCalls() == 0 {
		t.Error("failed chunks should be retried on the next run")
	}
}

func TestCompressEmptyTranscript(t *testing.T) {
	store := openTestStore(t)
	gen := &fakeGen{}
	s := NewSummarizer(store, gen, 1000, 3)

	digest, err := s.Compress("t1", "   \n ")
	if err != nil || digest != "" {
		t.Errorf("empty transcript: digest=%q err=%v", digest, err)
	}
	if len(gen.calls) != 0 {
		t.Errorf("no provider calls expected, got %d", len(gen.calls))
	}
}
