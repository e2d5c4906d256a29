package oracle

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		a, b []float64
		want float64
	}{
		{[]float64{1, 0}, []float64{1, 0}, 1.0},
		{[]float64{1, 0}, []float64{0, 1}, 0.0},
		{[]float64{1, 0}, []float64{-1, 0}, -1.0},
		{[]float64{1, 2}, []float64{1, 2, 3}, 0.0}, // dimension mismatch
		{nil, nil, 0.0},
		{[]float64{0, 0}, []float64{1, 1}, 0.0}, // zero norm
	}
	for _, tc := range cases {
		if got := CosineSimilarity(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("CosineSimilarity(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestParseScore(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"0.85", 0.85},
		{" 0.7\n", 0.7},
		{"The similarity is 0.62 overall.", 0.62},
		{"1", 1.0},
		{"0", 0.0},
		{"8.5", 0.85}, // 0-10 scale rescaled
		{"7", 0.7},
		{"10", 1.0},
		{"", 0.0},
		{"no number here", 0.0},
	}
	for _, tc := range cases {
		if got := ParseScore(tc.in); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("ParseScore(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func newTestClient(url string) *Client {
	c := NewClient(url, "embed-model", "gen-model")
	c.sleep = func(time.Duration) {}
	return c
}

func TestEmbedPerTextFailure(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		var req embeddingRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Prompt == "bad" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(embeddingResponse{Embedding: []float64{0.1, 0.2}})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	vectors, err := c.Embed([]string{"good", "bad", "also good"})
	if err != nil {
		t.Fatalf("partial failure should not error: %v", err)
	}
	if vectors[0] == nil || vectors[2] == nil {
		t.Error("successful texts should have vectors")
	}
	if vectors[1] != nil {
		t.Error("failed text should have a nil slot")
	}
}

func TestEmbedAllFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if _, err := c.Embed([]string{"a", "b"}); err == nil {
		t.Error("expected error when every request fails")
	}
}

func TestGenerateRetriesTransientFailures(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(generateResponse{Response: "ok", Done: true})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	out, err := c.Generate("prompt")
	if err != nil {
		t.Fatal(err)
	}
	if out != "ok" {
		t.Errorf("response = %q", out)
	}
	if requests != 3 {
		t.Errorf("requests = %d, want 3", requests)
	}
}

func TestGenerateGivesUpAfterRetries(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if _, err := c.Generate("prompt"); err == nil {
		t.Error("expected error after exhausting retries")
	}
	if requests != 3 {
		t.Errorf("requests = %d, want 3", requests)
	}
}

func TestScoreSimilarityEmptyInputs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty inputs")
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if score, err := c.ScoreSimilarity("", "something"); err != nil || score != 0 {
		t.Errorf("empty input: score=%v err=%v", score, err)
	}
	if score, err := c.ScoreSimilarity("something", "  "); err != nil || score != 0 {
		t.Errorf("blank input: score=%v err=%v", score, err)
	}
}

func TestScoreSimilarityParsesVerdict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{Response: "0.82", Done: true})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	score, err := c.ScoreSimilarity("task one", "task two")
	if err != nil {
		t.Fatal(err)
	}
	if score != 0.82 {
		t.Errorf("score = %v", score)
	}
}

func TestScoreSimilarityProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if _, err := c.ScoreSimilarity("a", "b"); err == nil {
		t.Error("expected error to propagate so the caller can apply its policy")
	}
}

func ExampleParseScore() {
	fmt.Println(ParseScore("Similarity: 0.9"))
	// Output: 0.9
}
