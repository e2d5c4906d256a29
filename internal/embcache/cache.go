// Package embcache is a persistent content-hash keyed embedding cache. It
// de-duplicates identical-text embedding requests both across runs (JSON file
// persistence) and within a run (an in-flight request map), so the provider
// is never asked twice for the same text.
package embcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"tasksync/internal/logging"
)

const cacheFilename = "embeddings_cache.json"

// maxTextLen is the provider input ceiling. Text is truncated before hashing
// so the cache key reflects exactly what was sent.
const maxTextLen = 8000

// defaultBatchSize stays under provider batch limits with margin.
const defaultBatchSize = 100

// Entry is one cached vector with bookkeeping metadata.
type Entry struct {
	Preview    string    `json:"text,omitempty"` // first chars, for debugging
	ModelID    string    `json:"model_id"`
	Vector     []float64 `json:"vector"`
	CreatedAt  int64     `json:"created_at"`
	LastUsedAt int64     `json:"last_used_at"`
}

// Stats is a snapshot of cache effectiveness counters.
type Stats struct {
	Hits    int `json:"hits"`
	Misses  int `json:"misses"`
	Saves   int `json:"saves"`
	Entries int `json:"entries"`
}

// EmbedFunc produces one vector per text, order-preserving; nil slots mean
// that text failed.
type EmbedFunc func(texts []string) ([][]float64, error)

// Cache is the single owner of the persisted vector map. All access goes
// through GetOrCreate; callers never mutate entries directly.
type Cache struct {
	path       string
	modelID    string
	batchSize  int
	flushEvery int // persist after this many new entries; 0 disables periodic flush
	now        func() time.Time

	mu            sync.Mutex
	entries       map[string]*Entry
	inflight      map[string]chan struct{} // keys currently being fetched
	stats         Stats
	dirty         bool
	newSinceFlush int
}

// New creates a cache persisted under statePath for the given embedding model.
func New(statePath, modelID string, flushEvery int) *Cache {
	return &Cache{
		path:       filepath.Join(statePath, cacheFilename),
		modelID:    modelID,
		batchSize:  defaultBatchSize,
		flushEvery: flushEvery,
		now:        time.Now,
		entries:    make(map[string]*Entry),
		inflight:   make(map[string]chan struct{}),
	}
}

// SetBatchSize overrides the provider batch size.
func (c *Cache) SetBatchSize(n int) {
	if n > 0 {
		c.batchSize = n
	}
}

// Load reads the persisted cache. A missing file starts empty; a corrupt file
// is logged and treated as empty — the cache is not a system of record.
func (c *Cache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read embedding cache: %w", err)
	}

	var entries map[string]*Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		logging.Warn("embcache", "unreadable cache file %s, starting empty: %v", c.path, err)
		c.entries = make(map[string]*Entry)
		return nil
	}

	c.entries = entries
	return nil
}

// Flush writes the whole mapping to disk if anything changed.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked()
}

func (c *Cache) flushLocked() error {
	if !c.dirty {
		return nil
	}

	data, err := json.Marshal(c.entries)
	if err != nil {
		return fmt.Errorf("marshal embedding cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("write embedding cache: %w", err)
	}

	c.dirty = false
	c.newSinceFlush = 0
	return nil
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = len(c.entries)
	return s
}

// Normalize trims and truncates text the same way it is sent to the provider.
// The cut lands on a rune boundary so multi-byte text never reaches the
// provider with a torn trailing sequence.
func Normalize(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > maxTextLen {
		cut := maxTextLen
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}

// Key is the cache key for a text: sha256 of its normalized form.
func Key(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}

// GetOrCreate returns one vector per input text, preserving order. Cached
// texts are served locally; the rest are fetched through embed in batches.
// Slots are nil for empty texts and for provider failures — callers treat a
// nil vector as "skip this candidate", never as a fatal error.
func (c *Cache) GetOrCreate(texts []string, embed EmbedFunc) [][]float64 {
	result := make([][]float64, len(texts))

	type pending struct {
		key       string
		text      string
		positions []int
	}

	var toFetch []*pending
	fetchIdx := make(map[string]*pending)
	var toWait []struct {
		key string
		pos int
	}

	c.mu.Lock()
	for i, text := range texts {
		norm := Normalize(text)
		if norm == "" {
			continue
		}
		key := Key(norm)

		if entry, ok := c.entries[key]; ok && entry.ModelID == c.modelID {
			entry.LastUsedAt = c.now().Unix()
			c.dirty = true
			c.stats.Hits++
			result[i] = entry.Vector
			continue
		}

		c.stats.Misses++

		// Identical text may appear several times in one call; fetch once.
		if p, ok := fetchIdx[key]; ok {
			p.positions = append(p.positions, i)
			continue
		}

		// Another goroutine is already fetching this key.
		if _, busy := c.inflight[key]; busy {
			toWait = append(toWait, struct {
				key string
				pos int
			}{key, i})
			continue
		}

		done := make(chan struct{})
		c.inflight[key] = done
		p := &pending{key: key, text: norm, positions: []int{i}}
		toFetch = append(toFetch, p)
		fetchIdx[key] = p
	}
	c.mu.Unlock()

	// Fetch misses in provider-sized batches, outside the lock.
	for start := 0; start < len(toFetch); start += c.batchSize {
		end := start + c.batchSize
		if end > len(toFetch) {
			end = len(toFetch)
		}
		batch := toFetch[start:end]

		batchTexts := make([]string, len(batch))
		for i, p := range batch {
			batchTexts[i] = p.text
		}

		vectors, err := embed(batchTexts)
		if err != nil {
			logging.Warn("embcache", "embedding batch failed (%d items): %v", len(batch), err)
		}

		c.mu.Lock()
		for i, p := range batch {
			var vec []float64
			if i < len(vectors) {
				vec = vectors[i]
			}
			if vec != nil {
				now := c.now().Unix()
				c.entries[p.key] = &Entry{
					Preview:    logging.Truncate(p.text, 100),
					ModelID:    c.modelID,
					Vector:     vec,
					CreatedAt:  now,
					LastUsedAt: now,
				}
				c.stats.Saves++
				c.dirty = true
				c.newSinceFlush++
			}
			for _, pos := range p.positions {
				result[pos] = vec
			}
			if done, ok := c.inflight[p.key]; ok {
				close(done)
				delete(c.inflight, p.key)
			}
		}
		shouldFlush := c.flushEvery > 0 && c.newSinceFlush >= c.flushEvery
		if shouldFlush {
			if err := c.flushLocked(); err != nil {
				logging.Warn("embcache", "periodic flush failed: %v", err)
			}
		}
		c.mu.Unlock()
	}

	// Collect results fetched by other goroutines.
	for _, w := range toWait {
		c.mu.Lock()
		ch, busy := c.inflight[w.key]
		c.mu.Unlock()
		if busy {
			<-ch
		}
		c.mu.Lock()
		if entry, ok := c.entries[w.key]; ok && entry.ModelID == c.modelID {
			result[w.pos] = entry.Vector
		}
		c.mu.Unlock()
	}

	return result
}
