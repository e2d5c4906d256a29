package match

import (
	"sort"

	"tasksync/internal/embcache"
	"tasksync/internal/extractor"
	"tasksync/internal/logging"
	"tasksync/internal/oracle"
	"tasksync/internal/timewindow"
	"tasksync/internal/types"
)

// partialTitleFloor is the minimum containment ratio for a partial title
// match to count as a candidate.
const partialTitleFloor = 0.7

// extendedFloorBump raises the extended window's similarity floor above the
// primary one; temporally distant candidates need more evidence.
const extendedFloorBump = 0.05

// Config tunes the matching thresholds and per-window candidate caps.
type Config struct {
	SimilarityThreshold float64
	LowThreshold        float64
	VerifyAccepted      bool

	PrimaryCap  int
	ExtendedCap int
	DistantCap  int
}

// DefaultConfig mirrors the tuned production values.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.75,
		LowThreshold:        0.65,
		PrimaryCap:          5,
		ExtendedCap:         3,
		DistantCap:          2,
	}
}

// Engine runs the reconciliation. All collaborators are injected; the engine
// itself holds no provider credentials or persistent state.
type Engine struct {
	cfg      Config
	windows  *timewindow.Matcher
	cache    *embcache.Cache
	provider oracle.EmbeddingProvider
	verifier oracle.CompletionOracle
	extract  *extractor.Extractor
}

// NewEngine creates an engine. verifier may be nil to disable the LLM stage;
// borderline candidates are then dropped rather than verified.
func NewEngine(cfg Config, windows *timewindow.Matcher, cache *embcache.Cache,
	provider oracle.EmbeddingProvider, verifier oracle.CompletionOracle,
	extract *extractor.Extractor) *Engine {
	return &Engine{
		cfg:      cfg,
		windows:  windows,
		cache:    cache,
		provider: provider,
		verifier: verifier,
		extract:  extract,
	}
}

type candidate struct {
	task   *types.Task
	score  float64
	window string
}

// Match reconciles the chat pool against the PM pool. Each PM task is
// consumed by at most one chat task; each chat task matches at most one PM
// task. Unmatched ids from either side are reported in the result.
func (e *Engine) Match(chatTasks, pmTasks []*types.Task) *types.MatchResult {
	result := &types.MatchResult{}
	consumed := make(map[string]bool)

	logging.Info("match", "reconciling %d chat tasks against %d pm tasks", len(chatTasks), len(pmTasks))

	chatTexts := make([]string, len(chatTasks))
	chatFull := make([]string, len(chatTasks))
	for i, task := range chatTasks {
		ctx := e.extract.Extract(task)
		chatTexts[i] = ctx.EmbeddingText
		chatFull[i] = ctx.FullText
	}

	chatMatched := make(map[int]bool)

	for i, task := range chatTasks {
		best, exactFound := e.titleMatch(task, pmTasks, consumed)

		if exactFound && best.score >= e.cfg.SimilarityThreshold {
			logging.Debug("match", "title match %.2f: %q -> %q", best.score, task.Title, best.task.Title)
			result.Matches = append(result.Matches, types.Match{A: task, B: best.task, Score: best.score})
			chatMatched[i] = true
			consumed[best.task.ID] = true
			continue
		}

		// Embedded lazily: a task resolved by title never costs a provider
		// call. The cache dedups repeat texts across tasks.
		chatVec := e.embed([]string{chatTexts[i]})[0]
		if chatVec == nil {
			logging.Debug("match", "no embedding for chat task %s, skipping", task.ID)
			continue
		}

		windows := e.windows.Windows(e.windows.CenterFor(task))
		part := e.windows.Partition(pmTasks, windows)

		top := e.embeddingCandidates(chatVec, part, consumed)
		if len(top) == 0 {
			// A partial title hit below the threshold cannot be accepted on
			// its own, so nothing survives here either way.
			continue
		}
		best = top[0]

		score, keep := e.verify(chatFull[i], best, exactFound)
		if !keep {
			continue
		}

		if score >= e.cfg.SimilarityThreshold {
			result.Matches = append(result.Matches, types.Match{A: task, B: best.task, Score: score})
			chatMatched[i] = true
			consumed[best.task.ID] = true
		}
	}

	for i, task := range chatTasks {
		if !chatMatched[i] {
			result.OnlyInA = append(result.OnlyInA, task.ID)
		}
	}
	for _, task := range pmTasks {
		if !consumed[task.ID] {
			result.OnlyInB = append(result.OnlyInB, task.ID)
		}
	}

	logging.Info("match", "matched %d, chat-only %d, pm-only %d",
		len(result.Matches), len(result.OnlyInA), len(result.OnlyInB))
	return result
}

// titleMatch scans every unconsumed PM task for exact or contained
// normalized titles. An exact match wins immediately; partial matches keep
// the best containment ratio above the floor. The scan deliberately ignores
// time windows: a task whose dates are missing or unparseable is still
// reachable by title, only the embedding stage is window-scoped.
func (e *Engine) titleMatch(task *types.Task, pmTasks []*types.Task, consumed map[string]bool) (candidate, bool) {
	title := NormalizeTitle(task.Title)
	var best candidate
	found := false

	for _, pm := range pmTasks {
		if consumed[pm.ID] {
			continue
		}
		pmTitle := NormalizeTitle(pm.Title)

		if title != "" && title == pmTitle {
			return candidate{task: pm, score: 1.0}, true
		}

		if score := containmentScore(title, pmTitle); score > partialTitleFloor && score > best.score {
			best = candidate{task: pm, score: score}
			found = true
		}
	}
	return best, found
}

// embeddingCandidates scores unconsumed PM tasks in each window against the
// chat vector, applies per-window floors, and caps the survivors per window
// after a global sort by score.
func (e *Engine) embeddingCandidates(chatVec []float64, part timewindow.Partition, consumed map[string]bool) []candidate {
	var all []candidate

	windows := []struct {
		name  string
		tasks []*types.Task
		floor float64
	}{
		{"primary", part.Primary, e.cfg.LowThreshold},
		{"extended", part.Extended, e.cfg.LowThreshold + extendedFloorBump},
		{"distant", part.Distant, e.cfg.SimilarityThreshold},
	}

	for _, w := range windows {
		var pool []*types.Task
		var texts []string
		for _, pm := range w.tasks {
			if consumed[pm.ID] {
				continue
			}
			pool = append(pool, pm)
			texts = append(texts, e.extract.Extract(pm).EmbeddingText)
		}
		if len(pool) == 0 {
			continue
		}

		vectors := e.embed(texts)
		for j, pm := range pool {
			if vectors[j] == nil {
				continue
			}
			score := oracle.CosineSimilarity(chatVec, vectors[j])
			if score >= w.floor {
				all = append(all, candidate{task: pm, score: score, window: w.name})
			}
		}
	}

	// Stable sort keeps window priority as the tie-break.
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })

	caps := map[string]int{
		"primary":  e.cfg.PrimaryCap,
		"extended": e.cfg.ExtendedCap,
		"distant":  e.cfg.DistantCap,
	}
	counts := make(map[string]int)
	var top []candidate
	for _, c := range all {
		if counts[c.window] < caps[c.window] {
			top = append(top, c)
			counts[c.window]++
		}
	}
	return top
}

// verify runs the LLM verdict where warranted and decides the candidate's
// fate. Borderline scores must be confirmed; a verdict below the threshold
// discards the candidate unless the title scan found a partial match — the
// flag survives even when that partial hit was on a different PM task. A
// provider error keeps an already-accepted score but discards a borderline
// one.
func (e *Engine) verify(chatText string, best candidate, exactFound bool) (float64, bool) {
	borderline := best.score >= e.cfg.LowThreshold && best.score < e.cfg.SimilarityThreshold
	accepted := best.score >= e.cfg.SimilarityThreshold

	needsCheck := borderline
	wantsCheck := e.cfg.VerifyAccepted && accepted

	if !needsCheck && !wantsCheck {
		return best.score, true
	}
	if e.verifier == nil {
		if needsCheck {
			return 0, false
		}
		return best.score, true
	}

	pmText := e.extract.Extract(best.task).FullText
	verdict, err := e.verifier.ScoreSimilarity(chatText, pmText)
	if err != nil {
		logging.Warn("match", "verification failed for %s: %v", best.task.ID, err)
		if needsCheck {
			return 0, false
		}
		return best.score, true
	}

	if verdict >= e.cfg.SimilarityThreshold {
		return verdict, true
	}
	if exactFound {
		// Stage-1 partial-title flag, possibly earned by a different PM
		// task than best. It still overrides a hesitant verdict.
		return best.score, true
	}
	logging.Debug("match", "verdict %.2f rejected candidate %s (embedding %.3f)", verdict, best.task.ID, best.score)
	return 0, false
}

// embed resolves texts to vectors through the cache.
func (e *Engine) embed(texts []string) [][]float64 {
	return e.cache.GetOrCreate(texts, e.provider.Embed)
}
