package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"tasksync/internal/batch"
	"tasksync/internal/config"
	"tasksync/internal/embcache"
	"tasksync/internal/extractor"
	"tasksync/internal/match"
	"tasksync/internal/oracle"
	"tasksync/internal/report"
	"tasksync/internal/summarize"
	"tasksync/internal/timewindow"
	"tasksync/internal/types"
)

func main() {
	log.Println("tasksync - chat/PM task reconciliation")

	// Load .env file (optional - won't error if missing)
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, using environment variables")
	} else {
		log.Println("[config] Loaded .env file")
	}

	statePath := os.Getenv("STATE_PATH")
	if statePath == "" {
		statePath = "state"
	}
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	chatPath := os.Getenv("CHAT_TASKS")
	pmPath := os.Getenv("PM_TASKS")
	transcriptPath := os.Getenv("TRANSCRIPT")
	reportPath := os.Getenv("REPORT_PATH")
	if reportPath == "" {
		reportPath = filepath.Join(statePath, "reports", fmt.Sprintf("sync_%s.json", time.Now().UTC().Format("20060102_150405")))
	}

	if chatPath == "" || pmPath == "" {
		log.Fatal("CHAT_TASKS and PM_TASKS environment variables required")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if url := os.Getenv("PROVIDER_URL"); url != "" {
		cfg.ProviderURL = url
	}
	if model := os.Getenv("EMBED_MODEL"); model != "" {
		cfg.EmbedModel = model
	}
	if model := os.Getenv("GEN_MODEL"); model != "" {
		cfg.GenModel = model
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	os.MkdirAll(statePath, 0755)

	chatTasks, err := loadTasks(chatPath, types.SourceChat)
	if err != nil {
		log.Fatalf("Failed to load chat tasks: %v", err)
	}
	pmTasks, err := loadTasks(pmPath, types.SourcePM)
	if err != nil {
		log.Fatalf("Failed to load PM tasks: %v", err)
	}
	log.Printf("[main] Loaded %d chat tasks, %d PM tasks", len(chatTasks), len(pmTasks))

	client := oracle.NewClient(cfg.ProviderURL, cfg.EmbedModel, cfg.GenModel)

	cache := embcache.New(statePath, cfg.EmbedModel, cfg.FlushEvery)
	cache.SetBatchSize(cfg.EmbedBatchSize)
	if err := cache.Load(); err != nil {
		log.Printf("Warning: failed to load embedding cache: %v", err)
	}

	// Optional transcript compression: the rolling digest backfills context
	// for chat tasks extracted without one.
	if transcriptPath != "" {
		if err := compressTranscript(statePath, transcriptPath, cfg, client, chatTasks); err != nil {
			log.Printf("Warning: transcript compression failed: %v", err)
		}
	}

	ext := extractor.New()

	// Pre-digest PM task notes so embeddings compare against compact text.
	if os.Getenv("SUMMARIZE_TASKS") == "true" {
		runner := batch.NewRunner(batch.NewLocalSubmitter(client), batch.SystemClock{}, 0, 0)
		digests, err := batch.NewTaskSummarizer(runner, client).Summarize(pmTasks)
		if err != nil {
			log.Printf("Warning: task digestion failed: %v", err)
		} else {
			log.Printf("[main] Digested %d PM tasks", len(digests))
			ext.SetDigests(digests)
		}
	}

	windows := timewindow.NewMatcher(cfg.PrimaryWindowDays, cfg.ExtendedWindowDays, cfg.DistantWindowDays)
	engine := match.NewEngine(match.Config{
		SimilarityThreshold: cfg.SimilarityThreshold,
		LowThreshold:        cfg.LowThreshold,
		VerifyAccepted:      cfg.VerifyAccepted,
		PrimaryCap:          cfg.PrimaryCap,
		ExtendedCap:         cfg.ExtendedCap,
		DistantCap:          cfg.DistantCap,
	}, windows, cache, client, client, ext)

	result := engine.Match(chatTasks, pmTasks)

	rep := report.Generate(result, chatTasks, pmTasks, ext)
	if err := rep.Save(reportPath); err != nil {
		log.Fatalf("Failed to save report: %v", err)
	}

	if err := cache.Flush(); err != nil {
		log.Printf("Warning: failed to flush embedding cache: %v", err)
	}
	stats := cache.Stats()
	log.Printf("[main] Embedding cache: %d entries, %d hits, %d misses, %d saves",
		stats.Entries, stats.Hits, stats.Misses, stats.Saves)

	log.Printf("[main] Matched %d/%d chat tasks (%.1f%% coverage), report: %s",
		rep.Summary.MatchedTasks, rep.Summary.TotalChatTasks, rep.Summary.CoveragePercentage, reportPath)
}

// loadTasks reads a JSON array of tasks and stamps their source.
func loadTasks(path string, source types.Source) ([]*types.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var tasks []*types.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for _, task := range tasks {
		task.Source = source
	}
	return tasks, nil
}

// compressTranscript runs the sliding-window summarizer over the transcript
// and uses the digest as fallback context for chat tasks that have none.
func compressTranscript(statePath, transcriptPath string, cfg config.Config, gen summarize.Generator, chatTasks []*types.Task) error {
	data, err := os.ReadFile(transcriptPath)
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}

	store, err := summarize.OpenStore(statePath)
	if err != nil {
		return err
	}
	defer store.Close()

	threadID := filepath.Base(transcriptPath)
	s := summarize.NewSummarizer(store, gen, cfg.MaxChunkChars, cfg.SlidingWindow)
	digest, err := s.Compress(threadID, string(data))
	if err != nil {
		return err
	}
	log.Printf("[main] Transcript digest: %d chars from %d chars", len(digest), len(data))

	for _, task := range chatTasks {
		if task.FreeContext == "" {
			task.FreeContext = digest
		}
	}
	return nil
}
