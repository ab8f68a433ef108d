package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/gwlsn/webpq/internal/batch"
	"github.com/gwlsn/webpq/internal/classify"
	"github.com/gwlsn/webpq/internal/config"
	"github.com/gwlsn/webpq/internal/imagedecode"
	"github.com/gwlsn/webpq/internal/logger"
	"github.com/gwlsn/webpq/internal/model"
	"github.com/gwlsn/webpq/internal/scorer"
	"github.com/gwlsn/webpq/internal/search"
	"github.com/gwlsn/webpq/internal/store"
	"github.com/gwlsn/webpq/internal/vmaf"
	"github.com/gwlsn/webpq/internal/webpcodec"
)

func main() {
	configPath := flag.String("config", "config/webpq.yaml", "Path to config file")
	outputOverride := flag.String("output", "", "Override output_root from config")
	workersOverride := flag.Int("workers", 0, "Override workers from config (0 = use config)")
	resumeOverride := flag.Bool("resume", false, "Enable the resume cache for this run")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("Warning: could not load config from %s: %v", *configPath, err)
		cfg = config.DefaultConfig()
	}

	if *outputOverride != "" {
		cfg.OutputRoot = *outputOverride
	}
	if *workersOverride > 0 {
		cfg.Workers = *workersOverride
	}
	if *resumeOverride {
		cfg.Resume = true
	}

	logger.Init(cfg.LogLevel)

	paths, err := resolveInputs(cfg.Inputs, flag.Args())
	if err != nil {
		log.Fatalf("resolving inputs: %v", err)
	}
	if len(paths) == 0 {
		log.Fatalf("no input images found (check config.inputs or pass paths as arguments)")
	}

	fmt.Println("webpq: perceptual-quality-driven WebP transcoder")
	fmt.Printf("  output:  %s\n", cfg.OutputRoot)
	fmt.Printf("  inputs:  %d images\n", len(paths))
	fmt.Printf("  workers: %d\n", cfg.Workers)
	fmt.Printf("  resume:  %v\n", cfg.Resume)
	fmt.Println()

	vmaf.DetectVMAF(cfg.FFmpegPath)
	if !vmaf.IsAvailable() {
		log.Fatalf("ffmpeg at %s does not report libvmaf support", cfg.FFmpegPath)
	}

	run := model.RunMeta{RunID: uuid.New().String(), StartedAt: time.Now()}
	runLog := logger.WithRun(run.RunID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		runLog.Warn("received shutdown signal, waiting for in-flight images to finish")
		cancel()
	}()

	controller := search.New(
		classify.NewHeuristicClassifier(),
		webpcodec.Adapter{},
		scorer.New(cfg.FFmpegPath, cfg.ScratchDir()),
	)

	driver := batch.New(imagedecodeAdapter{}, controller, cfg.OutputRoot, cfg.Workers)

	if cfg.Resume {
		cache, err := store.NewSQLiteCache(cfg.CacheFile())
		if err != nil {
			log.Fatalf("opening resume cache: %v", err)
		}
		defer cache.Close()
		driver.Cache = cache
	}

	results, err := driver.Run(ctx, paths)
	if err != nil {
		log.Fatalf("batch run failed: %v", err)
	}
	run.EndedAt = time.Now()
	runLog.Info("batch run finished", "images", len(paths), "results", len(results))

	for _, r := range results {
		if r.Passed {
			run.Passed++
		} else {
			run.Fallback++
		}
		run.BytesIn += r.BytesIn
		run.BytesOut += r.BytesOut
	}
	run.Failed = len(paths) - len(results)

	if err := batch.WriteAggregate(cfg.OutputRoot, results); err != nil {
		log.Fatalf("writing aggregate metadata: %v", err)
	}

	fmt.Println()
	fmt.Printf("run %s complete in %s\n", run.RunID, run.EndedAt.Sub(run.StartedAt).Round(time.Millisecond))
	fmt.Printf("  passed:   %d\n", run.Passed)
	fmt.Printf("  fallback: %d\n", run.Fallback)
	fmt.Printf("  failed:   %d\n", run.Failed)
	if run.BytesSaved() > 0 {
		fmt.Printf("  saved:    %s\n", humanize.Bytes(uint64(run.BytesSaved())))
	}

	if run.Failed > 0 && run.Passed == 0 && run.Fallback == 0 {
		os.Exit(1)
	}
}

// resolveInputs expands globs and de-duplicates configured and
// command-line input paths into a list of existing files, in the order
// they are first seen (configured patterns before arguments). The list
// is not sorted as a whole; paths that do not exist are dropped.
func resolveInputs(configured, args []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string

	for _, pattern := range append(append([]string{}, configured...), args...) {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid glob %q: %w", pattern, err)
		}
		if matches == nil {
			// Not a glob pattern, or no matches: treat as a literal path.
			matches = []string{pattern}
		}
		for _, m := range matches {
			if _, err := os.Stat(m); err != nil {
				continue
			}
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}

	return out, nil
}

// imagedecodeAdapter satisfies batch.Decoder by forwarding to the
// package-level imagedecode.Decode function.
type imagedecodeAdapter struct{}

func (imagedecodeAdapter) Decode(data []byte) (model.SourceImage, error) {
	return imagedecode.Decode(data)
}
