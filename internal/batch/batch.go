// Package batch fans a list of input image paths out across a bounded
// worker pool, driving the search controller for each and collecting
// the resulting metadata. Each worker owns its source image, candidate
// bytes, and intermediate buffers; what workers share is the bounded
// semaphore, the log sink, the mutex-guarded result slice, and the
// optional resume cache.
package batch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/gwlsn/webpq/internal/logger"
	"github.com/gwlsn/webpq/internal/model"
	"github.com/gwlsn/webpq/internal/search"
	"github.com/gwlsn/webpq/internal/store"
)

// Decoder turns raw file bytes into a decoded SourceImage.
type Decoder interface {
	Decode(data []byte) (model.SourceImage, error)
}

// Searcher drives the quantization search for one source image.
type Searcher interface {
	Search(ctx context.Context, source model.SourceImage) ([]byte, model.OutMeta, error)
}

// Driver owns the decoder and searcher collaborators and the output
// directory layout for one batch run. Cache is optional: when nil, no
// resume lookups or writes happen and every input is reprocessed.
type Driver struct {
	Decoder    Decoder
	Searcher   Searcher
	OutputRoot string
	Workers    int
	Cache      store.Cache
}

// New builds a Driver. workers <= 0 is treated as 1.
func New(decoder Decoder, searcher Searcher, outputRoot string, workers int) *Driver {
	if workers <= 0 {
		workers = 1
	}
	return &Driver{Decoder: decoder, Searcher: searcher, OutputRoot: outputRoot, Workers: workers}
}

// Run processes paths concurrently, bounded by d.Workers, and returns
// the OutMeta records for every image that produced output. Per-image
// failures are logged and excluded from the result rather than
// aborting the run; order of the returned slice is not guaranteed to
// match paths.
func (d *Driver) Run(ctx context.Context, paths []string) ([]model.OutMeta, error) {
	sink := NewLogSink(os.Stdout)
	defer sink.Close()

	sem := semaphore.NewWeighted(int64(d.Workers))

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make([]model.OutMeta, 0, len(paths))
	)

	for _, path := range paths {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context canceled: stop launching new workers, let the ones
			// already running finish.
			break
		}

		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			defer sem.Release(1)

			meta, err := d.processOne(ctx, path)
			sink.Submit(path, meta, err)
			if err != nil {
				if search.IsFatal(err) {
					logger.Error("image failed, encoder or configuration error", "path", path, "error", err)
				} else {
					logger.Warn("image failed", "path", path, "error", err)
				}
				return
			}

			mu.Lock()
			results = append(results, meta)
			mu.Unlock()
		}(path)
	}

	wg.Wait()
	return results, nil
}

// processOne reads, decodes, searches, and writes the output for a
// single input path, returning its OutMeta with InputPath/OutputPath
// filled in.
func (d *Driver) processOne(ctx context.Context, path string) (model.OutMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.OutMeta{}, fmt.Errorf("%w: reading %s: %v", ErrIOFailure, path, err)
	}

	hash := contentHash(data)
	if d.Cache != nil {
		if rec, ok, err := d.Cache.Lookup(path, hash); err != nil {
			logger.Warn("resume cache lookup failed", "path", path, "error", err)
		} else if ok {
			if _, statErr := os.Stat(rec.Meta.OutputPath); statErr == nil {
				logger.Info("resume cache hit", "path", path)
				return rec.Meta, nil
			}
		}
	}

	src, err := d.Decoder.Decode(data)
	if err != nil {
		return model.OutMeta{}, fmt.Errorf("%w: decoding %s: %v", ErrInvalidInput, path, err)
	}

	candidate, meta, err := d.Searcher.Search(ctx, src)
	if err != nil {
		return model.OutMeta{}, fmt.Errorf("searching %s: %w", path, err)
	}

	outPath := d.outputPath(meta.Class, path)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return model.OutMeta{}, fmt.Errorf("%w: creating output dir for %s: %v", ErrIOFailure, outPath, err)
	}
	if err := os.WriteFile(outPath, candidate, 0o644); err != nil {
		return model.OutMeta{}, fmt.Errorf("%w: writing %s: %v", ErrIOFailure, outPath, err)
	}

	meta.InputPath = path
	meta.OutputPath = outPath
	meta.BytesIn = int64(len(data))
	meta.BytesOut = int64(len(candidate))

	if d.Cache != nil {
		if err := d.Cache.Put(store.Record{InputPath: path, ContentHash: hash, Meta: meta}); err != nil {
			logger.Warn("resume cache write failed", "path", path, "error", err)
		}
	}

	return meta, nil
}

// contentHash returns a hex-encoded sha256 digest of data, used to
// detect when a cached input path's bytes have changed since the
// cached result was recorded.
func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// outputPath implements the <output_root>/<class>/<stem>.webp layout.
func (d *Driver) outputPath(class model.Class, inputPath string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(d.OutputRoot, string(class), stem+".webp")
}

// WriteAggregate serializes metas as a pretty-printed JSON array to
// <output_root>/data.json.
func WriteAggregate(outputRoot string, metas []model.OutMeta) error {
	path := filepath.Join(outputRoot, "data.json")
	payload, err := json.MarshalIndent(metas, "", "  ")
	if err != nil {
		return fmt.Errorf("batch: marshaling aggregate: %w", err)
	}
	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return fmt.Errorf("%w: creating output root: %v", ErrIOFailure, err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrIOFailure, path, err)
	}
	return nil
}
