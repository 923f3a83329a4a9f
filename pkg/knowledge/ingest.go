// Package knowledge loads markdown knowledge files into the vector store and
// keeps them in sync.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xeleb-ai/xeleb/pkg/embeddings"
	"github.com/xeleb-ai/xeleb/pkg/metrics"
	"github.com/xeleb-ai/xeleb/pkg/vector"
)

const (
	markdownExt = ".md"

	defaultConcurrency = 4
	defaultRatePerSec  = 5
)

// ErrNoDirectory is returned when the knowledge directory does not exist.
var ErrNoDirectory = errors.New("knowledge directory not found")

// FileResult is the outcome of ingesting one file.
type FileResult struct {
	Filename string `json:"filename"`
	Path     string `json:"file_path"`
	ID       uint64 `json:"id"`
	Skipped  bool   `json:"skipped,omitempty"`
	Error    string `json:"error,omitempty"`
}

// OK reports whether the file was stored or deliberately skipped.
func (r FileResult) OK() bool {
	return r.Error == ""
}

// Report summarizes a directory ingestion.
type Report struct {
	Dir       string       `json:"dir"`
	Files     []FileResult `json:"files"`
	Succeeded int          `json:"succeeded"`
	Skipped   int          `json:"skipped"`
	Failed    int          `json:"failed"`
}

// OK is true when every file was stored or skipped.
func (r *Report) OK() bool {
	return r.Failed == 0
}

// Ingester embeds knowledge texts and upserts them into a vector store.
type Ingester struct {
	embedder    embeddings.Embedder
	driver      vector.Driver
	limiter     *rate.Limiter
	concurrency int
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithConcurrency bounds the number of files processed at once.
func WithConcurrency(n int) Option {
	return func(i *Ingester) {
		if n > 0 {
			i.concurrency = n
		}
	}
}

// WithRateLimit bounds embedding calls per second. Zero or less disables the
// limit.
func WithRateLimit(perSec float64) Option {
	return func(i *Ingester) {
		if perSec <= 0 {
			i.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		i.limiter = rate.NewLimiter(rate.Limit(perSec), max(1, int(perSec)))
	}
}

// WithMetrics counts processed documents.
func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Ingester) {
		i.metrics = m
	}
}

// NewIngester creates an Ingester.
func NewIngester(embedder embeddings.Embedder, driver vector.Driver, logger *slog.Logger, opts ...Option) *Ingester {
	i := &Ingester{
		embedder:    embedder,
		driver:      driver,
		concurrency: defaultConcurrency,
		limiter:     rate.NewLimiter(rate.Limit(defaultRatePerSec), defaultRatePerSec),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// IsKnowledgeFile reports whether path names a markdown knowledge file.
func IsKnowledgeFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), markdownExt)
}

// IngestDirectory stores every markdown file directly inside dir. Failures
// are reported per file; the error is only set when dir cannot be read or
// ctx is cancelled.
func (i *Ingester) IngestDirectory(ctx context.Context, dir string) (*Report, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoDirectory, dir)
		}
		return nil, fmt.Errorf("reading knowledge directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !IsKnowledgeFile(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	i.logger.Info("ingesting knowledge directory", "dir", dir, "files", len(paths))

	results := make([]FileResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency)
	for idx, path := range paths {
		g.Go(func() error {
			results[idx] = i.IngestFile(gctx, path)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{Dir: dir, Files: results}
	for _, r := range results {
		switch {
		case !r.OK():
			report.Failed++
		case r.Skipped:
			report.Skipped++
		default:
			report.Succeeded++
		}
	}

	i.logger.Info("knowledge directory ingested",
		"dir", dir,
		"succeeded", report.Succeeded,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)

	return report, nil
}

// IngestFile converts one markdown file and upserts it under DocID(name).
// Empty documents are skipped.
func (i *Ingester) IngestFile(ctx context.Context, path string) FileResult {
	name := filepath.Base(path)
	res := FileResult{Filename: name, Path: path, ID: DocID(name)}

	raw, err := os.ReadFile(path)
	if err != nil {
		res.Error = fmt.Sprintf("reading file: %v", err)
		i.fileFailed(res)
		return res
	}

	content := MarkdownToText(raw)
	if content == "" {
		res.Skipped = true
		i.metrics.Ingested("skipped")
		i.logger.Debug("skipping empty knowledge file", "file", name)
		return res
	}

	err = i.IngestText(ctx, strconv.FormatUint(res.ID, 10), content, map[string]any{
		"filename":  name,
		"file_path": path,
	})
	if err != nil {
		res.Error = err.Error()
		i.fileFailed(res)
		return res
	}

	i.metrics.Ingested("ok")
	i.logger.Debug("ingested knowledge file", "file", name, "id", res.ID)
	return res
}

func (i *Ingester) fileFailed(res FileResult) {
	i.metrics.Ingested("failed")
	i.logger.Error("failed to ingest knowledge file", "file", res.Filename, "error", res.Error)
}

// IngestText embeds text and upserts it with metadata under id.
func (i *Ingester) IngestText(ctx context.Context, id, text string, metadata map[string]any) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("cannot ingest empty text")
	}

	if err := i.limiter.Wait(ctx); err != nil {
		return err
	}

	emb, err := i.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embedding %s: %w", id, err)
	}

	payload := make(map[string]any, len(metadata))
	for k, v := range metadata {
		if k == vector.PayloadText {
			continue
		}
		payload[k] = v
	}

	if err := i.driver.Add(ctx, []vector.Document{{
		ID:        id,
		Text:      text,
		Payload:   payload,
		Embedding: emb,
	}}); err != nil {
		return fmt.Errorf("storing %s: %w", id, err)
	}
	return nil
}

// DeleteDocuments removes documents by id.
func (i *Ingester) DeleteDocuments(ctx context.Context, ids []string) error {
	if err := i.driver.Delete(ctx, ids); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}
	i.logger.Info("deleted knowledge documents", "count", len(ids))
	return nil
}

// RemoveFile deletes the document stored for a knowledge file.
func (i *Ingester) RemoveFile(ctx context.Context, path string) error {
	id := strconv.FormatUint(DocID(filepath.Base(path)), 10)
	return i.DeleteDocuments(ctx, []string{id})
}
