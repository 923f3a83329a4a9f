// Package chroma provides a Chroma vector database driver implementation.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/xeleb-ai/xeleb/pkg/vector"
)

const (
	// DefaultCollectionName is the default collection name for knowledge passages.
	DefaultCollectionName = "knowledgebase"

	defaultMaxRetries    = 5
	defaultRetryDelay    = 500 * time.Millisecond
	defaultMaxRetryDelay = 5 * time.Second

	collectionsPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"
)

// Driver implements vector.Driver and vector.CollectionManager using Chroma's
// REST API.
type Driver struct {
	baseURL        string
	collectionName string
	collectionID   string
	dimensions     uint
	httpClient     *http.Client
	logger         *slog.Logger
}

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// CollectionName is the name of the collection to use.
	// Defaults to DefaultCollectionName if empty.
	CollectionName string

	// Dimensions is reported by CollectionInfo. Chroma infers it on first add.
	Dimensions uint

	// MaxRetries bounds the attempts made while Chroma is starting up.
	MaxRetries int

	// RetryDelay is the first backoff delay, doubled on every attempt up to
	// MaxRetryDelay.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// NewDriver creates a new Chroma vector driver. The collection is fetched or
// created, retrying with exponential backoff while the server is unavailable.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if c.URL == "" {
		return nil, errors.New("chroma URL is required")
	}

	collectionName := c.CollectionName
	if collectionName == "" {
		collectionName = DefaultCollectionName
	}

	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	delay := c.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	maxDelay := c.MaxRetryDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxRetryDelay
	}

	d := &Driver{
		baseURL:        strings.TrimRight(c.URL, "/"),
		collectionName: collectionName,
		dimensions:     c.Dimensions,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		collectionID, err := d.getOrCreateCollection(context.Background())
		if err == nil {
			d.collectionID = collectionID
			logger.Info("connected to Chroma",
				"url", c.URL,
				"collection", collectionName,
				"collection_id", collectionID,
			)
			return d, nil
		}

		lastErr = err
		logger.Warn("chroma not ready, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		if attempt < maxRetries {
			time.Sleep(delay)
			delay = min(delay*2, maxDelay)
		}
	}

	return nil, fmt.Errorf("getting or creating collection %q after %d attempts: %w", collectionName, maxRetries, lastErr)
}

func (d *Driver) collectionURL(suffix string) string {
	return d.baseURL + collectionsPath + "/" + d.collectionID + suffix
}

// do sends a JSON request and decodes a JSON response into out when non-nil.
func (d *Driver) do(ctx context.Context, method, url string, body, out any, okStatus ...int) (int, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", vector.ErrConnection, err)
	}
	defer resp.Body.Close()

	if len(okStatus) == 0 {
		okStatus = []int{http.StatusOK}
	}
	ok := false
	for _, s := range okStatus {
		if resp.StatusCode == s {
			ok = true
			break
		}
	}
	if !ok {
		data, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (d *Driver) getCollection(ctx context.Context) (*chromaCollection, error) {
	var collection chromaCollection
	status, err := d.do(ctx, http.MethodGet, d.baseURL+collectionsPath+"/"+d.collectionName, nil, &collection)
	if err != nil {
		if status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: collection %s", vector.ErrNotFound, d.collectionName)
		}
		return nil, err
	}
	return &collection, nil
}

func (d *Driver) createCollection(ctx context.Context) (*chromaCollection, error) {
	var collection chromaCollection
	_, err := d.do(ctx, http.MethodPost, d.baseURL+collectionsPath,
		chromaCreateRequest{
			Name:     d.collectionName,
			Metadata: map[string]any{"hnsw:space": "cosine"},
		},
		&collection, http.StatusOK, http.StatusCreated)
	if err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}
	return &collection, nil
}

// getOrCreateCollection gets an existing collection or creates a new one.
func (d *Driver) getOrCreateCollection(ctx context.Context) (string, error) {
	collection, err := d.getCollection(ctx)
	if err == nil {
		return collection.ID, nil
	}

	collection, err = d.createCollection(ctx)
	if err != nil {
		return "", err
	}
	return collection.ID, nil
}

// EnsureCollection gets or creates the collection.
func (d *Driver) EnsureCollection(ctx context.Context) error {
	id, err := d.getOrCreateCollection(ctx)
	if err != nil {
		return err
	}
	d.collectionID = id
	return nil
}

// CreateCollection creates the collection, failing if it already exists.
func (d *Driver) CreateCollection(ctx context.Context) error {
	if _, err := d.getCollection(ctx); err == nil {
		return fmt.Errorf("%w: %s", vector.ErrCollectionExists, d.collectionName)
	}
	collection, err := d.createCollection(ctx)
	if err != nil {
		return err
	}
	d.collectionID = collection.ID
	return nil
}

// DropCollection deletes the collection.
func (d *Driver) DropCollection(ctx context.Context) error {
	_, err := d.do(ctx, http.MethodDelete, d.baseURL+collectionsPath+"/"+d.collectionName, nil, nil)
	if err != nil {
		return fmt.Errorf("dropping collection: %w", err)
	}
	d.logger.Info("dropped chroma collection", "collection", d.collectionName)
	return nil
}

// CollectionInfo reports the collection's document count.
func (d *Driver) CollectionInfo(ctx context.Context) (vector.CollectionInfo, error) {
	info := vector.CollectionInfo{
		Name:       d.collectionName,
		VectorSize: uint64(d.dimensions),
		Distance:   "Cosine",
	}

	if _, err := d.getCollection(ctx); err != nil {
		return info, err
	}

	var count uint64
	if _, err := d.do(ctx, http.MethodGet, d.collectionURL("/count"), nil, &count); err != nil {
		return info, fmt.Errorf("counting documents: %w", err)
	}
	info.PointsCount = count
	info.Status = "green"
	return info, nil
}

// Add upserts documents with their embeddings. The text goes to Chroma's
// documents field and the payload to metadata.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	req := chromaUpsertRequest{
		IDs:        make([]string, len(docs)),
		Embeddings: make([][]float32, len(docs)),
		Metadatas:  make([]map[string]any, len(docs)),
		Documents:  make([]string, len(docs)),
	}

	for i, doc := range docs {
		req.IDs[i] = doc.ID
		req.Embeddings[i] = doc.Embedding
		req.Documents[i] = doc.Text
		if len(doc.Payload) > 0 {
			req.Metadatas[i] = doc.Payload
		} else {
			req.Metadatas[i] = nil
		}
	}

	if _, err := d.do(ctx, http.MethodPost, d.collectionURL("/upsert"), req, nil, http.StatusOK, http.StatusCreated); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}

	d.logger.Debug("added documents to chroma", "count", len(docs))

	return nil
}

// Query finds the most similar documents to the given embedding.
// WhereClause renders filter as a Chroma metadata filter. Several keys are
// combined with $and. An empty filter returns nil.
func WhereClause(filter map[string]string) map[string]any {
	keys := vector.FilterKeys(filter)
	switch len(keys) {
	case 0:
		return nil
	case 1:
		return map[string]any{keys[0]: filter[keys[0]]}
	}
	clauses := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		clauses = append(clauses, map[string]any{k: filter[k]})
	}
	return map[string]any{"$and": clauses}
}

func (d *Driver) Query(ctx context.Context, embedding []float32, opts vector.QueryOptions) ([]vector.QueryResult, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = 10
	}

	var queryResp chromaQueryResponse
	_, err := d.do(ctx, http.MethodPost, d.collectionURL("/query"), chromaQueryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        topK,
		Include:         []string{"metadatas", "documents", "distances"},
		Where:           WhereClause(opts.Filter),
	}, &queryResp)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	results := []vector.QueryResult{}

	// Only one query embedding is sent, so only the first group matters.
	if len(queryResp.IDs) == 0 || len(queryResp.IDs[0]) == 0 {
		return results, nil
	}

	ids := queryResp.IDs[0]
	var distances []float32
	if len(queryResp.Distances) > 0 {
		distances = queryResp.Distances[0]
	}
	var metadatas []map[string]any
	if len(queryResp.Metadatas) > 0 {
		metadatas = queryResp.Metadatas[0]
	}
	var documents []string
	if len(queryResp.Documents) > 0 {
		documents = queryResp.Documents[0]
	}

	for i, id := range ids {
		result := vector.QueryResult{
			Document: vector.Document{ID: id, Payload: map[string]any{}},
		}
		if i < len(metadatas) && metadatas[i] != nil {
			result.Payload = metadatas[i]
		}
		if i < len(documents) {
			result.Text = documents[i]
		}
		// Lower distance = higher similarity
		if i < len(distances) {
			result.Score = 1.0 / (1.0 + distances[i])
		}
		results = append(results, result)
	}

	results = vector.AboveThreshold(results, opts.ScoreThreshold)

	d.logger.Debug("queried chroma", "results", len(results))

	return results, nil
}

// Get retrieves documents by their IDs.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var getResp chromaGetResponse
	_, err := d.do(ctx, http.MethodPost, d.collectionURL("/get"), chromaGetRequest{
		IDs:     ids,
		Include: []string{"metadatas", "documents", "embeddings"},
	}, &getResp)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents: %w", err)
	}

	docs := make([]vector.Document, len(getResp.IDs))
	for i, id := range getResp.IDs {
		docs[i] = vector.Document{ID: id, Payload: map[string]any{}}
		if i < len(getResp.Metadatas) && getResp.Metadatas[i] != nil {
			docs[i].Payload = getResp.Metadatas[i]
		}
		if i < len(getResp.Documents) {
			docs[i].Text = getResp.Documents[i]
		}
		if i < len(getResp.Embeddings) {
			docs[i].Embedding = getResp.Embeddings[i]
		}
	}

	return docs, nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if _, err := d.do(ctx, http.MethodPost, d.collectionURL("/delete"), chromaDeleteRequest{IDs: ids}, nil); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}

	d.logger.Debug("deleted documents from chroma", "count", len(ids))

	return nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return nil
}
