// Package vector provides interfaces and implementations for the knowledge
// vector store.
package vector

import (
	"context"
	"slices"
)

// PayloadText is the payload key holding a document's text.
const PayloadText = "text"

// Document represents a stored knowledge passage with its embedding and payload.
type Document struct {
	// ID is the document identifier. Numeric strings, UUIDs and arbitrary
	// strings are accepted; drivers map them onto their own id space.
	ID string

	// Text is the passage text, stored under the "text" payload key.
	Text string

	// Payload is the document metadata without the text.
	Payload map[string]any

	// Embedding is the vector representation of Text.
	Embedding []float32
}

// QueryResult represents a search result with similarity score.
type QueryResult struct {
	Document

	// Score represents the similarity score (higher = more similar).
	Score float32
}

// QueryOptions bounds a similarity query.
type QueryOptions struct {
	// TopK is the maximum number of results.
	TopK int

	// ScoreThreshold drops results scoring below it when set.
	ScoreThreshold *float32

	// Filter restricts the query to documents whose payload holds each
	// key with exactly the given string value. It is applied before the
	// TopK cut.
	Filter map[string]string
}

// CollectionInfo describes the knowledge collection.
type CollectionInfo struct {
	Name        string `json:"name"`
	VectorSize  uint64 `json:"vector_size"`
	Distance    string `json:"distance"`
	PointsCount uint64 `json:"points_count"`
	Status      string `json:"status,omitempty"`
}

// Driver handles storage and retrieval of vector embeddings.
type Driver interface {
	// Add stores documents with their embeddings.
	// If a document with the same ID already exists, implementers should update
	// the document.
	Add(ctx context.Context, docs []Document) error

	// Query finds the most similar documents to the given embedding.
	Query(ctx context.Context, embedding []float32, opts QueryOptions) ([]QueryResult, error)

	// Get retrieves documents by their IDs.
	Get(ctx context.Context, ids []string) ([]Document, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the driver.
	Close() error
}

// CollectionManager is implemented by drivers that manage their collection
// explicitly.
type CollectionManager interface {
	// EnsureCollection creates the collection when it does not exist.
	EnsureCollection(ctx context.Context) error

	// CreateCollection creates the collection, failing if it exists.
	CreateCollection(ctx context.Context) error

	// DropCollection deletes the collection and all its documents.
	DropCollection(ctx context.Context) error

	// CollectionInfo reports the collection's shape and size.
	CollectionInfo(ctx context.Context) (CollectionInfo, error)
}

// SplitPayload separates the "text" entry from the rest of a stored payload.
// The returned map is a copy and never nil.
func SplitPayload(stored map[string]any) (string, map[string]any) {
	meta := make(map[string]any, len(stored))
	text := ""
	for k, v := range stored {
		if k == PayloadText {
			if s, ok := v.(string); ok {
				text = s
			}
			continue
		}
		meta[k] = v
	}
	return text, meta
}

// JoinPayload builds the stored payload for a document: its metadata plus
// the "text" entry.
func JoinPayload(doc Document) map[string]any {
	stored := make(map[string]any, len(doc.Payload)+1)
	for k, v := range doc.Payload {
		stored[k] = v
	}
	stored[PayloadText] = doc.Text
	return stored
}

// AboveThreshold keeps results whose score is at least threshold. A nil
// threshold keeps everything.
func AboveThreshold(results []QueryResult, threshold *float32) []QueryResult {
	if threshold == nil {
		return results
	}
	kept := results[:0]
	for _, r := range results {
		if r.Score >= *threshold {
			kept = append(kept, r)
		}
	}
	return kept
}

// FilterKeys returns the keys of filter in sorted order.
func FilterKeys(filter map[string]string) []string {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// MatchesFilter reports whether payload holds every filter value.
func MatchesFilter(payload map[string]any, filter map[string]string) bool {
	for k, want := range filter {
		got, ok := payload[k].(string)
		if !ok || got != want {
			return false
		}
	}
	return true
}
