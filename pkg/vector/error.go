package vector

import "errors"

var (
	// ErrNotFound is returned when a document is not found in the vector store.
	ErrNotFound = errors.New("document not found")

	// ErrEmbedding is returned when embedding generation fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")

	// ErrCollectionExists is returned when creating a collection that exists.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrDimensionMismatch is returned when an embedding does not match the
	// collection's vector size.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
