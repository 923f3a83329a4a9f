// Package semantic provides a memory.Driver on a vector store collection.
// Turns are embedded on Store and recalled by similarity to the question.
package semantic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/xeleb-ai/xeleb/pkg/embeddings"
	"github.com/xeleb-ai/xeleb/pkg/memory"
	"github.com/xeleb-ai/xeleb/pkg/vector"
)

// Payload keys of remembered turns.
const (
	PayloadUserID    = "user_id"
	PayloadThreadID  = "thread_id"
	PayloadAgentName = "agent_name"
	PayloadAt        = "at"
	PayloadKind      = "kind"

	kindTurn = "turn"
)

// Driver stores turns in a dedicated vector collection.
type Driver struct {
	embedder  embeddings.Embedder
	vectors   vector.Driver
	threshold *float32
	logger    *slog.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithScoreThreshold drops recalled facts scoring below t.
func WithScoreThreshold(t float32) Option {
	return func(d *Driver) {
		d.threshold = &t
	}
}

// NewDriver creates a semantic memory driver. The vector driver should point
// at a collection separate from the knowledge base.
func NewDriver(embedder embeddings.Embedder, vectors vector.Driver, logger *slog.Logger, opts ...Option) (*Driver, error) {
	if embedder == nil || vectors == nil {
		return nil, errors.New("semantic memory needs an embedder and a vector driver")
	}
	d := &Driver{embedder: embedder, vectors: vectors, logger: logger}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Store embeds the turn text and adds it to the collection.
func (d *Driver) Store(ctx context.Context, turn memory.Turn) error {
	if turn.Question == "" && turn.Answer == "" {
		return nil
	}
	at := turn.At
	if at.IsZero() {
		at = time.Now()
	}

	text := turn.Text()
	emb, err := d.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("%w: %w", vector.ErrEmbedding, err)
	}

	doc := vector.Document{
		ID:   uuid.NewString(),
		Text: text,
		Payload: map[string]any{
			PayloadUserID:    turn.UserID,
			PayloadThreadID:  turn.ThreadID,
			PayloadAgentName: turn.AgentName,
			PayloadAt:        at.UTC().Format(time.RFC3339),
			PayloadKind:      kindTurn,
		},
		Embedding: emb,
	}
	if err := d.vectors.Add(ctx, []vector.Document{doc}); err != nil {
		return fmt.Errorf("storing memory: %w", err)
	}

	d.logger.Debug("turn remembered", "user_id", turn.UserID, "agent", turn.AgentName, "id", doc.ID)
	return nil
}

// Recall embeds query and returns the most similar facts of scope.
func (d *Driver) Recall(ctx context.Context, scope memory.Scope, query string, limit int) ([]memory.Fact, error) {
	if limit <= 0 || query == "" {
		return nil, nil
	}

	emb, err := d.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrEmbedding, err)
	}

	hits, err := d.vectors.Query(ctx, emb, vector.QueryOptions{
		TopK:           limit,
		ScoreThreshold: d.threshold,
		Filter: map[string]string{
			PayloadUserID:    scope.UserID,
			PayloadAgentName: scope.AgentName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("recalling memory: %w", err)
	}

	facts := make([]memory.Fact, 0, limit)
	for _, h := range hits {
		f := memory.Fact{Content: h.Text, Score: h.Score}
		f.ThreadID, _ = h.Payload[PayloadThreadID].(string)
		if s, ok := h.Payload[PayloadAt].(string); ok {
			f.At, _ = time.Parse(time.RFC3339, s)
		}
		facts = append(facts, f)
		if len(facts) == limit {
			break
		}
	}
	return facts, nil
}

// Close closes the vector driver.
func (d *Driver) Close() error {
	return d.vectors.Close()
}
