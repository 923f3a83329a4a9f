// Package memory provides a pluggable long-term memory layer for persona
// agents.
//
// Conversation memory (pkg/conversation) keeps the raw messages of a thread.
// This layer keeps answered turns as facts that can be recalled across
// threads: when a user comes back to an agent in a new thread, facts relevant
// to the new question are added to the agent's context.
//
// Drivers are pluggable via configuration:
//
//	[vector_store]
//	memory_collection = "xeleb_memory"   # semantic driver; empty uses local
package memory

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Driver handles storage and recall of agent memory.
type Driver interface {
	// Store remembers one answered turn. Called asynchronously by the worker
	// pool after the turn is stored in conversation memory.
	Store(ctx context.Context, turn Turn) error

	// Recall returns up to limit facts from scope relevant to query, most
	// relevant first.
	Recall(ctx context.Context, scope Scope, query string, limit int) ([]Fact, error)

	// Close releases driver resources.
	Close() error
}

// Scope limits recall to what one user told one agent.
type Scope struct {
	UserID    string `json:"user_id"`
	AgentName string `json:"agent_name"`
}

// Turn is one question and its answer.
type Turn struct {
	UserID    string
	ThreadID  string
	AgentName string
	Question  string
	Answer    string
	At        time.Time
}

// Scope returns the recall scope the turn belongs to.
func (t Turn) Scope() Scope {
	return Scope{UserID: t.UserID, AgentName: t.AgentName}
}

// Text renders the turn as the fact stored for it.
func (t Turn) Text() string {
	return fmt.Sprintf("User: %s\nAssistant: %s", strings.TrimSpace(t.Question), strings.TrimSpace(t.Answer))
}

// Fact is a remembered piece of a past conversation.
type Fact struct {
	Content  string    `json:"content"`
	ThreadID string    `json:"thread_id,omitempty"`
	At       time.Time `json:"at,omitzero"`
	Score    float32   `json:"score,omitempty"`
}

// Format renders facts as a context block for the chat model. No facts
// render as the empty string.
func Format(facts []Fact) string {
	if len(facts) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range facts {
		b.WriteString("- ")
		b.WriteString(strings.ReplaceAll(f.Content, "\n", " | "))
		b.WriteByte('\n')
	}
	return b.String()
}
