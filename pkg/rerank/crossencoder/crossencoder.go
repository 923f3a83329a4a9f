// Package crossencoder calls an external cross-encoder rerank service. The
// request and response follow the /v1/rerank shape shared by Jina, Cohere,
// SiliconFlow and Hugging Face TEI style servers.
package crossencoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xeleb-ai/xeleb/pkg/rerank"
)

const (
	// DefaultModel is a small MS MARCO cross-encoder.
	DefaultModel = "ms-marco-MiniLM-L-12-v2"

	defaultTimeout = 10 * time.Second
)

// Config configures the rerank client.
type Config struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// Reranker is a rerank.Reranker backed by a cross-encoder HTTP service.
type Reranker struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float32 `json:"relevance_score"`
	} `json:"results"`
}

// New creates a cross-encoder reranker.
func New(cfg Config) (*Reranker, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("cross-encoder rerank URL is required")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	endpoint := strings.TrimRight(cfg.BaseURL, "/")
	if strings.HasSuffix(endpoint, "/v1") {
		endpoint += "/rerank"
	} else if !strings.HasSuffix(endpoint, "/rerank") {
		endpoint += "/v1/rerank"
	}

	return &Reranker{
		endpoint: endpoint,
		model:    model,
		apiKey:   cfg.APIKey,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Name implements rerank.Reranker.
func (r *Reranker) Name() string {
	return "crossencoder"
}

// Rerank scores every passage and returns them by descending relevance.
// Passages the service leaves out are dropped.
func (r *Reranker) Rerank(ctx context.Context, query string, passages []rerank.Passage) ([]rerank.Passage, error) {
	if len(passages) == 0 {
		return []rerank.Passage{}, nil
	}

	docs := make([]string, len(passages))
	for i, p := range passages {
		docs[i] = p.Text
	}

	body, err := json.Marshal(rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: docs,
		TopN:      len(docs),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", rerank.ErrRerank, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", rerank.ErrRerank, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rerank.ErrRerank, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: HTTP %d: %s", rerank.ErrRerank, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var result rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", rerank.ErrRerank, err)
	}

	out := make([]rerank.Passage, 0, len(result.Results))
	seen := make(map[int]bool, len(result.Results))
	for _, res := range result.Results {
		if res.Index < 0 || res.Index >= len(passages) || seen[res.Index] {
			continue
		}
		seen[res.Index] = true
		p := passages[res.Index]
		p.Score = res.Score
		out = append(out, p)
	}

	rerank.SortByScore(out)
	return out, nil
}

var _ rerank.Reranker = (*Reranker)(nil)
