// Package rerankutils builds the configured Reranker.
package rerankutils

import (
	"fmt"
	"time"

	"github.com/xeleb-ai/xeleb/pkg/rerank"
	"github.com/xeleb-ai/xeleb/pkg/rerank/crossencoder"
	"github.com/xeleb-ai/xeleb/pkg/rerank/passthrough"
)

type NewRerankerOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	APIKey       string
	Timeout      time.Duration
}

func NewReranker(o *NewRerankerOpts) (rerank.Reranker, error) {
	switch o.ProviderType {
	case "crossencoder", "cross-encoder":
		return crossencoder.New(crossencoder.Config{
			BaseURL: o.TargetURL,
			Model:   o.Model,
			APIKey:  o.APIKey,
			Timeout: o.Timeout,
		})
	case "none", "":
		return passthrough.New(), nil
	default:
		return nil, fmt.Errorf("unsupported rerank provider: %s", o.ProviderType)
	}
}
