package ai

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/patrickmn/go-cache"

	"github.com/starford/notemind/internal/apperr"
	"github.com/starford/notemind/internal/checksum"
)

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed turns text into the model's vector. Blank text yields an empty
// vector and no call. Vectors are returned as the service produced them.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return []float32{}, nil
	}
	key := checksum.Key(c.cfg.EmbedModel, text)
	if v, ok := c.embeds.Get(key); ok {
		return slices.Clone(v.([]float32)), nil
	}

	var resp embedResponse
	if err := c.post(ctx, "/embeddings", embedRequest{Model: c.cfg.EmbedModel, Input: text}, &resp); err != nil {
		return nil, &apperr.EmbeddingError{Err: err}
	}
	if len(resp.Data) == 0 {
		return nil, &apperr.EmbeddingError{Err: fmt.Errorf("no embedding in response")}
	}
	vec := resp.Data[0].Embedding
	if vec == nil {
		vec = []float32{}
	}
	c.embeds.Set(key, vec, cache.DefaultExpiration)
	return slices.Clone(vec), nil
}
