package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/nevindra/careerflow"
)

// Embedding implements careerflow.EmbeddingProvider against the
// OpenAI-compatible /embeddings endpoint.
type Embedding struct {
	inner      *Provider
	model      string
	dimensions int
}

// NewEmbedding creates an embedding provider. dimensions must match what
// the model emits (e.g. 768 for nomic-embed-text).
func NewEmbedding(apiKey, model, baseURL string, dimensions int, opts ...ProviderOption) *Embedding {
	return &Embedding{
		inner:      NewProvider(apiKey, model, baseURL, opts...),
		model:      model,
		dimensions: dimensions,
	}
}

// Embed returns one vector per input text, in input order.
func (e *Embedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.inner.sendHTTP(ctx, "/embeddings", EmbeddingRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, e.inner.httpErr(resp)
	}

	var parsed EmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &careerflow.ErrLLM{Provider: e.inner.name, Message: fmt.Sprintf("decode embeddings: %v", err)}
	}
	if len(parsed.Data) != len(texts) {
		return nil, &careerflow.ErrLLM{Provider: e.inner.name, Message: fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(parsed.Data))}
	}

	sort.Slice(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })
	out := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (e *Embedding) Dimensions() int { return e.dimensions }

// Name returns the provider name.
func (e *Embedding) Name() string { return e.inner.name }

var _ careerflow.EmbeddingProvider = (*Embedding)(nil)
