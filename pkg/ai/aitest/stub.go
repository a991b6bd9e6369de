// Package aitest provides a configurable in-memory NoteAIClient for tests.
package aitest

import (
	"context"
	"hash/fnv"
	"math"

	"mosaic/pkg/ai"
)

// StubClient implements ai.NoteAIClient with pluggable behavior per method.
// Unset hooks fall back to deterministic defaults: completions echo an empty
// JSON object and embeddings are derived from the input text, so equal inputs
// always embed identically.
type StubClient struct {
	CompletionFunc    func(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error)
	FormatFunc        func(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error
	EmbeddingFunc     func(ctx context.Context, input []byte) ([]float32, error)
	TranscriptionFunc func(ctx context.Context, audio []byte, language string) (string, error)

	// Dim is the embedding dimensionality for the default embedding hook.
	Dim int
}

var _ ai.NoteAIClient = (*StubClient)(nil)

func (s *StubClient) dim() int {
	if s.Dim > 0 {
		return s.Dim
	}
	return 8
}

// Embed returns the deterministic default embedding for text. Tests can use
// it to precompute the vector a default StubClient would produce.
func (s *StubClient) Embed(text string) []float32 {
	return VectorFromText(text, s.dim())
}

// VectorFromText derives a unit-length vector from text deterministically.
func VectorFromText(text string, dim int) []float32 {
	vec := make([]float32, dim)
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()
	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float64(int64(seed>>32))/float64(math.MaxInt32) - 1
		vec[i] = float32(v)
		norm += v * v
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for i := range vec {
			vec[i] /= n
		}
	}
	return vec
}

func (s *StubClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	if s.CompletionFunc != nil {
		return s.CompletionFunc(ctx, prompt, opts...)
	}
	return "{}", nil
}

func (s *StubClient) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	if s.FormatFunc != nil {
		return s.FormatFunc(ctx, name, description, prompt, out, opts...)
	}
	return nil
}

func (s *StubClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	if s.EmbeddingFunc != nil {
		return s.EmbeddingFunc(ctx, input)
	}
	return s.Embed(string(input)), nil
}

func (s *StubClient) GenerateEmbeddings(ctx context.Context, inputs [][]byte) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		vec, err := s.GenerateEmbedding(ctx, in)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (s *StubClient) GenerateAudioTranscription(ctx context.Context, audio []byte, language string) (string, error) {
	if s.TranscriptionFunc != nil {
		return s.TranscriptionFunc(ctx, audio, language)
	}
	return "", nil
}

func (s *StubClient) ResetMetrics() {}

func (s *StubClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }
