// ABOUTME: Interfaces for the embedding and reasoning capabilities the core depends on
// ABOUTME: Implemented by the llm package; tests supply fakes
package core

import "context"

// Embedder turns text into a vector in a named embedding space
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	// Model names the embedding space. Vectors from different models are never compared.
	Model() string
}

// Reasoner is the opaque generative capability: given a prompt, return text
type Reasoner interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}
