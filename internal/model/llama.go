//go:build llama

package model

import (
	"context"
	"fmt"

	llama "github.com/go-skynet/go-llama.cpp"
)

// LlamaEncoder embeds text with an in-process llama.cpp model. Requires the
// 'llama' build tag and a linked libllama.
type LlamaEncoder struct {
	l    *llama.LLama
	dims int
}

// NewLlamaEncoder loads a gguf model with embeddings enabled. gpu moves
// layers to the GPU when the build supports it.
func NewLlamaEncoder(modelPath string, ctxSize int, gpu bool) (*LlamaEncoder, error) {
	path, err := ResolveGGUF(modelPath)
	if err != nil {
		return nil, err
	}
	if ctxSize <= 0 {
		ctxSize = 512
	}
	opts := []llama.ModelOption{
		llama.EnableEmbeddings,
		llama.SetContext(ctxSize),
	}
	if gpu {
		opts = append(opts, llama.SetGPULayers(-1))
	}
	l, err := llama.New(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("load llama model %s: %w", path, err)
	}
	return &LlamaEncoder{l: l}, nil
}

func (e *LlamaEncoder) Dimensions() int { return e.dims }

func (e *LlamaEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := e.l.Embeddings(t)
		if err != nil {
			return nil, fmt.Errorf("embeddings: %w", err)
		}
		out[i] = v
		if e.dims == 0 {
			e.dims = len(v)
		}
	}
	return out, nil
}

// Close frees the native model.
func (e *LlamaEncoder) Close() error {
	e.l.Free()
	return nil
}
