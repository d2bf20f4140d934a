//go:build !llama

package model

import (
	"context"
	"errors"
)

// LlamaEncoder is unavailable without the 'llama' build tag.
type LlamaEncoder struct{}

func NewLlamaEncoder(modelPath string, ctxSize int, gpu bool) (*LlamaEncoder, error) {
	return nil, errors.New("built without llama support: rebuild with -tags=llama")
}

func (e *LlamaEncoder) Dimensions() int { return 0 }

func (e *LlamaEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("built without llama support")
}

func (e *LlamaEncoder) Close() error { return nil }
