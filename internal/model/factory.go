// Package model provides the black-box embedding and transcription backends
// consumed by the managers. Backends:
//
//   - local:  deterministic hash encoder, no external dependencies.
//   - openai: OpenAI-compatible embeddings and Whisper transcription APIs.
//   - llama:  in-process llama.cpp embeddings (requires -tags=llama).
package model

import (
	"fmt"

	"inferd/internal/manager"
)

// Options selects and parameterizes a backend.
type Options struct {
	Backend      string // local | openai | llama
	ModelName    string // embedding model name (catalog key for local/openai)
	Dimensions   int    // local backend vector size; 0 uses the catalog or 384
	ModelPath    string // gguf file or directory for the llama backend
	Device       string // cpu | gpu (llama backend only)
	APIKey       string // openai backend
	BaseURL      string // openai backend; empty means api.openai.com
	WhisperModel string // openai transcription model; empty means whisper-1
	CtxSize      int    // llama context size
}

// EncoderOpener returns the lazy constructor the EmbeddingManager guards.
func EncoderOpener(opts Options) (manager.OpenEncoder, error) {
	switch opts.Backend {
	case "", "local":
		dims := opts.Dimensions
		if dims <= 0 {
			dims = CatalogDimensions(opts.ModelName)
		}
		return func() (manager.Encoder, error) {
			return NewHashEncoder(dims), nil
		}, nil
	case "openai":
		return func() (manager.Encoder, error) {
			return NewOpenAIEncoder(opts.APIKey, opts.BaseURL, opts.ModelName)
		}, nil
	case "llama":
		return func() (manager.Encoder, error) {
			return NewLlamaEncoder(opts.ModelPath, opts.CtxSize, opts.Device == "gpu")
		}, nil
	default:
		return nil, fmt.Errorf("unknown embedding backend %q (supported: local, openai, llama)", opts.Backend)
	}
}

// TranscriberOpener returns the lazy constructor the TranscriptionManager
// guards, or nil when no backend can transcribe with the given options.
// Only the openai backend carries transcription; local and llama setups run
// with transcription_available=false.
func TranscriberOpener(opts Options) manager.OpenTranscriber {
	if opts.APIKey == "" {
		return nil
	}
	return func() (manager.Transcriber, error) {
		return NewOpenAITranscriber(opts.APIKey, opts.BaseURL, opts.WhisperModel)
	}
}

// DimensionsHint reports the dimensionality known before any load.
func DimensionsHint(opts Options) int {
	if opts.Backend == "" || opts.Backend == "local" {
		if opts.Dimensions > 0 {
			return opts.Dimensions
		}
		if d := CatalogDimensions(opts.ModelName); d > 0 {
			return d
		}
		return 384
	}
	return CatalogDimensions(opts.ModelName)
}
