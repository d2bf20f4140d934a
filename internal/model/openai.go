package model

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIEncoder embeds text through an OpenAI-compatible embeddings API.
type OpenAIEncoder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	dims   int
}

// NewOpenAIEncoder builds an API-backed encoder. baseURL may point at any
// OpenAI-compatible server; empty means api.openai.com.
func NewOpenAIEncoder(apiKey, baseURL, modelName string) (*OpenAIEncoder, error) {
	if apiKey == "" {
		return nil, errors.New("openai backend requires an API key")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIEncoder{
		client: openai.NewClientWithConfig(cfg),
		model:  openai.EmbeddingModel(modelName),
		dims:   CatalogDimensions(modelName),
	}, nil
}

func (e *OpenAIEncoder) Dimensions() int { return e.dims }

func (e *OpenAIEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings API returned %d vectors for %d texts", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	if e.dims == 0 && len(out) > 0 {
		e.dims = len(out[0])
	}
	return out, nil
}

// OpenAITranscriber transcribes audio through the Whisper API.
type OpenAITranscriber struct {
	client *openai.Client
	model  string
}

// NewOpenAITranscriber builds an API-backed transcriber. modelName defaults
// to whisper-1.
func NewOpenAITranscriber(apiKey, baseURL, modelName string) (*OpenAITranscriber, error) {
	if apiKey == "" {
		return nil, errors.New("openai backend requires an API key")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if modelName == "" {
		modelName = openai.Whisper1
	}
	return &OpenAITranscriber{client: openai.NewClientWithConfig(cfg), model: modelName}, nil
}

func (t *OpenAITranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		Reader:   bytes.NewReader(audio),
		FilePath: filename,
	})
	if err != nil {
		return "", fmt.Errorf("create transcription: %w", err)
	}
	return resp.Text, nil
}
