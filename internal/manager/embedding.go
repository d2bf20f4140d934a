package manager

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Encoder is the black-box embedding model behind the manager. Given texts,
// it produces one fixed-dimension vector per text, in input order.
// Implementations are not assumed safe for concurrent mutation.
type Encoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// OpenEncoder constructs the expensive model handle. Called at most once.
type OpenEncoder func() (Encoder, error)

// EmbeddingManager owns one lazily-initialized embedding model.
type EmbeddingManager struct {
	lifecycle
	adm       *admission
	modelName string
	dims      int // catalog hint until the handle reports its own
	open      OpenEncoder
	enc       Encoder
}

// NewEmbedding builds a manager for the named model. dimsHint is reported by
// Dimensions before the first load (0 if unknown).
func NewEmbedding(modelName string, dimsHint int, open OpenEncoder, cfg Config) *EmbeddingManager {
	cfg = cfg.withDefaults()
	return &EmbeddingManager{
		adm:       newAdmission("embed", cfg.MaxQueueDepth, cfg.MaxWait),
		modelName: modelName,
		dims:      dimsHint,
		open:      open,
	}
}

// EnsureReady loads the model if it has not been loaded yet. Safe for
// concurrent use; exactly one construction happens per process.
func (m *EmbeddingManager) EnsureReady() error {
	return m.ensure(func() error {
		if m.open == nil {
			return errors.New("no embedding backend configured")
		}
		start := time.Now()
		enc, err := m.open()
		if err != nil {
			return err
		}
		modelLoadDuration.WithLabelValues(m.modelName).Observe(time.Since(start).Seconds())
		m.stateMu.Lock()
		m.enc = enc
		if d := enc.Dimensions(); d > 0 {
			m.dims = d
		}
		m.stateMu.Unlock()
		return nil
	})
}

// EncodeBatch embeds texts, serialized behind the admission queue.
func (m *EmbeddingManager) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := m.EnsureReady(); err != nil {
		return nil, err
	}
	release, err := m.adm.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	vecs, err := m.enc.Encode(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("encoder returned %d vectors for %d texts", len(vecs), len(texts))
	}
	return vecs, nil
}

// EncodeSingle embeds one text.
func (m *EmbeddingManager) EncodeSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.EncodeBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Ready reports whether the model handle is loaded and usable.
func (m *EmbeddingManager) Ready() bool {
	return m.currentState() == StateReady
}

// ModelName returns the configured model name.
func (m *EmbeddingManager) ModelName() string { return m.modelName }

// Dimensions returns the vector dimensionality: the loaded handle's value
// once READY, otherwise the construction-time hint.
func (m *EmbeddingManager) Dimensions() int {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.dims
}
