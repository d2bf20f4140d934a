package manager

import (
	"context"
	"errors"
	"time"
)

// Transcriber is the black-box speech-to-text model behind the manager.
// filename carries the upload's original name so backends that sniff the
// container format by extension can do so.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// OpenTranscriber constructs the expensive model handle. Called at most once.
type OpenTranscriber func() (Transcriber, error)

// TranscriptionManager owns one lazily-initialized transcription model.
// A nil opener means no backend is configured; Available reports false and
// every Transcribe call returns a model-unavailable error.
type TranscriptionManager struct {
	lifecycle
	adm  *admission
	open OpenTranscriber
	tr   Transcriber
}

func NewTranscription(open OpenTranscriber, cfg Config) *TranscriptionManager {
	cfg = cfg.withDefaults()
	return &TranscriptionManager{
		adm:  newAdmission("transcribe", cfg.MaxQueueDepth, cfg.MaxWait),
		open: open,
	}
}

// Available reports whether a transcription backend is configured at all.
func (m *TranscriptionManager) Available() bool { return m.open != nil }

// EnsureReady loads the model if it has not been loaded yet.
func (m *TranscriptionManager) EnsureReady() error {
	if m.open == nil {
		return ErrModelUnavailable("no transcription backend configured")
	}
	return m.ensure(func() error {
		start := time.Now()
		tr, err := m.open()
		if err != nil {
			return err
		}
		modelLoadDuration.WithLabelValues("transcription").Observe(time.Since(start).Seconds())
		if tr == nil {
			return errors.New("transcription backend returned no handle")
		}
		m.stateMu.Lock()
		m.tr = tr
		m.stateMu.Unlock()
		return nil
	})
}

// Transcribe converts audio bytes to text, serialized behind the admission queue.
func (m *TranscriptionManager) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if err := m.EnsureReady(); err != nil {
		return "", err
	}
	release, err := m.adm.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()
	return m.tr.Transcribe(ctx, audio, filename)
}

// Ready reports whether the model handle is loaded and usable.
func (m *TranscriptionManager) Ready() bool {
	return m.currentState() == StateReady
}
