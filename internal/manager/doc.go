// Package manager owns model lifecycle and serialized inference access. It
// is structured into small files by concern:
//
//   - state.go: lifecycle State enum.
//   - lifecycle.go: single-initialization guard shared by both managers.
//   - admission.go: bounded FIFO queue and single in-flight inference slot.
//   - errors.go: error types and helpers (IsModelUnavailable, IsTooBusy).
//   - config.go: Config and package defaults.
//   - metrics.go: model load duration histogram.
//   - embedding.go: EmbeddingManager over a black-box Encoder.
//   - transcription.go: TranscriptionManager over a black-box Transcriber.
//
// Each manager owns exactly one model handle. The handle is constructed
// lazily on the first request, at most once per process; a failed load is
// permanent until restart. Inference calls are serialized because the
// wrapped models are not assumed reentrant.
package manager
