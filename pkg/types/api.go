package types

// EmbedSingleRequest is the payload for POST /embed_single.
type EmbedSingleRequest struct {
	// Text to embed. Required, must be non-empty.
	// example: the quick brown fox
	Text string `json:"text" example:"the quick brown fox"`
}

// EmbedRequest is the payload for POST /embed.
type EmbedRequest struct {
	// Texts to embed. Required, at least one entry.
	Texts []string `json:"texts"`
}

// MemoryReport carries the memory accounting attached to every response.
type MemoryReport struct {
	// Resident set size of the process in MB.
	// example: 412.53
	ProcessMemoryMB float64 `json:"process_memory_mb" example:"412.53"`
	// RSS growth across the request in MB. Absent when no before-sample
	// exists (e.g. /health).
	// example: 1.25
	MemoryDeltaMB *float64 `json:"memory_delta_mb,omitempty" example:"1.25"`
	// System-wide used memory percentage.
	// example: 63.1
	SystemMemoryPercent float64 `json:"system_memory_percent" example:"63.1"`
}

// EmbedSingleResponse is returned by POST /embed_single.
type EmbedSingleResponse struct {
	// Embedding vector for the input text.
	Embedding []float32 `json:"embedding"`
	// Dimensionality of the vector.
	// example: 384
	Dimensions int `json:"dimensions" example:"384"`
	// Memory accounting for this request.
	Memory MemoryReport `json:"memory"`
}

// EmbedResponse is returned by POST /embed.
type EmbedResponse struct {
	// One embedding vector per input text, in input order.
	Embeddings [][]float32 `json:"embeddings"`
	// Dimensionality of each vector.
	// example: 384
	Dimensions int `json:"dimensions" example:"384"`
	// Number of vectors returned.
	// example: 2
	Count int `json:"count" example:"2"`
	// Memory accounting for this request.
	Memory MemoryReport `json:"memory"`
}

// TranscribeResponse is returned by POST /transcribe.
type TranscribeResponse struct {
	// Transcribed text.
	// example: hello world
	Transcription string `json:"transcription" example:"hello world"`
	// Original filename of the uploaded audio.
	// example: a.wav
	Filename string `json:"filename" example:"a.wav"`
	// Memory accounting for this request.
	Memory MemoryReport `json:"memory"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	// Overall service status.
	// example: healthy
	Status string `json:"status" example:"healthy"`
	// Configured embedding model name.
	// example: all-MiniLM-L6-v2
	Model string `json:"model" example:"all-MiniLM-L6-v2"`
	// Embedding dimensionality (0 until known).
	// example: 384
	Dimensions int `json:"dimensions" example:"384"`
	// Whether a transcription backend is configured.
	// example: true
	TranscriptionAvailable bool `json:"transcription_available" example:"true"`
	// Memory accounting; never includes a delta.
	Memory MemoryReport `json:"memory"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
