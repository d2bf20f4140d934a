package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	mime "mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"inferd/internal/manager"
	"inferd/internal/memtrack"
	"inferd/pkg/types"
)

// scriptedSampler returns increasing RSS values so deltas are non-zero.
type scriptedSampler struct {
	rss   float64
	calls int
}

func (f *scriptedSampler) Sample() (memtrack.Sample, error) {
	f.calls++
	f.rss += 10
	return memtrack.Sample{ProcessRSSMB: f.rss, SystemUsedPercent: 50}, nil
}

type mockEmbedding struct {
	dims      int
	model     string
	ready     bool
	encodeErr error
}

func (m *mockEmbedding) EncodeSingle(ctx context.Context, text string) ([]float32, error) {
	if m.encodeErr != nil {
		return nil, m.encodeErr
	}
	return make([]float32, m.dims), nil
}

func (m *mockEmbedding) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if m.encodeErr != nil {
		return nil, m.encodeErr
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, m.dims)
		v[0] = float32(i) // mark input order
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbedding) ModelName() string { return m.model }
func (m *mockEmbedding) Dimensions() int   { return m.dims }
func (m *mockEmbedding) Ready() bool       { return m.ready }

type mockTranscription struct {
	available bool
	text      string
	err       error
	gotAudio  []byte
	gotName   string
}

func (m *mockTranscription) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	m.gotAudio = append([]byte(nil), audio...)
	m.gotName = filename
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

func (m *mockTranscription) Available() bool { return m.available }

func newTestMux(emb EmbeddingService, tr TranscriptionService) http.Handler {
	return NewMux(emb, tr, &scriptedSampler{rss: 100})
}

func TestHealth(t *testing.T) {
	emb := &mockEmbedding{dims: 384, model: "all-MiniLM-L6-v2"}
	r := newTestMux(emb, &mockTranscription{available: true})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Status != "healthy" || body.Model != "all-MiniLM-L6-v2" || body.Dimensions != 384 {
		t.Fatalf("unexpected body: %+v", body)
	}
	if !body.TranscriptionAvailable {
		t.Fatal("transcription_available=false")
	}
	if body.Memory.ProcessMemoryMB <= 0 {
		t.Fatalf("memory missing: %+v", body.Memory)
	}
}

func TestHealthOmitsMemoryDelta(t *testing.T) {
	r := newTestMux(&mockEmbedding{dims: 4}, &mockTranscription{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	var raw map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("json: %v", err)
	}
	mem, ok := raw["memory"].(map[string]any)
	if !ok {
		t.Fatalf("no memory object: %v", raw)
	}
	if _, present := mem["memory_delta_mb"]; present {
		t.Fatalf("memory_delta_mb must be absent on /health: %v", mem)
	}
}

func TestEmbedSingle(t *testing.T) {
	r := newTestMux(&mockEmbedding{dims: 8}, &mockTranscription{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/embed_single", bytes.NewBufferString(`{"text":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body types.EmbedSingleResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(body.Embedding) != 8 || body.Dimensions != 8 {
		t.Fatalf("unexpected body: %+v", body)
	}
	if body.Memory.MemoryDeltaMB == nil {
		t.Fatal("memory_delta_mb missing on wrapped request")
	}
}

func TestEmbedSingleValidation(t *testing.T) {
	r := newTestMux(&mockEmbedding{dims: 8}, &mockTranscription{})
	for _, payload := range []string{`{}`, `{"text":""}`, `{"text":"   "}`, `{"text":42}`} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/embed_single", bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("payload %s: status=%d", payload, w.Code)
		}
		var e types.ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil || e.Error == "" {
			t.Fatalf("payload %s: error body=%s", payload, w.Body.String())
		}
	}
}

func TestEmbedBatchOrderAndCount(t *testing.T) {
	r := newTestMux(&mockEmbedding{dims: 4}, &mockTranscription{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/embed", bytes.NewBufferString(`{"texts":["a","b","c"]}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body types.EmbedResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Count != 3 || len(body.Embeddings) != 3 || body.Dimensions != 4 {
		t.Fatalf("unexpected body: %+v", body)
	}
	for i, v := range body.Embeddings {
		if v[0] != float32(i) {
			t.Fatalf("embeddings out of input order at %d: %v", i, v)
		}
	}
}

func TestEmbedValidation(t *testing.T) {
	r := newTestMux(&mockEmbedding{dims: 4}, &mockTranscription{})
	for _, payload := range []string{`{}`, `{"texts":[]}`, `{"texts":"not-a-list"}`, `{"texts":[1,2]}`} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/embed", bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("payload %s: status=%d", payload, w.Code)
		}
	}
}

func TestEmbedUnsupportedMediaType(t *testing.T) {
	r := newTestMux(&mockEmbedding{dims: 4}, &mockTranscription{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/embed", bytes.NewBufferString(`{"texts":["a"]}`))
	req.Header.Set("Content-Type", "text/plain")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestEmbedBodyTooLarge(t *testing.T) {
	r := newTestMux(&mockEmbedding{dims: 4}, &mockTranscription{})
	w := httptest.NewRecorder()
	big := make([]byte, (1<<20)+10)
	for i := range big {
		big[i] = 'a'
	}
	req := httptest.NewRequest(http.MethodPost, "/embed", bytes.NewReader(big))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too-large body, got %d", w.Code)
	}
}

func TestEmbedModelUnavailableMaps503(t *testing.T) {
	emb := &mockEmbedding{dims: 4, encodeErr: manager.ErrModelUnavailable("model load failed: weights missing")}
	r := newTestMux(emb, &mockTranscription{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/embed_single", bytes.NewBufferString(`{"text":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestEmbedGenericErrorMaps500Generic(t *testing.T) {
	emb := &mockEmbedding{dims: 4, encodeErr: fmt.Errorf("cuda device lost at 0xdeadbeef")}
	r := newTestMux(emb, &mockTranscription{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/embed_single", bytes.NewBufferString(`{"text":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
	if strings.Contains(w.Body.String(), "deadbeef") {
		t.Fatalf("internal details leaked: %s", w.Body.String())
	}
}

func buildMultipart(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := mime.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestTranscribe(t *testing.T) {
	tr := &mockTranscription{available: true, text: "hello world"}
	r := newTestMux(&mockEmbedding{dims: 4}, tr)
	audio := []byte("RIFF\x00\x01\r\nWAVE\xff")
	buf, ct := buildMultipart(t, "audio", "a.wav", audio)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/transcribe", buf)
	req.Header.Set("Content-Type", ct)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body types.TranscribeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Transcription != "hello world" || body.Filename != "a.wav" {
		t.Fatalf("unexpected body: %+v", body)
	}
	if !bytes.Equal(tr.gotAudio, audio) {
		t.Fatalf("audio bytes not passed through exactly: %q vs %q", tr.gotAudio, audio)
	}
}

func TestTranscribeMissingAudioPartIs400(t *testing.T) {
	r := newTestMux(&mockEmbedding{dims: 4}, &mockTranscription{available: true})
	buf, ct := buildMultipart(t, "video", "a.mp4", []byte("x"))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/transcribe", buf)
	req.Header.Set("Content-Type", ct)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestTranscribeEmptyAudioIs400(t *testing.T) {
	r := newTestMux(&mockEmbedding{dims: 4}, &mockTranscription{available: true})
	buf, ct := buildMultipart(t, "audio", "a.wav", nil)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/transcribe", buf)
	req.Header.Set("Content-Type", ct)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestTranscribeUnavailableIs503(t *testing.T) {
	r := newTestMux(&mockEmbedding{dims: 4}, &mockTranscription{available: false})
	buf, ct := buildMultipart(t, "audio", "a.wav", []byte("x"))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/transcribe", buf)
	req.Header.Set("Content-Type", ct)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestTranscribeWrongContentTypeIs400(t *testing.T) {
	r := newTestMux(&mockEmbedding{dims: 4}, &mockTranscription{available: true})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/transcribe", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestUnknownRouteIs404JSON(t *testing.T) {
	r := newTestMux(&mockEmbedding{dims: 4}, &mockTranscription{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
	var e types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil || e.Code != 404 {
		t.Fatalf("expected JSON error body, got %s", w.Body.String())
	}
}

func TestMethodMismatchIs405JSON(t *testing.T) {
	r := newTestMux(&mockEmbedding{dims: 4}, &mockTranscription{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/embed", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", w.Code)
	}
	var e types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil || e.Code != 405 {
		t.Fatalf("expected JSON error body, got %s", w.Body.String())
	}
}

func TestPanicIsRecoveredTo500JSON(t *testing.T) {
	emb := &mockEmbedding{dims: 4}
	r := newTestMux(panickyEmbedding{emb}, &mockTranscription{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/embed_single", bytes.NewBufferString(`{"text":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
	var e types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil || e.Error != "internal server error" {
		t.Fatalf("expected generic JSON 500, got %s", w.Body.String())
	}
}

type panickyEmbedding struct{ *mockEmbedding }

func (p panickyEmbedding) EncodeSingle(ctx context.Context, text string) ([]float32, error) {
	panic("handler blew up")
}
