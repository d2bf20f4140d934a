package model

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// HashEncoder is a deterministic, dependency-free embedding backend: each
// token and character trigram is hashed into a bucket and the resulting
// vector is L2-normalized. Identical input always yields an identical
// vector. It stands in for a real sentence-encoder in offline setups and in
// tests; it carries no semantic similarity guarantees.
type HashEncoder struct {
	dims int
}

// NewHashEncoder returns an encoder producing dims-dimensional vectors.
func NewHashEncoder(dims int) *HashEncoder {
	if dims <= 0 {
		dims = 384
	}
	return &HashEncoder{dims: dims}
}

func (e *HashEncoder) Dimensions() int { return e.dims }

func (e *HashEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.encode(t)
	}
	return out, nil
}

func (e *HashEncoder) encode(text string) []float32 {
	v := make([]float32, e.dims)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		e.bump(v, tok, 1.0)
		runes := []rune(tok)
		for j := 0; j+3 <= len(runes); j++ {
			e.bump(v, string(runes[j:j+3]), 0.5)
		}
	}
	normalize(v)
	return v
}

// bump hashes feature into a bucket; a second hash bit picks the sign so
// buckets cancel rather than only accumulate.
func (e *HashEncoder) bump(v []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(e.dims))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	v[idx] += weight
}

// normalize scales v to unit length. The zero vector (empty text) is left
// as-is rather than divided by zero.
func normalize(v []float32) {
	var sq float64
	for _, x := range v {
		sq += float64(x) * float64(x)
	}
	if sq == 0 {
		return
	}
	inv := 1 / math.Sqrt(sq)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}
