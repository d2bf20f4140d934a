package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// catalog maps known embedding model names to their output dimensionality,
// so /health can report dimensions before the first load.
var catalog = map[string]int{
	"all-MiniLM-L6-v2":       384,
	"all-MiniLM-L12-v2":      384,
	"all-mpnet-base-v2":      768,
	"text-embedding-ada-002": 1536,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
}

// CatalogDimensions returns the known dimensionality for a model name, or 0.
func CatalogDimensions(name string) int {
	return catalog[name]
}

// ResolveGGUF resolves a model path for the llama backend. A file path is
// returned as-is; a directory is scanned and the first *.gguf file wins.
func ResolveGGUF(path string) (string, error) {
	base, err := expandHome(path)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("abs path: %w", err)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("model path: %w", err)
	}
	if !fi.IsDir() {
		return abs, nil
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return "", fmt.Errorf("read dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".gguf") {
			return filepath.Join(abs, e.Name()), nil
		}
	}
	return "", fmt.Errorf("no *.gguf file in %s", abs)
}

// expandHome expands a leading '~' to the user's home directory.
func expandHome(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
