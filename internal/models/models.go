// Package models inspects the server checkout's local model cache.
package models

import (
	"os"
	"path/filepath"
	"strings"
)

// CacheDirName is the model cache directory inside the checkout.
const CacheDirName = "models"

// NormalizeName maps a model identifier to its on-disk cache directory
// name. Hub identifiers use "/" and ":" which are not path-safe.
func NormalizeName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, "/", "--")
	n = strings.ReplaceAll(n, ":", "--")
	return n
}

// Downloaded reports whether the named model has at least one regular
// file in the checkout's cache. An empty or missing directory means the
// download never completed.
func Downloaded(repoDir, name string) bool {
	norm := NormalizeName(name)
	if norm == "" || strings.Contains(norm, "..") {
		return false
	}
	dir := filepath.Join(repoDir, CacheDirName, norm)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.Type().IsRegular() {
			return true
		}
	}
	return false
}
