package utils

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/pgzip"
)

// IsGzip reports whether path names a gzip-compressed file
func IsGzip(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}

// ReadFile reads a whole file, transparently decompressing ".gz" files
func ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !IsGzip(path) {
		return io.ReadAll(f)
	}

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	return io.ReadAll(gz)
}
