// Package compress provides the pluggable byte-to-byte transform applied to
// an entry's extracted body before the compressed_content write-back: a
// gzip-backed default behind a Transform seam for swapping codecs later
// without touching call sites.
package compress

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// Transform compresses and decompresses a byte-oriented payload.
type Transform interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// Gzip is the default Transform.
type Gzip struct {
	Level int
}

// NewGzip builds a Gzip transform at the given compression level;
// gzip.DefaultCompression is used for level <= 0.
func NewGzip(level int) *Gzip {
	if level <= 0 {
		level = gzip.DefaultCompression
	}
	return &Gzip{Level: level}
}

func (g *Gzip) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, g.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to build gzip writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress payload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize compressed payload: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *Gzip) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip reader: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress payload: %w", err)
	}
	return out, nil
}
