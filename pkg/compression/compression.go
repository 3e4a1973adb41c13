// Package compression provides value compression for cache entries: a
// pluggable Compressor with gzip and deflate implementations, and a tagged
// envelope format so a stored payload is self-describing.
package compression

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
)

// Algorithm identifies a compression algorithm.
type Algorithm string

const (
	// CompressorNone disables compression
	CompressorNone Algorithm = "none"

	// CompressorGzip compresses with gzip
	CompressorGzip Algorithm = "gzip"

	// CompressorDeflate compresses with raw deflate
	CompressorDeflate Algorithm = "deflate"
)

// Config holds compression configuration
type Config struct {
	// Enabled turns compression on
	Enabled bool

	// Algorithm selects the compression algorithm
	Algorithm Algorithm

	// MinSize is the minimum serialized size, in bytes, before a value is
	// considered for compression
	MinSize int

	// Level is the compression level (-1 for the algorithm default)
	Level int
}

// NewDefaultConfig returns a compression config with sane defaults
// (disabled, gzip, 1KB threshold, default level).
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:   false,
		Algorithm: CompressorGzip,
		MinSize:   1024,
		Level:     -1,
	}
}

// WithEnabled sets whether compression is enabled
func (c *Config) WithEnabled(enabled bool) *Config {
	c.Enabled = enabled
	return c
}

// WithAlgorithm sets the compression algorithm
func (c *Config) WithAlgorithm(algorithm Algorithm) *Config {
	c.Algorithm = algorithm
	return c
}

// WithMinSize sets the minimum size threshold for compression
func (c *Config) WithMinSize(minSize int) *Config {
	c.MinSize = minSize
	return c
}

// WithLevel sets the compression level
func (c *Config) WithLevel(level int) *Config {
	c.Level = level
	return c
}

// Compressor compresses and decompresses byte payloads
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Name() string
}

// NewCompressor creates a compressor from the given config. A nil or
// disabled config yields the no-op compressor.
func NewCompressor(config *Config) (Compressor, error) {
	if config == nil || !config.Enabled {
		return NewNoOpCompressor(), nil
	}

	switch config.Algorithm {
	case CompressorNone:
		return NewNoOpCompressor(), nil
	case CompressorGzip:
		return NewGzipCompressor(config.Level), nil
	case CompressorDeflate:
		return NewDeflateCompressor(config.Level), nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", config.Algorithm)
	}
}

// NoOpCompressor passes data through unchanged
type NoOpCompressor struct{}

// NewNoOpCompressor creates a pass-through compressor
func NewNoOpCompressor() *NoOpCompressor {
	return &NoOpCompressor{}
}

// Compress returns data unchanged
func (n *NoOpCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

// Decompress returns data unchanged
func (n *NoOpCompressor) Decompress(data []byte) ([]byte, error) {
	return data, nil
}

// Name returns the compressor name
func (n *NoOpCompressor) Name() string {
	return "none"
}

// GzipCompressor compresses with gzip
type GzipCompressor struct {
	level int
}

// NewGzipCompressor creates a gzip compressor with the given level
func NewGzipCompressor(level int) *GzipCompressor {
	return &GzipCompressor{level: level}
}

// Compress gzips data
func (g *GzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, g.level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress un-gzips data
func (g *GzipCompressor) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Name returns the compressor name
func (g *GzipCompressor) Name() string {
	return "gzip"
}

// DeflateCompressor compresses with raw deflate
type DeflateCompressor struct {
	level int
}

// NewDeflateCompressor creates a deflate compressor with the given level
func NewDeflateCompressor(level int) *DeflateCompressor {
	return &DeflateCompressor{level: level}
}

// Compress deflates data
func (d *DeflateCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, d.level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress inflates data
func (d *DeflateCompressor) Decompress(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	return io.ReadAll(r)
}

// Name returns the compressor name
func (d *DeflateCompressor) Name() string {
	return "deflate"
}
