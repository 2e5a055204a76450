// Package compression wraps the message stream in a streaming codec.
//
// Supported algorithms are gzip, zstd, snappy (framed), s2 and lz4 (frame
// format). Writers flush their final frame on Close and never close the
// underlying writer. Flush emits a decodable block mid-stream.
//
//	f, _ := os.Create("out.jsonl.zst")
//	w, _ := compression.NewWriter(f, compression.Zstd)
//	writer := singer.NewWriter(w)
//	...
//	w.Close()
//	f.Close()
package compression

import (
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/errors"
)

// Algorithm represents a compression algorithm
type Algorithm string

const (
	// None writes through unchanged
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// Snappy represents framed snappy compression
	Snappy Algorithm = "snappy"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "lz4"
)

// ParseAlgorithm returns the algorithm named by s; empty means None
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(s))); a {
	case "", None:
		return None, nil
	case Gzip, Zstd, Snappy, S2, LZ4:
		return a, nil
	}
	return "", errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm: %s", s)
}

// Extension returns the conventional file suffix of the algorithm
func (a Algorithm) Extension() string {
	switch a {
	case Gzip:
		return ".gz"
	case Zstd:
		return ".zst"
	case Snappy:
		return ".sz"
	case S2:
		return ".s2"
	case LZ4:
		return ".lz4"
	}
	return ""
}

// Writer is a compressing writer. Flush pushes everything written so far
// to the underlying writer as complete blocks a reader can decode.
type Writer interface {
	io.WriteCloser
	Flush() error
}

type flusher interface {
	Flush() error
}

// plainWriter passes data through uncompressed
type plainWriter struct {
	io.Writer
}

func (plainWriter) Close() error { return nil }

func (p plainWriter) Flush() error {
	if f, ok := p.Writer.(flusher); ok {
		return f.Flush()
	}
	return nil
}

// NewWriter returns a writer compressing into w
func NewWriter(w io.Writer, algorithm Algorithm) (Writer, error) {
	switch algorithm {
	case "", None:
		return plainWriter{w}, nil
	case Gzip:
		gz, err := gzip.NewWriterLevel(w, gzip.DefaultCompression)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create gzip writer")
		}
		return gz, nil
	case Zstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create zstd writer")
		}
		return enc, nil
	case Snappy:
		return snappy.NewBufferedWriter(w), nil
	case S2:
		return s2.NewWriter(w), nil
	case LZ4:
		return lz4.NewWriter(w), nil
	}
	return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm: %s", algorithm)
}

// ForPath returns the algorithm whose conventional suffix ends path, or
// None when no suffix matches
func ForPath(path string) Algorithm {
	lower := strings.ToLower(path)
	for _, a := range []Algorithm{Gzip, Zstd, Snappy, S2, LZ4} {
		if strings.HasSuffix(lower, a.Extension()) {
			return a
		}
	}
	return None
}

// NewReader returns a reader decompressing r
func NewReader(r io.Reader, algorithm Algorithm) (io.ReadCloser, error) {
	switch algorithm {
	case "", None:
		return io.NopCloser(r), nil
	case Gzip:
		return gzip.NewReader(r)
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create zstd reader")
		}
		return dec.IOReadCloser(), nil
	case Snappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	case S2:
		return io.NopCloser(s2.NewReader(r)), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	}
	return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm: %s", algorithm)
}
