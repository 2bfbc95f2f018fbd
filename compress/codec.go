package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

// compressBytes applies algorithm a to data. None is a no-op.
func compressBytes(a Algorithm, data []byte) ([]byte, error) {
	switch a {
	case None:
		return data, nil
	case Gzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("compress: gzip write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("compress: gzip close: %w", err)
		}
		return buf.Bytes(), nil
	case Brotli:
		var buf bytes.Buffer
		w := brotli.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("compress: brotli write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("compress: brotli close: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("compress: unknown algorithm %d", a)
	}
}

// decompressBytes reverses compressBytes.
func decompressBytes(a Algorithm, data []byte) ([]byte, error) {
	switch a {
	case None:
		return data, nil
	case Gzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("compress: gzip reader: %w", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("compress: gzip read: %w", err)
		}
		return out, nil
	case Brotli:
		r := brotli.NewReader(bytes.NewReader(data))
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("compress: brotli read: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("compress: unknown algorithm %d", a)
	}
}
