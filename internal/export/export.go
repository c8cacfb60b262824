// Package export persists backend CSV streams and normalized tables to disk.
// A ".gz" or ".zst" suffix on the destination selects compression.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/five82/plume/internal/rows"
)

// Compression selects the encoding applied to an export file.
type Compression int

// Compression schemes, chosen by file suffix.
const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
)

func (c Compression) String() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	default:
		return "none"
	}
}

// CompressionFor infers the compression from the path suffix.
func CompressionFor(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return CompressionGzip
	case ".zst", ".zstd":
		return CompressionZstd
	default:
		return CompressionNone
	}
}

// DefaultFileName is the name used when the caller gives no destination.
func DefaultFileName(dataset string) string {
	name := strings.TrimSpace(dataset)
	if name == "" {
		name = "export"
	}
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, name)
	return name + "-logs.csv"
}

// WriteStream copies src to path. The file appears only once the copy has
// completed; a cancelled ctx or failed read leaves no partial file behind.
func WriteStream(ctx context.Context, path string, src io.Reader) (int64, error) {
	var n int64
	err := writeAtomic(path, func(w io.Writer) error {
		var err error
		n, err = io.Copy(w, &ctxReader{ctx: ctx, r: src})
		return err
	})
	return n, err
}

// WriteTable renders t to path: JSON when the name (minus any compression
// suffix) ends in ".json", CSV otherwise.
func WriteTable(path string, t rows.Table) error {
	asJSON := strings.EqualFold(filepath.Ext(trimCompression(path)), ".json")
	return writeAtomic(path, func(w io.Writer) error {
		if asJSON {
			return rows.WriteJSON(w, t)
		}
		return rows.WriteCSV(w, t)
	})
}

func writeAtomic(path string, fill func(io.Writer) error) (err error) {
	if strings.TrimSpace(path) == "" {
		return errors.New("export path is empty")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w, err := wrap(tmp, CompressionFor(path))
	if err != nil {
		return err
	}
	if err = fill(w); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("finish export: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close export file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("move export into place: %w", err)
	}
	return nil
}

func wrap(f *os.File, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionGzip:
		return gzip.NewWriter(f), nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(f)
		if err != nil {
			return nil, fmt.Errorf("init zstd encoder: %w", err)
		}
		return enc, nil
	default:
		return nopCloser{f}, nil
	}
}

func trimCompression(path string) string {
	if CompressionFor(path) == CompressionNone {
		return path
	}
	return strings.TrimSuffix(path, filepath.Ext(path))
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
