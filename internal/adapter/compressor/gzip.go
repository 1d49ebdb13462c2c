package compressor

import (
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
)

type GzipCompressor struct {
	fs    afero.Fs
	level int
}

func NewGzip(fs afero.Fs) *GzipCompressor {
	return &GzipCompressor{fs: fs, level: gzip.BestCompression}
}

// Compress blocks until CompressAsync signals completion, even after ctx is
// cancelled, so nothing touches destPath once it returns. Cancellation still
// ends the copy at the next read.
func (g *GzipCompressor) Compress(ctx context.Context, sourcePath, destPath string) error {
	return <-g.CompressAsync(ctx, sourcePath, destPath)
}

// CompressAsync streams sourcePath into destPath in the background. The channel
// receives a single value once the output has been flushed and closed. A
// partially written destPath is left in place on failure.
func (g *GzipCompressor) CompressAsync(ctx context.Context, sourcePath, destPath string) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- g.compress(ctx, sourcePath, destPath)
	}()
	return done
}

func (g *GzipCompressor) compress(ctx context.Context, sourcePath, destPath string) (err error) {
	sourceFile, err := g.fs.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	destFile, err := g.fs.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create dest file: %w", err)
	}
	defer func() {
		if cerr := destFile.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close dest file: %w", cerr)
		}
	}()

	gzipWriter, err := gzip.NewWriterLevel(destFile, g.level)
	if err != nil {
		return fmt.Errorf("failed to create gzip writer: %w", err)
	}

	if _, err := io.Copy(gzipWriter, &contextReader{ctx: ctx, r: sourceFile}); err != nil {
		_ = gzipWriter.Close()
		return fmt.Errorf("failed to compress: %w", err)
	}

	if err := gzipWriter.Close(); err != nil {
		return fmt.Errorf("failed to flush gzip stream: %w", err)
	}

	return nil
}

func (g *GzipCompressor) Decompress(sourcePath, destPath string) error {
	sourceFile, err := g.fs.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	gzipReader, err := gzip.NewReader(sourceFile)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	destFile, err := g.fs.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create dest file: %w", err)
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, gzipReader); err != nil {
		return fmt.Errorf("failed to decompress: %w", err)
	}

	return nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
