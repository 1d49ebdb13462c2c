package domain

import (
	"context"
	"io"
)

// DumpResult describes what a dump provider produced. Handle, when set, must be
// closed by the caller whether or not the dump succeeded. Released is the
// provider's acknowledgment that nothing it owns still holds the file open.
type DumpResult struct {
	Path     string
	Handle   io.Closer
	Released bool
}

type Database interface {
	Dump(ctx context.Context, outputPath string) (*DumpResult, error)
	GetName() string
	GetType() string
	Ping(ctx context.Context) error
}
