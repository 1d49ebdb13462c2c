package domain

import "context"

type Compressor interface {
	Compress(ctx context.Context, sourcePath, destPath string) error
}
