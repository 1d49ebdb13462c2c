package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/afero"
)

// DeleteResult reports what happened to one path handed to the Reaper.
type DeleteResult struct {
	Path     string
	Deleted  bool
	Attempts int
	Err      error
}

// Reaper removes artifacts, retrying a bounded number of times because the
// dump tool can keep a handle on the file briefly after it returns.
type Reaper struct {
	fs       afero.Fs
	logger   Logger
	attempts int
	delay    time.Duration
}

func NewReaper(fs afero.Fs, logger Logger, attempts int, delay time.Duration) *Reaper {
	if attempts < 1 {
		attempts = 1
	}
	return &Reaper{
		fs:       fs,
		logger:   logger,
		attempts: attempts,
		delay:    delay,
	}
}

func (r *Reaper) Delete(ctx context.Context, path string) DeleteResult {
	result := DeleteResult{Path: path}

	exists, err := afero.Exists(r.fs, path)
	if err == nil && !exists {
		result.Deleted = true
		return result
	}

	for result.Attempts < r.attempts {
		result.Attempts++

		// Read-only files cannot be unlinked on some platforms.
		_ = r.fs.Chmod(path, 0o666)

		err = r.fs.Remove(path)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			result.Deleted = true
			result.Err = nil
			return result
		}
		result.Err = err

		if result.Attempts == r.attempts {
			break
		}

		r.logger.Warnf("Delete of %s failed (attempt %d/%d): %v", path, result.Attempts, r.attempts, err)
		if err := sleep(ctx, r.delay); err != nil {
			result.Err = fmt.Errorf("delete interrupted: %w", err)
			break
		}
	}

	r.logger.Errorf("Could not delete %s after %d attempt(s): %v", path, result.Attempts, result.Err)
	return result
}

// DeleteAll deletes every non-empty path and returns one result per path.
func (r *Reaper) DeleteAll(ctx context.Context, paths []string) []DeleteResult {
	results := make([]DeleteResult, 0, len(paths))
	for _, path := range paths {
		if path == "" {
			continue
		}
		results = append(results, r.Delete(ctx, path))
	}
	return results
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
