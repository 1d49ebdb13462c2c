package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/semmidev/sqlcourier/internal/infrastructure/filesystem"
	"github.com/spf13/afero"
)

type Reaper interface {
	DeleteAll(ctx context.Context, paths []string) []filesystem.DeleteResult
}

// Cleanup removes artifacts left in the work directory by earlier runs, whether
// they use the per-run naming or the legacy fixed <prefix>.sql names.
type Cleanup struct {
	fs      afero.Fs
	reaper  Reaper
	logger  Logger
	workDir string
	prefix  string
}

func NewCleanup(fs afero.Fs, reaper Reaper, logger Logger, workDir, prefix string) *Cleanup {
	return &Cleanup{
		fs:      fs,
		reaper:  reaper,
		logger:  logger,
		workDir: workDir,
		prefix:  prefix,
	}
}

func (uc *Cleanup) Execute(ctx context.Context) error {
	paths, err := uc.staleArtifacts()
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return nil
	}

	deleted := 0
	for _, result := range uc.reaper.DeleteAll(ctx, paths) {
		if result.Deleted {
			deleted++
			continue
		}
		uc.logger.Warnf("Stale artifact %s is still locked: %v", result.Path, result.Err)
	}

	uc.logger.Infof("Removed %d of %d stale artifact(s) from %s", deleted, len(paths), uc.workDir)
	return nil
}

func (uc *Cleanup) staleArtifacts() ([]string, error) {
	var paths []string

	for _, legacy := range []string{uc.prefix + ".sql", uc.prefix + ".sql.gz"} {
		path := filepath.Join(uc.workDir, legacy)
		if exists, _ := afero.Exists(uc.fs, path); exists {
			paths = append(paths, path)
		}
	}

	for _, pattern := range []string{uc.prefix + "_*.sql", uc.prefix + "_*.sql.gz"} {
		matches, err := afero.Glob(uc.fs, filepath.Join(uc.workDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("list stale artifacts: %w", err)
		}

		for _, match := range matches {
			if ts, err := extractTimestamp(filepath.Base(match)); err == nil {
				uc.logger.Infof("Found stale artifact %s from %s ago", match, time.Since(ts).Round(time.Second))
			}
			paths = append(paths, match)
		}
	}

	return paths, nil
}
