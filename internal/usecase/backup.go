package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/semmidev/sqlcourier/internal/domain"
	"github.com/semmidev/sqlcourier/internal/infrastructure/filesystem"
)

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

type SizeProbe interface {
	SizeOf(path string) int64
	WaitStable(ctx context.Context, path string, interval, timeout time.Duration) bool
}

type NotificationSender interface {
	Send(ctx context.Context, payload domain.Payload, recheck func() error) (int, error)
}

type PreCleaner interface {
	Execute(ctx context.Context) error
}

type BackupOptions struct {
	WorkDir    string
	FilePrefix string
	SizeLimit  int64

	PreCleanupDelay time.Duration
	SettleDelay     time.Duration
	SettlePoll      time.Duration
	PostUploadDelay time.Duration

	Username string
	Color    int
}

// Backup runs the backup lifecycle: sweep stale artifacts, dump, compress when
// the dump is over the size limit, upload, and always delete what the run
// produced. At most one run is active at a time.
type Backup struct {
	db         domain.Database
	compressor domain.Compressor
	probe      SizeProbe
	reaper     Reaper
	preCleaner PreCleaner
	sender     NotificationSender
	logger     Logger
	opts       BackupOptions

	running atomic.Bool

	now      func() time.Time
	newRunID func() string
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewBackup(
	db domain.Database,
	compressor domain.Compressor,
	probe SizeProbe,
	reaper Reaper,
	preCleaner PreCleaner,
	sender NotificationSender,
	logger Logger,
	opts BackupOptions,
) *Backup {
	return &Backup{
		db:         db,
		compressor: compressor,
		probe:      probe,
		reaper:     reaper,
		preCleaner: preCleaner,
		sender:     sender,
		logger:     logger,
		opts:       opts,
		now:        time.Now,
		newRunID: func() string {
			return uuid.NewString()[:8]
		},
		sleep: sleepContext,
	}
}

// Execute runs one backup and reports failed outcomes as a *domain.RunError.
func (uc *Backup) Execute(ctx context.Context) error {
	report := uc.Run(ctx)
	if report.Outcome.Failed() {
		return &domain.RunError{RunID: report.RunID, Outcome: report.Outcome, Err: report.Err}
	}
	return nil
}

func (uc *Backup) Run(ctx context.Context) *domain.RunReport {
	dbName := uc.db.GetName()
	report := &domain.RunReport{StartedAt: uc.now()}

	if !uc.running.CompareAndSwap(false, true) {
		uc.logger.Warnf("[%s] Previous backup is still running, skipping this tick", dbName)
		report.Outcome = domain.OutcomeSkipped
		report.Err = domain.ErrRunInProgress
		return report
	}
	defer uc.running.Store(false)

	report.RunID = uc.newRunID()
	uc.logger.Infof("[%s] Starting database backup (run %s)...", dbName, report.RunID)

	completed := false
	defer func() {
		uc.cleanup(ctx, report)
		report.Duration = uc.now().Sub(report.StartedAt)
		if !completed {
			uc.logger.Errorf("[%s] Backup run %s aborted", dbName, report.RunID)
			return
		}
		uc.logOutcome(report)
	}()

	uc.preCleanup(ctx)

	report.Artifact = domain.DumpArtifact{
		RunID: report.RunID,
		Path:  filepath.Join(uc.opts.WorkDir, artifactName(uc.opts.FilePrefix, report.StartedAt, report.RunID)),
	}

	report.Outcome, report.Err = uc.run(ctx, report)
	completed = true
	return report
}

func (uc *Backup) preCleanup(ctx context.Context) {
	if err := uc.preCleaner.Execute(ctx); err != nil {
		uc.logger.Warnf("[%s] Pre-run cleanup failed: %v", uc.db.GetName(), err)
	}
	if err := uc.sleep(ctx, uc.opts.PreCleanupDelay); err != nil {
		uc.logger.Warnf("[%s] Settle wait after cleanup interrupted: %v", uc.db.GetName(), err)
	}
}

func (uc *Backup) run(ctx context.Context, report *domain.RunReport) (domain.RunOutcome, error) {
	dbName := uc.db.GetName()
	artifact := &report.Artifact

	uc.logger.Infof("[%s] Dumping database to %s", dbName, artifact.Path)
	result, err := uc.db.Dump(ctx, artifact.Path)
	if result != nil && result.Handle != nil {
		if cerr := result.Handle.Close(); cerr != nil {
			uc.logger.Warnf("[%s] Failed to close dump connection: %v", dbName, cerr)
		}
	}
	if err != nil {
		return domain.OutcomeFailedDump, fmt.Errorf("%w: %w", domain.ErrDump, err)
	}
	if result != nil && result.Path != "" && result.Path != artifact.Path {
		artifact.Path = result.Path
	}
	released := result != nil && result.Released
	uc.logger.Infof("[%s] Database dump completed", dbName)

	artifact.Size = uc.probe.SizeOf(artifact.Path)
	uc.logger.Infof("[%s] Original dump size: %s", dbName, filesystem.FormatBytes(artifact.Size))

	candidate := domain.UploadCandidate{Path: artifact.Path, Size: artifact.Size}
	if artifact.Size > uc.opts.SizeLimit {
		compressed, outcome, err := uc.compress(ctx, artifact)
		if err != nil {
			return outcome, err
		}
		candidate = compressed
		// The compressor has flushed and closed its output.
		released = true
	}
	report.Candidate = &candidate

	uc.awaitRelease(ctx, candidate.Path, released)
	payload := uc.buildPayload(candidate)

	uc.logger.Infof("[%s] Uploading %s file...", dbName, payload.SizeText)
	attempts, err := uc.sender.Send(ctx, payload, func() error {
		return uc.recheck(candidate)
	})
	report.Attempts = attempts
	if err != nil {
		if errors.Is(err, domain.ErrSizeLimitExceeded) {
			return domain.OutcomeFailedTooLarge, err
		}
		return domain.OutcomeFailedTransport, err
	}

	outcome := domain.OutcomeSucceeded
	if attempts > 1 {
		outcome = domain.OutcomeSucceededOnRetry
	}

	// Give the transport a moment to let go of the file before it is deleted.
	if err := uc.sleep(ctx, uc.opts.PostUploadDelay); err != nil {
		uc.logger.Warnf("[%s] Post-upload wait interrupted: %v", dbName, err)
	}

	return outcome, nil
}

func (uc *Backup) compress(ctx context.Context, artifact *domain.DumpArtifact) (domain.UploadCandidate, domain.RunOutcome, error) {
	dbName := uc.db.GetName()
	limit := filesystem.FormatBytes(uc.opts.SizeLimit)

	artifact.CompressedPath = artifact.Path + ".gz"
	uc.logger.Infof("[%s] Dump exceeds %s, attempting compression...", dbName, limit)

	if err := uc.compressor.Compress(ctx, artifact.Path, artifact.CompressedPath); err != nil {
		return domain.UploadCandidate{}, domain.OutcomeFailedCompression, fmt.Errorf("%w: %w", domain.ErrCompression, err)
	}

	size := uc.probe.SizeOf(artifact.CompressedPath)
	uc.logger.Infof("[%s] Compressed size: %s", dbName, filesystem.FormatBytes(size))

	if size > uc.opts.SizeLimit {
		return domain.UploadCandidate{}, domain.OutcomeFailedTooLarge, fmt.Errorf(
			"%w: compressed dump is %s, limit is %s",
			domain.ErrSizeLimitExceeded, filesystem.FormatBytes(size), limit,
		)
	}

	return domain.UploadCandidate{Path: artifact.CompressedPath, Size: size, Compressed: true}, 0, nil
}

// awaitRelease skips the settle wait when the file's writer has acknowledged
// it is done, and otherwise polls until the size is stable or SettleDelay
// runs out.
func (uc *Backup) awaitRelease(ctx context.Context, path string, released bool) {
	if released || uc.opts.SettleDelay <= 0 {
		return
	}

	if !uc.probe.WaitStable(ctx, path, uc.opts.SettlePoll, uc.opts.SettleDelay) {
		uc.logger.Warnf("[%s] %s did not settle within %s, uploading anyway", uc.db.GetName(), path, uc.opts.SettleDelay)
	}
}

func (uc *Backup) recheck(candidate domain.UploadCandidate) error {
	size := uc.probe.SizeOf(candidate.Path)
	if size > uc.opts.SizeLimit {
		return fmt.Errorf("%w: %s grew to %s before retry",
			domain.ErrSizeLimitExceeded, filepath.Base(candidate.Path), filesystem.FormatBytes(size))
	}
	return nil
}

func (uc *Backup) buildPayload(candidate domain.UploadCandidate) domain.Payload {
	createdAt := uc.now()
	sizeText := filesystem.FormatBytes(candidate.Size)

	status := "Original"
	if candidate.Compressed {
		status = "Compressed (.gz)"
	}

	return domain.Payload{
		Username: uc.opts.Username,
		Title:    fmt.Sprintf("SQL BACKUP | %s", uc.db.GetName()),
		Description: fmt.Sprintf("Database backup saved on <t:%d>\n**File Size:** %s\n**Status:** %s",
			createdAt.Unix(), sizeText, status),
		Color:          uc.opts.Color,
		AttachmentPath: candidate.Path,
		DatabaseName:   uc.db.GetName(),
		CreatedAt:      createdAt,
		Size:           candidate.Size,
		SizeText:       sizeText,
		Compressed:     candidate.Compressed,
	}
}

// cleanup runs on every exit path. It ignores cancellation of ctx so a
// shutdown mid-run still removes the artifacts.
func (uc *Backup) cleanup(ctx context.Context, report *domain.RunReport) {
	paths := []string{report.Artifact.Path}
	if report.Artifact.CompressedPath != "" {
		paths = append(paths, report.Artifact.CompressedPath)
	}

	for _, result := range uc.reaper.DeleteAll(context.WithoutCancel(ctx), paths) {
		if result.Deleted {
			report.Deleted = append(report.Deleted, result.Path)
		} else {
			report.Leftover = append(report.Leftover, result.Path)
		}
	}
}

func (uc *Backup) logOutcome(report *domain.RunReport) {
	dbName := uc.db.GetName()
	elapsed := report.Duration.Round(time.Millisecond)

	switch report.Outcome {
	case domain.OutcomeSucceeded:
		uc.logger.Infof("[%s] Backup sent in %s", dbName, elapsed)
	case domain.OutcomeSucceededOnRetry:
		uc.logger.Infof("[%s] Backup sent on retry in %s", dbName, elapsed)
	default:
		uc.logger.Errorf("[%s] Backup run %s ended %s after %s: %v",
			dbName, report.RunID, report.Outcome, elapsed, report.Err)
	}

	if len(report.Leftover) > 0 {
		uc.logger.Warnf("[%s] Could not remove %v; the next run will retry", dbName, report.Leftover)
	}
}
