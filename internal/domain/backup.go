package domain

import (
	"context"
	"time"
)

// RunOutcome is the terminal result of one orchestration tick.
type RunOutcome int

const (
	OutcomeSucceeded RunOutcome = iota
	OutcomeSucceededOnRetry
	OutcomeFailedTooLarge
	OutcomeFailedDump
	OutcomeFailedTransport
	OutcomeFailedCompression
	// OutcomeSkipped marks a tick rejected because another run was still active.
	OutcomeSkipped
)

func (o RunOutcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeSucceededOnRetry:
		return "succeeded_on_retry"
	case OutcomeFailedTooLarge:
		return "failed_too_large"
	case OutcomeFailedDump:
		return "failed_dump"
	case OutcomeFailedTransport:
		return "failed_transport"
	case OutcomeFailedCompression:
		return "failed_compression"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

func (o RunOutcome) Failed() bool {
	switch o {
	case OutcomeSucceeded, OutcomeSucceededOnRetry, OutcomeSkipped:
		return false
	default:
		return true
	}
}

// DumpArtifact is the on-disk dump owned by a single run.
type DumpArtifact struct {
	RunID          string
	Path           string
	Size           int64
	CompressedPath string
}

// UploadCandidate is whichever artifact is small enough to transmit.
type UploadCandidate struct {
	Path       string
	Size       int64
	Compressed bool
}

type RunReport struct {
	RunID     string
	Outcome   RunOutcome
	Artifact  DumpArtifact
	Candidate *UploadCandidate
	Attempts  int
	Err       error
	Deleted   []string
	Leftover  []string
	StartedAt time.Time
	Duration  time.Duration
}

type BackupJob struct {
	DatabaseName string
	Schedule     string
	BackupUC     BackupExecutor
}

type BackupExecutor interface {
	Execute(ctx context.Context) error
}
