package usecase

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

const timestampLayout = "20060102_150405"

var timestampPattern = regexp.MustCompile(`(\d{8})_(\d{6})`)

func artifactName(prefix string, at time.Time, runID string) string {
	return fmt.Sprintf("%s_%s_%s.sql", prefix, at.Format(timestampLayout), runID)
}

func extractTimestamp(filename string) (time.Time, error) {
	matches := timestampPattern.FindStringSubmatch(filename)
	if len(matches) < 3 {
		return time.Time{}, fmt.Errorf("invalid filename format: no timestamp found")
	}

	return time.ParseInLocation(timestampLayout, matches[1]+"_"+matches[2], time.Local)
}

func sleepContext(ctx context.Context, d time.Duration) error {
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
