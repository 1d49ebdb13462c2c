// Package filesystem holds the artifact helpers shared by backup runs: size
// probing, human readable sizes, and best-effort deletion.
package filesystem

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/spf13/afero"
)

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatBytes renders n using base 1024 and at most two decimals.
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}

	i := 0
	scaled := float64(n)
	for scaled >= 1024 && i < len(sizeUnits)-1 {
		scaled /= 1024
		i++
	}

	rounded := math.Round(scaled*100) / 100

	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + sizeUnits[i]
}

type Probe struct {
	fs     afero.Fs
	logger Logger
}

func NewProbe(fs afero.Fs, logger Logger) *Probe {
	return &Probe{fs: fs, logger: logger}
}

// SizeOf returns the byte length of path, or 0 if it cannot be stat'ed.
func (p *Probe) SizeOf(path string) int64 {
	info, err := p.fs.Stat(path)
	if err != nil {
		p.logger.Warnf("Could not get file size of %s: %v", path, err)
		return 0
	}
	return info.Size()
}

// WaitStable polls path until two consecutive probes agree or timeout passes.
func (p *Probe) WaitStable(ctx context.Context, path string, interval, timeout time.Duration) bool {
	if timeout <= 0 {
		return true
	}
	if interval <= 0 || interval > timeout {
		interval = timeout
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := p.statSize(path)
	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-ticker.C:
			current := p.statSize(path)
			if current >= 0 && current == last {
				return true
			}
			last = current
		}
	}
}

func (p *Probe) statSize(path string) int64 {
	info, err := p.fs.Stat(path)
	if err != nil {
		return -1
	}
	return info.Size()
}
