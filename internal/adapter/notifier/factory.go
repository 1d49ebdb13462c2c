package notifier

import (
	"context"
	"fmt"

	"github.com/semmidev/sqlcourier/internal/config"
	"github.com/semmidev/sqlcourier/internal/domain"
	"github.com/spf13/afero"
)

// New builds the single transport selected by cfg.Type.
func New(ctx context.Context, fs afero.Fs, cfg *config.TransportConfig) (domain.Transport, error) {
	switch cfg.Type {
	case "discord":
		return NewDiscord(fs, cfg)
	case "telegram":
		return NewTelegram(fs, cfg)
	case "s3":
		return NewS3(ctx, fs, cfg)
	case "gdrive":
		return NewGDrive(ctx, fs, cfg)
	default:
		return nil, fmt.Errorf("unknown transport type: %s", cfg.Type)
	}
}

// Factory returns a domain.TransportFactory that builds a fresh client per call.
func Factory(fs afero.Fs, cfg *config.TransportConfig) domain.TransportFactory {
	return func(ctx context.Context) (domain.Transport, error) {
		return New(ctx, fs, cfg)
	}
}
