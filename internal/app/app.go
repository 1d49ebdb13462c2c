package app

import (
	"context"
	"fmt"
	"time"

	"github.com/semmidev/sqlcourier/internal/adapter/compressor"
	"github.com/semmidev/sqlcourier/internal/adapter/database"
	"github.com/semmidev/sqlcourier/internal/adapter/notifier"
	"github.com/semmidev/sqlcourier/internal/config"
	"github.com/semmidev/sqlcourier/internal/domain"
	"github.com/semmidev/sqlcourier/internal/infrastructure/filesystem"
	"github.com/semmidev/sqlcourier/internal/infrastructure/logger"
	"github.com/semmidev/sqlcourier/internal/infrastructure/scheduler"
	"github.com/semmidev/sqlcourier/internal/usecase"
	"github.com/spf13/afero"
)

type App struct {
	config    *config.Config
	logger    *logger.Logger
	scheduler *scheduler.Scheduler
	job       domain.BackupJob
	backupUC  *usecase.Backup
}

func New(cfg *config.Config) (*App, error) {
	log, err := logger.New(cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return build(cfg, log, afero.NewOsFs(), database.NewMySQL(&cfg.Database), notifier.Factory)
}

func build(
	cfg *config.Config,
	log *logger.Logger,
	fs afero.Fs,
	db domain.Database,
	newFactory func(afero.Fs, *config.TransportConfig) domain.TransportFactory,
) (*App, error) {
	log.Infof("Starting %s", cfg.App.Name)

	if err := fs.MkdirAll(cfg.Backup.WorkDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}

	color, err := notifier.ResolveColor(cfg.Transport.EmbedColor)
	if err != nil {
		log.Warnf("Invalid embed color %q, using default: %v", cfg.Transport.EmbedColor, err)
		color, _ = notifier.ResolveColor("GREEN")
	}

	probe := filesystem.NewProbe(fs, log)
	reaper := filesystem.NewReaper(fs, log, cfg.Backup.DeleteAttempts, cfg.Backup.DeleteRetryDelay)
	sender := usecase.NewSender(newFactory(fs, &cfg.Transport), cfg.Backup.RetryBackoff, log)
	cleanupUC := usecase.NewCleanup(fs, reaper, log, cfg.Backup.WorkDir, cfg.Backup.FilePrefix)

	backupUC := usecase.NewBackup(
		db,
		compressor.NewGzip(fs),
		probe,
		reaper,
		cleanupUC,
		sender,
		log,
		usecase.BackupOptions{
			WorkDir:         cfg.Backup.WorkDir,
			FilePrefix:      cfg.Backup.FilePrefix,
			SizeLimit:       cfg.Backup.SizeLimit,
			PreCleanupDelay: cfg.Backup.PreCleanupDelay,
			SettleDelay:     cfg.Backup.SettleDelay,
			SettlePoll:      cfg.Backup.SettlePoll,
			PostUploadDelay: cfg.Backup.PostUploadDelay,
			Username:        cfg.Transport.Username,
			Color:           color,
		},
	)

	// An unreachable database at startup is not fatal; the next tick may succeed.
	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.Ping(pingCtx); err != nil {
		log.Warnf("Failed to connect to %s: %v", db.GetName(), err)
	} else {
		log.Infof("✓ Connected to %s (%s)", db.GetName(), db.GetType())
	}

	log.Infof("✓ Uploads go to %s (limit %s)", cfg.Transport.Type, filesystem.FormatBytes(cfg.Backup.SizeLimit))

	return &App{
		config:    cfg,
		logger:    log,
		scheduler: scheduler.New(log.Cron()),
		job: domain.BackupJob{
			DatabaseName: db.GetName(),
			Schedule:     cfg.CronSpec(),
			BackupUC:     backupUC,
		},
		backupUC: backupUC,
	}, nil
}

// Run schedules the backup job and blocks until ctx is cancelled. The first
// run happens one interval after startup.
func (a *App) Run(ctx context.Context) error {
	job := a.job

	if err := a.scheduler.AddJob(job.Schedule, func(ctx context.Context) error {
		a.logger.Infof("=== Triggered scheduled backup for %s ===", job.DatabaseName)
		return job.BackupUC.Execute(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule backup for %s: %w", job.DatabaseName, err)
	}

	a.scheduler.Start(ctx)
	a.logger.Infof("Backup bot is online. Next backup in %d minute(s) (%s)", a.config.Backup.IntervalMinutes, job.Schedule)

	<-ctx.Done()
	return nil
}

// RunOnce performs a single backup immediately.
func (a *App) RunOnce(ctx context.Context) *domain.RunReport {
	return a.backupUC.Run(ctx)
}

func (a *App) Shutdown() {
	a.logger.Infof("Shutting down application...")
	a.scheduler.Stop()
	a.logger.Close()
}
