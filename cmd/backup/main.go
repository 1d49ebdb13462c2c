// cmd/backup/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/semmidev/sqlcourier/internal/app"
	"github.com/semmidev/sqlcourier/internal/config"
	"github.com/semmidev/sqlcourier/internal/infrastructure/logger"
	"github.com/spf13/afero"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run a single backup and exit")
	authAddr := flag.String("gdrive-auth", "", "serve the Google Drive consent flow on this address and exit on interrupt")
	clientSecret := flag.String("gdrive-client-secret", "client_secret.json", "OAuth client secret used by -gdrive-auth")
	flag.Parse()

	if *authAddr != "" {
		return serveDriveAuth(*authAddr, *clientSecret)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer application.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *once {
		report := application.RunOnce(ctx)
		if report.Outcome.Failed() {
			return fmt.Errorf("backup %s: %w", report.Outcome, report.Err)
		}
		return nil
	}

	return application.Run(ctx)
}

func serveDriveAuth(addr, clientSecretPath string) error {
	authLog, err := logger.New("info", "")
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer authLog.Close()

	auth, err := app.NewDriveAuth(authLog, afero.NewOsFs(), clientSecretPath)
	if err != nil {
		return fmt.Errorf("initialize oauth: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return auth.Serve(ctx, addr)
}
