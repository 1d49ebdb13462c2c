package notifier

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/semmidev/sqlcourier/internal/config"
	"github.com/semmidev/sqlcourier/internal/domain"
	"github.com/spf13/afero"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type GDrive struct {
	fs       afero.Fs
	service  *drive.Service
	folderID string
}

func NewGDrive(ctx context.Context, fs afero.Fs, cfg *config.TransportConfig) (*GDrive, error) {
	opt, err := driveClientOption(ctx, fs, &cfg.GDrive)
	if err != nil {
		return nil, err
	}

	service, err := drive.NewService(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &GDrive{
		fs:       fs,
		service:  service,
		folderID: cfg.GDrive.FolderID,
	}, nil
}

// driveClientOption prefers a user OAuth refresh token when one is configured
// and falls back to the service account key otherwise.
func driveClientOption(ctx context.Context, fs afero.Fs, cfg *config.GDriveConfig) (option.ClientOption, error) {
	if cfg.ClientSecretFile == "" || cfg.RefreshToken == "" {
		return option.WithCredentialsFile(cfg.CredentialsFile), nil
	}

	oauthConfig, err := OAuthConfig(fs, cfg.ClientSecretFile)
	if err != nil {
		return nil, err
	}

	token := &oauth2.Token{RefreshToken: cfg.RefreshToken}
	return option.WithTokenSource(oauthConfig.TokenSource(ctx, token)), nil
}

// OAuthConfig reads a Google OAuth client secret scoped to files this app creates.
func OAuthConfig(fs afero.Fs, clientSecretPath string) (*oauth2.Config, error) {
	b, err := afero.ReadFile(fs, clientSecretPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret: %w", err)
	}

	oauthConfig, err := google.ConfigFromJSON(b, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret: %w", err)
	}
	return oauthConfig, nil
}

func (g *GDrive) Name() string {
	return "gdrive"
}

func (g *GDrive) Send(ctx context.Context, payload domain.Payload) error {
	file, err := g.fs.Open(payload.AttachmentPath)
	if err != nil {
		return &domain.TransportError{Transport: g.Name(), Err: fmt.Errorf("failed to open file: %w", err)}
	}
	defer file.Close()

	fileMetadata := &drive.File{
		Name:        filepath.Base(payload.AttachmentPath),
		Description: payload.Title + "\n" + payload.Description,
		Parents:     []string{g.folderID},
	}

	_, err = g.service.Files.Create(fileMetadata).
		Media(file).
		Context(ctx).
		Do()
	if err != nil {
		return &domain.TransportError{
			Transport:  g.Name(),
			StatusCode: googleStatus(err),
			Transient:  isTransientGoogleError(err),
			Err:        fmt.Errorf("failed to upload to gdrive: %w", err),
		}
	}

	return nil
}

func googleStatus(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

func isTransientGoogleError(err error) bool {
	code := googleStatus(err)
	if code == 429 || code >= 500 {
		return true
	}
	return code == 0 && domain.IsTransient(err)
}
