package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/semmidev/sqlcourier/internal/adapter/notifier"
	"github.com/semmidev/sqlcourier/internal/infrastructure/logger"
	"github.com/spf13/afero"
	"golang.org/x/oauth2"
)

// DriveAuth serves the one-time consent flow that produces the refresh token
// used by the gdrive transport.
type DriveAuth struct {
	config *oauth2.Config
	logger *logger.Logger
	state  string
}

func NewDriveAuth(log *logger.Logger, fs afero.Fs, clientSecretPath string) (*DriveAuth, error) {
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if clientSecretPath == "" {
		return nil, errors.New("client secret path cannot be empty")
	}

	cfg, err := notifier.OAuthConfig(fs, clientSecretPath)
	if err != nil {
		return nil, err
	}

	return &DriveAuth{
		config: cfg,
		logger: log,
		state:  uuid.NewString(),
	}, nil
}

func (s *DriveAuth) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /auth/google/drive", func(w http.ResponseWriter, r *http.Request) {
		authURL := s.config.AuthCodeURL(s.state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
		http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
	})

	mux.HandleFunc("GET /auth/google/callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != s.state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}

		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code parameter", http.StatusBadRequest)
			return
		}

		token, err := s.config.Exchange(r.Context(), code)
		if err != nil {
			http.Error(w, fmt.Sprintf("token exchange failed: %v", err), http.StatusInternalServerError)
			return
		}

		if token.RefreshToken == "" {
			fmt.Fprintln(w, "No refresh token returned. Revoke app access and re-authorize.")
			return
		}

		tokenJSON, err := json.MarshalIndent(token, "", "  ")
		if err != nil {
			http.Error(w, "failed to marshal token", http.StatusInternalServerError)
			return
		}

		s.logger.Infof("Received Google Drive refresh token")
		fmt.Fprintf(w, "Set transport.gdrive.refresh_token to:\n%s\n\nFull Token JSON:\n%s", token.RefreshToken, tokenJSON)
	})

	return mux
}

// Serve listens on addr until ctx is cancelled.
func (s *DriveAuth) Serve(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Google Drive OAuth server listening on %s, open /auth/google/drive", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("oauth server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown OAuth server: %w", err)
	}
	s.logger.Infof("OAuth server stopped")
	return nil
}
