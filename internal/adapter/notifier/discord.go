package notifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/semmidev/sqlcourier/internal/config"
	"github.com/semmidev/sqlcourier/internal/domain"
	"github.com/spf13/afero"
)

const discordAPIBase = "https://discord.com/api"

type DiscordWebhook struct {
	fs      afero.Fs
	client  *http.Client
	baseURL string
	id      string
	token   string
}

type discordWebhookPayload struct {
	Username string         `json:"username,omitempty"`
	Embeds   []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

func NewDiscord(fs afero.Fs, cfg *config.TransportConfig) (*DiscordWebhook, error) {
	id, token, err := config.ParseWebhookURL(cfg.WebhookURL)
	if err != nil {
		return nil, fmt.Errorf("invalid discord webhook: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &DiscordWebhook{
		fs:      fs,
		client:  &http.Client{Timeout: timeout},
		baseURL: discordAPIBase,
		id:      id,
		token:   token,
	}, nil
}

func (d *DiscordWebhook) Name() string {
	return "discord"
}

func (d *DiscordWebhook) Send(ctx context.Context, payload domain.Payload) error {
	body, contentType, err := d.buildBody(payload)
	if err != nil {
		return &domain.TransportError{Transport: d.Name(), Err: err}
	}

	url := fmt.Sprintf("%s/webhooks/%s/%s", d.baseURL, d.id, d.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return &domain.TransportError{Transport: d.Name(), Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := d.client.Do(req)
	if err != nil {
		return &domain.TransportError{
			Transport: d.Name(),
			Transient: domain.IsTransient(err) && !errors.Is(err, context.Canceled),
			Err:       fmt.Errorf("failed to send webhook: %w", err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &domain.TransportError{
		Transport:  d.Name(),
		StatusCode: resp.StatusCode,
		Transient:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		Err:        fmt.Errorf("discord webhook rejected upload: %s", bytes.TrimSpace(msg)),
	}
}

// buildBody renders the multipart form Discord expects for an embed with an
// attached file.
func (d *DiscordWebhook) buildBody(payload domain.Payload) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	meta, err := json.Marshal(discordWebhookPayload{
		Username: payload.Username,
		Embeds: []discordEmbed{{
			Title:       payload.Title,
			Description: payload.Description,
			Color:       payload.Color,
		}},
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := writer.WriteField("payload_json", string(meta)); err != nil {
		return nil, "", fmt.Errorf("failed to write payload: %w", err)
	}

	if payload.AttachmentPath != "" {
		file, err := d.fs.Open(payload.AttachmentPath)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open attachment: %w", err)
		}
		defer file.Close()

		part, err := writer.CreateFormFile("files[0]", filepath.Base(payload.AttachmentPath))
		if err != nil {
			return nil, "", fmt.Errorf("failed to create attachment part: %w", err)
		}
		if _, err := io.Copy(part, file); err != nil {
			return nil, "", fmt.Errorf("failed to read attachment: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}
