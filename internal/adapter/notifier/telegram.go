package notifier

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/semmidev/sqlcourier/internal/config"
	"github.com/semmidev/sqlcourier/internal/domain"
	"github.com/spf13/afero"
)

type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Telegram struct {
	fs     afero.Fs
	bot    telegramSender
	chatID int64
}

func NewTelegram(fs afero.Fs, cfg *config.TransportConfig) (*Telegram, error) {
	chatID, err := strconv.ParseInt(cfg.Telegram.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q: %w", cfg.Telegram.ChatID, err)
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return nil, &domain.TransportError{
			Transport: "telegram",
			Err:       fmt.Errorf("failed to create telegram bot: %w", err),
		}
	}

	return &Telegram{fs: fs, bot: bot, chatID: chatID}, nil
}

func (t *Telegram) Name() string {
	return "telegram"
}

func (t *Telegram) Send(ctx context.Context, payload domain.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	file, err := t.fs.Open(payload.AttachmentPath)
	if err != nil {
		return &domain.TransportError{Transport: t.Name(), Err: fmt.Errorf("failed to open attachment: %w", err)}
	}
	defer file.Close()

	doc := tgbotapi.NewDocument(t.chatID, tgbotapi.FileReader{
		Name:   filepath.Base(payload.AttachmentPath),
		Reader: file,
	})
	doc.Caption = telegramCaption(payload)

	if _, err := t.bot.Send(doc); err != nil {
		return &domain.TransportError{
			Transport: t.Name(),
			Transient: domain.IsTransient(err),
			Err:       fmt.Errorf("failed to send telegram file: %w", err),
		}
	}

	return nil
}

func telegramCaption(p domain.Payload) string {
	status := "Original"
	if p.Compressed {
		status = "Compressed (.gz)"
	}
	return fmt.Sprintf(
		"📦 %s\n\n🕐 Time: %s\n📊 Size: %s\n🗜 Status: %s",
		p.Title,
		p.CreatedAt.Format("2006-01-02 15:04:05"),
		p.SizeText,
		status,
	)
}
