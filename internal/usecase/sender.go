package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/semmidev/sqlcourier/internal/domain"
)

// Sender delivers a payload through a freshly built transport and retries a
// transient failure exactly once.
type Sender struct {
	newTransport domain.TransportFactory
	backoff      time.Duration
	logger       Logger
	sleep        func(ctx context.Context, d time.Duration) error
}

func NewSender(newTransport domain.TransportFactory, backoff time.Duration, logger Logger) *Sender {
	return &Sender{
		newTransport: newTransport,
		backoff:      backoff,
		logger:       logger,
		sleep:        sleepContext,
	}
}

// Send returns how many delivery attempts were made. recheck runs after the
// backoff and before the retry; if it fails the retry is abandoned and its
// error returned as is.
func (s *Sender) Send(ctx context.Context, payload domain.Payload, recheck func() error) (int, error) {
	transport, err := s.newTransport(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: create transport: %w", domain.ErrTransport, err)
	}

	err = transport.Send(ctx, payload)
	if err == nil {
		return 1, nil
	}

	if !domain.IsTransient(err) || ctx.Err() != nil {
		return 1, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}

	s.logger.Warnf("Upload via %s failed (%v), retrying in %s", transport.Name(), err, s.backoff)
	if err := s.sleep(ctx, s.backoff); err != nil {
		return 1, fmt.Errorf("%w: retry aborted: %w", domain.ErrTransport, err)
	}

	if recheck != nil {
		if err := recheck(); err != nil {
			return 1, err
		}
	}

	if err := transport.Send(ctx, payload); err != nil {
		return 2, fmt.Errorf("%w: retry failed: %w", domain.ErrTransport, err)
	}

	s.logger.Infof("Upload via %s succeeded on retry", transport.Name())
	return 2, nil
}
