package domain

import (
	"context"
	"time"
)

// Payload is the message delivered with a backup attachment.
type Payload struct {
	Username       string
	Title          string
	Description    string
	Color          int
	AttachmentPath string

	DatabaseName string
	CreatedAt    time.Time
	Size         int64
	SizeText     string
	Compressed   bool
}

type Transport interface {
	Name() string
	Send(ctx context.Context, payload Payload) error
}

// TransportFactory builds a fresh transport client for a single run.
type TransportFactory func(ctx context.Context) (Transport, error)
