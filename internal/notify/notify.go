package notify

import (
	"context"
	"log"
)

// Sender is the outbound notification boundary. Delivery is owned by the
// platform's mailer; callers fire and forget and must never block a
// request on it.
type Sender interface {
	Send(ctx context.Context, userID, subject, body string) error
}

type logSender struct{}

// NewLogSender returns a Sender that only logs, for environments without
// a mailer wired in.
func NewLogSender() Sender {
	return &logSender{}
}

func (s *logSender) Send(ctx context.Context, userID, subject, body string) error {
	log.Printf("notify user=%s subject=%q", userID, subject)
	return nil
}
