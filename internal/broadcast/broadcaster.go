package broadcast

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("broadcast")

const DefaultInterval = 100 * time.Millisecond

type Message struct {
	Text    string `json:"text"`
	PhotoID string `json:"photo_id,omitempty"`
}

type Sender interface {
	Send(ctx context.Context, chatID int64, msg Message) error
}

type Report struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Broadcaster delivers one message to many chats, pacing sends to stay under
// the chat platform's rate limits.
type Broadcaster struct {
	sender   Sender
	interval time.Duration
	logger   *slog.Logger
}

func NewBroadcaster(sender Sender, interval time.Duration, logger *slog.Logger) *Broadcaster {
	if interval < 0 {
		interval = DefaultInterval
	}
	return &Broadcaster{
		sender:   sender,
		interval: interval,
		logger:   logger,
	}
}

// Send delivers msg to every recipient in order. A failed recipient is
// counted and skipped. When ctx ends early the recipients not yet attempted
// count as failed.
func (b *Broadcaster) Send(ctx context.Context, recipients []int64, msg Message) Report {
	ctx, span := tracer.Start(ctx, "broadcast.send",
		trace.WithAttributes(attribute.Int("broadcast.recipients", len(recipients))))
	defer span.End()

	report := Report{Total: len(recipients)}

	for i, chatID := range recipients {
		if i > 0 && b.interval > 0 {
			timer := time.NewTimer(b.interval)
			select {
			case <-ctx.Done():
				timer.Stop()
			case <-timer.C:
			}
		}

		if ctx.Err() != nil {
			report.Failed += len(recipients) - i
			b.logger.Warn("broadcast interrupted", "error", ctx.Err(), "remaining", len(recipients)-i)
			break
		}

		if err := b.sender.Send(ctx, chatID, msg); err != nil {
			report.Failed++
			b.logger.Error("failed to deliver broadcast", "error", err, "chat_id", chatID)
			continue
		}
		report.Succeeded++
	}

	span.SetAttributes(
		attribute.Int("broadcast.succeeded", report.Succeeded),
		attribute.Int("broadcast.failed", report.Failed),
	)
	return report
}
