package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/adhera-labs/adhera-backend/pkg/logger"
)

const maxAttempts = 3

// Message is an outbound confirmation mail.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

// Sender delivers a single message. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Dispatcher sends confirmation messages with bounded retries. Delivery
// failure never fails the caller's operation; the caller surfaces it as a
// flag instead.
type Dispatcher struct {
	sender Sender
	logg   *logger.Logger
	sleep  func(time.Duration)
}

// NewDispatcher builds a dispatcher around the given sender.
func NewDispatcher(sender Sender, logg *logger.Logger) (*Dispatcher, error) {
	if sender == nil {
		return nil, fmt.Errorf("sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Dispatcher{sender: sender, logg: logg, sleep: time.Sleep}, nil
}

// Dispatch attempts delivery up to three times with a linearly growing
// delay between tries. It returns false when every attempt failed.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) bool {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := d.sender.Send(ctx, msg)
		if err == nil {
			if attempt > 1 {
				d.logg.Info(d.logg.WithField(ctx, "attempt", attempt), "confirmation mail delivered after retry")
			}
			return true
		}
		lastErr = err
		if attempt < maxAttempts {
			d.sleep(time.Duration(attempt) * time.Second)
		}
	}

	ctx = d.logg.WithFields(ctx, map[string]any{"to": msg.To, "attempts": maxAttempts})
	d.logg.Error(ctx, "confirmation mail delivery failed", lastErr)
	return false
}
