package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mtzanidakis/swarmlink/internal/orchestrator"
)

// NotifyFunc delivers an alert text.
type NotifyFunc func(ctx context.Context, text string) error

// Alerter reports runs of consecutive failed cycles. It sends one alert when
// the run reaches the threshold and one recovery notice on the next success.
type Alerter struct {
	notify    NotifyFunc
	threshold int

	mu          sync.Mutex
	consecutive int
	alerted     bool
}

func NewAlerter(threshold int, notify NotifyFunc) *Alerter {
	return &Alerter{notify: notify, threshold: threshold}
}

// Observe is an orchestrator result listener.
func (a *Alerter) Observe(ctx context.Context, res orchestrator.Result) {
	if a.threshold <= 0 || res.Status == orchestrator.StatusCanceled {
		return
	}

	text := a.next(res)
	if text == "" {
		return
	}
	if err := a.notify(ctx, text); err != nil {
		slog.Error("failed to send alert", "error", err)
	}
}

func (a *Alerter) next(res orchestrator.Result) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if res.OK() {
		failed := a.consecutive
		wasAlerted := a.alerted
		a.consecutive = 0
		a.alerted = false
		if wasAlerted {
			return fmt.Sprintf("Routing table recovered at cycle %d after %d failed cycles", res.Seq, failed)
		}
		return ""
	}

	a.consecutive++
	if a.consecutive == a.threshold && !a.alerted {
		a.alerted = true
		msg := fmt.Sprintf("%d consecutive cycles failed, last status %s", a.consecutive, res.Status)
		if res.Err != nil {
			msg += ": " + res.Err.Error()
		}
		return msg + "\nPublishing the last known routing table"
	}
	return ""
}
