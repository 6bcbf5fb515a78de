package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"delta-hedge-bot/internal/events"

	"go.uber.org/zap"
)

const defaultRepeatAfter = 10 * time.Minute

type Sender interface {
	Send(ctx context.Context, message string) error
}

// Notifier forwards executed hedges and error logs to a Sender. Identical
// error messages are suppressed until repeatAfter has passed.
type Notifier struct {
	sender      Sender
	log         *zap.Logger
	repeatAfter time.Duration
	now         func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

func NewNotifier(sender Sender, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{
		sender:      sender,
		log:         log,
		repeatAfter: defaultRepeatAfter,
		now:         time.Now,
		lastSent:    make(map[string]time.Time),
	}
}

// Run drains the subscription until it closes or ctx is done.
func (n *Notifier) Run(ctx context.Context, sub *events.Subscription) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			n.Handle(ctx, ev)
		}
	}
}

func (n *Notifier) Handle(ctx context.Context, ev events.Event) {
	message, ok := n.format(ev)
	if !ok {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := n.sender.Send(sendCtx, message); err != nil {
		n.log.Warn("alert send failed", zap.Error(err))
	}
}

func (n *Notifier) format(ev events.Event) (string, bool) {
	switch payload := ev.Payload.(type) {
	case events.TradeExecuted:
		return fmt.Sprintf("hedge executed: %s %.4f (delta before %.4f, total trades %d)",
			payload.Side, payload.Size, payload.DeltaBefore, payload.TotalTrades), true
	case events.LogEmitted:
		if payload.Level != "ERROR" {
			return "", false
		}
		if !n.allow(payload.Message) {
			return "", false
		}
		return "error: " + payload.Message, true
	}
	return "", false
}

func (n *Notifier) allow(message string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	now := n.now()
	if last, ok := n.lastSent[message]; ok && now.Sub(last) < n.repeatAfter {
		return false
	}
	for key, ts := range n.lastSent {
		if now.Sub(ts) >= n.repeatAfter {
			delete(n.lastSent, key)
		}
	}
	n.lastSent[message] = now
	return true
}
