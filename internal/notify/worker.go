package notify

import (
	"context"
	"log"
	"time"

	"seatwatch/internal/metrics"
	"seatwatch/internal/store"
)

// Worker drains the notification queue: at-least-once delivery with
// exponential backoff and a max-attempts cutoff. An exhausted message is
// marked failed and logged; it never propagates upward and never touches
// route state.
type Worker struct {
	Store       store.Store
	Sender      Sender
	Stop        chan struct{}
	MaxAttempts int
	Interval    time.Duration
}

func NewWorker(s store.Store, sender Sender, maxAttempts int) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Worker{Store: s, Sender: sender, Stop: make(chan struct{}), MaxAttempts: maxAttempts, Interval: time.Second}
}

func (w *Worker) Start() {
	go func() {
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.Stop:
				return
			case <-ticker.C:
				w.processOnce()
			}
		}
	}()
}

func (w *Worker) processOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	items, err := w.Store.FetchDueNotifications(ctx, 50)
	if err != nil || len(items) == 0 {
		return
	}
	for _, n := range items {
		err := w.Sender.Send(n.Recipient, n.Subject, n.Body)
		if err == nil {
			_ = w.Store.MarkNotification(ctx, n.ID, true, nil, "")
			metrics.Notifications.WithLabelValues("sent").Inc()
			continue
		}
		if n.Attempts+1 >= w.MaxAttempts {
			log.Printf("notify: dropping notification %s for %s after %d attempts: %v", n.ID, n.Recipient, n.Attempts+1, err)
			_ = w.Store.FailNotification(ctx, n.ID, err.Error())
			metrics.Notifications.WithLabelValues("dropped").Inc()
			continue
		}
		next := time.Now().Add(nextBackoff(n.Attempts))
		_ = w.Store.MarkNotification(ctx, n.ID, false, &next, err.Error())
		metrics.Notifications.WithLabelValues("retried").Inc()
	}
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
