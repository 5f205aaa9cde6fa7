package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Notifier delivers best-effort account notifications. Callers treat
// failures as log-only; a notification must never roll back a committed
// ledger mutation.
type Notifier interface {
	Notify(ctx context.Context, accountID uuid.UUID, event string, payload map[string]any) error
}

// Webhook posts notification events to a configured URL.
type Webhook struct {
	url    string
	client *http.Client
}

func NewWebhook(url string) *Webhook {
	return &Webhook{
		url: url,
		// Bounded client so a slow receiver cannot block us.
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (w *Webhook) Notify(ctx context.Context, accountID uuid.UUID, event string, payload map[string]any) error {
	body, err := json.Marshal(map[string]any{
		"event":      event,
		"account_id": accountID,
		"payload":    payload,
		"sent_at":    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification receiver returned %d", resp.StatusCode)
	}
	return nil
}

// Nop discards all notifications.
type Nop struct{}

func (Nop) Notify(ctx context.Context, accountID uuid.UUID, event string, payload map[string]any) error {
	return nil
}
