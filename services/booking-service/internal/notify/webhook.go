package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Webhook posts each request as JSON to a single endpoint. Any non-2xx
// reply counts as a failed hand-off.
type Webhook struct {
	url   string
	token string
	http  *http.Client
}

func NewWebhook(url, token string) *Webhook {
	return &Webhook{
		url:   strings.TrimSpace(url),
		token: strings.TrimSpace(token),
		http:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (w *Webhook) Notify(ctx context.Context, req Request) error {
	if w.url == "" {
		return errors.New("notification webhook url not configured")
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Notification-Id", req.ID)
	if w.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+w.token)
	}
	resp, err := w.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification webhook returned %d", resp.StatusCode)
	}
	return nil
}
