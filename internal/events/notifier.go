package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

type WebhookNotifier struct {
	client *http.Client
	url    string
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    url,
	}
}

// Notify POSTs ev as JSON. Any non-2xx response is an error.
func (n *WebhookNotifier) Notify(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook failed with status code %d", resp.StatusCode)
	}

	return nil
}

// WriterNotifier prints one JSON line per event.
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

func (n *WriterNotifier) Notify(_ context.Context, ev Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return json.NewEncoder(n.w).Encode(ev)
}
