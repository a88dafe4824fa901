package webhook

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Forwarder relays raw new-message events to a per-instance configured
// URL. Relay failures never affect the response to the provider.
type Forwarder struct {
	http   *http.Client
	logger *slog.Logger
}

func NewForwarder(log *slog.Logger, timeout time.Duration) *Forwarder {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Forwarder{
		http:   &http.Client{Timeout: timeout},
		logger: log.With(slog.String("service", "forwarder")),
	}
}

// Relay POSTs the original payload verbatim to the forwarding URL.
func (f *Forwarder) Relay(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("forward target returned %d", resp.StatusCode)
	}
	return nil
}
