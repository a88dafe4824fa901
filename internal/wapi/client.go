// Package wapi is the HTTP client for the messaging provider's REST API:
// chat/group details lookup and inline media download. Every call is
// scoped to an instance via its API key.
package wapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// ChatDetails is the provider's contact/group profile snapshot. Only the
// photo preview is used by the pipeline.
type ChatDetails struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	PhotoURL string `json:"profilePicUrl"`
}

type mediaResponse struct {
	MessageID string `json:"messageId"`
	Mimetype  string `json:"mimetype"`
	Data      string `json:"data"` // base64-encoded bytes
}

// Client talks to the provider API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(log *slog.Logger, baseURL string, timeout time.Duration) *Client {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  log.With(slog.String("service", "wapi")),
	}
}

// GetChatDetails fetches the profile of a chat or group by its provider
// identifier.
func (c *Client) GetChatDetails(ctx context.Context, apiKey, chatID string) (ChatDetails, error) {
	endpoint := fmt.Sprintf("%s/chats/%s", c.baseURL, url.PathEscape(chatID))
	var details ChatDetails
	if err := c.getJSON(ctx, apiKey, endpoint, &details); err != nil {
		return ChatDetails{}, fmt.Errorf("chat details %s: %w", chatID, err)
	}
	return details, nil
}

// DownloadMedia fetches a message's attachment as inline-encoded bytes
// and decodes them.
func (c *Client) DownloadMedia(ctx context.Context, apiKey, messageID string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/messages/%s/media", c.baseURL, url.PathEscape(messageID))
	var resp mediaResponse
	if err := c.getJSON(ctx, apiKey, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("download media %s: %w", messageID, err)
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("decode media %s: %w", messageID, err)
	}
	return data, nil
}

// FetchImage downloads an image (e.g. a profile photo preview) from an
// absolute URL hosted by the provider's CDN.
func (c *Client) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) getJSON(ctx context.Context, apiKey, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
