// Package telegram delivers posts through the Bot API sendMessage call.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/nikizi1234-ship-it/Ai-Post/internal/logger"
	"github.com/nikizi1234-ship-it/Ai-Post/internal/retry"
)

// MaxMessageLen is the Bot API ceiling for one text message. Composed text
// must stay under it; Send rejects longer input instead of letting the API
// truncate silently.
const MaxMessageLen = 4096

const defaultAPIBase = "https://api.telegram.org"

type Client struct {
	token   string
	chatID  string
	apiBase string
	http    *http.Client
	retry   retry.Config
}

func New(token, chatID string) *Client {
	return &Client{
		token:   token,
		chatID:  chatID,
		apiBase: defaultAPIBase,
		http:    &http.Client{Timeout: 30 * time.Second},
		retry:   retry.Config{MaxAttempts: 3, Delay: 2 * time.Second},
	}
}

// Send posts text with HTML formatting. allowPreview controls the link
// preview under the message. Transient failures are retried with backoff; an
// error means the message was not acknowledged and must not be recorded as
// delivered.
func (c *Client) Send(ctx context.Context, text string, allowPreview bool) error {
	if text == "" {
		return fmt.Errorf("refusing to send empty message")
	}
	if n := utf8.RuneCountInString(text); n > MaxMessageLen {
		return fmt.Errorf("message length %d exceeds telegram limit %d", n, MaxMessageLen)
	}

	err := retry.Do(ctx, c.retry, func() error {
		return c.sendOnce(ctx, text, allowPreview)
	})
	if err != nil {
		return fmt.Errorf("send to telegram: %w", err)
	}
	logger.Debug("message sent to telegram", "chars", utf8.RuneCountInString(text))
	return nil
}

func (c *Client) sendOnce(ctx context.Context, text string, allowPreview bool) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, c.token)

	payload := map[string]interface{}{
		"chat_id":                  c.chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": !allowPreview,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API error: status %d", resp.StatusCode)
	}
	return nil
}
