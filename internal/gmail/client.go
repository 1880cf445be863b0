// Package gmail talks to the Gmail REST API: listing unread mail, fetching
// raw message bodies, and refreshing OAuth access credentials. It also
// houses the plain-text and OTP extraction helpers applied to fetched mail.
package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mailsentry/mailsentry/internal/config"
	"github.com/mailsentry/mailsentry/internal/logger"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://gmail.googleapis.com/gmail/v1"

// unreadQuery restricts listing to unread mail from the last day. Older
// unread mail is irrelevant noise for OTP delivery.
const unreadQuery = "is:unread newer_than:1d"

// Client fetches messages from the Gmail API on behalf of a user.
type Client struct {
	client  *http.Client
	baseURL string
}

// NewClient creates a new Client with the configured request timeout.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		client: &http.Client{
			Timeout: cfg.Poller.RequestTimeout,
		},
		baseURL: defaultBaseURL,
	}
}

// SetBaseURL overrides the API base URL. Used by tests.
func (c *Client) SetBaseURL(base string) {
	c.baseURL = strings.TrimRight(base, "/")
}

type messageRef struct {
	ID string `json:"id"`
}

type listResponse struct {
	Messages []messageRef `json:"messages"`
}

type messageResponse struct {
	Raw string `json:"raw"`
}

// ListUnread returns the ids of unread messages within the recent window,
// capped at limit. An empty mailbox yields an empty slice, not an error.
func (c *Client) ListUnread(ctx context.Context, accessToken string, limit int64) ([]string, error) {
	params := url.Values{}
	params.Set("q", unreadQuery)
	if limit > 0 {
		params.Set("maxResults", strconv.FormatInt(limit, 10))
	}

	endpoint := fmt.Sprintf("%s/users/me/messages?%s", c.baseURL, params.Encode())
	body, err := c.get(ctx, endpoint, accessToken)
	if err != nil {
		return nil, err
	}

	var res listResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("failed to decode message list: %w", err)
	}

	ids := make([]string, 0, len(res.Messages))
	for _, m := range res.Messages {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// FetchRawBody retrieves the base64url-encoded raw RFC-822 content of one
// message and decodes it. A message without raw content yields nil.
func (c *Client) FetchRawBody(ctx context.Context, accessToken, messageID string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/users/me/messages/%s?format=raw", c.baseURL, url.PathEscape(messageID))
	body, err := c.get(ctx, endpoint, accessToken)
	if err != nil {
		return nil, err
	}

	var res messageResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("failed to decode message %s: %w", messageID, err)
	}
	if res.Raw == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(res.Raw, "="))
	if err != nil {
		logger.Warn("undecodable raw message payload", zap.String("message_id", messageID), zap.Error(err))
		return nil, nil
	}
	return raw, nil
}

func (c *Client) get(ctx context.Context, endpoint, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Warn("failed to close response body", zap.Error(closeErr))
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("gmail api returned %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
