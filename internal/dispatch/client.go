package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"gh-pr-relay/internal/config"
	"gh-pr-relay/internal/models"
)

// MessagePoster delivers one channel message. Satisfied by Client and by test
// fakes.
type MessagePoster interface {
	PostMessage(ctx context.Context, token, channel string, msg models.SlackPayload) (string, error)
}

// Client talks to the Slack Web API over plain HTTP with a per-user bearer
// token.
type Client struct {
	httpClient *http.Client
	baseURL    string
	maxRetries int
}

func NewClient(cfg config.SlackConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.APIBaseURL, "/"),
		maxRetries: cfg.MaxRetries,
	}
}

type postMessageRequest struct {
	Channel     string                   `json:"channel"`
	Text        string                   `json:"text"`
	Blocks      []map[string]interface{} `json:"blocks,omitempty"`
	Attachments []map[string]interface{} `json:"attachments,omitempty"`
	UnfurlLinks bool                     `json:"unfurl_links"`
	UnfurlMedia bool                     `json:"unfurl_media"`
}

type postMessageResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	TS    string `json:"ts,omitempty"`
}

// PostMessage sends a chat.postMessage call and returns the message
// timestamp. Rate-limit rejections are retried with backoff; other API errors
// fail immediately.
func (c *Client) PostMessage(ctx context.Context, token, channel string, msg models.SlackPayload) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		ts, err := c.postOnce(ctx, token, channel, msg)
		if err == nil {
			return ts, nil
		}

		lastErr = err
		logrus.Warnf("Failed to post Slack message (attempt %d/%d): %v", attempt, c.maxRetries, err)

		if strings.Contains(err.Error(), "rate") {
			waitTime := time.Duration(attempt*attempt) * time.Second
			logrus.Infof("Rate limited, waiting %v before retry", waitTime)
			select {
			case <-time.After(waitTime):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		} else {
			break
		}
	}
	return "", fmt.Errorf("failed to post Slack message after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) postOnce(ctx context.Context, token, channel string, msg models.SlackPayload) (string, error) {
	body, err := json.Marshal(postMessageRequest{
		Channel:     channel,
		Text:        msg.Text,
		Blocks:      msg.Blocks,
		Attachments: msg.Attachments,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("slack API rate limited")
	}

	var decoded postMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if !decoded.OK {
		if decoded.Error == "" {
			decoded.Error = "unknown Slack API error"
		}
		return "", fmt.Errorf("slack API error: %s", decoded.Error)
	}
	return decoded.TS, nil
}
