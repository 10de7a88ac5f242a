// Package telegram talks to the Bot API: parts go out with sendDocument and
// job status lives in one message per job, edited in place.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/linkrelay/internal/utils"
)

const DefaultAPIURL = "https://api.telegram.org"

// text messages are capped at 4096 characters
const maxMessageLen = 4096

type Options struct {
	APIURL string
	Token  string
	ChatID string
	HTTP   utils.HTTPClientConfig
}

type Client struct {
	apiURL string
	token  string
	chatID string
	client *utils.RelayHTTPClient

	mu       sync.Mutex
	messages map[string]int64 // status handle to message_id
}

// APIError is a Bot API failure other than flood control.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// RateLimitError matches utils.ErrRateLimited and carries the server's
// retry_after hint.
type RateLimitError struct {
	Method     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("telegram %s: rate limited, retry after %s", e.Method, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return utils.ErrRateLimited
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

type message struct {
	MessageID int64 `json:"message_id"`
}

func New(opts Options) (*Client, error) {
	if opts.Token == "" {
		return nil, errors.New("telegram bot token is required")
	}
	if opts.ChatID == "" {
		return nil, errors.New("telegram chat id is required")
	}
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	if opts.HTTP.Timeout == 0 {
		// uploads of a full part take a while on slow links
		opts.HTTP.Timeout = 10 * time.Minute
	}
	return &Client{
		apiURL:   strings.TrimSuffix(opts.APIURL, "/"),
		token:    opts.Token,
		chatID:   opts.ChatID,
		client:   utils.NewRelayHTTPClient(opts.HTTP),
		messages: map[string]int64{},
	}, nil
}

func (c *Client) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.apiURL, c.token, method)
}

func (c *Client) call(ctx context.Context, method, contentType string, body io.Reader) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(method), body)
	if err != nil {
		return nil, fmt.Errorf("error creating %s request: %v", method, err)
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.client.Do(req)
	if err != nil {
		// the URL carries the token; keep it out of logs
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("telegram %s: %v", method, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("telegram %s: error reading response: %v", method, err)
	}
	var decoded apiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("telegram %s: status %d, undecodable response", method, resp.StatusCode)
	}
	if resp.StatusCode == http.StatusTooManyRequests || decoded.ErrorCode == http.StatusTooManyRequests {
		retryAfter := time.Second
		if decoded.Parameters != nil && decoded.Parameters.RetryAfter > 0 {
			retryAfter = time.Duration(decoded.Parameters.RetryAfter) * time.Second
		}
		return nil, &RateLimitError{Method: method, RetryAfter: retryAfter}
	}
	if !decoded.OK {
		code := decoded.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return nil, &APIError{Method: method, Code: code, Description: decoded.Description}
	}
	return decoded.Result, nil
}

func (c *Client) callJSON(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, method, "application/json", bytes.NewReader(body))
}

func (c *Client) sendMessage(ctx context.Context, text string, replyTo int64) (int64, error) {
	payload := map[string]any{"chat_id": c.chatID, "text": truncate(text)}
	if replyTo != 0 {
		payload["reply_parameters"] = map[string]any{"message_id": replyTo, "allow_sending_without_reply": true}
	}
	raw, err := c.callJSON(ctx, "sendMessage", payload)
	if err != nil {
		return 0, err
	}
	var msg message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return 0, fmt.Errorf("telegram sendMessage: error decoding message: %v", err)
	}
	return msg.MessageID, nil
}

// Edit sends the first status text for handle as a new message and edits
// that message afterwards.
func (c *Client) Edit(ctx context.Context, handle, text string) error {
	c.mu.Lock()
	id, ok := c.messages[handle]
	c.mu.Unlock()
	if !ok {
		newID, err := c.sendMessage(ctx, text, 0)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.messages[handle] = newID
		c.mu.Unlock()
		log.Debug().Str("op", "telegram/client").Msgf("status message %d for %s", newID, handle)
		return nil
	}
	_, err := c.callJSON(ctx, "editMessageText", map[string]any{
		"chat_id":    c.chatID,
		"message_id": id,
		"text":       truncate(text),
	})
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.Contains(apiErr.Description, "message is not modified") {
		return nil
	}
	return err
}

// Notify posts a separate message, threaded under the job's status message
// when there is one.
func (c *Client) Notify(ctx context.Context, handle, text string) error {
	c.mu.Lock()
	replyTo := c.messages[handle]
	c.mu.Unlock()
	_, err := c.sendMessage(ctx, text, replyTo)
	return err
}

func truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= maxMessageLen {
		return text
	}
	return string(runes[:maxMessageLen-1]) + "…"
}
