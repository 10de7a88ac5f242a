package mega

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
)

const DefaultAPIURL = "https://g.api.mega.co.nz"

// Mega answers "try again" with a bare -3 body on an HTTP 200
const codeEAGAIN = -3

var apiErrors = map[int]string{
	-1:  "internal error",
	-2:  "invalid arguments",
	-3:  "request failed, retry",
	-4:  "rate limit exceeded",
	-9:  "object not found",
	-11: "access denied",
	-14: "decryption failed",
	-16: "object blocked or taken down",
	-17: "over quota",
	-18: "temporarily unavailable",
}

type APIError struct {
	Code int
}

func (e APIError) Error() string {
	if msg, ok := apiErrors[e.Code]; ok {
		return fmt.Sprintf("mega api error %d: %s", e.Code, msg)
	}
	return fmt.Sprintf("mega api error %d", e.Code)
}

type downloadRequest struct {
	Action string `json:"a"`
	G      int    `json:"g"`
	SSL    int    `json:"ssl,omitempty"`
	Handle string `json:"p"`
}

type downloadResponse struct {
	Size uint64 `json:"s"`
	Attr string `json:"at"`
	URL  string `json:"g"`
	Err  int    `json:"e"`
}

type retryLogger struct{}

func (retryLogger) Error(msg string, keysAndValues ...any) {
	log.Error().Str("op", "mega/api").Fields(keysAndValues).Msg(msg)
}
func (retryLogger) Info(msg string, keysAndValues ...any) {}
func (retryLogger) Debug(msg string, keysAndValues ...any) {
	log.Debug().Str("op", "mega/api").Fields(keysAndValues).Msg(msg)
}
func (retryLogger) Warn(msg string, keysAndValues ...any) {
	log.Warn().Str("op", "mega/api").Fields(keysAndValues).Msg(msg)
}

type apiClient struct {
	baseURL string
	client  *retryablehttp.Client
	seq     atomic.Uint64
}

func newAPIClient(baseURL string, httpClient *http.Client, retries int) *apiClient {
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = retries
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 8 * time.Second
	retryClient.Logger = retryLogger{}
	retryClient.CheckRetry = checkRetry
	c := &apiClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  retryClient,
	}
	c.seq.Store(uint64(time.Now().UnixNano() % 1_000_000_000))
	return c
}

// checkRetry keeps the default policy (connection errors, 429, 5xx) and adds
// Mega's EAGAIN body, which arrives with status 200.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	retry, policyErr := retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	if retry || policyErr != nil || resp == nil || resp.StatusCode != http.StatusOK {
		return retry, policyErr
	}
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 64))
	if readErr != nil {
		return true, nil
	}
	rest := resp.Body
	resp.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(body), rest), rest}
	trimmed := strings.Trim(strings.TrimSpace(string(body)), "[]")
	if code, convErr := strconv.Atoi(trimmed); convErr == nil && code == codeEAGAIN {
		return true, nil
	}
	return false, nil
}

// request posts a single command and returns the raw element of the response
// array, or an APIError if Mega answered with a numeric code.
func (c *apiClient) request(ctx context.Context, command any) (json.RawMessage, error) {
	payload, err := json.Marshal([]any{command})
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/cs?id=%d", c.baseURL, c.seq.Add(1))
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, payload)
	if err != nil {
		return nil, fmt.Errorf("error creating API request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making API request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status code: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading API response: %v", err)
	}

	var code int
	if err := json.Unmarshal(body, &code); err == nil {
		return nil, APIError{Code: code}
	}
	var results []json.RawMessage
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("error decoding API response: %v", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("empty API response")
	}
	if err := json.Unmarshal(results[0], &code); err == nil {
		return nil, APIError{Code: code}
	}
	return results[0], nil
}

func (c *apiClient) getDownload(ctx context.Context, handle string) (downloadResponse, error) {
	raw, err := c.request(ctx, downloadRequest{Action: "g", G: 1, SSL: 2, Handle: handle})
	if err != nil {
		return downloadResponse{}, err
	}
	var resp downloadResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return downloadResponse{}, fmt.Errorf("error decoding download response: %v", err)
	}
	if resp.Err != 0 {
		return downloadResponse{}, APIError{Code: resp.Err}
	}
	if resp.URL == "" {
		return downloadResponse{}, fmt.Errorf("download URL missing from response")
	}
	return resp, nil
}
