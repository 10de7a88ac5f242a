package relayhttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/linkrelay/internal/utils"
)

// GetRange downloads the inclusive byte range [start, end] of link. Servers
// may answer 200 only when the range covers the whole object from offset 0.
func GetRange(ctx context.Context, client utils.HTTPDoer, link string, headers map[string]string, start, end uint64) ([]byte, error) {
	if end < start {
		return nil, fmt.Errorf("%w: invalid range %d-%d", utils.ErrRangeFetchFailed, start, end)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: error creating request: %v", utils.ErrRangeFetchFailed, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
	req.Header.Set("Connection", "keep-alive")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrRangeFetchFailed, err)
	}
	defer resp.Body.Close()

	expected := end - start + 1
	switch resp.StatusCode {
	case http.StatusPartialContent:
		// the CTR offset of Mega content depends on getting exactly this slice
		gotStart, gotEnd, ok := parseContentRange(resp.Header.Get("Content-Range"))
		if !ok || gotStart != start || gotEnd != end {
			return nil, fmt.Errorf("%w: asked for bytes %d-%d, server sent %q", utils.ErrRangeFetchFailed, start, end, resp.Header.Get("Content-Range"))
		}
	case http.StatusOK:
		// range ignored; only usable when the full body is exactly what we asked for
		if start != 0 || (resp.ContentLength >= 0 && uint64(resp.ContentLength) != expected) {
			return nil, fmt.Errorf("%w: server ignored range request (status 200)", utils.ErrRangeFetchFailed)
		}
	default:
		return nil, fmt.Errorf("%w: unexpected status code %d", utils.ErrRangeFetchFailed, resp.StatusCode)
	}

	buffer := make([]byte, expected)
	read, err := io.ReadFull(resp.Body, buffer)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: size mismatch: expected %d bytes, got %d", utils.ErrRangeFetchFailed, expected, read)
		}
		return nil, fmt.Errorf("%w: error reading response body: %v", utils.ErrRangeFetchFailed, err)
	}
	log.Debug().Str("op", "http/download").Msgf("fetched bytes %d-%d (%s)", start, end, utils.FormatBytes(expected))
	return buffer, nil
}

// parseContentRange reads "bytes first-last/total" (total may be "*").
func parseContentRange(value string) (uint64, uint64, bool) {
	spec, ok := strings.CutPrefix(strings.TrimSpace(value), "bytes ")
	if !ok {
		return 0, 0, false
	}
	span, _, ok := strings.Cut(spec, "/")
	if !ok {
		return 0, 0, false
	}
	first, last, ok := strings.Cut(span, "-")
	if !ok {
		return 0, 0, false
	}
	start, err := strconv.ParseUint(strings.TrimSpace(first), 10, 64)
	if err != nil {
		return 0, 0, false
	}
	end, err := strconv.ParseUint(strings.TrimSpace(last), 10, 64)
	if err != nil || end < start {
		return 0, 0, false
	}
	return start, end, true
}
