package relayhttp

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/tanq16/linkrelay/internal/utils"
)

var filenameRegex = regexp.MustCompile(`[^a-zA-Z0-9_\-\. ()\[\]]+`)

type RemoteInfo struct {
	Size           uint64
	FileName       string
	FinalURL       string
	RangeSupported bool
}

// GetRemoteInfo issues a HEAD against a direct download URL and extracts size
// and file name. Redirects are followed; FinalURL is where they ended.
func GetRemoteInfo(ctx context.Context, client utils.HTTPDoer, link string, headers map[string]string) (RemoteInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, link, nil)
	if err != nil {
		return RemoteInfo{}, fmt.Errorf("error creating request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return RemoteInfo{}, fmt.Errorf("error checking URL: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return RemoteInfo{}, fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	info := RemoteInfo{
		FinalURL:       link,
		FileName:       FileNameFromHeader(resp.Header.Get("Content-Disposition")),
		RangeSupported: resp.Header.Get("Accept-Ranges") == "bytes",
	}
	if resp.Request != nil && resp.Request.URL != nil {
		info.FinalURL = resp.Request.URL.String()
	}
	if info.FileName == "" {
		info.FileName = FileNameFromURL(info.FinalURL)
	}
	contentLength := resp.Header.Get("Content-Length")
	if contentLength == "" {
		return info, errors.New("server didn't provide Content-Length header")
	}
	size, err := strconv.ParseUint(contentLength, 10, 64)
	if err != nil {
		return info, fmt.Errorf("invalid Content-Length %q: %v", contentLength, err)
	}
	info.Size = size
	return info, nil
}

func FileNameFromHeader(contentDisposition string) string {
	if contentDisposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentDisposition)
	if err != nil {
		return ""
	}
	// mime decodes RFC 2231 filename* into filename
	if fn, ok := params["filename"]; ok && fn != "" {
		return filenameRegex.ReplaceAllString(fn, "_")
	}
	return ""
}

func FileNameFromURL(link string) string {
	parsed, err := url.Parse(link)
	if err != nil {
		return ""
	}
	base := path.Base(parsed.Path)
	if base == "/" || base == "." {
		return ""
	}
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	return filenameRegex.ReplaceAllString(strings.TrimSpace(base), "_")
}
