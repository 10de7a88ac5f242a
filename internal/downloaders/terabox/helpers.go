package terabox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	shortPathRegex  = regexp.MustCompile(`/s/1([A-Za-z0-9_-]+)`)
	shortQueryRegex = regexp.MustCompile(`[?&]surl=([A-Za-z0-9_-]+)`)
)

type shareEntry struct {
	FileName string  `json:"server_filename"`
	Size     flexInt `json:"size"`
	IsDir    flexInt `json:"isdir"`
	DLink    string  `json:"dlink"`
}

type shareListResponse struct {
	Errno   flexInt      `json:"errno"`
	Message string       `json:"errmsg"`
	List    []shareEntry `json:"list"`
}

// flexInt accepts both 123 and "123"; the share API is not consistent.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if raw == "" || raw == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q", raw)
	}
	*f = flexInt(n)
	return nil
}

// extractShortURL pulls the share code out of /s/1<code> or ?surl=<code>.
// The leading "1" of the path form is not part of the code.
func extractShortURL(link string) (string, bool) {
	if m := shortPathRegex.FindStringSubmatch(link); len(m) == 2 {
		return m[1], true
	}
	if m := shortQueryRegex.FindStringSubmatch(link); len(m) == 2 {
		return m[1], true
	}
	return "", false
}

func (s *TeraboxSource) listShare(ctx context.Context, shortURL string) (shareEntry, error) {
	query := url.Values{}
	query.Set("app_id", "250528")
	query.Set("shorturl", shortURL)
	query.Set("root", "1")
	endpoint := fmt.Sprintf("%s/share/list?%s", s.apiURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return shareEntry{}, fmt.Errorf("error creating request: %v", err)
	}
	for k, v := range s.authHeaders() {
		req.Header.Set(k, v)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return shareEntry{}, fmt.Errorf("error calling share API: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return shareEntry{}, fmt.Errorf("share API returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return shareEntry{}, fmt.Errorf("error reading share API response: %v", err)
	}
	var list shareListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return shareEntry{}, fmt.Errorf("error decoding share API response: %v", err)
	}
	if list.Errno != 0 {
		return shareEntry{}, fmt.Errorf("share API errno %d: %s", list.Errno, list.Message)
	}
	if len(list.List) == 0 {
		return shareEntry{}, fmt.Errorf("share contains no files")
	}
	entry := list.List[0]
	if entry.IsDir != 0 {
		return shareEntry{}, fmt.Errorf("share points to a folder")
	}
	if entry.DLink == "" {
		return shareEntry{}, fmt.Errorf("download link missing from share API response")
	}
	return entry, nil
}
