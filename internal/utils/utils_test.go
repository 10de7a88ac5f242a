package utils

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartName(t *testing.T) {
	tests := []struct {
		seq, total int
		want       string
	}{
		{1, 1, "f.bin"},
		{1, 4, "f.bin.part001"},
		{4, 4, "f.bin.part004"},
		{12, 1000, "f.bin.part0012"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PartName("f.bin", tt.seq, tt.total))
	}
}

func TestPartCount(t *testing.T) {
	mb := uint64(1024 * 1024)
	assert.Equal(t, 4, PartCount(150*mb, 49*mb))
	assert.Equal(t, 1, PartCount(49*mb, 49*mb))
	assert.Equal(t, 2, PartCount(49*mb+1, 49*mb))
	assert.Equal(t, 1, PartCount(0, 49*mb))
}

func TestExtractPartID(t *testing.T) {
	id, err := ExtractPartID("movie.mkv.part007")
	require.NoError(t, err)
	assert.Equal(t, 7, id)
	_, err = ExtractPartID("movie.mkv")
	assert.Error(t, err)
}

func TestValidateURL(t *testing.T) {
	assert.NoError(t, ValidateURL("https://mega.nz/file/x#y"))
	assert.NoError(t, ValidateURL("http://example.com"))
	assert.ErrorIs(t, ValidateURL("ftp://example.com"), ErrInvalidURL)
	assert.ErrorIs(t, ValidateURL("mega.nz/file/x"), ErrInvalidURL)
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "a_b_c", SanitizeFileName("a/b\\c"))
	assert.Equal(t, "download", SanitizeFileName(" .. "))
	assert.Equal(t, "tab_name", SanitizeFileName("tab\tname"))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.50 KB", FormatBytes(1536))
	assert.Equal(t, "49.00 MB", FormatBytes(DefaultPartSize))
}

func TestParseHeaderArgs(t *testing.T) {
	got := ParseHeaderArgs([]string{"Authorization: Basic abc", "broken", "X-Empty:"})
	assert.Equal(t, map[string]string{"Authorization": "Basic abc", "X-Empty": ""}, got)
}

func writeParts(t *testing.T, dir string, parts map[string]string) {
	t.Helper()
	for name, body := range parts {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
}

func TestJoinParts(t *testing.T) {
	dir := t.TempDir()
	writeParts(t, dir, map[string]string{
		"f.bin.part002": "world",
		"f.bin.part001": "hello ",
		"f.bin.part003": "!",
		"other.part001": "nope",
		"f.bin.tmp":     "stale",
	})
	dest := filepath.Join(t.TempDir(), "f.bin")
	n, written, err := JoinParts(dir, "f.bin", dest)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, uint64(12), written)
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hello world!", string(got))
}

func TestListPartsGap(t *testing.T) {
	dir := t.TempDir()
	writeParts(t, dir, map[string]string{"f.part001": "a", "f.part003": "c"})
	_, err := ListParts(dir, "f")
	assert.ErrorContains(t, err, "part 2 of f is missing")

	_, err = ListParts(dir, "missing")
	assert.Error(t, err)
}

func TestCleanTempParts(t *testing.T) {
	dir := t.TempDir()
	writeParts(t, dir, map[string]string{"a.part001.tmp": "x", "b.tmp": "y", "keep.part001": "z"})
	removed, err := CleanTempParts(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	_, err = os.Stat(filepath.Join(dir, "keep.part001"))
	assert.NoError(t, err)
}

func TestRelayHTTPClientHeaders(t *testing.T) {
	seen := make(chan http.Header, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Clone()
	}))
	defer server.Close()

	client := NewRelayHTTPClient(HTTPClientConfig{
		UserAgent: "relay-test",
		Headers:   map[string]string{"X-Default": "d", "Cookie": "default"},
	})
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Cookie", "ndus=abc")
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	h := <-seen
	assert.Equal(t, "relay-test", h.Get("User-Agent"))
	assert.Equal(t, "d", h.Get("X-Default"))
	assert.Equal(t, "ndus=abc", h.Get("Cookie"), "request headers win over defaults")

	client = NewRelayHTTPClient(HTTPClientConfig{})
	req, _ = http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, ToolUserAgent, (<-seen).Get("User-Agent"))
}
