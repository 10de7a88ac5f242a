package mediafire

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/linkrelay/internal/testutils"
	"github.com/tanq16/linkrelay/internal/utils"
)

const sharePage = `<html><body>
<a href="https://www.mediafire.com/upgrade">Upgrade</a>
<a class="input popsok" aria-label="Download file" href="https://download1501.mediafire.com/abc123/archive%20v2.zip" id="downloadButton">Download (12KB)</a>
</body></html>`

func newMediafireServer(t *testing.T, page string, data []byte, disposition string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/file/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	})
	mux.HandleFunc("/abc123/", func(w http.ResponseWriter, r *http.Request) {
		if disposition != "" {
			w.Header().Set("Content-Disposition", disposition)
		}
		http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(data))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestCanHandle(t *testing.T) {
	src := New(utils.HTTPClientConfig{})
	assert.True(t, src.CanHandle("https://www.mediafire.com/file/abc/f.zip/file"))
	assert.True(t, src.CanHandle("http://mediafire.com/file/abc"))
	assert.False(t, src.CanHandle("https://mega.nz/file/abc#key"))
	assert.False(t, src.CanHandle("https://evil.example/?u=mediafire.com/"))
}

func TestResolveAndFetch(t *testing.T) {
	data := testutils.GenerateTestData(12_345)
	server := newMediafireServer(t, sharePage, data, `attachment; filename="archive v2.zip"`)
	src := New(utils.HTTPClientConfig{Transport: testutils.NewRewriteTransport(t, server.URL)})

	info, err := src.Resolve(context.Background(), "https://www.mediafire.com/file/abc123/archive_v2.zip/file")
	require.NoError(t, err)
	assert.Equal(t, "archive v2.zip", info.Name)
	assert.Equal(t, uint64(len(data)), info.Size)
	assert.Nil(t, info.Cipher)
	assert.True(t, strings.HasSuffix(info.DirectURL, "/abc123/archive%20v2.zip"))

	got, err := src.FetchRange(context.Background(), info, 100, 4_099)
	require.NoError(t, err)
	assert.Equal(t, data[100:4_100], got)
}

func TestResolveNameFromURLWithoutDisposition(t *testing.T) {
	server := newMediafireServer(t, sharePage, []byte("hello"), "")
	src := New(utils.HTTPClientConfig{Transport: testutils.NewRewriteTransport(t, server.URL)})
	info, err := src.Resolve(context.Background(), "https://www.mediafire.com/file/abc123/x/file")
	require.NoError(t, err)
	assert.Equal(t, "archive v2.zip", info.Name)
}

func TestResolveNoDownloadLink(t *testing.T) {
	server := newMediafireServer(t, `<html><a href="/help">help</a></html>`, nil, "")
	src := New(utils.HTTPClientConfig{Transport: testutils.NewRewriteTransport(t, server.URL)})
	_, err := src.Resolve(context.Background(), "https://www.mediafire.com/file/abc123/x/file")
	assert.ErrorIs(t, err, utils.ErrMetadataUnavailable)
}

func TestResolveRejectsOtherHosts(t *testing.T) {
	src := New(utils.HTTPClientConfig{})
	_, err := src.Resolve(context.Background(), "https://example.com/file.zip")
	assert.ErrorIs(t, err, utils.ErrUnsupportedLink)
}

func TestFindDownloadLinkFallbacks(t *testing.T) {
	base, _ := url.Parse("https://www.mediafire.com/file/abc/f.zip/file")
	tests := []struct {
		name string
		page string
		want string
	}{
		{"id only", `<a id="downloadButton" href="https://dl.example/f.zip">x</a>`, "https://dl.example/f.zip"},
		{"download host", `<a href="/about">a</a><a href="https://download9.mediafire.com/q/f.zip">d</a>`, "https://download9.mediafire.com/q/f.zip"},
		{"javascript button ignored", `<a aria-label="Download file" href="javascript:void(0)">x</a>`, ""},
		{"nothing", `<p>removed</p>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, findDownloadLink(strings.NewReader(tt.page), base))
		})
	}
}
