package mega

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/linkrelay/internal/megacrypt"
	"github.com/tanq16/linkrelay/internal/testutils"
	"github.com/tanq16/linkrelay/internal/utils"
)

var testCipher = utils.CipherParams{
	Key:     [16]byte{9, 8, 7, 6, 5, 4, 3, 2, 1, 0, 1, 2, 3, 4, 5, 6},
	IVHigh:  0x11223344,
	IVLow:   0x55667788,
	MetaMAC: [2]uint32{1, 2},
}

type fakeAPI struct {
	*httptest.Server
	hits      atomic.Int32
	responses []string
}

func newFakeAPI(t *testing.T, responses ...string) *fakeAPI {
	t.Helper()
	api := &fakeAPI{responses: responses}
	api.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(api.hits.Add(1)) - 1
		body, _ := io.ReadAll(r.Body)
		var cmds []map[string]any
		if err := json.Unmarshal(body, &cmds); err != nil || len(cmds) != 1 || cmds[0]["a"] != "g" {
			w.Write([]byte("-2"))
			return
		}
		w.Write([]byte(api.responses[min(n, len(api.responses)-1)]))
	}))
	t.Cleanup(api.Close)
	return api
}

func shareLink(handle string) string {
	return "https://mega.nz/file/" + handle + "#" + megacrypt.EncodeKey(testCipher)
}

func TestResolveAndFetch(t *testing.T) {
	plain := testutils.GenerateTestData(100_003)
	dl := testutils.NewRangeServer(t, megacrypt.DecryptRange(plain, testCipher, 0))
	at, err := megacrypt.EncryptAttributes(megacrypt.Attributes{Name: "report.pdf"}, testCipher.Key)
	require.NoError(t, err)
	api := newFakeAPI(t, fmt.Sprintf(`[{"s":%d,"at":%q,"g":%q}]`, len(plain), at, dl.URL+"/dl"))

	src := New(utils.HTTPClientConfig{}, Options{APIURL: api.URL, APIRetries: -1})
	require.True(t, src.CanHandle(shareLink("h4ndle")))

	info, err := src.Resolve(context.Background(), shareLink("h4ndle"))
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", info.Name)
	assert.Equal(t, uint64(len(plain)), info.Size)
	assert.Equal(t, testCipher, *info.Cipher)
	assert.Equal(t, "mega", info.Service)

	got, err := src.FetchRange(context.Background(), info, 0, 50_006)
	require.NoError(t, err)
	assert.Equal(t, plain[:50_007], got)

	got, err = src.FetchRange(context.Background(), info, 50_007, uint64(len(plain)-1))
	require.NoError(t, err)
	assert.Equal(t, plain[50_007:], got)
	// 50007 is not block aligned, the request must start at the block boundary
	assert.Contains(t, dl.RangeHeaders(), "bytes=50000-100002")
}

func TestResolveMalformedLinkMakesNoRequest(t *testing.T) {
	api := newFakeAPI(t, `[{"s":1,"at":"","g":"http://x"}]`)
	src := New(utils.HTTPClientConfig{}, Options{APIURL: api.URL, APIRetries: -1})

	_, err := src.Resolve(context.Background(), "https://mega.nz/file/h4ndle")
	assert.ErrorIs(t, err, utils.ErrMalformedLink)
	_, err = src.Resolve(context.Background(), "https://mega.nz/file/h4ndle#tooShort")
	assert.ErrorIs(t, err, utils.ErrMalformedLink)
	assert.Equal(t, int32(0), api.hits.Load())
}

func TestResolveAPIErrors(t *testing.T) {
	for _, body := range []string{"-9", "[-11]", `[{"e":-16}]`, `[{"s":5,"at":""}]`, "garbage"} {
		t.Run(body, func(t *testing.T) {
			api := newFakeAPI(t, body)
			src := New(utils.HTTPClientConfig{}, Options{APIURL: api.URL, APIRetries: -1})
			_, err := src.Resolve(context.Background(), shareLink("h4ndle"))
			assert.ErrorIs(t, err, utils.ErrMetadataUnavailable)
		})
	}
}

func TestResolveRetriesEAGAIN(t *testing.T) {
	at, err := megacrypt.EncryptAttributes(megacrypt.Attributes{Name: "a.bin"}, testCipher.Key)
	require.NoError(t, err)
	api := newFakeAPI(t, "-3", fmt.Sprintf(`[{"s":10,"at":%q,"g":"https://example.invalid/dl"}]`, at))
	src := New(utils.HTTPClientConfig{}, Options{APIURL: api.URL, APIRetries: 2})

	info, err := src.Resolve(context.Background(), shareLink("h4ndle"))
	require.NoError(t, err)
	assert.Equal(t, "a.bin", info.Name)
	assert.Equal(t, int32(2), api.hits.Load())
}

func TestResolveUndecryptableAttributesFallsBack(t *testing.T) {
	api := newFakeAPI(t, `[{"s":10,"at":"AAAAAAAAAAAAAAAAAAAAAA","g":"https://example.invalid/dl"}]`)
	src := New(utils.HTTPClientConfig{}, Options{APIURL: api.URL, APIRetries: -1})
	info, err := src.Resolve(context.Background(), shareLink("h4ndle"))
	require.NoError(t, err)
	assert.Equal(t, fallbackName, info.Name)
}

func TestFetchRangeFailure(t *testing.T) {
	dl := testutils.NewRangeServer(t, make([]byte, 64))
	dl.FailRanges = []string{"bytes=0-"}
	src := New(utils.HTTPClientConfig{}, Options{APIRetries: -1})
	info := &utils.FileInfo{DirectURL: dl.URL, Size: 64, Cipher: &testCipher}
	_, err := src.FetchRange(context.Background(), info, 0, 63)
	assert.ErrorIs(t, err, utils.ErrRangeFetchFailed)
}
