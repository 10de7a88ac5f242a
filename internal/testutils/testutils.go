// Package testutils provides shared test infrastructure: deterministic
// payloads and range-capable HTTP servers.
package testutils

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

// GenerateTestData returns a deterministic payload of the given size.
func GenerateTestData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i%251 + i/4096)
	}
	return data
}

// RangeServer serves one payload with Range support and records requests.
type RangeServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []*http.Request
	// FailRanges makes GET requests whose Range header contains any of these
	// substrings answer 500.
	FailRanges []string
	Headers    map[string]string
	Require    map[string]string
}

func NewRangeServer(t *testing.T, data []byte) *RangeServer {
	t.Helper()
	rs := &RangeServer{Headers: map[string]string{}, Require: map[string]string{}}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.mu.Lock()
		rs.requests = append(rs.requests, r.Clone(r.Context()))
		failRanges := rs.FailRanges
		rs.mu.Unlock()
		for k, v := range rs.Require {
			if r.Header.Get(k) != v {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}
		if r.Method == http.MethodGet {
			for _, fr := range failRanges {
				if strings.Contains(r.Header.Get("Range"), fr) {
					http.Error(w, "boom", http.StatusInternalServerError)
					return
				}
			}
		}
		for k, v := range rs.Headers {
			w.Header().Set(k, v)
		}
		http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(rs.Close)
	return rs
}

// RangeHeaders returns the Range header of every GET seen so far.
func (rs *RangeServer) RangeHeaders() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	var out []string
	for _, r := range rs.requests {
		if r.Method == http.MethodGet {
			out = append(out, r.Header.Get("Range"))
		}
	}
	return out
}

func (rs *RangeServer) RequestCount() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.requests)
}

// RewriteTransport sends every request to Target, keeping path and query, so
// sources that match on provider hostnames can be pointed at a test server.
type RewriteTransport struct {
	Target *url.URL
}

func NewRewriteTransport(t *testing.T, target string) *RewriteTransport {
	t.Helper()
	u, err := url.Parse(target)
	if err != nil {
		t.Fatalf("parse target: %v", err)
	}
	return &RewriteTransport{Target: u}
}

func (rt *RewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = rt.Target.Scheme
	out.URL.Host = rt.Target.Host
	out.Host = rt.Target.Host
	return http.DefaultTransport.RoundTrip(out)
}
