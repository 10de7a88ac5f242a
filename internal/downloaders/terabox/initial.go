package terabox

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/linkrelay/internal/utils"
)

const (
	DefaultAPIURL = "https://www.terabox.com"
	fallbackName  = "terabox_file"
)

var hostMarkers = []string{"terabox", "1024tera"}

type Options struct {
	APIURL string
	// Cookie is the value of the ndus session cookie
	Cookie string
}

type TeraboxSource struct {
	client *utils.RelayHTTPClient
	apiURL string
	cookie string
}

func New(cfg utils.HTTPClientConfig, opts Options) *TeraboxSource {
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	return &TeraboxSource{
		client: utils.NewRelayHTTPClient(cfg),
		apiURL: strings.TrimSuffix(opts.APIURL, "/"),
		cookie: strings.TrimSpace(opts.Cookie),
	}
}

func (s *TeraboxSource) Name() string {
	return "terabox"
}

// CanHandle matches terabox.com, teraboxapp.com, 1024tera.com and their mirrors.
func (s *TeraboxSource) CanHandle(link string) bool {
	parsed, err := url.Parse(link)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	for _, marker := range hostMarkers {
		if strings.Contains(host, marker) {
			return true
		}
	}
	return false
}

func (s *TeraboxSource) authHeaders() map[string]string {
	return map[string]string{
		"Cookie":     "ndus=" + s.cookie,
		"User-Agent": utils.ToolUserAgent,
	}
}

func (s *TeraboxSource) Resolve(ctx context.Context, link string) (*utils.FileInfo, error) {
	if !s.CanHandle(link) {
		return nil, fmt.Errorf("%w: not a terabox link: %s", utils.ErrUnsupportedLink, link)
	}
	if s.cookie == "" {
		return nil, fmt.Errorf("%w: terabox: TERABOX_COOKIE is not set", utils.ErrMetadataUnavailable)
	}
	shortURL, ok := extractShortURL(link)
	if !ok {
		return nil, fmt.Errorf("%w: terabox: no share code in %s", utils.ErrMetadataUnavailable, link)
	}
	entry, err := s.listShare(ctx, shortURL)
	if err != nil {
		return nil, fmt.Errorf("%w: terabox: %v", utils.ErrMetadataUnavailable, err)
	}
	if entry.Size < 0 {
		return nil, fmt.Errorf("%w: terabox: negative size %d", utils.ErrMetadataUnavailable, entry.Size)
	}
	name := entry.FileName
	if name == "" {
		name = fallbackName
	}
	log.Info().Str("op", "terabox/initial").Msgf("resolved %s: %s (%s)", shortURL, name, utils.FormatBytes(uint64(entry.Size)))
	return &utils.FileInfo{
		Service:     s.Name(),
		Name:        utils.SanitizeFileName(name),
		Size:        uint64(entry.Size),
		SourceURL:   link,
		DirectURL:   entry.DLink,
		AuthHeaders: s.authHeaders(),
	}, nil
}
