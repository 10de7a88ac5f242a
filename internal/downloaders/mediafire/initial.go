package mediafire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"

	"github.com/rs/zerolog/log"
	relayhttp "github.com/tanq16/linkrelay/internal/downloaders/http"
	"github.com/tanq16/linkrelay/internal/utils"
)

const fallbackName = "mediafire_file"

// share pages are a few hundred KB; cap what we parse
const maxPageSize = 4 * 1024 * 1024

var mediafireRegex = regexp.MustCompile(`^https?://(?:www\.)?mediafire\.com/`)

type MediafireSource struct {
	client *utils.RelayHTTPClient
}

func New(cfg utils.HTTPClientConfig) *MediafireSource {
	return &MediafireSource{client: utils.NewRelayHTTPClient(cfg)}
}

func (s *MediafireSource) Name() string {
	return "mediafire"
}

func (s *MediafireSource) CanHandle(url string) bool {
	return mediafireRegex.MatchString(url)
}

// Resolve scrapes the share page for the direct link and HEADs it for size and
// name. A page whose layout no longer matches fails outright; retrying cannot
// fix a structural mismatch.
func (s *MediafireSource) Resolve(ctx context.Context, link string) (*utils.FileInfo, error) {
	if !s.CanHandle(link) {
		return nil, fmt.Errorf("%w: not a mediafire link: %s", utils.ErrUnsupportedLink, link)
	}
	directURL, err := s.scrapeDirectURL(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("%w: mediafire: %v", utils.ErrMetadataUnavailable, err)
	}
	remote, err := relayhttp.GetRemoteInfo(ctx, s.client, directURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: mediafire: %v", utils.ErrMetadataUnavailable, err)
	}
	if !remote.RangeSupported {
		log.Warn().Str("op", "mediafire/initial").Msgf("server did not advertise range support for %s", remote.FinalURL)
	}
	name := remote.FileName
	if name == "" {
		name = fallbackName
	}
	log.Info().Str("op", "mediafire/initial").Msgf("resolved %s (%s)", name, utils.FormatBytes(remote.Size))
	return &utils.FileInfo{
		Service:     s.Name(),
		Name:        utils.SanitizeFileName(name),
		Size:        remote.Size,
		SourceURL:   link,
		DirectURL:   remote.FinalURL,
		AuthHeaders: map[string]string{},
	}, nil
}

func (s *MediafireSource) scrapeDirectURL(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("error creating request: %v", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error fetching share page: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("share page returned status %d", resp.StatusCode)
	}
	base, _ := url.Parse(link)
	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL
	}
	direct := findDownloadLink(io.LimitReader(resp.Body, maxPageSize), base)
	if direct == "" {
		return "", fmt.Errorf("no download link found on share page")
	}
	log.Debug().Str("op", "mediafire/initial").Msgf("direct link %s", direct)
	return direct, nil
}
