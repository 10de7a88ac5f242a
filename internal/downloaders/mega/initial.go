package mega

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/linkrelay/internal/megacrypt"
	"github.com/tanq16/linkrelay/internal/utils"
)

const fallbackName = "mega_file"

type Options struct {
	APIURL string
	// APIRetries bounds EAGAIN/5xx retries on metadata calls; negative disables them
	APIRetries int
}

type MegaSource struct {
	client *utils.RelayHTTPClient
	api    *apiClient
}

func New(cfg utils.HTTPClientConfig, opts Options) *MegaSource {
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	if opts.APIRetries == 0 {
		opts.APIRetries = 4
	} else if opts.APIRetries < 0 {
		opts.APIRetries = 0
	}
	client := utils.NewRelayHTTPClient(cfg)
	return &MegaSource{
		client: client,
		api:    newAPIClient(opts.APIURL, client.HTTPClient(), opts.APIRetries),
	}
}

func (s *MegaSource) Name() string {
	return "mega"
}

func (s *MegaSource) CanHandle(url string) bool {
	return megacrypt.IsMegaURL(url)
}

// Resolve parses and unmasks the link key before touching the network, so a
// malformed link never costs a request.
func (s *MegaSource) Resolve(ctx context.Context, url string) (*utils.FileInfo, error) {
	handle, keyMaterial, err := megacrypt.ParseShareLink(url)
	if err != nil {
		return nil, err
	}
	params, err := megacrypt.DeriveKey(keyMaterial)
	if err != nil {
		return nil, err
	}
	resp, err := s.api.getDownload(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("%w: mega: %v", utils.ErrMetadataUnavailable, err)
	}

	name := fallbackName
	if attrs, err := megacrypt.DecryptAttributes(resp.Attr, params.Key); err != nil {
		log.Warn().Str("op", "mega/initial").Err(err).Msgf("could not decrypt attributes for %s", handle)
	} else if attrs.Name != "" {
		name = utils.SanitizeFileName(attrs.Name)
	}

	log.Info().Str("op", "mega/initial").Msgf("resolved %s: %s (%s)", handle, name, utils.FormatBytes(resp.Size))
	return &utils.FileInfo{
		Service:     s.Name(),
		Name:        name,
		Size:        resp.Size,
		SourceURL:   url,
		DirectURL:   resp.URL,
		Cipher:      &params,
		AuthHeaders: map[string]string{},
	}, nil
}
