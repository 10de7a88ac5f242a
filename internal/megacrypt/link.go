// Package megacrypt implements the client side of Mega's at-rest encryption:
// share-link parsing, key derivation, offset-addressable AES-CTR decryption,
// attribute decryption and the condensed MAC used to verify whole files.
package megacrypt

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tanq16/linkrelay/internal/utils"
)

var (
	megaHostRegex   = regexp.MustCompile(`^https?://(?:www\.)?mega\.(?:nz|co\.nz|io)(?:/|$|#)`)
	megaFileRegex   = regexp.MustCompile(`mega\.(?:nz|co\.nz|io)/file/([A-Za-z0-9_-]+)(?:#([A-Za-z0-9_,=+/-]*))?`)
	megaLegacyRegex = regexp.MustCompile(`mega\.(?:nz|co\.nz|io)/#!([A-Za-z0-9_-]+)(?:!([A-Za-z0-9_,=+/-]*))?`)
)

// IsMegaURL reports whether url points at a Mega host.
func IsMegaURL(url string) bool {
	return megaHostRegex.MatchString(strings.TrimSpace(url))
}

// ParseShareLink splits a file share link into its object handle and key
// material. Both https://mega.nz/file/<id>#<key> and the legacy
// https://mega.nz/#!<id>!<key> forms are accepted.
func ParseShareLink(url string) (string, string, error) {
	url = strings.TrimSpace(url)
	if !IsMegaURL(url) {
		return "", "", fmt.Errorf("%w: not a mega link: %s", utils.ErrUnsupportedLink, url)
	}
	for _, pattern := range []*regexp.Regexp{megaFileRegex, megaLegacyRegex} {
		matches := pattern.FindStringSubmatch(url)
		if len(matches) < 3 {
			continue
		}
		if matches[2] == "" {
			return "", "", fmt.Errorf("%w: missing key fragment in %s", utils.ErrMalformedLink, url)
		}
		return matches[1], matches[2], nil
	}
	return "", "", fmt.Errorf("%w: unrecognised mega link format: %s", utils.ErrMalformedLink, url)
}
