package mega

import (
	"context"
	"fmt"

	relayhttp "github.com/tanq16/linkrelay/internal/downloaders/http"
	"github.com/tanq16/linkrelay/internal/megacrypt"
	"github.com/tanq16/linkrelay/internal/utils"
)

// FetchRange returns plaintext bytes [start, end]. The request is widened to
// the containing cipher block and the prefix trimmed after decryption.
func (s *MegaSource) FetchRange(ctx context.Context, info *utils.FileInfo, start, end uint64) ([]byte, error) {
	if info.Cipher == nil {
		return nil, fmt.Errorf("%w: mega file info carries no key", utils.ErrRangeFetchFailed)
	}
	aligned := start &^ 15
	cipherText, err := relayhttp.GetRange(ctx, s.client, info.DirectURL, info.AuthHeaders, aligned, end)
	if err != nil {
		return nil, err
	}
	plain := megacrypt.DecryptRange(cipherText, *info.Cipher, aligned)
	return plain[start-aligned:], nil
}
