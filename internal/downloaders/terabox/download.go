package terabox

import (
	"context"

	relayhttp "github.com/tanq16/linkrelay/internal/downloaders/http"
	"github.com/tanq16/linkrelay/internal/utils"
)

// FetchRange follows the dlink redirect on every call; the signed CDN URL it
// lands on expires, the dlink does not.
func (s *TeraboxSource) FetchRange(ctx context.Context, info *utils.FileInfo, start, end uint64) ([]byte, error) {
	return relayhttp.GetRange(ctx, s.client, info.DirectURL, info.AuthHeaders, start, end)
}
