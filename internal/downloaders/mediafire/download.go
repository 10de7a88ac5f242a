package mediafire

import (
	"context"

	relayhttp "github.com/tanq16/linkrelay/internal/downloaders/http"
	"github.com/tanq16/linkrelay/internal/utils"
)

func (s *MediafireSource) FetchRange(ctx context.Context, info *utils.FileInfo, start, end uint64) ([]byte, error) {
	return relayhttp.GetRange(ctx, s.client, info.DirectURL, info.AuthHeaders, start, end)
}
