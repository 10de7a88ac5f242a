// Package sinks delivers output parts to local disk or S3.
package sinks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/linkrelay/internal/utils"
)

// LocalSink writes each part to <dir>/<name>.tmp and renames it into place
// once fully written. A failed or cancelled write leaves nothing behind.
type LocalSink struct {
	dir string
}

func NewLocalSink(dir string) (*LocalSink, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("error creating output directory: %v", err)
	}
	return &LocalSink{dir: dir}, nil
}

func (s *LocalSink) Dir() string {
	return s.dir
}

func (s *LocalSink) Emit(ctx context.Context, part utils.Part) (err error) {
	finalPath := filepath.Join(s.dir, filepath.Base(utils.SanitizeFileName(part.Name)))
	tempPath := finalPath + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("%w: error creating temp file: %v", utils.ErrSinkEmitFailed, err)
	}
	defer func() {
		if err != nil {
			file.Close()
			if rmErr := os.Remove(tempPath); rmErr != nil && !os.IsNotExist(rmErr) {
				log.Warn().Str("op", "sinks/local").Err(rmErr).Msgf("could not remove %s", tempPath)
			}
		}
	}()

	data := part.Data
	for len(data) > 0 {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		n := min(len(data), utils.DefaultBufferSize)
		if _, err := file.Write(data[:n]); err != nil {
			return fmt.Errorf("%w: error writing %s: %v", utils.ErrSinkEmitFailed, tempPath, err)
		}
		data = data[n:]
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("%w: error syncing %s: %v", utils.ErrSinkEmitFailed, tempPath, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("%w: error closing %s: %v", utils.ErrSinkEmitFailed, tempPath, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		return fmt.Errorf("%w: error renaming %s: %v", utils.ErrSinkEmitFailed, tempPath, err)
	}
	log.Debug().Str("op", "sinks/local").Msgf("wrote %s (%s)", finalPath, utils.FormatBytes(uint64(len(part.Data))))
	return nil
}
