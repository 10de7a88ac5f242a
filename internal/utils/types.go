package utils

import (
	"context"
	"time"
)

// Source is implemented by every share-link provider. Resolve runs once per
// job; FetchRange is called for each window in offset order.
type Source interface {
	Name() string
	CanHandle(url string) bool
	Resolve(ctx context.Context, url string) (*FileInfo, error)
	FetchRange(ctx context.Context, info *FileInfo, start, end uint64) ([]byte, error)
}

// Sink receives output parts in sequence order.
type Sink interface {
	Emit(ctx context.Context, part Part) error
}

// StatusEditor updates the user-visible status message of a job. Edit returns
// an error matching ErrRateLimited when the transport pushes back.
type StatusEditor interface {
	Edit(ctx context.Context, handle string, text string) error
}

type CipherParams struct {
	Key     [16]byte
	IVHigh  uint32
	IVLow   uint32
	MetaMAC [2]uint32
}

type FileInfo struct {
	Service     string
	Name        string
	Size        uint64 // plaintext size when Cipher is set
	SourceURL   string
	DirectURL   string
	Cipher      *CipherParams
	AuthHeaders map[string]string
}

// Window is an inclusive plaintext byte range.
type Window struct {
	Index int
	Start uint64
	End   uint64
}

func (w Window) Len() uint64 {
	return w.End - w.Start + 1
}

type Part struct {
	Sequence int
	Name     string
	Offset   uint64
	Data     []byte
}

type ProgressState struct {
	BytesDone      uint64
	TotalBytes     uint64
	StartedAt      time.Time
	LastReportedAt time.Time
}

type FailurePolicy string

const (
	PolicyAbort    FailurePolicy = "abort"
	PolicyContinue FailurePolicy = "continue"
)

type BatchEntry struct {
	URL string `yaml:"link"`
}
