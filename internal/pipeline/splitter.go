package pipeline

import (
	"context"
	"fmt"

	"github.com/tanq16/linkrelay/internal/utils"
)

// splitter re-segments a plaintext stream into parts of at most partSize
// bytes. The remainder of one window waits in buf for the next, so at most
// one part is buffered at any time.
type splitter struct {
	sink     utils.Sink
	name     string
	planned  int
	partSize uint64
	// maxParts bounds how many parts can be cut and sets the suffix width
	maxParts int

	buf     []byte
	offset  uint64 // plaintext offset of buf[0]
	seq     int
	parts   int
	emitted uint64
	gapped  bool
	onEmit  func(utils.Part)

	// tolerant records sink failures in failed instead of returning them
	tolerant bool
	failed   []FailedPart
}

func newSplitter(sink utils.Sink, name string, size, partSize uint64) *splitter {
	return &splitter{
		sink:     sink,
		name:     name,
		planned:  utils.PartCount(size, partSize),
		maxParts: utils.PartCount(size, partSize),
		partSize: partSize,
	}
}

// write appends data that starts at plaintext offset off. A caller that
// skipped bytes must flush first.
func (s *splitter) write(ctx context.Context, off uint64, data []byte) error {
	if len(s.buf) == 0 {
		s.offset = off
	}
	for len(data) > 0 {
		if s.buf == nil {
			s.buf = make([]byte, 0, s.partSize)
		}
		take := min(uint64(len(data)), s.partSize-uint64(len(s.buf)))
		s.buf = append(s.buf, data[:take]...)
		data = data[take:]
		if uint64(len(s.buf)) == s.partSize {
			if err := s.emit(ctx); err != nil {
				return err
			}
			s.offset = off + take
		}
		off += take
	}
	return nil
}

// flush emits whatever is buffered. force emits an empty part when nothing
// has been emitted at all, for zero-byte objects.
func (s *splitter) flush(ctx context.Context, force bool) error {
	if len(s.buf) == 0 && !(force && s.seq == 0) {
		return nil
	}
	return s.emit(ctx)
}

// markGap records that bytes were skipped. The pending part is closed so no
// part spans the hole, and one sequence number is left unused so the hole
// shows up as a missing part.
func (s *splitter) markGap(ctx context.Context) error {
	s.gapped = true
	if err := s.flush(ctx, false); err != nil {
		return err
	}
	s.seq++
	return nil
}

func (s *splitter) partName(seq int) string {
	total := s.planned
	if s.gapped && total < 2 {
		total = 2
	}
	if total <= 1 {
		return s.name
	}
	return utils.PartName(s.name, seq, max(total, s.maxParts))
}

func (s *splitter) emit(ctx context.Context) error {
	s.seq++
	part := utils.Part{
		Sequence: s.seq,
		Name:     s.partName(s.seq),
		Offset:   s.offset,
		Data:     s.buf,
	}
	s.buf = nil
	if err := s.sink.Emit(ctx, part); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = fmt.Errorf("%w: part %s: %v", utils.ErrSinkEmitFailed, part.Name, err)
		if !s.tolerant {
			return err
		}
		s.gapped = true
		s.failed = append(s.failed, FailedPart{Sequence: part.Sequence, Name: part.Name, Offset: part.Offset, Size: uint64(len(part.Data)), Err: err})
		return nil
	}
	s.parts++
	s.emitted += uint64(len(part.Data))
	if s.onEmit != nil {
		s.onEmit(part)
	}
	return nil
}
