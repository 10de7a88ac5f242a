// Package pipeline runs one relay job: resolve the link, fetch the object
// window by window, verify Mega content and cut the plaintext into parts
// that fit the sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/linkrelay/internal/megacrypt"
	"github.com/tanq16/linkrelay/internal/utils"
)

type State string

const (
	StateResolving   State = "resolving"
	StateDownloading State = "downloading"
	StateDecrypting  State = "decrypting"
	StateEmitting    State = "emitting"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

var stateRank = map[State]int{
	StateResolving:   0,
	StateDownloading: 1,
	StateDecrypting:  2,
	StateEmitting:    3,
	StateCompleted:   4,
	StateFailed:      4,
}

type Integrity string

const (
	IntegrityNotApplicable Integrity = "not-applicable"
	IntegrityVerified      Integrity = "verified"
	IntegrityMismatch      Integrity = "mismatch"
	IntegrityUnchecked     Integrity = "unchecked"
)

// Progress receives the number of plaintext bytes fetched per window.
type Progress interface {
	Report(ctx context.Context, delta uint64)
}

type Config struct {
	WindowSize uint64
	PartSize   uint64
	Policy     utils.FailurePolicy
	Progress   Progress
	OnState    func(State)
	OnResolved func(*utils.FileInfo)
	// Notify gets one line per failed window or part
	Notify func(string)
}

type FailedWindow struct {
	Window utils.Window
	Err    error
}

type FailedPart struct {
	Sequence int
	Name     string
	Offset   uint64
	Size     uint64
	Err      error
}

type ByteRange struct {
	Start uint64
	End   uint64
}

type Result struct {
	Info          *utils.FileInfo
	PartsEmitted  int
	BytesEmitted  uint64
	FailedWindows []FailedWindow
	FailedParts   []FailedPart
	Partial       bool
	Integrity     Integrity
	IntegrityErr  error
	Elapsed       time.Duration
}

// MissingRanges lists the inclusive plaintext ranges that never reached the
// sink, in offset order.
func (r *Result) MissingRanges() []ByteRange {
	var ranges []ByteRange
	wi, pi := 0, 0
	for wi < len(r.FailedWindows) || pi < len(r.FailedParts) {
		if pi >= len(r.FailedParts) || (wi < len(r.FailedWindows) && r.FailedWindows[wi].Window.Start < r.FailedParts[pi].Offset) {
			w := r.FailedWindows[wi].Window
			ranges = append(ranges, ByteRange{Start: w.Start, End: w.End})
			wi++
			continue
		}
		p := r.FailedParts[pi]
		if p.Size > 0 {
			ranges = append(ranges, ByteRange{Start: p.Offset, End: p.Offset + p.Size - 1})
		}
		pi++
	}
	return ranges
}

// Summary is the one-line final status of the job.
func (r *Result) Summary() string {
	name := "file"
	if r.Info != nil {
		name = r.Info.Name
	}
	msg := fmt.Sprintf("%s: %d part(s), %s relayed in %s", name, r.PartsEmitted, utils.FormatBytes(r.BytesEmitted), r.Elapsed.Round(time.Millisecond))
	if r.Partial {
		msg += fmt.Sprintf(" (partial: %d range(s) missing)", len(r.MissingRanges()))
	}
	switch r.Integrity {
	case IntegrityVerified:
		msg += ", integrity verified"
	case IntegrityMismatch:
		msg += ", integrity MISMATCH"
	case IntegrityUnchecked:
		msg += ", integrity not checked"
	}
	return msg
}

type Pipeline struct {
	source utils.Source
	sink   utils.Sink
	cfg    Config
	state  State
}

func New(source utils.Source, sink utils.Sink, cfg Config) *Pipeline {
	if cfg.WindowSize == 0 {
		cfg.WindowSize = utils.DefaultWindowSize
	}
	if cfg.PartSize == 0 {
		cfg.PartSize = utils.DefaultPartSize
	}
	if cfg.Policy == "" {
		cfg.Policy = utils.PolicyAbort
	}
	return &Pipeline{source: source, sink: sink, cfg: cfg}
}

func (p *Pipeline) State() State {
	return p.state
}

// setState publishes forward transitions only; windows cycle through
// download and emit, the job as a whole does not.
func (p *Pipeline) setState(state State) {
	if p.state != "" && stateRank[state] <= stateRank[p.state] {
		return
	}
	p.state = state
	log.Debug().Str("op", "pipeline/run").Msgf("state %s", state)
	if p.cfg.OnState != nil {
		p.cfg.OnState(state)
	}
}

func (p *Pipeline) notify(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Warn().Str("op", "pipeline/run").Msg(msg)
	if p.cfg.Notify != nil {
		p.cfg.Notify(msg)
	}
}

func (p *Pipeline) Run(ctx context.Context, url string) (*Result, error) {
	started := time.Now()
	res := &Result{Integrity: IntegrityNotApplicable}
	p.setState(StateResolving)
	info, err := p.source.Resolve(ctx, url)
	if err != nil {
		return p.fail(res, nil, started, err)
	}
	res.Info = info
	if p.cfg.OnResolved != nil {
		p.cfg.OnResolved(info)
	}
	windows := Partition(info.Size, p.cfg.WindowSize)
	log.Info().Str("op", "pipeline/run").Msgf("%s: %s in %d window(s), %d part(s) planned",
		info.Name, utils.FormatBytes(info.Size), len(windows), utils.PartCount(info.Size, p.cfg.PartSize))

	sp := newSplitter(p.sink, info.Name, info.Size, p.cfg.PartSize)
	sp.tolerant = p.cfg.Policy == utils.PolicyContinue
	if sp.tolerant {
		// a skipped window can close one short part and reserves one number
		sp.maxParts = sp.planned + 2*len(windows)
	}
	sp.onEmit = func(part utils.Part) {
		p.setState(StateEmitting)
		log.Debug().Str("op", "pipeline/run").Msgf("emitted %s (%s)", part.Name, utils.FormatBytes(uint64(len(part.Data))))
	}
	var mac *megacrypt.MAC
	if info.Cipher != nil {
		mac = megacrypt.NewMAC(*info.Cipher)
		res.Integrity = IntegrityUnchecked
	}

	p.setState(StateDownloading)
	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			return p.fail(res, sp, started, err)
		}
		data, err := p.source.FetchRange(ctx, info, w.Start, w.End)
		if err == nil && uint64(len(data)) != w.Len() {
			err = fmt.Errorf("%w: got %d bytes, want %d", utils.ErrRangeFetchFailed, len(data), w.Len())
		}
		if err != nil {
			if ctx.Err() != nil {
				return p.fail(res, sp, started, ctx.Err())
			}
			err = fmt.Errorf("window %d (bytes %d-%d): %w", w.Index, w.Start, w.End, err)
			if p.cfg.Policy != utils.PolicyContinue {
				return p.fail(res, sp, started, err)
			}
			res.FailedWindows = append(res.FailedWindows, FailedWindow{Window: w, Err: err})
			p.notify("skipping %v", err)
			mac = nil
			if err := p.step(sp, func() error { return sp.markGap(ctx) }); err != nil {
				return p.fail(res, sp, started, err)
			}
			continue
		}
		if mac != nil {
			p.setState(StateDecrypting)
			mac.Write(data)
		}
		if p.cfg.Progress != nil {
			p.cfg.Progress.Report(ctx, uint64(len(data)))
		}
		if err := p.step(sp, func() error { return sp.write(ctx, w.Start, data) }); err != nil {
			return p.fail(res, sp, started, err)
		}
	}
	if err := p.step(sp, func() error { return sp.flush(ctx, info.Size == 0) }); err != nil {
		return p.fail(res, sp, started, err)
	}

	p.collect(res, sp, started)
	if mac != nil && !res.Partial {
		if err := mac.Verify(info.Cipher.MetaMAC); err != nil {
			res.Integrity = IntegrityMismatch
			res.IntegrityErr = err
			log.Error().Str("op", "pipeline/run").Err(err).Msgf("%s failed integrity check", info.Name)
		} else {
			res.Integrity = IntegrityVerified
		}
	}
	p.setState(StateCompleted)
	log.Info().Str("op", "pipeline/run").Msg(res.Summary())
	return res, nil
}

// step runs one splitter call and reports any part failures it tolerated.
func (p *Pipeline) step(sp *splitter, fn func() error) error {
	before := len(sp.failed)
	err := fn()
	for _, failed := range sp.failed[before:] {
		p.notify("dropping %v", failed.Err)
	}
	return err
}

func (p *Pipeline) collect(res *Result, sp *splitter, started time.Time) {
	res.Elapsed = time.Since(started)
	if sp == nil {
		return
	}
	res.PartsEmitted = sp.parts
	res.BytesEmitted = sp.emitted
	res.FailedParts = sp.failed
	res.Partial = len(res.FailedWindows) > 0 || len(res.FailedParts) > 0
}

func (p *Pipeline) fail(res *Result, sp *splitter, started time.Time, err error) (*Result, error) {
	if sp != nil {
		sp.buf = nil
	}
	p.collect(res, sp, started)
	p.setState(StateFailed)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		log.Warn().Str("op", "pipeline/run").Msgf("job cancelled after %d part(s)", res.PartsEmitted)
	} else {
		log.Error().Str("op", "pipeline/run").Err(err).Msg("job failed")
	}
	return res, err
}
