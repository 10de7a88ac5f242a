// Package progress throttles job status updates so chat transports never see
// more than one edit per interval.
package progress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/linkrelay/internal/utils"
	"golang.org/x/time/rate"
)

const DefaultInterval = 5 * time.Second

type Options struct {
	Interval time.Duration
	// Label prefixes every status line, usually the file name
	Label string
	Now   func() time.Time
}

// Reporter owns the ProgressState of one job. Report is throttled; Finish is
// not, and runs once.
type Reporter struct {
	editor  utils.StatusEditor
	handle  string
	label   string
	now     func() time.Time
	limiter *rate.Limiter

	mu       sync.Mutex
	state    utils.ProgressState
	finished bool
	emitted  int
	dropped  int
}

func New(editor utils.StatusEditor, handle string, total uint64, opts Options) *Reporter {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Reporter{
		editor:  editor,
		handle:  handle,
		label:   opts.Label,
		now:     opts.Now,
		limiter: rate.NewLimiter(rate.Every(opts.Interval), 1),
		state:   utils.ProgressState{TotalBytes: total, StartedAt: opts.Now()},
	}
}

// SetTotal updates the expected size once metadata is known.
func (r *Reporter) SetTotal(total uint64, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.TotalBytes = total
	if label != "" {
		r.label = label
	}
}

// Report adds delta to the byte counter and pushes a status edit if the
// interval has passed since the last attempt. Edits the transport refuses
// are dropped, never retried.
func (r *Reporter) Report(ctx context.Context, delta uint64) {
	r.mu.Lock()
	r.state.BytesDone += delta
	now := r.now()
	if r.finished || !r.limiter.AllowN(now, 1) {
		r.mu.Unlock()
		return
	}
	r.state.LastReportedAt = now
	text := r.render(now)
	r.mu.Unlock()

	err := r.editor.Edit(ctx, r.handle, text)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.dropped++
		if errors.Is(err, utils.ErrRateLimited) {
			log.Debug().Str("op", "progress/reporter").Msgf("status edit for %s rate limited, dropped", r.handle)
		} else {
			log.Warn().Str("op", "progress/reporter").Err(err).Msgf("status edit for %s failed", r.handle)
		}
		return
	}
	r.emitted++
}

// Finish publishes the final status regardless of the throttle. Later calls
// are no-ops.
func (r *Reporter) Finish(ctx context.Context, text string) error {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return nil
	}
	r.finished = true
	r.state.LastReportedAt = r.now()
	r.mu.Unlock()

	if err := r.editor.Edit(ctx, r.handle, text); err != nil {
		return fmt.Errorf("final status for %s: %w", r.handle, err)
	}
	r.mu.Lock()
	r.emitted++
	r.mu.Unlock()
	return nil
}

func (r *Reporter) State() utils.ProgressState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Counts returns delivered and dropped edits.
func (r *Reporter) Counts() (emitted, dropped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.emitted, r.dropped
}

func (r *Reporter) render(now time.Time) string {
	elapsed := now.Sub(r.state.StartedAt).Seconds()
	var sb strings.Builder
	if r.label != "" {
		sb.WriteString(r.label)
		sb.WriteString("\n")
	}
	if r.state.TotalBytes > 0 {
		pct := float64(r.state.BytesDone) / float64(r.state.TotalBytes)
		pct = min(pct, 1)
		sb.WriteString(Bar(pct, 20))
		fmt.Fprintf(&sb, " %.1f%% %s / %s", pct*100, utils.FormatBytes(r.state.BytesDone), utils.FormatBytes(r.state.TotalBytes))
	} else {
		sb.WriteString(utils.FormatBytes(r.state.BytesDone))
	}
	fmt.Fprintf(&sb, " at %s", utils.FormatSpeed(r.state.BytesDone, elapsed))
	return sb.String()
}

// Bar draws a plain-text bar safe for chat messages.
func Bar(fraction float64, width int) string {
	fraction = max(0, min(fraction, 1))
	filled := int(fraction * float64(width))
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}
