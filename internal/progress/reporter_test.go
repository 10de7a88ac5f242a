package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/linkrelay/internal/utils"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type edit struct {
	at   time.Time
	text string
}

type fakeEditor struct {
	clock *fakeClock
	edits []edit
	errFn func(n int) error
}

func (e *fakeEditor) Edit(ctx context.Context, handle, text string) error {
	n := len(e.edits)
	e.edits = append(e.edits, edit{at: e.clock.Now(), text: text})
	if e.errFn != nil {
		return e.errFn(n)
	}
	return nil
}

func newFixture(interval time.Duration) (*fakeClock, *fakeEditor, *Reporter) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	editor := &fakeEditor{clock: clock}
	r := New(editor, "msg-1", 1000, Options{Interval: interval, Label: "file.bin", Now: clock.Now})
	return clock, editor, r
}

func TestReportThrottles(t *testing.T) {
	clock, editor, r := newFixture(5 * time.Second)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		r.Report(ctx, 10)
		clock.Advance(500 * time.Millisecond)
	}
	// 30 seconds of reports at 2 Hz, one edit per 5s window
	require.Len(t, editor.edits, 6)
	for i := 1; i < len(editor.edits); i++ {
		assert.GreaterOrEqual(t, editor.edits[i].at.Sub(editor.edits[i-1].at), 5*time.Second)
	}
	assert.Equal(t, uint64(600), r.State().BytesDone)
}

func TestReportCountsEveryDelta(t *testing.T) {
	_, editor, r := newFixture(time.Hour)
	for i := 0; i < 10; i++ {
		r.Report(context.Background(), 7)
	}
	assert.Len(t, editor.edits, 1)
	assert.Equal(t, uint64(70), r.State().BytesDone)
}

func TestRateLimitedEditIsDropped(t *testing.T) {
	clock, editor, r := newFixture(5 * time.Second)
	editor.errFn = func(n int) error {
		if n == 0 {
			return fmt.Errorf("%w: retry after 30s", utils.ErrRateLimited)
		}
		return nil
	}
	ctx := context.Background()
	r.Report(ctx, 1)
	// the refused attempt still starts the interval
	clock.Advance(time.Second)
	r.Report(ctx, 1)
	clock.Advance(4 * time.Second)
	r.Report(ctx, 1)

	require.Len(t, editor.edits, 2)
	emitted, dropped := r.Counts()
	assert.Equal(t, 1, emitted)
	assert.Equal(t, 1, dropped)
}

func TestOtherEditErrorsAreDropped(t *testing.T) {
	_, editor, r := newFixture(time.Second)
	editor.errFn = func(int) error { return errors.New("connection reset") }
	assert.NotPanics(t, func() { r.Report(context.Background(), 5) })
	_, dropped := r.Counts()
	assert.Equal(t, 1, dropped)
}

func TestFinishBypassesThrottleOnce(t *testing.T) {
	_, editor, r := newFixture(5 * time.Second)
	ctx := context.Background()
	r.Report(ctx, 10)
	require.NoError(t, r.Finish(ctx, "done"))
	require.NoError(t, r.Finish(ctx, "done again"))
	r.Report(ctx, 10)

	require.Len(t, editor.edits, 2)
	assert.Equal(t, "done", editor.edits[1].text)
	assert.Equal(t, editor.edits[0].at, editor.edits[1].at)
}

func TestFinishReturnsEditError(t *testing.T) {
	_, editor, r := newFixture(time.Second)
	editor.errFn = func(int) error { return utils.ErrRateLimited }
	err := r.Finish(context.Background(), "done")
	assert.ErrorIs(t, err, utils.ErrRateLimited)
	assert.NoError(t, r.Finish(context.Background(), "done"))
}

func TestRenderedText(t *testing.T) {
	clock, editor, r := newFixture(time.Second)
	clock.Advance(2 * time.Second)
	r.Report(context.Background(), 500)
	require.Len(t, editor.edits, 1)
	text := editor.edits[0].text
	assert.Contains(t, text, "file.bin\n")
	assert.Contains(t, text, "[##########----------]")
	assert.Contains(t, text, "50.0%")
	assert.Contains(t, text, "500 B / 1000 B")
	assert.Contains(t, text, "250 B/s")
}

func TestSetTotal(t *testing.T) {
	_, editor, r := newFixture(time.Second)
	r.SetTotal(2000, "other.bin")
	r.Report(context.Background(), 1000)
	require.Len(t, editor.edits, 1)
	assert.Contains(t, editor.edits[0].text, "other.bin")
	assert.Equal(t, uint64(2000), r.State().TotalBytes)
}

func TestBar(t *testing.T) {
	assert.Equal(t, "[----]", Bar(0, 4))
	assert.Equal(t, "[##--]", Bar(0.5, 4))
	assert.Equal(t, "[####]", Bar(2, 4))
	assert.Equal(t, "[----]", Bar(-1, 4))
}
