package output

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditSplitsMessageAndStream(t *testing.T) {
	m := NewManagerWithWriter(&bytes.Buffer{}, false)
	m.JobStarted("a", "https://mega.nz/file/x#y")
	require.NoError(t, m.Edit(context.Background(), "a", "movie.mkv\n[#####-----] 50.0%"))

	m.mutex.RLock()
	info := m.outputs["a"]
	assert.Equal(t, "movie.mkv", info.Message)
	assert.Equal(t, []string{"[#####-----] 50.0%"}, info.StreamLines)
	m.mutex.RUnlock()
	assert.Equal(t, "active", m.Status("a"))
}

func TestJobLifecycle(t *testing.T) {
	var buf bytes.Buffer
	m := NewManagerWithWriter(&buf, false)
	m.JobStarted("ok", "https://ok.test/a")
	m.JobStarted("bad", "https://bad.test/b")
	m.JobStarted("warn", "https://warn.test/c")
	require.NoError(t, m.Notify(context.Background(), "warn", "window 2 failed"))

	m.JobFinished("ok", "a: 2 part(s)", nil)
	m.JobFinished("bad", "failed: boom", errors.New("boom"))
	m.JobFinished("warn", "c: partial", nil)

	assert.Equal(t, "success", m.Status("ok"))
	assert.Equal(t, "error", m.Status("bad"))
	assert.Equal(t, "warning", m.Status("warn"))
	assert.Equal(t, "unknown", m.Status("missing"))
	assert.Equal(t, 1, m.Failures())

	out := buf.String()
	assert.Contains(t, out, "a: 2 part(s)")
	assert.Contains(t, out, "failed: boom")
	assert.Equal(t, 3, strings.Count(out, "\n"))
}

func TestEditAfterFinishIgnored(t *testing.T) {
	m := NewManagerWithWriter(&bytes.Buffer{}, false)
	m.JobFinished("a", "done", nil)
	require.NoError(t, m.Edit(context.Background(), "a", "late progress"))
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	assert.Equal(t, "done", m.outputs["a"].Message)
}

func TestSummary(t *testing.T) {
	var buf bytes.Buffer
	m := NewManagerWithWriter(&buf, false)
	m.JobStarted("a", "https://a.test")
	m.JobStarted("b", "https://b.test")
	m.JobFinished("a", "ok", nil)
	m.JobFinished("b", "failed", errors.New("metadata unavailable"))
	buf.Reset()

	m.StartDisplay()
	m.StopDisplay()
	out := buf.String()
	assert.Contains(t, out, "Completed 1 of 2")
	assert.Contains(t, out, "Failed 1 of 2")
	assert.Contains(t, out, "https://b.test")
	assert.Contains(t, out, "metadata unavailable")
}

func TestRenderOrdersByState(t *testing.T) {
	m := NewManagerWithWriter(&bytes.Buffer{}, true)
	m.JobStarted("first", "u1")
	m.lookup("queued")
	m.JobStarted("third", "u3")
	m.JobFinished("first", "first done", nil)

	lines := m.render()
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Resolving u3")
	assert.Contains(t, lines[1], "Waiting...")
	assert.Contains(t, lines[2], "first done")
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, []string{"short"}, wrapText("short", 4))
	long := strings.Repeat("x", 200)
	lines := wrapText(long, 4)
	assert.Greater(t, len(lines), 1)
	assert.Equal(t, long, strings.Join(lines, ""))
}
