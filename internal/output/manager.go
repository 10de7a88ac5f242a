package output

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

type JobOutput struct {
	Handle      string
	URL         string
	Status      string
	Message     string
	StreamLines []string
	Complete    bool
	StartTime   time.Time
	LastUpdated time.Time
	Error       error
	Index       int
}

type ErrorReport struct {
	URL   string
	Error error
	Time  time.Time
}

// Manager renders job status on the terminal. It implements the status
// editor, notifier and job observer the scheduler talks to.
type Manager struct {
	out         io.Writer
	interactive bool
	outputs     map[string]*JobOutput
	mutex       sync.RWMutex
	numLines    int
	maxStreams  int
	errors      []ErrorReport
	doneCh      chan struct{}
	displayTick time.Duration
	jobCount    int
	displayWg   sync.WaitGroup
}

func NewManager() *Manager {
	return NewManagerWithWriter(os.Stdout, isTerminal())
}

// NewManagerWithWriter renders to out. Without interactive redraws every
// finished job is printed once as a plain line.
func NewManagerWithWriter(out io.Writer, interactive bool) *Manager {
	return &Manager{
		out:         out,
		interactive: interactive,
		outputs:     make(map[string]*JobOutput),
		maxStreams:  10,
		doneCh:      make(chan struct{}),
		displayTick: 300 * time.Millisecond,
	}
}

// Interactive reports whether the manager redraws the terminal in place.
func (m *Manager) Interactive() bool {
	return m.interactive
}

func (m *Manager) lookup(handle string) *JobOutput {
	info, exists := m.outputs[handle]
	if !exists {
		m.jobCount++
		info = &JobOutput{
			Handle:      handle,
			Status:      "pending",
			StartTime:   time.Now(),
			LastUpdated: time.Now(),
			Index:       m.jobCount,
		}
		m.outputs[handle] = info
	}
	return info
}

func (m *Manager) JobStarted(handle, url string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	info := m.lookup(handle)
	info.URL = url
	info.Status = "active"
	info.Message = fmt.Sprintf("Resolving %s", url)
	info.LastUpdated = time.Now()
}

// Edit replaces the job's message with the first line of text; remaining
// lines become the stream below it.
func (m *Manager) Edit(_ context.Context, handle, text string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	info := m.lookup(handle)
	if info.Complete {
		return nil
	}
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	info.Message = lines[0]
	info.StreamLines = lines[1:]
	if info.Status == "pending" {
		info.Status = "active"
	}
	info.LastUpdated = time.Now()
	return nil
}

func (m *Manager) Notify(_ context.Context, handle, text string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	info := m.lookup(handle)
	info.StreamLines = append(info.StreamLines, wrapText(StyleSymbols["warning"]+" "+text, 2+4)...)
	if len(info.StreamLines) > m.maxStreams {
		info.StreamLines = info.StreamLines[len(info.StreamLines)-m.maxStreams:]
	}
	if info.Status == "active" {
		info.Status = "warning"
	}
	info.LastUpdated = time.Now()
	return nil
}

func (m *Manager) JobFinished(handle, summary string, err error) {
	m.mutex.Lock()
	info := m.lookup(handle)
	info.Complete = true
	info.StreamLines = nil
	info.LastUpdated = time.Now()
	if summary != "" {
		info.Message = summary
	}
	switch {
	case err != nil:
		info.Status = "error"
		info.Error = err
		m.errors = append(m.errors, ErrorReport{URL: info.URL, Error: err, Time: time.Now()})
	case info.Status != "warning":
		info.Status = "success"
	}
	line := m.formatLine(info)
	m.mutex.Unlock()
	if !m.interactive {
		fmt.Fprintln(m.out, line)
	}
}

func (m *Manager) Status(handle string) string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if info, exists := m.outputs[handle]; exists {
		return info.Status
	}
	return "unknown"
}

func (m *Manager) GetStatusIndicator(status string) string {
	switch status {
	case "success":
		return successStyle.Render(StyleSymbols["pass"])
	case "error":
		return errorStyle.Render(StyleSymbols["fail"])
	case "warning":
		return warningStyle.Render(StyleSymbols["warning"])
	case "pending":
		return pendingStyle.Render(StyleSymbols["pending"])
	default:
		return infoStyle.Render(StyleSymbols["bullet"])
	}
}

func styleFor(status string) func(...string) string {
	switch status {
	case "success":
		return successStyle.Render
	case "error":
		return errorStyle.Render
	case "warning":
		return warningStyle.Render
	default:
		return pendingStyle.Render
	}
}

func (m *Manager) formatLine(info *JobOutput) string {
	elapsed := time.Since(info.StartTime).Round(time.Second)
	if info.Complete {
		elapsed = info.LastUpdated.Sub(info.StartTime).Round(time.Second)
	}
	return fmt.Sprintf("%s%s %s %s", strings.Repeat(" ", 2), m.GetStatusIndicator(info.Status),
		debugStyle.Render(elapsed.String()), styleFor(info.Status)(info.Message))
}

func (m *Manager) sortJobs() (active, pending, completed []*JobOutput) {
	var all []*JobOutput
	for _, info := range m.outputs {
		all = append(all, info)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Index < all[j].Index
	})
	for _, info := range all {
		if info.Complete {
			completed = append(completed, info)
		} else if info.Status == "pending" {
			pending = append(pending, info)
		} else {
			active = append(active, info)
		}
	}
	return active, pending, completed
}

func (m *Manager) render() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	_, termHeight := getTerminalSize()
	available := termHeight - 3
	var lines []string
	indent := strings.Repeat(" ", 2+4)

	active, pending, completed := m.sortJobs()
	needed := len(completed)
	for _, info := range append(active, pending...) {
		needed += 1 + len(info.StreamLines)
	}
	if needed > available {
		keep := max(0, available-(needed-len(completed)))
		if len(completed) > keep {
			completed = completed[len(completed)-keep:]
		}
	}
	for _, info := range active {
		lines = append(lines, m.formatLine(info))
		for _, stream := range info.StreamLines {
			lines = append(lines, indent+streamStyle.Render(stream))
		}
	}
	for _, info := range pending {
		lines = append(lines, fmt.Sprintf("%s%s %s", strings.Repeat(" ", 2), m.GetStatusIndicator(info.Status), pendingStyle.Render("Waiting...")))
	}
	if len(completed) > 10 {
		lines = append(lines, infoStyle.Render(fmt.Sprintf("%s%d links completed with varying hidden status ...", strings.Repeat(" ", 2), len(completed)-8)))
		completed = completed[len(completed)-8:]
	}
	for _, info := range completed {
		lines = append(lines, m.formatLine(info))
	}
	if len(lines) > available {
		lines = lines[:max(0, available)]
	}
	return lines
}

func (m *Manager) updateDisplay() {
	lines := m.render()
	if m.numLines > 0 {
		fmt.Fprintf(m.out, "\033[%dA\033[J", m.numLines)
	}
	for _, line := range lines {
		fmt.Fprintln(m.out, line)
	}
	m.numLines = len(lines)
}

func (m *Manager) StartDisplay() {
	if !m.interactive {
		return
	}
	m.displayWg.Add(1)
	go func() {
		defer m.displayWg.Done()
		ticker := time.NewTicker(m.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.updateDisplay()
			case <-m.doneCh:
				m.updateDisplay()
				return
			}
		}
	}()
}

// StopDisplay draws the final frame and prints the summary.
func (m *Manager) StopDisplay() {
	close(m.doneCh)
	m.displayWg.Wait()
	m.ShowSummary()
}

// Failures reports how many jobs ended in error.
func (m *Manager) Failures() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.errors)
}

func (m *Manager) ShowSummary() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	var success, failures int
	for _, info := range m.outputs {
		switch info.Status {
		case "success", "warning":
			success++
		case "error":
			failures++
		}
	}
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, strings.Repeat(" ", 2)+success2Style.Render(fmt.Sprintf("Completed %d of %d", success, len(m.outputs))))
	if failures > 0 {
		fmt.Fprintln(m.out, strings.Repeat(" ", 2)+errorStyle.Render(fmt.Sprintf("Failed %d of %d", failures, len(m.outputs))))
	}
	if len(m.errors) > 0 {
		fmt.Fprintln(m.out)
		fmt.Fprintln(m.out, strings.Repeat(" ", 2)+errorStyle.Bold(true).Render("Errors:"))
		for i, report := range m.errors {
			fmt.Fprintf(m.out, "%s%s %s %s\n", strings.Repeat(" ", 2+2),
				errorStyle.Render(fmt.Sprintf("%d.", i+1)),
				debugStyle.Render(fmt.Sprintf("[%s]", report.Time.Format("15:04:05"))),
				errorStyle.Render(report.URL))
			fmt.Fprintf(m.out, "%s%s\n", strings.Repeat(" ", 2+4), errorStyle.Render(fmt.Sprintf("Error: %v", report.Error)))
		}
	}
	fmt.Fprintln(m.out)
}
