package pipeline

import "github.com/tanq16/linkrelay/internal/utils"

// Partition cuts [0, size) into consecutive inclusive windows of windowSize
// bytes; the last one may be shorter. An empty object has no windows.
func Partition(size, windowSize uint64) []utils.Window {
	if size == 0 {
		return nil
	}
	if windowSize == 0 {
		windowSize = size
	}
	windows := make([]utils.Window, 0, (size+windowSize-1)/windowSize)
	for start, i := uint64(0), 0; start < size; start, i = start+windowSize, i+1 {
		end := min(start+windowSize, size) - 1
		windows = append(windows, utils.Window{Index: i, Start: start, End: end})
	}
	return windows
}
