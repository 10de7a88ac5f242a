package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

func GetRandomUserAgent() string {
	return userAgents[time.Now().UnixNano()%int64(len(userAgents))]
}

func ParseHeaderArgs(headers []string) map[string]string {
	result := make(map[string]string)
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			result[key] = value
		}
	}
	return result
}

// ValidateURL is the boundary check applied before a URL reaches the registry.
func ValidateURL(url string) error {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return nil
	}
	return fmt.Errorf("%w: %q must start with http:// or https://", ErrInvalidURL, url)
}

func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func FormatSpeed(bytes uint64, elapsed float64) string {
	if elapsed == 0 {
		return "0 B/s"
	}
	bps := float64(bytes) / elapsed
	formatted := FormatBytes(uint64(bps))
	return formatted[:len(formatted)-1] + "B/s" // Slice off "B" and add "B/s"
}

// PartCount returns ceil(size/partSize); an empty object still yields one part.
func PartCount(size, partSize uint64) int {
	if size == 0 || partSize == 0 {
		return 1
	}
	return int((size + partSize - 1) / partSize)
}

// PartName names part seq (1-based) of total. Single-part objects keep their
// name; otherwise the suffix is zero-padded so lexical order is byte order.
func PartName(name string, seq, total int) string {
	if total <= 1 {
		return name
	}
	width := max(3, len(strconv.Itoa(total)))
	return fmt.Sprintf("%s.part%0*d", name, width, seq)
}

// ExtractPartID reads the sequence number back out of a part name.
func ExtractPartID(name string) (int, error) {
	matches := PartIDRegex.FindStringSubmatch(name)
	if len(matches) < 2 {
		return -1, fmt.Errorf("could not extract part ID from %s", name)
	}
	return strconv.Atoi(matches[1])
}

// SanitizeFileName strips path separators and control characters so provider
// supplied names are safe to use as local file names.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == '/' || r == '\\' || r == 0x7f {
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "download"
	}
	return name
}

// CleanTempParts removes leftover .tmp part files in dir and reports how many
// were removed.
func CleanTempParts(dir string) (int, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".tmp") {
			continue
		}
		if err := os.Remove(filepath.Join(dir, file.Name())); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// ListParts returns the paths of name's parts in dir, ordered by sequence.
// Gaps in the sequence are an error; a joined file with a hole is useless.
func ListParts(dir, name string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	type numbered struct {
		id   int
		path string
	}
	var parts []numbered
	for _, file := range files {
		if file.IsDir() || !strings.HasPrefix(file.Name(), name+".part") {
			continue
		}
		id, err := ExtractPartID(file.Name())
		if err != nil {
			continue
		}
		parts = append(parts, numbered{id: id, path: filepath.Join(dir, file.Name())})
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no parts of %s found in %s", name, dir)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].id < parts[j].id })
	paths := make([]string, len(parts))
	for i, part := range parts {
		if part.id != i+1 {
			return nil, fmt.Errorf("part %d of %s is missing", i+1, name)
		}
		paths[i] = part.path
	}
	return paths, nil
}

// JoinParts concatenates name's parts from dir into dest and reports how many
// parts and bytes were written.
func JoinParts(dir, name, dest string) (int, uint64, error) {
	paths, err := ListParts(dir, name)
	if err != nil {
		return 0, 0, err
	}
	out, err := os.Create(dest)
	if err != nil {
		return 0, 0, fmt.Errorf("error creating output file: %v", err)
	}
	defer out.Close()
	var written uint64
	buf := make([]byte, DefaultBufferSize)
	for _, path := range paths {
		in, err := os.Open(path)
		if err != nil {
			return 0, written, fmt.Errorf("error opening part: %v", err)
		}
		n, err := io.CopyBuffer(out, in, buf)
		in.Close()
		written += uint64(n)
		if err != nil {
			return 0, written, fmt.Errorf("error copying %s: %v", filepath.Base(path), err)
		}
	}
	return len(paths), written, out.Sync()
}
