package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// LogEntry is one parsed JSON log line.
type LogEntry struct {
	Time      time.Time
	Level     string
	Msg       string
	Component string
	Attrs     map[string]any
	Raw       string
	IsValid   bool
}

// ViewerConfig configures the log viewer.
type ViewerConfig struct {
	// Level is the minimum level shown.
	Level string
	// Pattern, if set, must match the raw line.
	Pattern *regexp.Regexp
	// SessionID, if set, keeps only records tagged with that session.
	SessionID string
	NoColor   bool
}

// Viewer filters and formats claridoc log files.
type Viewer struct {
	config ViewerConfig
	out    io.Writer
	levels map[string]lipgloss.Style
}

// NewViewer creates a log viewer that prints to out.
func NewViewer(cfg ViewerConfig, out io.Writer) *Viewer {
	v := &Viewer{config: cfg, out: out, levels: map[string]lipgloss.Style{}}
	if !cfg.NoColor {
		v.levels = map[string]lipgloss.Style{
			"DEBUG": lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
			"INFO":  lipgloss.NewStyle().Foreground(lipgloss.Color("154")),
			"WARN":  lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
			"ERROR": lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		}
	}
	return v
}

const maxLineBytes = 1024 * 1024

// Tail returns the matching entries among the last n lines of path.
func (v *Viewer) Tail(path string, n int) ([]LogEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if n <= 0 {
		return nil, nil
	}
	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	var entries []LogEntry
	for _, line := range ring {
		if entry := ParseLine(line); v.matches(entry) {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// Follow sends entries appended to path until ctx is cancelled. A rotation
// (the file shrinking) restarts reading from the beginning.
func (v *Viewer) Follow(ctx context.Context, path string, entries chan<- LogEntry) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	reader := bufio.NewReader(file)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var partial string
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if info, err := os.Stat(path); err == nil && info.Size() < offset {
			_ = file.Close()
			if file, err = os.Open(path); err != nil {
				return fmt.Errorf("failed to reopen log file: %w", err)
			}
			reader.Reset(file)
			offset, partial = 0, ""
		}

		for {
			chunk, err := reader.ReadString('\n')
			offset += int64(len(chunk))
			if err != nil {
				partial += chunk
				break
			}
			line := strings.TrimSuffix(partial+chunk, "\n")
			partial = ""
			if line == "" {
				continue
			}
			if entry := ParseLine(line); v.matches(entry) {
				select {
				case entries <- entry:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

// Print writes entries to the output.
func (v *Viewer) Print(entries []LogEntry) {
	for _, entry := range entries {
		_, _ = fmt.Fprintln(v.out, v.FormatEntry(entry))
	}
}

// FormatEntry renders an entry as "time LEVEL [component] msg k=v ...".
// Attributes are sorted by key.
func (v *Viewer) FormatEntry(entry LogEntry) string {
	if !entry.IsValid {
		return entry.Raw
	}

	level := strings.ToUpper(entry.Level)
	if len(level) > 5 {
		level = level[:5]
	}
	padded := fmt.Sprintf("%-5s", level)
	if style, ok := v.levels[level]; ok {
		padded = style.Render(padded)
	}

	var sb strings.Builder
	sb.WriteString(entry.Time.Format("15:04:05.000"))
	sb.WriteString(" ")
	sb.WriteString(padded)
	if entry.Component != "" {
		sb.WriteString(" [" + entry.Component + "]")
	}
	sb.WriteString(" ")
	sb.WriteString(entry.Msg)

	keys := make([]string, 0, len(entry.Attrs))
	for k := range entry.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, entry.Attrs[k])
	}
	return sb.String()
}

// ParseLine parses one JSON log line. Lines that are not JSON are kept
// raw with IsValid false.
func ParseLine(line string) LogEntry {
	entry := LogEntry{Raw: line}

	var data map[string]any
	if err := json.Unmarshal([]byte(line), &data); err != nil {
		return entry
	}
	entry.IsValid = true

	if t, ok := data["time"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			entry.Time = parsed
		}
	}
	entry.Level, _ = data["level"].(string)
	entry.Msg, _ = data["msg"].(string)
	entry.Component, _ = data["component"].(string)

	entry.Attrs = make(map[string]any)
	for k, val := range data {
		switch k {
		case "time", "level", "msg", "component":
		default:
			entry.Attrs[k] = val
		}
	}
	return entry
}

func (v *Viewer) matches(entry LogEntry) bool {
	if v.config.Level != "" && parseLevel(entry.Level) < parseLevel(v.config.Level) {
		return false
	}
	if v.config.SessionID != "" {
		if id, _ := entry.Attrs["session_id"].(string); id != v.config.SessionID {
			return false
		}
	}
	if v.config.Pattern != nil && !v.config.Pattern.MatchString(entry.Raw) {
		return false
	}
	return true
}
