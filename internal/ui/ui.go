// Package ui provides the interactive question-and-answer terminal.
package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	clerrors "github.com/Aman-CERP/claridoc/internal/errors"
)

// Source is one cited passage of a reply.
type Source struct {
	Page  int
	Text  string
	Score float64
}

// Reply is an answer with its citations.
type Reply struct {
	Answer   string
	Sources  []Source
	Degraded bool
}

// AskFunc answers one question about the loaded document.
type AskFunc func(ctx context.Context, question string) (Reply, error)

// Chat runs a question loop until the user quits or ctx is cancelled.
type Chat interface {
	Run(ctx context.Context) error
}

// Config configures the chat.
type Config struct {
	Input      io.Reader
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	// Title is shown in the header, usually the document name.
	Title string
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain line mode.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithTitle sets the header title.
func WithTitle(title string) ConfigOption {
	return func(c *Config) {
		c.Title = title
	}
}

// NewConfig creates a new Config with the given streams and options.
func NewConfig(input io.Reader, output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Input: input, Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewChat returns a TUI chat for interactive terminals and a plain line
// chat for pipes, CI, or when plain mode is forced.
func NewChat(cfg Config, ask AskFunc) Chat {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || !isTerminalReader(cfg.Input) || DetectCI() {
		return NewPlainChat(cfg, ask)
	}
	return NewTUIChat(cfg, ask)
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

func isTerminalReader(r io.Reader) bool {
	if f, ok := r.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}

// isQuit reports whether a line ends the chat.
func isQuit(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "exit", "quit", ":q":
		return true
	}
	return false
}

// FormatReply renders a reply with numbered citations. Passage text is
// cut to width runes when width is positive.
func FormatReply(styles Styles, reply Reply, width int) string {
	var sb strings.Builder
	sb.WriteString(styles.Answer.Render(strings.TrimSpace(reply.Answer)))
	sb.WriteString("\n")
	if reply.Degraded {
		sb.WriteString(styles.Warning.Render("(passages were not reranked)"))
		sb.WriteString("\n")
	}
	for i, src := range reply.Sources {
		head := styles.Source.Render(fmt.Sprintf("[%d] page %d", i+1, src.Page+1))
		score := styles.Score.Render(fmt.Sprintf("%.2f", src.Score))
		text := strings.Join(strings.Fields(src.Text), " ")
		fmt.Fprintf(&sb, "%s %s  %s\n", head, score, styles.Dim.Render(truncate(text, width)))
	}
	return sb.String()
}

// FormatError renders an error the way users should see it.
func FormatError(styles Styles, err error) string {
	return styles.Error.Render(clerrors.FormatForUser(err)) + "\n"
}

func truncate(s string, width int) string {
	if width <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 3 {
		return "..."
	}
	return string(r[:width-3]) + "..."
}
