package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// PlainChat reads one question per line and prints answers (for pipes and CI).
type PlainChat struct {
	in     io.Reader
	out    io.Writer
	title  string
	styles Styles
	ask    AskFunc
}

// NewPlainChat creates a line-mode chat. Plain mode never colors output.
func NewPlainChat(cfg Config, ask AskFunc) *PlainChat {
	return &PlainChat{
		in:     cfg.Input,
		out:    cfg.Output,
		title:  cfg.Title,
		styles: NoColorStyles(),
		ask:    ask,
	}
}

// Run implements Chat. It returns nil at end of input.
func (c *PlainChat) Run(ctx context.Context) error {
	if c.title != "" {
		_, _ = fmt.Fprintf(c.out, "Loaded %s. Ask a question, or type exit.\n", c.title)
	}

	scanner := bufio.NewScanner(c.in)
	for {
		_, _ = fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			_, _ = fmt.Fprintln(c.out)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if isQuit(line) {
			return nil
		}

		reply, err := c.ask(ctx, line)
		if err != nil {
			_, _ = fmt.Fprint(c.out, FormatError(c.styles, err))
			continue
		}
		_, _ = fmt.Fprint(c.out, FormatReply(c.styles, reply, 0))
	}
}

var _ Chat = (*PlainChat)(nil)
