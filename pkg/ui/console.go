// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ui

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
	"k8s.io/klog/v2"

	"github.com/crewtune/crewtune/gollm"
)

const ruleWidth = 60

// Console prints the human-readable narrative of a run: intercepted
// messages, progress lines and the final result.
type Console struct {
	mu  sync.Mutex
	out io.Writer

	markdownRenderer *glamour.TermRenderer

	headerStyle  lipgloss.Style
	roleStyle    lipgloss.Style
	warningStyle lipgloss.Style
	ruleStyle    lipgloss.Style
}

type ConsoleOption func(*consoleOptions)

type consoleOptions struct {
	markdown *bool
}

// WithMarkdown forces markdown rendering on or off. By default markdown is
// rendered only when the output is a terminal.
func WithMarkdown(enabled bool) ConsoleOption {
	return func(o *consoleOptions) {
		o.markdown = &enabled
	}
}

func getCustomTerminalWidth() int {
	if widthStr := os.Getenv("CREWTUNE_TERM_WIDTH"); widthStr != "" {
		if width, err := strconv.Atoi(widthStr); err == nil && width > 0 {
			return width
		}
		klog.Warningf("Invalid CREWTUNE_TERM_WIDTH value %q, using default", widthStr)
	}
	return 0
}

// NewConsole creates a Console writing to out.
func NewConsole(out io.Writer, opts ...ConsoleOption) (*Console, error) {
	var o consoleOptions
	for _, opt := range opts {
		opt(&o)
	}

	renderMarkdown := isTerminal(out)
	if o.markdown != nil {
		renderMarkdown = *o.markdown
	}

	r := lipgloss.NewRenderer(out)
	c := &Console{
		out:          out,
		headerStyle:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		roleStyle:    r.NewStyle().Foreground(lipgloss.Color("170")),
		warningStyle: r.NewStyle().Foreground(lipgloss.Color("208")),
		ruleStyle:    r.NewStyle().Foreground(lipgloss.Color("241")),
	}

	if renderMarkdown {
		options := []glamour.TermRendererOption{
			glamour.WithAutoStyle(),
			glamour.WithPreservedNewLines(),
			glamour.WithEmoji(),
		}
		if width := getCustomTerminalWidth(); width > 0 {
			options = append(options, glamour.WithWordWrap(width))
		}
		mdRenderer, err := glamour.NewTermRenderer(options...)
		if err != nil {
			return nil, fmt.Errorf("error initializing the markdown renderer: %w", err)
		}
		c.markdownRenderer = mdRenderer
	}

	return c, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Printf writes a progress line.
func (c *Console) Printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// Warnf writes a highlighted warning line.
func (c *Console) Warnf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, c.warningStyle.Render(fmt.Sprintf(format, args...)))
}

// PrintMessages prints a framed, numbered list of messages.
func (c *Console) PrintMessages(title string, msgs []gollm.Message) {
	var sb strings.Builder
	rule := c.ruleStyle.Render(strings.Repeat("=", ruleWidth))

	sb.WriteString("\n" + rule + "\n")
	sb.WriteString(c.headerStyle.Render(title) + "\n")
	for i, msg := range msgs {
		sb.WriteString("\n")
		sb.WriteString(c.roleStyle.Render(fmt.Sprintf("--- Message %d (%s) ---", i+1, msg.Role)))
		sb.WriteString("\n")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	sb.WriteString(rule + "\n")

	c.mu.Lock()
	defer c.mu.Unlock()
	io.WriteString(c.out, sb.String())
}

// PrintResult prints a titled markdown document, rendered when the console
// is attached to a terminal.
func (c *Console) PrintResult(title, markdown string) {
	body := markdown
	if c.markdownRenderer != nil {
		rendered, err := c.markdownRenderer.Render(markdown)
		if err != nil {
			klog.Warningf("rendering markdown: %v", err)
		} else {
			body = rendered
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "\n%s\n\n%s\n", c.headerStyle.Render(title), body)
}
