// Package observers holds ready-made subscribers of session events.
package observers

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/koscakluka/ema-tota/core/conversations"
	"github.com/koscakluka/ema-tota/core/events"
	"github.com/muesli/reflow/wordwrap"
)

const defaultConsoleWidth = 100

// Console prints the conversation as it happens: final recognizer output as
// [STT ], committed items as [USER] and [AGENT], plus state changes and
// stage faults.
type Console struct {
	mu           sync.Mutex
	out          io.Writer
	width        int
	showPartials bool
	showStates   bool

	tagStyle     lipgloss.Style
	sttStyle     lipgloss.Style
	userStyle    lipgloss.Style
	agentStyle   lipgloss.Style
	partialStyle lipgloss.Style
	systemStyle  lipgloss.Style
	faultStyle   lipgloss.Style
}

type ConsoleOption func(*Console)

// WithWidth wraps lines at width columns.
func WithWidth(width int) ConsoleOption {
	return func(c *Console) {
		if width > 0 {
			c.width = width
		}
	}
}

// WithPartials also prints non-final transcripts.
func WithPartials() ConsoleOption {
	return func(c *Console) { c.showPartials = true }
}

// WithStateChanges also prints every session state transition.
func WithStateChanges() ConsoleOption {
	return func(c *Console) { c.showStates = true }
}

func NewConsole(out io.Writer, opts ...ConsoleOption) *Console {
	renderer := lipgloss.NewRenderer(out)
	c := &Console{
		out:          out,
		width:        defaultConsoleWidth,
		tagStyle:     renderer.NewStyle().Bold(true),
		sttStyle:     renderer.NewStyle().Foreground(lipgloss.Color("8")),
		userStyle:    renderer.NewStyle().Foreground(lipgloss.Color("12")),
		agentStyle:   renderer.NewStyle().Foreground(lipgloss.Color("10")),
		partialStyle: renderer.NewStyle().Faint(true).Italic(true),
		systemStyle:  renderer.NewStyle().Faint(true),
		faultStyle:   renderer.NewStyle().Foreground(lipgloss.Color("9")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Console) OnEvent(event events.Event) error {
	switch e := event.(type) {
	case events.SessionStarted:
		return c.print(c.systemStyle, "[SESS]", fmt.Sprintf("%s tutor, %s scenario, voice %s",
			e.Persona.Language().Name, e.Persona.Scenario, e.Persona.VoiceID))
	case events.Utterance:
		if e.IsFinal {
			return c.print(c.sttStyle, "[STT ]", e.Text)
		}
		if c.showPartials {
			return c.print(c.partialStyle, "[... ]", e.Text)
		}
	case events.ConversationItemAdded:
		if e.Item.Role == conversations.RoleAgent {
			text := e.Item.Text
			if e.Item.Truncated {
				text += " [cut off]"
			}
			return c.print(c.agentStyle, "[AGENT]", text)
		}
		return c.print(c.userStyle, "[USER]", e.Item.Text)
	case events.TurnStateChanged:
		if c.showStates {
			return c.print(c.systemStyle, "[TURN]", fmt.Sprintf("%s -> %s", e.From, e.To))
		}
	case events.StageFault:
		return c.print(c.faultStyle, "[FAIL]", fmt.Sprintf("%s: %v", e.Stage, e.Err))
	case events.SessionEnded:
		return c.print(c.systemStyle, "[SESS]", "ended")
	}
	return nil
}

// print writes text after tag, wrapping it and indenting continuation lines
// under the text.
func (c *Console) print(style lipgloss.Style, tag, text string) error {
	width := c.width - len(tag) - 1
	if width < 20 {
		width = 20
	}
	lines := strings.Split(wordwrap.String(text, width), "\n")
	padding := strings.Repeat(" ", len(tag)+1)

	var b strings.Builder
	b.WriteString(c.tagStyle.Render(tag))
	b.WriteString(" ")
	for i, line := range lines {
		if i > 0 {
			b.WriteString("\n")
			b.WriteString(padding)
		}
		b.WriteString(style.Render(line))
	}
	b.WriteString("\n")

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := io.WriteString(c.out, b.String()); err != nil {
		return fmt.Errorf("failed to write console line: %w", err)
	}
	return nil
}
