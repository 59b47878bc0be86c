package views

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Composer is the single-line input for drafting messages. Enter submits,
// blank drafts are swallowed.
type Composer struct {
	*tview.InputField
	onSend func(text string)
}

// NewComposer creates the message composer.
func NewComposer() *Composer {
	input := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)

	c := &Composer{InputField: input}

	input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || c.onSend == nil {
			return
		}
		text := strings.TrimSpace(c.GetText())
		if text == "" {
			return
		}
		c.onSend(text)
		c.SetText("")
	})

	return c
}

// SetOnSend sets the submit callback.
func (c *Composer) SetOnSend(fn func(text string)) {
	c.onSend = fn
}
