package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// StatusBar is the single-line footer: profile, connection state, clock and
// the transient flash slot.
type StatusBar struct {
	*tview.TextView
	profile string
	conn    string
	flash   string
}

// NewStatusBar creates the footer bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv}
}

// SetProfile updates the profile name display.
func (sb *StatusBar) SetProfile(name string) {
	sb.profile = name
	sb.render()
}

// SetConnState updates the connection state display.
func (sb *StatusBar) SetConnState(state string) {
	sb.conn = state
	sb.render()
}

// SetFlash sets the transient message slot.
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = msg
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	conn := sb.conn
	switch conn {
	case "READY":
		conn = "[green]" + conn + "[-]"
	case "RECONNECTING", "CONNECTING":
		conn = "[yellow]" + conn + "[-]"
	case "ERROR", "AUTH_REQUIRED":
		conn = "[red]" + conn + "[-]"
	}

	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s | %s", sb.profile, conn, time.Now().Format("15:04"))
	if sb.flash != "" {
		line += fmt.Sprintf(" | [yellow]%s[-]", sb.flash)
	}

	_, _ = fmt.Fprint(sb, line)
}
