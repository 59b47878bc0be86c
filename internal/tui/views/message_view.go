package views

import (
	"fmt"

	"github.com/Nahtral/100IN-sub005/internal/chat"
	"github.com/rivo/tview"
)

// MessageView displays one conversation's messages.
type MessageView struct {
	*tview.TextView
	viewerID string
}

// NewMessageView creates the message pane for the given viewer identity.
func NewMessageView(viewerID string) *MessageView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")

	return &MessageView{TextView: tv, viewerID: viewerID}
}

// SetChatName updates the title with the conversation name.
func (mv *MessageView) SetChatName(name string) {
	mv.SetTitle(fmt.Sprintf(" %s ", name))
}

// Update redraws the pane from a chronological message snapshot.
func (mv *MessageView) Update(msgs []chat.Message) {
	mv.Clear()

	for _, m := range msgs {
		sender := m.SenderName
		if sender == "" {
			sender = m.SenderID
		}
		if m.SenderID == mv.viewerID {
			sender = "You"
		}

		body := sanitizeForTerminal(m.Content)
		switch {
		case m.Deleted:
			body = "[::d](deleted)[-:-:-]"
		case m.Kind == chat.ContentImage:
			body = "[image] " + body
		case m.Kind == chat.ContentFile:
			body = "[file] " + body
		}
		if m.Edited {
			body += " [::d](edited)[-:-:-]"
		}
		if len(m.Reactions) > 0 {
			body += "  " + reactionLine(m.Reactions)
		}

		ts := formatTimestamp(m.CreatedAt)
		marker := statusMarker(m.Status)
		line := fmt.Sprintf("[::b]%s[-:-:-] [::d]%s%s[-:-:-]\n%s\n\n", sanitizeForTerminal(sender), ts, marker, body)
		_, _ = fmt.Fprint(mv, line)
	}

	mv.ScrollToEnd()
}

func statusMarker(s chat.DeliveryStatus) string {
	switch s {
	case chat.StatusSending:
		return " [yellow]…[-]"
	case chat.StatusFailed:
		return " [red]✗ failed[-]"
	default:
		return ""
	}
}

func reactionLine(reactions []chat.Reaction) string {
	counts := make(map[string]int)
	order := make([]string, 0, len(reactions))
	for _, r := range reactions {
		if counts[r.Emoji] == 0 {
			order = append(order, r.Emoji)
		}
		counts[r.Emoji]++
	}
	out := ""
	for _, emoji := range order {
		if out != "" {
			out += " "
		}
		out += fmt.Sprintf("%s%d", sanitizeForTerminal(emoji), counts[emoji])
	}
	return out
}
