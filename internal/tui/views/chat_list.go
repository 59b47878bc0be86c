package views

import (
	"fmt"
	"time"

	"github.com/Nahtral/100IN-sub005/internal/chat"
	"github.com/rivo/tview"
)

// ChatList is the conversation list table.
type ChatList struct {
	*tview.Table
	chats      []chat.Chat
	hasMore    bool
	selectedFn func() (int, int)
}

// NewChatList creates the conversation list.
func NewChatList() *ChatList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Chats ")

	cl := &ChatList{Table: table}
	cl.selectedFn = table.GetSelection
	return cl
}

// Update refreshes the table from a chat snapshot.
func (cl *ChatList) Update(chats []chat.Chat, hasMore bool) {
	cl.chats = chats
	cl.hasMore = hasMore
	cl.Clear()

	cl.SetCell(0, 0, tview.NewTableCell(" Name").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.SetCell(0, 1, tview.NewTableCell(" Last Message").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.SetCell(0, 2, tview.NewTableCell(" Time").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))

	for i, c := range chats {
		row := i + 1
		name := c.Name
		if name == "" {
			name = c.ID
		}
		if c.Pinned {
			name = "^ " + name
		}
		if c.Unread > 0 {
			name = fmt.Sprintf("* %s (%d)", name, c.Unread)
		}

		preview := c.Preview
		if c.Kind == chat.KindGroup && c.PreviewSender != "" {
			preview = c.PreviewSender + ": " + preview
		}

		nameCell := tview.NewTableCell(" " + sanitizeForTerminal(name)).SetMaxWidth(30).SetExpansion(1)
		previewCell := tview.NewTableCell(" " + sanitizeForTerminal(preview)).SetMaxWidth(40).SetExpansion(2)
		if c.Archived {
			nameCell.SetTextColor(tview.Styles.TertiaryTextColor)
			previewCell.SetTextColor(tview.Styles.TertiaryTextColor)
		}
		cl.SetCell(row, 0, nameCell)
		cl.SetCell(row, 1, previewCell)
		cl.SetCell(row, 2, tview.NewTableCell(" "+formatTimestamp(c.LastMessageAt)).SetMaxWidth(12))
	}

	if hasMore {
		cl.SetCell(len(chats)+1, 0, tview.NewTableCell(" … more (m)").SetSelectable(false).SetTextColor(tview.Styles.TertiaryTextColor))
	}
}

// SelectedChat returns the id of the highlighted conversation, or "".
func (cl *ChatList) SelectedChat() string {
	row, _ := cl.selectedFn()
	idx := row - 1 // account for header
	if idx >= 0 && idx < len(cl.chats) {
		return cl.chats[idx].ID
	}
	return ""
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
