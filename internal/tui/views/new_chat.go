package views

import (
	"strings"

	"github.com/rivo/tview"
)

// NewChatForm collects the fields for creating a conversation: an optional
// name, a comma-separated participant list and the group flag.
type NewChatForm struct {
	*tview.Form
	onCreate func(name string, group bool, participantIDs []string)
	onCancel func()
}

// NewNewChatForm creates the conversation creation form.
func NewNewChatForm() *NewChatForm {
	f := &NewChatForm{Form: tview.NewForm()}
	f.SetBorder(true).SetTitle(" New Chat ")

	f.AddInputField("Name", "", 40, nil, nil)
	f.AddInputField("Participants (comma-separated ids)", "", 40, nil, nil)
	f.AddCheckbox("Group", false, nil)
	f.AddButton("Create", func() {
		if f.onCreate == nil {
			return
		}
		name := f.fieldText(0)
		participants := splitIDs(f.fieldText(1))
		group := f.GetFormItem(2).(*tview.Checkbox).IsChecked()
		f.onCreate(name, group, participants)
	})
	f.AddButton("Cancel", func() {
		if f.onCancel != nil {
			f.onCancel()
		}
	})

	return f
}

// SetOnCreate sets the submit callback.
func (f *NewChatForm) SetOnCreate(fn func(name string, group bool, participantIDs []string)) {
	f.onCreate = fn
}

// SetOnCancel sets the cancel callback.
func (f *NewChatForm) SetOnCancel(fn func()) {
	f.onCancel = fn
}

// Reset clears all fields.
func (f *NewChatForm) Reset() {
	f.GetFormItem(0).(*tview.InputField).SetText("")
	f.GetFormItem(1).(*tview.InputField).SetText("")
	f.GetFormItem(2).(*tview.Checkbox).SetChecked(false)
}

func (f *NewChatForm) fieldText(i int) string {
	return strings.TrimSpace(f.GetFormItem(i).(*tview.InputField).GetText())
}

func splitIDs(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if id := strings.TrimSpace(part); id != "" {
			out = append(out, id)
		}
	}
	return out
}
