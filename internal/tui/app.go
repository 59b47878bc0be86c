// Package tui is the terminal front-end. It renders snapshots taken from the
// chat manager and redraws on bus events; it never owns state of its own
// beyond widget contents.
package tui

import (
	"context"
	"time"

	"github.com/Nahtral/100IN-sub005/internal/bus"
	"github.com/Nahtral/100IN-sub005/internal/chat"
	"github.com/Nahtral/100IN-sub005/internal/status"
	"github.com/Nahtral/100IN-sub005/internal/tui/keys"
	"github.com/Nahtral/100IN-sub005/internal/tui/views"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

const flashDuration = 5 * time.Second

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	pages    *tview.Pages
	mgr      *chat.Manager
	bus      *bus.Bus
	machine  *status.Machine
	logger   *zap.Logger
	registry *keys.Registry
	flash    flash

	statusBar *views.StatusBar
	chatList  *views.ChatList
	msgView   *views.MessageView
	composer  *views.Composer
	newChat   *views.NewChatForm

	screen tcell.Screen

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(mgr *chat.Manager, b *bus.Bus, machine *status.Machine, profile string, logger *zap.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		mgr:       mgr,
		bus:       b,
		machine:   machine,
		logger:    logger,
		registry:  keys.NewRegistry(),
		statusBar: views.NewStatusBar(),
		chatList:  views.NewChatList(),
		msgView:   views.NewMessageView(mgr.UserID()),
		composer:  views.NewComposer(),
		newChat:   views.NewNewChatForm(),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.statusBar.SetProfile(profile)
	a.statusBar.SetConnState(string(machine.Current()))
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit",
		Handler:     func() { a.app.Stop() },
	})
	a.registry.AddPage("chats", "new", &keys.Action{
		Rune: 'n', Key: tcell.KeyRune,
		Description: "n:new chat",
		Handler:     func() { a.showNewChat() },
	})
	a.registry.AddPage("chats", "more", &keys.Action{
		Rune: 'm', Key: tcell.KeyRune,
		Description: "m:more",
		Handler:     func() { a.loadMoreChats() },
	})
	a.registry.AddPage("chat", "older", &keys.Action{
		Rune: 'o', Key: tcell.KeyRune,
		Description: "o:older",
		Handler:     func() { a.loadOlderMessages() },
	})
}

func (a *App) setupCallbacks() {
	a.chatList.SetSelectedFunc(func(row, col int) {
		if id := a.chatList.SelectedChat(); id != "" {
			a.openChat(id)
		}
	})

	a.composer.SetOnSend(func(text string) {
		go func() {
			if err := a.mgr.Send(a.ctx, text, chat.ContentText, ""); err != nil {
				a.flash.set("Send failed: "+err.Error(), flashDuration)
			}
		}()
	})

	a.newChat.SetOnCreate(func(name string, group bool, participantIDs []string) {
		if len(participantIDs) == 0 {
			a.flash.set("At least one participant is required", flashDuration)
			return
		}
		kind := chat.KindPrivate
		if group {
			kind = chat.KindGroup
		}
		go func() {
			if err := a.mgr.CreateChat(a.ctx, name, kind, participantIDs); err != nil {
				a.flash.set("Create failed: "+err.Error(), flashDuration)
				return
			}
			a.app.QueueUpdateDraw(func() {
				a.newChat.Reset()
				a.showChats()
			})
		}()
	})

	a.newChat.SetOnCancel(func() {
		a.newChat.Reset()
		a.showChats()
	})
}

func (a *App) setupLayout() {
	chatFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.msgView, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	a.pages.AddPage("chats", a.chatList, true, true)
	a.pages.AddPage("chat", chatFlex, true, false)
	a.pages.AddPage("new", a.newChat, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	// tview does not expose the screen; grab it for Beep.
	a.app.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
		a.screen = screen
		return false
	})

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape {
			switch currentPage {
			case "chat", "new":
				a.showChats()
				return nil
			}
		}

		// Let text input widgets handle all keys normally.
		focused := a.app.GetFocus()
		if _, ok := focused.(*tview.InputField); ok {
			return event
		}

		// 'i' focuses the composer (only when not already in an input field).
		if currentPage == "chat" && event.Key() == tcell.KeyRune && event.Rune() == 'i' {
			a.app.SetFocus(a.composer.InputField)
			return nil
		}

		if a.registry.HandleEvent(currentPage, event) {
			return nil
		}

		return event
	})
}

func (a *App) showChats() {
	a.pages.SwitchToPage("chats")
	a.app.SetFocus(a.chatList)
	a.mgr.SetFocused(false)
}

func (a *App) showNewChat() {
	a.pages.SwitchToPage("new")
	a.app.SetFocus(a.newChat)
	a.mgr.SetFocused(false)
}

func (a *App) openChat(id string) {
	go func() {
		if err := a.mgr.SelectChat(a.ctx, id); err != nil {
			a.flash.set("Load failed: "+err.Error(), flashDuration)
			return
		}
		a.app.QueueUpdateDraw(func() {
			if c, ok := a.mgr.ActiveChat(); ok {
				name := c.Name
				if name == "" {
					name = c.ID
				}
				a.msgView.SetChatName(name)
			}
			a.msgView.Update(a.mgr.Messages())
			a.pages.SwitchToPage("chat")
			a.app.SetFocus(a.msgView)
			a.mgr.SetFocused(true)
		})
	}()
}

func (a *App) loadMoreChats() {
	if !a.mgr.HasMoreChats() {
		return
	}
	go func() {
		if err := a.mgr.LoadChats(a.ctx, false); err != nil {
			a.flash.set("Load failed: "+err.Error(), flashDuration)
		}
	}()
}

func (a *App) loadOlderMessages() {
	go func() {
		if err := a.mgr.LoadOlder(a.ctx); err != nil {
			a.flash.set("Load failed: "+err.Error(), flashDuration)
		}
	}()
}

// Run starts the TUI and blocks until quit.
func (a *App) Run() error {
	go a.eventLoop()
	go a.clockLoop()

	a.app.QueueUpdateDraw(func() {
		a.chatList.Update(a.mgr.Chats(), a.mgr.HasMoreChats())
	})

	return a.app.Run()
}

// eventLoop redraws widgets on bus events. The manager is the only state
// holder; every redraw re-reads its snapshots.
func (a *App) eventLoop() {
	chatCh, unsubChats := a.bus.Subscribe("chat.", 64)
	defer unsubChats()
	msgCh, unsubMsgs := a.bus.Subscribe("message.", 64)
	defer unsubMsgs()
	connCh, unsubConn := a.bus.Subscribe("conn.", 16)
	defer unsubConn()
	uiCh, unsubUI := a.bus.Subscribe("ui.", 16)
	defer unsubUI()

	for {
		select {
		case evt := <-chatCh:
			a.handleChatEvent(evt)
		case evt := <-msgCh:
			a.handleMessageEvent(evt)
		case evt := <-connCh:
			if sc, ok := evt.Payload.(status.StatusChange); ok {
				a.app.QueueUpdateDraw(func() {
					a.statusBar.SetConnState(string(sc.To))
				})
			}
		case <-uiCh:
			a.app.QueueUpdateDraw(func() {
				if a.screen != nil {
					_ = a.screen.Beep()
				}
			})
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) handleChatEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindChatListUpdated:
		a.app.QueueUpdateDraw(func() {
			a.chatList.Update(a.mgr.Chats(), a.mgr.HasMoreChats())
		})
	case bus.KindChatOpFailed:
		if opErr, ok := evt.Payload.(chat.OpError); ok {
			a.flash.set("Error: "+opErr.Err.Error(), flashDuration)
		}
	}
}

func (a *App) handleMessageEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindMessageListUpdated:
		chatID, _ := evt.Payload.(string)
		if chatID != a.mgr.ActiveChatID() {
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.msgView.Update(a.mgr.Messages())
		})
	case bus.KindMessageSendFailed:
		if opErr, ok := evt.Payload.(chat.OpError); ok {
			a.flash.set("Send failed: "+opErr.Err.Error(), flashDuration)
		}
	}
}

// clockLoop keeps the status bar clock and flash slot fresh.
func (a *App) clockLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.app.QueueUpdateDraw(func() {
				a.statusBar.SetFlash(a.flash.get())
			})
		case <-a.ctx.Done():
			return
		}
	}
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
