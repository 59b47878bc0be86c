// Package realtime maintains the websocket subscription to the backend's
// row-change streams. Decoded events are published on the bus under the
// "rt." namespace; the package knows nothing about who consumes them.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Nahtral/100IN-sub005/internal/bus"
	"github.com/Nahtral/100IN-sub005/internal/status"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	reconnectBase = time.Second
	reconnectMax  = 30 * time.Second
)

// Subscriber owns the realtime connection for one session. It always holds
// chat-level interest; message-level interest is scoped to the active chat
// and re-established on every selection change.
type Subscriber struct {
	wsURL   string
	token   string
	bus     *bus.Bus
	machine *status.Machine
	logger  *zap.Logger
	rc      *reconnector
	cancel  context.CancelFunc
}

// NewSubscriber creates a subscriber for the backend at baseURL.
func NewSubscriber(baseURL, token string, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *Subscriber {
	return &Subscriber{
		wsURL:   wsEndpoint(baseURL),
		token:   token,
		bus:     b,
		machine: machine,
		logger:  logger,
		rc:      newReconnector(reconnectBase, reconnectMax),
	}
}

func wsEndpoint(baseURL string) string {
	u := strings.TrimRight(baseURL, "/")
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return u + "/realtime"
}

// Start runs the connect/read/reconnect loop until the context is
// cancelled or Stop is called.
func (s *Subscriber) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	selCh, unsub := s.bus.Subscribe(bus.KindChatSelected, 16)
	go func() {
		defer unsub()
		s.run(ctx, selCh)
	}()
}

// Stop tears down the subscription and closes the connection.
func (s *Subscriber) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Subscriber) run(ctx context.Context, selCh <-chan bus.Event) {
	// Message-level topic currently subscribed, if any. Survives reconnects
	// so the active chat's stream is re-established on a fresh connection.
	var msgTopic string

	for {
		if ctx.Err() != nil {
			return
		}

		_ = s.machine.Transition(status.Connecting)
		conn, err := s.dial(ctx)
		if err != nil {
			s.logger.Warn("realtime dial failed", zap.Error(err))
			_ = s.machine.Transition(status.Reconnecting)
			if !s.sleep(ctx, s.rc.nextDelay()) {
				return
			}
			continue
		}

		s.rc.markConnected()
		_ = s.machine.Transition(status.Ready)
		s.logger.Info("realtime connected", zap.String("url", s.wsURL))

		if err := s.subscribe(ctx, conn, TopicChats); err != nil {
			s.logger.Warn("subscribe chats failed", zap.Error(err))
			_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
			_ = s.machine.Transition(status.Reconnecting)
			if !s.sleep(ctx, s.rc.nextDelay()) {
				return
			}
			continue
		}
		if msgTopic != "" {
			if err := s.subscribe(ctx, conn, msgTopic); err != nil {
				s.logger.Warn("subscribe messages failed", zap.String("topic", msgTopic), zap.Error(err))
			}
		}

		msgTopic = s.pump(ctx, conn, selCh, msgTopic)
		_ = conn.Close(websocket.StatusNormalClosure, "")

		if ctx.Err() != nil {
			return
		}
		_ = s.machine.Transition(status.Reconnecting)
		if !s.sleep(ctx, s.rc.nextDelay()) {
			return
		}
	}
}

// pump reads envelopes and handles selection changes until the connection
// breaks or the context ends. Returns the message topic in effect so the
// next connection can restore it.
func (s *Subscriber) pump(ctx context.Context, conn *websocket.Conn, selCh <-chan bus.Event, msgTopic string) string {
	envCh := make(chan Envelope, 64)
	errCh := make(chan error, 1)

	go func() {
		for {
			var env Envelope
			if err := wsjson.Read(ctx, conn, &env); err != nil {
				errCh <- err
				return
			}
			envCh <- env
		}
	}()

	for {
		select {
		case env := <-envCh:
			s.dispatch(env)
		case evt := <-selCh:
			chatID, ok := evt.Payload.(string)
			if !ok {
				continue
			}
			next := MessageTopic(chatID)
			if next == msgTopic {
				continue
			}
			if msgTopic != "" {
				if err := s.unsubscribe(ctx, conn, msgTopic); err != nil {
					s.logger.Warn("unsubscribe failed", zap.String("topic", msgTopic), zap.Error(err))
				}
			}
			if err := s.subscribe(ctx, conn, next); err != nil {
				s.logger.Warn("subscribe failed", zap.String("topic", next), zap.Error(err))
			}
			msgTopic = next
		case err := <-errCh:
			s.logger.Warn("realtime connection lost", zap.Error(err))
			return msgTopic
		case <-ctx.Done():
			return msgTopic
		}
	}
}

func (s *Subscriber) dispatch(env Envelope) {
	switch env.Type {
	case TypeChatChanged:
		var p ChatChange
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.logger.Warn("bad chat.changed payload", zap.Error(err))
			return
		}
		s.bus.Emit(bus.KindRemoteChatChanged, p)
	case TypeMessageInserted:
		var p MessageInsert
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.logger.Warn("bad message.inserted payload", zap.Error(err))
			return
		}
		s.bus.Emit(bus.KindRemoteMessage, p)
	default:
		// Unknown event types are ignored so the server can add kinds.
	}
}

func (s *Subscriber) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := &websocket.DialOptions{}
	if s.token != "" {
		opts.HTTPHeader = http.Header{"Authorization": {"Bearer " + s.token}}
	}
	conn, _, err := websocket.Dial(dialCtx, s.wsURL, opts)
	return conn, err
}

func (s *Subscriber) subscribe(ctx context.Context, conn *websocket.Conn, topic string) error {
	return wsjson.Write(ctx, conn, command{Action: "subscribe", Topic: topic})
}

func (s *Subscriber) unsubscribe(ctx context.Context, conn *websocket.Conn, topic string) error {
	return wsjson.Write(ctx, conn, command{Action: "unsubscribe", Topic: topic})
}

func (s *Subscriber) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
