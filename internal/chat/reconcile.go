package chat

import (
	"context"

	"github.com/Nahtral/100IN-sub005/internal/bus"
	"github.com/Nahtral/100IN-sub005/internal/realtime"
	"go.uber.org/zap"
)

// Reconciler folds realtime change notifications back into the manager's
// state. It subscribes to "rt." events on the bus; the realtime subscriber
// publishes them without knowing the manager exists.
type Reconciler struct {
	mgr    *Manager
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewReconciler creates a reconciler for the given manager.
func NewReconciler(mgr *Manager, b *bus.Bus, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		mgr:    mgr,
		bus:    b,
		logger: logger,
	}
}

// Start subscribes to realtime events on the bus.
func (r *Reconciler) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	ch, unsub := r.bus.Subscribe("rt.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				r.handleEvent(ctx, evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the reconciler.
func (r *Reconciler) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Reconciler) handleEvent(ctx context.Context, evt bus.Event) {
	switch evt.Kind {
	case bus.KindRemoteChatChanged:
		// Chat-change payloads do not carry the denormalized shape the list
		// procedure returns, so refresh the whole list instead of patching.
		if err := r.mgr.LoadChats(ctx, true); err != nil {
			r.logger.Warn("chat list refresh after remote change failed", zap.Error(err))
		}
	case bus.KindRemoteMessage:
		ins, ok := evt.Payload.(realtime.MessageInsert)
		if !ok {
			return
		}
		r.handleInsert(ctx, ins)
	}
}

func (r *Reconciler) handleInsert(ctx context.Context, ins realtime.MessageInsert) {
	applied := r.mgr.applyRemoteInsert(Message{
		ID:         ins.ID,
		ChatID:     ins.ChatID,
		SenderID:   ins.SenderID,
		Content:    ins.Content,
		Kind:       ContentKind(ins.MessageType),
		Attachment: ins.AttachmentURL,
		CreatedAt:  ins.CreatedAt,
	})
	if !applied {
		return
	}

	// The event payload carries no sender identity fields; refetch in the
	// background to backfill them. Failures here only cost polish.
	go func() {
		if err := r.mgr.LoadMessages(ctx, ins.ChatID, true); err != nil {
			r.logger.Warn("sender backfill refresh failed", zap.String("chat_id", ins.ChatID), zap.Error(err))
		}
	}()

	if !r.mgr.focused.Load() {
		r.bus.Emit(bus.KindNotify, ins.ChatID)
	}
}
