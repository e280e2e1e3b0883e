package sequencer

import (
	"context"
	"log/slog"
)

// HandlerBindings is the set of vendor event handlers. It is always
// registered and removed as a whole.
type HandlerBindings struct {
	Received Handler
	Opened   Handler
	IDs      Handler
}

// DefaultBindings returns handlers that log each event.
func DefaultBindings(logger *slog.Logger) HandlerBindings {
	if logger == nil {
		logger = slog.Default()
	}
	return HandlerBindings{
		Received: func(ctx context.Context, ev Event) {
			logger.InfoContext(ctx, "notification received", "notification", ev.Notification)
		},
		Opened: func(ctx context.Context, ev Event) {
			n := ev.Notification
			if n == nil {
				logger.WarnContext(ctx, "notification opened without payload", "action", ev.Action)
				return
			}
			logger.InfoContext(ctx, "notification opened",
				"message", n.Body,
				"data", n.Data,
				"is_active", n.IsAppInFocus,
				"action", ev.Action,
			)
		},
		IDs: func(ctx context.Context, ev Event) {
			logger.InfoContext(ctx, "device info", "device", ev.Device)
		},
	}
}

// each visits the bindings in a fixed order.
func (b HandlerBindings) each(fn func(EventName, Handler)) {
	fn(EventReceived, b.Received)
	fn(EventOpened, b.Opened)
	fn(EventIDs, b.IDs)
}

// EventNames lists the bound events in registration order.
func EventNames() []EventName {
	return []EventName{EventReceived, EventOpened, EventIDs}
}
