package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker"

	"storefront/internal/sequencer"
)

const (
	natsProbeName          = "event-bridge"
	defaultSubjectPrefix   = "storefront.notifications"
	natsProbeFlushDeadline = 2 * time.Second
)

// natsConn is the subset of *nats.Conn the bridge uses. Defining an interface
// here allows test doubles to be injected without a live NATS server.
type natsConn interface {
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
	FlushTimeout(timeout time.Duration) error
	Drain() error
	Close()
}

// Dispatcher delivers a vendor event to whatever listener is bound.
// *NotificationClient implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev sequencer.Event) bool
}

// NotificationBridge relays push events published on NATS into the
// notification client's listener registry, so bound handlers fire no matter
// which process received the push.
type NotificationBridge struct {
	url        string
	prefix     string
	cb         *gobreaker.CircuitBreaker
	dispatcher Dispatcher
	connect    func(url string) (natsConn, error)

	mu   sync.Mutex
	conn natsConn
}

// NewNotificationBridge constructs a bridge. No connection is made until
// Start.
func NewNotificationBridge(url string, dispatcher Dispatcher, cb *gobreaker.CircuitBreaker) *NotificationBridge {
	return &NotificationBridge{
		url:        url,
		prefix:     defaultSubjectPrefix,
		cb:         cb,
		dispatcher: dispatcher,
		connect:    realNATSConnect,
	}
}

// Subject returns the NATS subject carrying the given event.
func (b *NotificationBridge) Subject(name sequencer.EventName) string {
	return b.prefix + "." + string(name)
}

// Start connects and subscribes to every event subject. Handlers run with
// ctx, which should live as long as the bridge. Calling Start again while
// connected is a no-op.
func (b *NotificationBridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		return nil
	}

	out, err := b.cb.Execute(func() (any, error) {
		nc, err := b.connect(b.url)
		if err != nil {
			return nil, fmt.Errorf("connecting to NATS: %w", err)
		}
		// One subscription per bound vendor event, on <prefix>.<event name>.
		for _, name := range sequencer.EventNames() {
			subject := b.Subject(name)
			if _, err := nc.Subscribe(subject, b.relay(ctx, name)); err != nil {
				nc.Close()
				return nil, fmt.Errorf("subscribing %s: %w", subject, err)
			}
		}
		return nc, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return fmt.Errorf("circuit open: %w", err)
		}
		return err
	}

	b.conn = out.(natsConn)
	slog.InfoContext(ctx, "notification bridge started", "prefix", b.prefix)
	return nil
}

// relay decodes a message body into an Event and dispatches it. The subject
// decides the event name; a name in the body is ignored.
func (b *NotificationBridge) relay(ctx context.Context, name sequencer.EventName) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var ev sequencer.Event
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				slog.WarnContext(ctx, "dropping malformed notification event",
					"subject", msg.Subject, "error", err)
				return
			}
		}
		ev.Name = name
		if !b.dispatcher.Dispatch(ctx, ev) {
			slog.DebugContext(ctx, "no listener bound for notification event", "event", name)
		}
	}
}

// Close drains the subscriptions and closes the connection.
func (b *NotificationBridge) Close() error {
	b.mu.Lock()
	nc := b.conn
	b.conn = nil
	b.mu.Unlock()

	if nc == nil {
		return nil
	}
	if err := nc.Drain(); err != nil {
		nc.Close()
		return fmt.Errorf("draining NATS connection: %w", err)
	}
	return nil
}

// Probe checks the server answers a flush round trip, reusing the live
// connection when started.
func (b *NotificationBridge) Probe(ctx context.Context) ProbeResult {
	start := time.Now()

	_, err := b.cb.Execute(func() (any, error) {
		b.mu.Lock()
		nc := b.conn
		b.mu.Unlock()

		if nc == nil {
			fresh, err := b.connect(b.url)
			if err != nil {
				return nil, fmt.Errorf("connecting to NATS: %w", err)
			}
			defer fresh.Close()
			nc = fresh
		}

		timeout := natsProbeFlushDeadline
		if dl, ok := ctx.Deadline(); ok {
			timeout = time.Until(dl)
		}
		if err := nc.FlushTimeout(timeout); err != nil {
			return nil, fmt.Errorf("flush: %w", err)
		}
		return nil, nil
	})

	return probeResult(natsProbeName, start, err)
}

// realNATSConnect opens a real NATS connection.
func realNATSConnect(url string) (natsConn, error) {
	nc, err := nats.Connect(url, nats.Name("storefront"))
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return nc, nil
}
