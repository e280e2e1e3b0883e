package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const defaultThrottle = 500 * time.Millisecond

// ErrSnapshotUnread is returned by Flush when the backend failed to return
// the persisted snapshot. Saving would overwrite state that was never loaded.
var ErrSnapshotUnread = errors.New("store: persisted snapshot was not read")

// Persistor rehydrates a Store from a Backend and writes changes back.
// Writes are throttled: bursts of updates produce one save.
type Persistor struct {
	store    *Store
	backend  Backend
	throttle time.Duration

	rehydrated chan struct{}
	dirty      chan struct{}
	stop       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once

	mu       sync.Mutex
	err      error
	unread   bool
	lastSave time.Time
	unsub    func()
}

// PersistOption customises a Persistor.
type PersistOption func(*Persistor)

// WithThrottle sets the minimum gap between saves.
func WithThrottle(d time.Duration) PersistOption {
	return func(p *Persistor) { p.throttle = d }
}

// PersistStore starts rehydrating s from backend in the background and
// begins writing changes once rehydration is done. A missing or unreadable
// snapshot leaves the store as it was; the error is available from Err.
// When the backend itself failed, nothing is written back for the life of
// the Persistor.
func PersistStore(ctx context.Context, s *Store, backend Backend, opts ...PersistOption) *Persistor {
	p := &Persistor{
		store:      s,
		backend:    backend,
		throttle:   defaultThrottle,
		rehydrated: make(chan struct{}),
		dirty:      make(chan struct{}, 1),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	go p.run(ctx)
	return p
}

// Rehydrated is closed once the persisted snapshot has been applied (or
// found absent).
func (p *Persistor) Rehydrated() <-chan struct{} {
	return p.rehydrated
}

// IsRehydrated reports whether Rehydrated is closed.
func (p *Persistor) IsRehydrated() bool {
	select {
	case <-p.rehydrated:
		return true
	default:
		return false
	}
}

// Err returns the rehydration error, if any. ErrNoSnapshot is not an error.
func (p *Persistor) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Persistor) run(ctx context.Context) {
	defer close(p.done)

	p.rehydrate(ctx)
	p.mu.Lock()
	if p.unread {
		p.mu.Unlock()
		close(p.rehydrated)
		slog.WarnContext(ctx, "persisted state unreadable, changes will not be saved")
		return
	}
	p.unsub = p.store.Subscribe(func(State) {
		select {
		case p.dirty <- struct{}{}:
		default:
		}
	})
	p.mu.Unlock()
	close(p.rehydrated)

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-p.dirty:
		}

		p.mu.Lock()
		wait := p.throttle - time.Since(p.lastSave)
		p.mu.Unlock()
		if wait > 0 {
			select {
			case <-time.After(wait):
			case <-p.stop:
				return
			case <-ctx.Done():
				return
			}
		}

		if err := p.Flush(ctx); err != nil {
			slog.WarnContext(ctx, "persisting state failed", "error", err)
		}
	}
}

func (p *Persistor) rehydrate(ctx context.Context) {
	data, err := p.backend.Load(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		slog.DebugContext(ctx, "no persisted state, starting fresh")
		return
	}
	// A snapshot that decodes badly is replaced; one that could not be
	// fetched is left alone.
	loadFailed := err != nil
	if err == nil {
		var st State
		if err = msgpack.Unmarshal(data, &st); err == nil {
			p.store.replace(st)
			slog.InfoContext(ctx, "state rehydrated", "cart_items", len(st.Cart))
			return
		}
		err = fmt.Errorf("decoding snapshot: %w", err)
	}

	slog.WarnContext(ctx, "state rehydration failed, starting fresh", "error", err)
	p.mu.Lock()
	p.err = err
	p.unread = loadFailed
	p.mu.Unlock()
}

// Flush encodes the current state and saves it.
func (p *Persistor) Flush(ctx context.Context) error {
	p.mu.Lock()
	unread := p.unread
	p.mu.Unlock()
	if unread {
		return ErrSnapshotUnread
	}

	data, err := msgpack.Marshal(p.store.Get())
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := p.backend.Save(ctx, data); err != nil {
		return err
	}
	p.mu.Lock()
	p.lastSave = time.Now()
	p.mu.Unlock()
	return nil
}

// Stop ends the write loop and saves a final snapshot if rehydration
// finished and read the backend.
func (p *Persistor) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.stop) })

	select {
	case <-p.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.mu.Lock()
	unsub := p.unsub
	p.mu.Unlock()
	if unsub == nil {
		return nil
	}
	unsub()
	return p.Flush(ctx)
}
