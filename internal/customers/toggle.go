package customers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// TouchpointUpdater issues single field updates.
type TouchpointUpdater interface {
	UpdateTouchpoint(ctx context.Context, customerID, path string, value bool) error
}

// Switch is the state of one touchpoint control.
type Switch struct {
	CustomerID string
	Path       string
	Checked    bool
	Logger     *slog.Logger
}

// Toggle moves the switch to next before the update is confirmed. A failed
// update restores the previous value; a successful one calls onSuccess.
func (s *Switch) Toggle(ctx context.Context, updater TouchpointUpdater, next bool, onSuccess func(bool)) error {
	if !ValidPath(s.Path) {
		return fmt.Errorf("%w: %q", ErrUnknownTouchpoint, s.Path)
	}
	previous := s.Checked
	s.Checked = next
	if err := updater.UpdateTouchpoint(ctx, s.CustomerID, s.Path, next); err != nil {
		s.Checked = previous
		s.logger().Error("toggle touchpoint",
			slog.String("customer_id", s.CustomerID),
			slog.String("path", s.Path),
			slog.Bool("value", next),
			slog.Any("error", err))
		return err
	}
	if onSuccess != nil {
		onSuccess(next)
	}
	return nil
}

func (s *Switch) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock blocks until key is free and returns the matching unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyedEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
