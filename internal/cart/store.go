package cart

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"storefront-api/internal/domain"
)

// Mirror persists cart snapshots for an authenticated user. Pushes are
// best-effort; the in-memory store is the source of truth for the session.
type Mirror interface {
	Replace(ctx context.Context, userID string, lines []domain.CartLine) error
}

// Store holds the cart lines for one application root. It is safe for
// concurrent use and owns all mutations; readers get copies.
type Store struct {
	mu     sync.Mutex
	lines  []domain.CartLine
	subs   map[int]func([]domain.CartLine)
	nextID int

	mirror       Mirror
	mirrorUserID string

	logger *log.Logger
}

// New builds an empty Store.
func New(logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Store{
		subs:   make(map[int]func([]domain.CartLine)),
		logger: logger,
	}
}

// AddItem inserts a line or, when a line with the same product id already
// exists, adds the quantities together. The existing line's display fields
// (name, image, price) are kept; only the quantity changes.
func (s *Store) AddItem(line domain.CartLine) {
	if line.Quantity <= 0 {
		return
	}
	s.mu.Lock()
	merged := false
	for i := range s.lines {
		if s.lines[i].ID == line.ID {
			s.lines[i].Quantity += line.Quantity
			merged = true
			break
		}
	}
	if !merged {
		s.lines = append(s.lines, line)
	}
	s.commitAndUnlock()
}

// RemoveItem deletes the line with the given product id. Absent ids are a
// no-op, not an error.
func (s *Store) RemoveItem(id string) {
	s.mu.Lock()
	for i := range s.lines {
		if s.lines[i].ID == id {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			break
		}
	}
	s.commitAndUnlock()
}

// SetQuantity sets the quantity for a line. Negative input clamps to zero,
// and a zero quantity removes the line entirely.
func (s *Store) SetQuantity(id string, qty int) {
	if qty < 0 {
		qty = 0
	}
	s.mu.Lock()
	for i := range s.lines {
		if s.lines[i].ID == id {
			if qty == 0 {
				s.lines = append(s.lines[:i], s.lines[i+1:]...)
			} else {
				s.lines[i].Quantity = qty
			}
			break
		}
	}
	s.commitAndUnlock()
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.mu.Lock()
	s.lines = nil
	s.commitAndUnlock()
}

// Lines returns a copy of the current cart contents.
func (s *Store) Lines() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// TotalCents recomputes the cart total from the current lines. It is never
// cached, so it cannot desync from the contents.
func (s *Store) TotalCents() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, l := range s.lines {
		total += l.TotalCents()
	}
	return total
}

// Count returns the number of units across all lines.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.lines {
		n += l.Quantity
	}
	return n
}

// Subscribe registers a callback invoked with a snapshot after every commit.
// The returned function cancels the subscription.
func (s *Store) Subscribe(fn func([]domain.CartLine)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// SetMirror attaches the remote mirror for an authenticated user. Pass a nil
// mirror or empty user id to detach (e.g. on logout).
func (s *Store) SetMirror(m Mirror, userID string) {
	s.mu.Lock()
	s.mirror = m
	s.mirrorUserID = userID
	s.mu.Unlock()
}

// commitAndUnlock takes the snapshot under the caller's lock, releases it,
// then notifies subscribers and pushes to the mirror. Callbacks run outside
// the lock so they can call back into the store.
func (s *Store) commitAndUnlock() {
	snapshot := s.snapshotLocked()
	subs := make([]func([]domain.CartLine), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	mirror := s.mirror
	userID := s.mirrorUserID
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
	if mirror != nil && userID != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mirror.Replace(ctx, userID, snapshot); err != nil {
				s.logger.Printf("cart store: mirror push user_id=%s error=%v", userID, err)
			}
		}()
	}
}

func (s *Store) snapshotLocked() []domain.CartLine {
	out := make([]domain.CartLine, len(s.lines))
	copy(out, s.lines)
	return out
}
