package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/EcommerceGo/storefront/internal/domain"
)

// persistTimeout bounds a single background write.
const persistTimeout = 5 * time.Second

// Persister is the durable storage port of a store.
type Persister interface {
	// Load returns the persisted items of kind. A never-saved collection is
	// returned as an empty slice and no error.
	Load(ctx context.Context, kind domain.Kind) ([]domain.LineItem, error)

	// Save overwrites the persisted items of kind.
	Save(ctx context.Context, kind domain.Kind, items []domain.LineItem) error
}

// ItemSnapshot is the state of one item before a mutation touched it. Item
// is nil when the id was absent.
type ItemSnapshot struct {
	ID    string
	Item  *domain.LineItem
	Index int
}

// Store is the local, authoritative copy of a cart or a wishlist. Mutations
// are synchronous and never fail; each one hands the new state to a
// background writer.
type Store struct {
	kind   domain.Kind
	logger *slog.Logger

	mu      sync.RWMutex
	items   []domain.LineItem
	status  domain.SyncStatus
	version uint64

	persister Persister
	writeMu   sync.Mutex
	written   uint64
	signal    chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates an empty store of the given kind and starts its background
// writer. A nil persister keeps state in memory only.
func New(kind domain.Kind, persister Persister, logger *slog.Logger) *Store {
	if persister == nil {
		persister = NewMemoryPersister()
	}
	s := &Store{
		kind:      kind,
		logger:    logger.With(slog.String("collection", kind.String())),
		items:     []domain.LineItem{},
		persister: persister,
		signal:    make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

// Kind returns the collection kind held by the store.
func (s *Store) Kind() domain.Kind {
	return s.kind
}

// Load hydrates the store from its persister, replacing the in-memory state.
func (s *Store) Load(ctx context.Context) error {
	items, err := s.persister.Load(ctx, s.kind)
	if err != nil {
		return fmt.Errorf("load %s: %w", s.kind, err)
	}

	s.mu.Lock()
	s.items = s.normalize(items)
	s.version++
	s.mu.Unlock()

	s.writeMu.Lock()
	s.written = s.currentVersion()
	s.writeMu.Unlock()

	s.logger.InfoContext(ctx, "collection loaded", slog.Int("items", len(items)))
	return nil
}

// AddItem inserts item or merges it with the entry of the same id. A cart
// merge adds quantities and takes the incoming display fields; a wishlist
// ignores an id it already holds.
func (s *Store) AddItem(item domain.LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = s.merge(s.items, item)
	s.commit()
}

// RemoveItem drops the entry with id, if any.
func (s *Store) RemoveItem(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.items, id)
	if i < 0 {
		return
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.commit()
}

// UpdateQuantity sets the quantity of a cart entry. A quantity of zero or
// less removes the entry. Wishlists have no quantity, so it is a no-op there.
func (s *Store) UpdateQuantity(id string, quantity int) {
	if s.kind != domain.KindCart {
		return
	}
	if quantity <= 0 {
		s.RemoveItem(id)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.items, id)
	if i < 0 {
		return
	}
	s.items[i].Quantity = quantity
	s.commit()
}

// Clear empties the collection.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = []domain.LineItem{}
	s.commit()
}

// ReplaceAll overwrites the whole collection, typically with server state.
// Duplicate ids in items are folded with the same policy as AddItem.
func (s *Store) ReplaceAll(items []domain.LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = s.normalize(items)
	s.commit()
}

// IsInCollection reports whether an entry with id exists.
func (s *Store) IsInCollection(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return indexOf(s.items, id) >= 0
}

// Item returns a copy of the entry with id.
func (s *Store) Item(id string) (domain.LineItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := indexOf(s.items, id)
	if i < 0 {
		return domain.LineItem{}, false
	}
	return s.items[i], true
}

// Capture records the current state of the entry with id so that a later
// Restore can undo whatever happens to it in between.
func (s *Store) Capture(id string) ItemSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := ItemSnapshot{ID: id, Index: -1}
	if i := indexOf(s.items, id); i >= 0 {
		item := s.items[i]
		snap.Item = &item
		snap.Index = i
	}
	return snap
}

// Restore puts the entry back to its captured state: the captured item at
// its captured position, or no entry when none existed. Other entries are
// left as they are.
func (s *Store) Restore(snap ItemSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.items, snap.ID)
	switch {
	case snap.Item == nil && i >= 0:
		s.items = append(s.items[:i], s.items[i+1:]...)
	case snap.Item == nil:
		return
	case i >= 0:
		s.items[i] = *snap.Item
	default:
		pos := snap.Index
		if pos < 0 || pos > len(s.items) {
			pos = len(s.items)
		}
		s.items = append(s.items, domain.LineItem{})
		copy(s.items[pos+1:], s.items[pos:])
		s.items[pos] = *snap.Item
	}
	s.commit()
}

// SetSyncStatus overwrites the transient sync status.
func (s *Store) SetSyncStatus(inProgress bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = domain.SyncStatus{InProgress: inProgress}
	if err != nil {
		s.status.LastError = err.Error()
	}
}

// SyncStatus returns the transient sync status.
func (s *Store) SyncStatus() domain.SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Snapshot returns a deep copy of the collection with its aggregates.
func (s *Store) Snapshot() domain.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.NewCollection(s.kind, cloneItems(s.items))
}

// Flush writes the current state synchronously if it has not been written yet.
func (s *Store) Flush(ctx context.Context) error {
	items, version := s.current()
	return s.write(ctx, items, version)
}

// Close stops the background writer and flushes the final state. Mutations
// after Close still apply in memory but are no longer persisted.
func (s *Store) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
	})
	return s.Flush(ctx)
}

// commit bumps the version and wakes the writer. Callers hold s.mu.
func (s *Store) commit() {
	s.version++
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Store) writeLoop() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case <-s.signal:
			items, version := s.current()
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			if err := s.write(ctx, items, version); err != nil {
				s.logger.Error("failed to persist collection",
					slog.Uint64("version", version),
					slog.String("error", err.Error()),
				)
			}
			cancel()
		}
	}
}

// write saves items unless a snapshot at least as new was already written.
func (s *Store) write(ctx context.Context, items []domain.LineItem, version uint64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if version <= s.written {
		return nil
	}
	if err := s.persister.Save(ctx, s.kind, items); err != nil {
		return fmt.Errorf("save %s: %w", s.kind, err)
	}
	s.written = version
	return nil
}

func (s *Store) current() ([]domain.LineItem, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneItems(s.items), s.version
}

func (s *Store) currentVersion() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Store) merge(items []domain.LineItem, item domain.LineItem) []domain.LineItem {
	if s.kind == domain.KindWishlist {
		item.Quantity = 0
	} else if item.Quantity < 1 {
		item.Quantity = 1
	}

	i := indexOf(items, item.ID)
	if i < 0 {
		return append(items, item)
	}
	if s.kind == domain.KindWishlist {
		return items
	}

	existing := &items[i]
	existing.Quantity += item.Quantity
	existing.Name = item.Name
	existing.Price = item.Price
	existing.Image = item.Image
	return items
}

func (s *Store) normalize(items []domain.LineItem) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		out = s.merge(out, item)
	}
	return out
}

func indexOf(items []domain.LineItem, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneItems(items []domain.LineItem) []domain.LineItem {
	out := make([]domain.LineItem, len(items))
	copy(out, items)
	return out
}
