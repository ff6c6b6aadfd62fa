package state

import (
	"context"
	"sync"

	"github.com/Skotchmaster/storefront/internal/models"
)

type FavoritesGateway interface {
	SaveUserFavorites(ctx context.Context, userID string, products []models.Product) error
}

type FavoritesState struct {
	Items     []models.Product `json:"items"`
	IsLoading bool             `json:"isLoading"`
	Revision  uint64           `json:"revision"`
	Sync      SyncState        `json:"sync"`
}

// FavoritesStore is a set of products keyed by id, kept in insertion order.
type FavoritesStore struct {
	notifyMu sync.Mutex

	mu       sync.RWMutex
	order    []string
	items    map[string]models.Product
	revision uint64
	tracker  syncTracker

	gateway FavoritesGateway
	subs    broadcaster[FavoritesState]
}

func NewFavoritesStore(gw FavoritesGateway) *FavoritesStore {
	return &FavoritesStore{
		items:   make(map[string]models.Product),
		gateway: gw,
		tracker: syncTracker{state: SyncState{Status: SyncIdle}},
	}
}

func (s *FavoritesStore) Add(product models.Product) {
	s.mutate(func() bool {
		if _, ok := s.items[product.ID]; ok {
			return false
		}
		s.items[product.ID] = cloneProduct(product)
		s.order = append(s.order, product.ID)
		return true
	})
}

func (s *FavoritesStore) Remove(productID string) {
	s.mutate(func() bool {
		if _, ok := s.items[productID]; !ok {
			return false
		}
		delete(s.items, productID)
		s.order = removeID(s.order, productID)
		return true
	})
}

// Toggle adds the product when absent and removes it otherwise. It reports
// whether the product is a favorite afterwards.
func (s *FavoritesStore) Toggle(product models.Product) bool {
	var now bool
	s.mutate(func() bool {
		if _, ok := s.items[product.ID]; ok {
			delete(s.items, product.ID)
			s.order = removeID(s.order, product.ID)
			now = false
			return true
		}
		s.items[product.ID] = cloneProduct(product)
		s.order = append(s.order, product.ID)
		now = true
		return true
	})
	return now
}

func (s *FavoritesStore) Clear() {
	s.mutate(func() bool {
		if len(s.order) == 0 {
			return false
		}
		s.items = make(map[string]models.Product)
		s.order = nil
		return true
	})
}

// ReplaceAll swaps the whole set; the first occurrence of a duplicate id wins.
func (s *FavoritesStore) ReplaceAll(products []models.Product) {
	s.mutate(func() bool {
		s.items = make(map[string]models.Product, len(products))
		s.order = make([]string, 0, len(products))
		for _, p := range products {
			if _, ok := s.items[p.ID]; ok {
				continue
			}
			s.items[p.ID] = cloneProduct(p)
			s.order = append(s.order, p.ID)
		}
		return true
	})
}

func (s *FavoritesStore) Contains(productID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[productID]
	return ok
}

// SyncToRemote has the same contract as CartStore.SyncToRemote.
func (s *FavoritesStore) SyncToRemote(ctx context.Context, userID string, products []models.Product) PendingWrite {
	payload := cloneProducts(products)

	var w PendingWrite
	s.track(func() { w = s.tracker.begin("favorites", userID, len(payload)) })

	var err error
	if s.gateway == nil {
		err = ErrNoGateway
	} else {
		err = s.gateway.SaveUserFavorites(ctx, userID, payload)
	}

	s.track(func() { w = s.tracker.settle(w, err) })
	logSettled(ctx, w)
	return w
}

func (s *FavoritesStore) Snapshot() FavoritesState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *FavoritesStore) Subscribe(fn func(FavoritesState)) func() {
	return s.subs.subscribe(fn)
}

func (s *FavoritesStore) mutate(fn func() bool) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	changed := fn()
	if changed {
		s.revision++
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if changed {
		s.subs.publish(snap)
	}
}

func (s *FavoritesStore) track(fn func()) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	fn()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.subs.publish(snap)
}

func (s *FavoritesStore) snapshotLocked() FavoritesState {
	items := make([]models.Product, 0, len(s.order))
	for _, id := range s.order {
		items = append(items, cloneProduct(s.items[id]))
	}
	return FavoritesState{
		Items:     items,
		IsLoading: s.tracker.loading,
		Revision:  s.revision,
		Sync:      s.tracker.state,
	}
}
