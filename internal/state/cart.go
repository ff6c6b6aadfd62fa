package state

import (
	"context"
	"errors"
	"sync"

	"github.com/Skotchmaster/storefront/internal/models"
)

var ErrNoGateway = errors.New("persistence gateway not configured")

type CartGateway interface {
	SaveUserCart(ctx context.Context, userID string, items []models.CartLineItem) error
}

type CartState struct {
	Items     []models.CartLineItem `json:"items"`
	Total     float64               `json:"total"`
	ItemCount int                   `json:"itemCount"`
	IsLoading bool                  `json:"isLoading"`
	Revision  uint64                `json:"revision"`
	Sync      SyncState             `json:"sync"`
}

// CartStore holds line items keyed by product id. Every mutation recomputes
// totals before the lock is released, so readers never see stale totals.
//
// Subscribers run after the mutation, serialized per store. A subscriber
// must not mutate the same store synchronously.
type CartStore struct {
	notifyMu sync.Mutex

	mu       sync.RWMutex
	order    []string
	items    map[string]models.CartLineItem
	totals   Totals
	revision uint64
	tracker  syncTracker

	gateway CartGateway
	subs    broadcaster[CartState]
}

func NewCartStore(gw CartGateway) *CartStore {
	return &CartStore{
		items:   make(map[string]models.CartLineItem),
		gateway: gw,
		tracker: syncTracker{state: SyncState{Status: SyncIdle}},
	}
}

func (s *CartStore) AddItem(product models.Product) {
	s.mutate(func() bool {
		if it, ok := s.items[product.ID]; ok {
			it.Quantity++
			s.items[product.ID] = it
			return true
		}
		s.items[product.ID] = models.CartLineItem{Product: cloneProduct(product), Quantity: 1}
		s.order = append(s.order, product.ID)
		return true
	})
}

func (s *CartStore) RemoveItem(productID string) {
	s.mutate(func() bool {
		return s.remove(productID)
	})
}

// SetQuantity removes the line when quantity <= 0 and ignores unknown ids.
func (s *CartStore) SetQuantity(productID string, quantity int) {
	s.mutate(func() bool {
		it, ok := s.items[productID]
		if !ok {
			return false
		}
		if quantity <= 0 {
			return s.remove(productID)
		}
		if it.Quantity == quantity {
			return false
		}
		it.Quantity = quantity
		s.items[productID] = it
		return true
	})
}

func (s *CartStore) Clear() {
	s.mutate(func() bool {
		if len(s.order) == 0 {
			return false
		}
		s.items = make(map[string]models.CartLineItem)
		s.order = nil
		return true
	})
}

// ReplaceAll swaps the whole collection, typically with a remote snapshot.
// Duplicate product ids are merged and non-positive quantities dropped.
func (s *CartStore) ReplaceAll(items []models.CartLineItem) {
	s.mutate(func() bool {
		s.items = make(map[string]models.CartLineItem, len(items))
		s.order = make([]string, 0, len(items))
		for _, it := range items {
			if it.Quantity <= 0 {
				continue
			}
			if cur, ok := s.items[it.Product.ID]; ok {
				cur.Quantity += it.Quantity
				s.items[it.Product.ID] = cur
				continue
			}
			s.items[it.Product.ID] = models.CartLineItem{Product: cloneProduct(it.Product), Quantity: it.Quantity}
			s.order = append(s.order, it.Product.ID)
		}
		return true
	})
}

// SyncToRemote pushes a copy of items to the gateway for userID. The local
// collection is never rolled back; the outcome lands in CartState.Sync and
// in the returned PendingWrite. There is no retry.
func (s *CartStore) SyncToRemote(ctx context.Context, userID string, items []models.CartLineItem) PendingWrite {
	payload := cloneItems(items)

	var w PendingWrite
	s.track(func() { w = s.tracker.begin("cart", userID, len(payload)) })

	var err error
	if s.gateway == nil {
		err = ErrNoGateway
	} else {
		err = s.gateway.SaveUserCart(ctx, userID, payload)
	}

	s.track(func() { w = s.tracker.settle(w, err) })
	logSettled(ctx, w)
	return w
}

func (s *CartStore) Snapshot() CartState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *CartStore) Subscribe(fn func(CartState)) func() {
	return s.subs.subscribe(fn)
}

func (s *CartStore) remove(productID string) bool {
	if _, ok := s.items[productID]; !ok {
		return false
	}
	delete(s.items, productID)
	s.order = removeID(s.order, productID)
	return true
}

func (s *CartStore) mutate(fn func() bool) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	changed := fn()
	if changed {
		s.revision++
		s.totals = CalculateTotals(s.orderedLocked())
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if changed {
		s.subs.publish(snap)
	}
}

func (s *CartStore) track(fn func()) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	fn()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.subs.publish(snap)
}

func (s *CartStore) orderedLocked() []models.CartLineItem {
	out := make([]models.CartLineItem, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

func (s *CartStore) snapshotLocked() CartState {
	return CartState{
		Items:     cloneItems(s.orderedLocked()),
		Total:     s.totals.Total,
		ItemCount: s.totals.ItemCount,
		IsLoading: s.tracker.loading,
		Revision:  s.revision,
		Sync:      s.tracker.state,
	}
}
