package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
)

// Gateway is the remote per-user mirror of cart and favorites.
type Gateway interface {
	CartGateway
	FavoritesGateway
	LoadUserCart(ctx context.Context, userID string) ([]models.CartLineItem, bool, error)
	LoadUserFavorites(ctx context.Context, userID string) ([]models.Product, bool, error)
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

const (
	topicCart      = "cart_events"
	topicFavorites = "favorites_events"
	topicUser      = "user_events"
)

// SessionFields are the only session fields written to local storage.
var SessionFields = []string{"user", "profile", "isAuthenticated"}

type Options struct {
	Gateway  Gateway
	Auth     AuthProvider
	Profiles ProfileProvider
	Events   EventPublisher

	// Storage and StorageKey enable local persistence of the session slice.
	Storage    Storage
	StorageKey string

	// SyncDebounce > 0 pushes cart and favorites after a quiet period.
	SyncDebounce time.Duration

	// Logger is used for work that outlives a request. When nil, the logger
	// carried by the ctx given to Start is used instead.
	Logger *slog.Logger
}

type Snapshot struct {
	Cart      CartState      `json:"cart"`
	Favorites FavoritesState `json:"favorites"`
	Session   SessionState   `json:"session"`
}

// Container owns one session's stores. Consumers get it passed in; there is
// no package-level instance.
type Container struct {
	Cart      *CartStore
	Favorites *FavoritesStore
	Session   *SessionStore
	Actions   *SessionActions

	opts Options
	ctx  context.Context
	log  *slog.Logger

	mu          sync.Mutex
	started     bool
	userID      string
	cartSeen    uint64
	cartSynced  uint64
	favsSeen    uint64
	favsSynced  uint64
	closers     []func()
	cartAuto    *debouncer
	favsAuto    *debouncer

	subs broadcaster[Snapshot]
}

func NewContainer(opts Options) *Container {
	var cartGW CartGateway
	var favsGW FavoritesGateway
	if opts.Gateway != nil {
		cartGW, favsGW = opts.Gateway, opts.Gateway
	}
	session := NewSessionStore()
	return &Container{
		Cart:      NewCartStore(cartGW),
		Favorites: NewFavoritesStore(favsGW),
		Session:   session,
		Actions:   NewSessionActions(session, opts.Auth, opts.Profiles),
		opts:      opts,
	}
}

// Start wires persistence, hydration and auto-sync, then binds to the auth
// provider. ctx only supplies the fallback logger; work started later is
// not cancelled with it.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	base := c.opts.Logger
	if base == nil {
		base = logging.FromContext(ctx)
	}
	c.ctx = logging.IntoContext(context.Background(), base)
	c.log = base.With("svc", "state.container")
	c.mu.Unlock()

	if c.opts.Storage != nil {
		stop, err := Persist[SessionState](c.ctx, c.Session, c.opts.Storage, c.opts.StorageKey, SessionFields...)
		if err != nil {
			return err
		}
		c.addCloser(stop)
	}

	if c.opts.SyncDebounce > 0 {
		c.mu.Lock()
		c.cartAuto = newDebouncer(c.opts.SyncDebounce, c.flushCart)
		c.favsAuto = newDebouncer(c.opts.SyncDebounce, c.flushFavorites)
		c.mu.Unlock()
	}

	c.addCloser(c.Session.Subscribe(c.onSession))
	c.addCloser(c.Cart.Subscribe(c.onCart))
	c.addCloser(c.Favorites.Subscribe(c.onFavorites))

	c.Actions.Bind(c.ctx)
	return nil
}

func (c *Container) Close() {
	c.Actions.Unbind()

	c.mu.Lock()
	closers := c.closers
	c.closers = nil
	if c.cartAuto != nil {
		c.cartAuto.stop()
		c.favsAuto.stop()
	}
	c.mu.Unlock()

	for _, fn := range closers {
		fn()
	}
}

func (c *Container) Snapshot() Snapshot {
	return Snapshot{
		Cart:      c.Cart.Snapshot(),
		Favorites: c.Favorites.Snapshot(),
		Session:   c.Session.Snapshot(),
	}
}

// Subscribe is notified after any store changes.
func (c *Container) Subscribe(fn func(Snapshot)) func() {
	return c.subs.subscribe(fn)
}

// UserID returns the signed-in user's id, or "".
func (c *Container) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// SyncCart pushes the current cart for the signed-in user.
func (c *Container) SyncCart(ctx context.Context) (PendingWrite, error) {
	userID := c.UserID()
	if userID == "" {
		return PendingWrite{}, ErrUnauthenticated
	}
	snap := c.Cart.Snapshot()
	w := c.Cart.SyncToRemote(ctx, userID, snap.Items)
	if w.Err == nil {
		c.mu.Lock()
		if !w.Stale {
			c.cartSynced = snap.Revision
		}
		c.mu.Unlock()
		c.publish(ctx, topicCart, userID, map[string]any{
			"type":       "cart_synced",
			"user_id":    userID,
			"seq":        w.Seq,
			"items":      len(snap.Items),
			"item_count": snap.ItemCount,
			"total":      snap.Total,
		})
	}
	return w, nil
}

func (c *Container) SyncFavorites(ctx context.Context) (PendingWrite, error) {
	userID := c.UserID()
	if userID == "" {
		return PendingWrite{}, ErrUnauthenticated
	}
	snap := c.Favorites.Snapshot()
	w := c.Favorites.SyncToRemote(ctx, userID, snap.Items)
	if w.Err == nil {
		c.mu.Lock()
		if !w.Stale {
			c.favsSynced = snap.Revision
		}
		c.mu.Unlock()
		c.publish(ctx, topicFavorites, userID, map[string]any{
			"type":    "favorites_synced",
			"user_id": userID,
			"seq":     w.Seq,
			"items":   len(snap.Items),
		})
	}
	return w, nil
}

func (c *Container) onSession(st SessionState) {
	next := ""
	if st.User != nil {
		next = st.User.ID
	}

	c.mu.Lock()
	prev := c.userID
	c.userID = next
	c.mu.Unlock()

	switch {
	case next == prev:
	case next == "":
		c.Cart.Clear()
		c.Favorites.Clear()
		c.resetSyncMarks()
		c.publish(c.ctx, topicUser, prev, map[string]any{"type": "user_signed_out", "user_id": prev})
	default:
		if prev != "" {
			c.Cart.Clear()
			c.Favorites.Clear()
		}
		c.hydrate(c.ctx, next)
		c.publish(c.ctx, topicUser, next, map[string]any{"type": "user_signed_in", "user_id": next})
	}

	c.subs.publish(c.Snapshot())
}

// hydrate replaces local collections with the user's remote snapshot. When
// there is none yet, the local collection is pushed up instead.
func (c *Container) hydrate(ctx context.Context, userID string) {
	gw := c.opts.Gateway
	if gw == nil {
		return
	}

	items, found, err := gw.LoadUserCart(ctx, userID)
	switch {
	case err != nil:
		c.log.Warn("hydrate_cart_failed", "user_id", userID, "error", err)
	case found:
		c.Cart.ReplaceAll(items)
		c.markCartSynced(c.Cart.Snapshot().Revision)
	default:
		_, _ = c.SyncCart(ctx)
	}

	favs, found, err := gw.LoadUserFavorites(ctx, userID)
	switch {
	case err != nil:
		c.log.Warn("hydrate_favorites_failed", "user_id", userID, "error", err)
	case found:
		c.Favorites.ReplaceAll(favs)
		c.markFavoritesSynced(c.Favorites.Snapshot().Revision)
	default:
		_, _ = c.SyncFavorites(ctx)
	}
}

func (c *Container) onCart(st CartState) {
	c.mu.Lock()
	changed := st.Revision != c.cartSeen
	c.cartSeen = st.Revision
	d := c.cartAuto
	signedIn := c.userID != ""
	c.mu.Unlock()

	if changed && signedIn && d != nil {
		d.trigger()
	}
	c.subs.publish(c.Snapshot())
}

func (c *Container) onFavorites(st FavoritesState) {
	c.mu.Lock()
	changed := st.Revision != c.favsSeen
	c.favsSeen = st.Revision
	d := c.favsAuto
	signedIn := c.userID != ""
	c.mu.Unlock()

	if changed && signedIn && d != nil {
		d.trigger()
	}
	c.subs.publish(c.Snapshot())
}

func (c *Container) flushCart() {
	rev := c.Cart.Snapshot().Revision
	c.mu.Lock()
	pending := rev != c.cartSynced && c.userID != ""
	c.mu.Unlock()
	if pending {
		_, _ = c.SyncCart(c.ctx)
	}
}

func (c *Container) flushFavorites() {
	rev := c.Favorites.Snapshot().Revision
	c.mu.Lock()
	pending := rev != c.favsSynced && c.userID != ""
	c.mu.Unlock()
	if pending {
		_, _ = c.SyncFavorites(c.ctx)
	}
}

func (c *Container) markCartSynced(rev uint64) {
	c.mu.Lock()
	c.cartSynced = rev
	c.mu.Unlock()
}

func (c *Container) markFavoritesSynced(rev uint64) {
	c.mu.Lock()
	c.favsSynced = rev
	c.mu.Unlock()
}

func (c *Container) resetSyncMarks() {
	cartRev, favsRev := c.Cart.Snapshot().Revision, c.Favorites.Snapshot().Revision
	c.mu.Lock()
	c.cartSynced, c.favsSynced = cartRev, favsRev
	c.mu.Unlock()
}

func (c *Container) publish(ctx context.Context, topic, key string, event map[string]any) {
	if c.opts.Events == nil {
		return
	}
	if err := c.opts.Events.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed", "svc", "state.container", "topic", topic, "error", err)
	}
}

func (c *Container) addCloser(fn func()) {
	c.mu.Lock()
	c.closers = append(c.closers, fn)
	c.mu.Unlock()
}
