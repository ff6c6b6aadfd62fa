package state

import (
	"context"
	"sync"

	"github.com/Skotchmaster/storefront/internal/auth"
	"github.com/Skotchmaster/storefront/internal/models"
)

type fakeGateway struct {
	mu        sync.Mutex
	carts     map[string][]models.CartLineItem
	favorites map[string][]models.Product
	cartErr   error
	favsErr   error
	loadErr   error
	cartCalls int
	favsCalls int

	// when set, the first cart save signals started and waits on release
	started chan struct{}
	release chan struct{}

	// same for the first favorites save
	favsStarted chan struct{}
	favsRelease chan struct{}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		carts:     make(map[string][]models.CartLineItem),
		favorites: make(map[string][]models.Product),
	}
}

func (g *fakeGateway) SaveUserCart(_ context.Context, userID string, items []models.CartLineItem) error {
	g.mu.Lock()
	g.cartCalls++
	call := g.cartCalls
	started, release := g.started, g.release
	g.mu.Unlock()

	if call == 1 && release != nil {
		close(started)
		<-release
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cartErr != nil {
		return g.cartErr
	}
	g.carts[userID] = items
	return nil
}

func (g *fakeGateway) SaveUserFavorites(_ context.Context, userID string, products []models.Product) error {
	g.mu.Lock()
	g.favsCalls++
	call := g.favsCalls
	started, release := g.favsStarted, g.favsRelease
	g.mu.Unlock()

	if call == 1 && release != nil {
		close(started)
		<-release
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.favsErr != nil {
		return g.favsErr
	}
	g.favorites[userID] = products
	return nil
}

func (g *fakeGateway) LoadUserCart(_ context.Context, userID string) ([]models.CartLineItem, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loadErr != nil {
		return nil, false, g.loadErr
	}
	items, ok := g.carts[userID]
	return items, ok, nil
}

func (g *fakeGateway) LoadUserFavorites(_ context.Context, userID string) ([]models.Product, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loadErr != nil {
		return nil, false, g.loadErr
	}
	favs, ok := g.favorites[userID]
	return favs, ok, nil
}

func (g *fakeGateway) savedCart(userID string) ([]models.CartLineItem, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	items, ok := g.carts[userID]
	return items, ok
}

func (g *fakeGateway) savedFavorites(userID string) ([]models.Product, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	favs, ok := g.favorites[userID]
	return favs, ok
}

// fakeAuth behaves like auth.Client: Subscribe reports the current user
// right away and every change after that.
type fakeAuth struct {
	mu   sync.Mutex
	user *auth.User
	subs map[int]func(*auth.User)
	next int

	signInErr  error
	signOutErr error
	profile    *auth.ProfileRecord
	profileErr error
	updateErr  error
	updates    []auth.ProfileUpdate
}

func (f *fakeAuth) Subscribe(fn func(*auth.User)) func() {
	f.mu.Lock()
	if f.subs == nil {
		f.subs = make(map[int]func(*auth.User))
	}
	id := f.next
	f.next++
	f.subs[id] = fn
	u := f.user
	f.mu.Unlock()

	fn(u)
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

func (f *fakeAuth) emit(u *auth.User) {
	f.mu.Lock()
	f.user = u
	fns := make([]func(*auth.User), 0, len(f.subs))
	for i := 0; i < f.next; i++ {
		if fn, ok := f.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(u)
	}
}

func (f *fakeAuth) SignIn(_ context.Context, email, _ string) (*auth.User, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	u := providerUser("u-"+email, email, "")
	f.emit(u)
	return u, nil
}

func (f *fakeAuth) SignUp(_ context.Context, email, _ string, displayName string) (*auth.User, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	u := providerUser("u-"+email, email, displayName)
	f.emit(u)
	return u, nil
}

func (f *fakeAuth) SignOut(context.Context) error {
	if f.signOutErr != nil {
		return f.signOutErr
	}
	f.emit(nil)
	return nil
}

func (f *fakeAuth) GetProfile(context.Context, string) (*auth.ProfileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profile, f.profileErr
}

func (f *fakeAuth) UpdateProfile(_ context.Context, _ string, upd auth.ProfileUpdate) (*auth.ProfileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.updates = append(f.updates, upd)
	return f.profile, nil
}

func providerUser(uid, email, name string) *auth.User {
	return &auth.User{
		UID:           uid,
		Email:         email,
		DisplayName:   name,
		PhotoURL:      "https://img/" + uid,
		EmailVerified: true,
		IDToken:       "provider-internal-token",
	}
}

type recordedEvent struct {
	topic string
	key   string
	event any
}

type fakeEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeEvents) PublishEvent(_ context.Context, topic, key string, event any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{topic: topic, key: key, event: event})
	return nil
}

func (f *fakeEvents) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		if m, ok := e.event.(map[string]any); ok {
			out = append(out, m["type"].(string))
		}
	}
	return out
}

func product(id string, price float64) models.Product {
	return models.Product{ID: id, Name: "Product " + id, Price: price, InStock: true}
}
