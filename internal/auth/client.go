package auth

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Client is one session's handle on the provider. It tracks the signed-in
// user and tells listeners whenever that changes.
type Client struct {
	svc *Service

	mu     sync.Mutex
	user   *User
	nextID int
	subs   map[int]func(*User)
}

// Subscribe registers fn and calls it immediately with the current user
// (nil when signed out), then again on every sign-in and sign-out.
func (c *Client) Subscribe(fn func(*User)) func() {
	c.mu.Lock()
	if c.subs == nil {
		c.subs = make(map[int]func(*User))
	}
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	current := c.user
	c.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

func (c *Client) CurrentUser() *User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// IDToken returns the signed-in user's id token and its expiry, minting a
// fresh one when it has expired. The user is only refreshed under c.mu.
func (c *Client) IDToken(ctx context.Context) (string, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.user == nil {
		return "", time.Time{}, newError(CodeUserNotFound, nil)
	}
	token, err := c.user.GetIDToken(ctx, false)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, c.user.ExpiresAt, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*User, error) {
	u, err := c.svc.signIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.setUser(u)
	return u, nil
}

func (c *Client) SignUp(ctx context.Context, email, password, displayName string) (*User, error) {
	u, err := c.svc.signUp(ctx, email, password, displayName)
	if err != nil {
		return nil, err
	}
	c.setUser(u)
	return u, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	c.setUser(nil)
	return nil
}

// Restore signs the session back in from an id token issued earlier.
func (c *Client) Restore(ctx context.Context, idToken string) (*User, error) {
	u, err := c.svc.restore(ctx, idToken)
	if err != nil {
		return nil, err
	}
	c.setUser(u)
	return u, nil
}

func (c *Client) GetProfile(ctx context.Context, userID string) (*ProfileRecord, error) {
	return c.svc.GetProfile(ctx, userID)
}

func (c *Client) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*ProfileRecord, error) {
	return c.svc.UpdateProfile(ctx, userID, upd)
}

func (c *Client) setUser(u *User) {
	c.mu.Lock()
	if c.user == nil && u == nil {
		c.mu.Unlock()
		return
	}
	c.user = u
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(*User), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, c.subs[id])
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(u)
	}
}
