package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Skotchmaster/storefront/internal/auth"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/state"
)

var ErrRegistryClosed = errors.New("session registry closed")

// Registry keeps one state container per browser session.
type Registry struct {
	Auth         *auth.Service
	Gateway      state.Gateway
	Events       state.EventPublisher
	Storage      state.Storage
	SyncDebounce time.Duration
	IdleTTL      time.Duration

	// Logger is the base for container logs; request attributes never reach
	// it. Defaults to slog.Default().
	Logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

type entry struct {
	ready    chan struct{}
	ctr      *state.Container
	client   *auth.Client
	err      error
	lastSeen time.Time
	inUse    int
}

// Resolve returns the container for sid, opening it on first use. The
// entry is pinned against Sweep until release is called.
func (r *Registry) Resolve(ctx context.Context, sid, idToken string) (*state.Container, func(), error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, nil, ErrRegistryClosed
	}
	if r.entries == nil {
		r.entries = make(map[string]*entry)
	}
	e, ok := r.entries[sid]
	if !ok {
		e = &entry{ready: make(chan struct{})}
		r.entries[sid] = e
	}
	e.lastSeen = time.Now()
	e.inUse++
	r.mu.Unlock()

	if !ok {
		e.ctr, e.client, e.err = r.open(ctx, sid, idToken)
		close(e.ready)
	}
	<-e.ready

	if e.err != nil {
		r.mu.Lock()
		e.inUse--
		if r.entries[sid] == e {
			delete(r.entries, sid)
		}
		r.mu.Unlock()
		return nil, nil, e.err
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			r.mu.Lock()
			e.inUse--
			e.lastSeen = time.Now()
			r.mu.Unlock()
		})
	}
	return e.ctr, release, nil
}

func (r *Registry) open(ctx context.Context, sid, idToken string) (*state.Container, *auth.Client, error) {
	l := logging.FromContext(ctx).With("svc", "httpserver.registry")

	client := r.Auth.NewClient()
	if idToken != "" {
		if _, err := client.Restore(ctx, idToken); err != nil {
			l.Info("session_restore_skipped", "reason", auth.ErrorCode(err))
		}
	}

	base := r.Logger
	if base == nil {
		base = slog.Default()
	}

	opts := state.Options{
		Logger:       base.With("sid", sid),
		Gateway:      r.Gateway,
		Auth:         client,
		Profiles:     client,
		Events:       r.Events,
		SyncDebounce: r.SyncDebounce,
	}
	if r.Storage != nil {
		opts.Storage = r.Storage
		opts.StorageKey = "session-" + sid
	}

	ctr := state.NewContainer(opts)
	if err := ctr.Start(ctx); err != nil {
		ctr.Close()
		return nil, nil, err
	}
	l.Debug("session_opened")
	return ctr, client, nil
}

// IDToken returns the signed-in user's id token for sid.
func (r *Registry) IDToken(ctx context.Context, sid string) (string, time.Time, bool) {
	r.mu.Lock()
	e, ok := r.entries[sid]
	r.mu.Unlock()
	if !ok {
		return "", time.Time{}, false
	}
	<-e.ready
	if e.client == nil {
		return "", time.Time{}, false
	}
	token, exp, err := e.client.IDToken(ctx)
	if err != nil {
		return "", time.Time{}, false
	}
	return token, exp, true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep closes containers idle for longer than IdleTTL. Entries held by an
// in-flight request are skipped.
func (r *Registry) Sweep(now time.Time) int {
	if r.IdleTTL <= 0 {
		return 0
	}

	r.mu.Lock()
	var stale []*entry
	for sid, e := range r.entries {
		if e.inUse == 0 && now.Sub(e.lastSeen) > r.IdleTTL {
			stale = append(stale, e)
			delete(r.entries, sid)
		}
	}
	r.mu.Unlock()

	for _, e := range stale {
		<-e.ready
		if e.ctr != nil {
			e.ctr.Close()
		}
	}
	return len(stale)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	l := logging.FromContext(ctx).With("svc", "httpserver.registry")
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := r.Sweep(now); n > 0 {
				l.Info("sessions_evicted", "count", n)
			}
		}
	}
}

func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	entries := r.entries
	r.entries = nil
	r.mu.Unlock()

	for _, e := range entries {
		<-e.ready
		if e.ctr != nil {
			e.ctr.Close()
		}
	}
}
