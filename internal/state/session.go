package state

import (
	"sync"

	"github.com/Skotchmaster/storefront/internal/auth"
	"github.com/Skotchmaster/storefront/internal/models"
)

type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseAuthenticated Phase = "authenticated"
	PhaseAnonymous     Phase = "anonymous"
	PhaseError         Phase = "error"
)

// Identity is the serializable part of a provider user.
type Identity struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName"`
	PhotoURL      string `json:"photoURL"`
	EmailVerified bool   `json:"emailVerified"`
}

// Profile timestamps are always in TimestampLayout.
type Profile struct {
	DisplayName string             `json:"displayName,omitempty"`
	Phone       string             `json:"phone,omitempty"`
	Addresses   []models.Address   `json:"addresses"`
	Preferences models.Preferences `json:"preferences"`
	CreatedAt   string             `json:"createdAt,omitempty"`
	LastLoginAt string             `json:"lastLoginAt,omitempty"`
}

// ProfilePatch is a partial profile. Timestamp fields accept anything
// NormalizeTimestamp understands.
type ProfilePatch struct {
	DisplayName *string             `json:"displayName,omitempty"`
	Phone       *string             `json:"phone,omitempty"`
	Addresses   []models.Address    `json:"addresses,omitempty"`
	Preferences *models.Preferences `json:"preferences,omitempty"`
	CreatedAt   any                 `json:"createdAt,omitempty"`
	LastLoginAt any                 `json:"lastLoginAt,omitempty"`
}

type SessionState struct {
	User            *Identity `json:"user"`
	Profile         *Profile  `json:"profile"`
	IsAuthenticated bool      `json:"isAuthenticated"`
	IsLoading       bool      `json:"isLoading"`
	Error           string    `json:"error,omitempty"`

	// Initialized flips once the provider has reported for the first time.
	Initialized bool `json:"initialized"`
}

func (s SessionState) Phase() Phase {
	switch {
	case s.Error != "":
		return PhaseError
	case s.User != nil:
		return PhaseAuthenticated
	case !s.Initialized:
		return PhaseUninitialized
	default:
		return PhaseAnonymous
	}
}

// NormalizeIdentity keeps only the serializable fields of a provider user.
func NormalizeIdentity(u *auth.User) *Identity {
	if u == nil {
		return nil
	}
	return &Identity{
		ID:            u.UID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		PhotoURL:      u.PhotoURL,
		EmailVerified: u.EmailVerified,
	}
}

func profileFromRecord(rec *auth.ProfileRecord) *Profile {
	if rec == nil {
		return nil
	}
	p := &Profile{
		DisplayName: rec.DisplayName,
		Phone:       rec.Phone,
		Addresses:   append([]models.Address{}, rec.Addresses...),
		Preferences: rec.Preferences,
	}
	p.CreatedAt, _ = NormalizeTimestamp(rec.CreatedAt)
	p.LastLoginAt, _ = NormalizeTimestamp(rec.LastLoginAt)
	return p
}

// SessionStore holds who is signed in. IsAuthenticated is derived from User
// on every transition.
type SessionStore struct {
	notifyMu sync.Mutex

	mu    sync.RWMutex
	state SessionState

	subs broadcaster[SessionState]
}

func NewSessionStore() *SessionStore {
	return &SessionStore{state: SessionState{IsLoading: true}}
}

// SetUser moves to authenticated and clears any previous error.
func (s *SessionStore) SetUser(id *Identity) {
	if id == nil {
		s.SignedOut()
		return
	}
	s.apply(func(st *SessionState) {
		if st.User != nil && st.User.ID != id.ID {
			st.Profile = nil
		}
		u := *id
		st.User = &u
		st.Error = ""
		st.IsLoading = false
		st.Initialized = true
	})
}

func (s *SessionStore) SetProfile(p *Profile) {
	s.apply(func(st *SessionState) {
		st.Profile = cloneProfile(p)
	})
}

// MergeProfile applies the non-nil fields of patch onto the stored profile.
// Timestamps that cannot be normalized are ignored.
func (s *SessionStore) MergeProfile(patch ProfilePatch) {
	s.apply(func(st *SessionState) {
		p := cloneProfile(st.Profile)
		if p == nil {
			p = &Profile{Addresses: []models.Address{}}
		}
		if patch.DisplayName != nil {
			p.DisplayName = *patch.DisplayName
		}
		if patch.Phone != nil {
			p.Phone = *patch.Phone
		}
		if patch.Addresses != nil {
			p.Addresses = append([]models.Address{}, patch.Addresses...)
		}
		if patch.Preferences != nil {
			p.Preferences = *patch.Preferences
		}
		if ts, ok := NormalizeTimestamp(patch.CreatedAt); ok {
			p.CreatedAt = ts
		}
		if ts, ok := NormalizeTimestamp(patch.LastLoginAt); ok {
			p.LastLoginAt = ts
		}
		st.Profile = p
	})
}

// SetError records a failure. Identity and profile are left as they were.
func (s *SessionStore) SetError(msg string) {
	s.apply(func(st *SessionState) {
		st.Error = msg
		st.IsLoading = false
	})
}

func (s *SessionStore) BeginLoading() {
	s.apply(func(st *SessionState) {
		st.IsLoading = true
		st.Error = ""
	})
}

// SignedOut resets to anonymous: identity, profile and error are cleared.
func (s *SessionStore) SignedOut() {
	s.apply(func(st *SessionState) {
		st.User = nil
		st.Profile = nil
		st.Error = ""
		st.IsLoading = false
		st.Initialized = true
	})
}

// Hydrate restores the persisted parts of a session (identity and profile).
// Loading and error bookkeeping stay with the live store.
func (s *SessionStore) Hydrate(snap SessionState) {
	s.apply(func(st *SessionState) {
		if snap.User != nil {
			u := *snap.User
			st.User = &u
		} else {
			st.User = nil
		}
		st.Profile = cloneProfile(snap.Profile)
	})
}

func (s *SessionStore) Snapshot() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSession(s.state)
}

func (s *SessionStore) Subscribe(fn func(SessionState)) func() {
	return s.subs.subscribe(fn)
}

func (s *SessionStore) apply(fn func(st *SessionState)) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	fn(&s.state)
	s.state.IsAuthenticated = s.state.User != nil
	snap := cloneSession(s.state)
	s.mu.Unlock()

	s.subs.publish(snap)
}

func cloneProfile(p *Profile) *Profile {
	if p == nil {
		return nil
	}
	out := *p
	if p.Addresses != nil {
		out.Addresses = append([]models.Address{}, p.Addresses...)
	}
	return &out
}

func cloneSession(st SessionState) SessionState {
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	st.Profile = cloneProfile(st.Profile)
	return st
}
