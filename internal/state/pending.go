package state

import (
	"context"
	"time"

	"github.com/Skotchmaster/storefront/internal/logging"
)

type SyncStatus string

const (
	SyncIdle      SyncStatus = "idle"
	SyncPending   SyncStatus = "pending"
	SyncFulfilled SyncStatus = "fulfilled"
	SyncRejected  SyncStatus = "rejected"
)

// SyncState is the bookkeeping a store keeps about its remote mirror.
type SyncState struct {
	Status        SyncStatus `json:"status"`
	LastSeq       uint64     `json:"lastSeq"`
	LastError     string     `json:"lastError,omitempty"`
	LastSettledAt time.Time  `json:"lastSettledAt"`
}

// PendingWrite describes one best-effort push of a snapshot to the gateway.
// Seq is monotonic per store; Stale marks a completion that landed after a
// newer write had already settled.
type PendingWrite struct {
	Seq       uint64
	Kind      string
	UserID    string
	Size      int
	IssuedAt  time.Time
	SettledAt time.Time
	Err       error
	Stale     bool
}

// syncTracker is embedded in stores and only touched under the store lock.
// loading stays true while any issued write is still in flight.
type syncTracker struct {
	issued   uint64
	settled  uint64
	inflight int
	loading  bool
	state    SyncState
}

func (t *syncTracker) begin(kind, userID string, size int) PendingWrite {
	t.issued++
	t.inflight++
	t.loading = true
	t.state.Status = SyncPending
	return PendingWrite{
		Seq:      t.issued,
		Kind:     kind,
		UserID:   userID,
		Size:     size,
		IssuedAt: time.Now().UTC(),
	}
}

func (t *syncTracker) settle(w PendingWrite, err error) PendingWrite {
	w.SettledAt = time.Now().UTC()
	w.Err = err

	if w.Seq < t.settled {
		w.Stale = true
	} else {
		t.settled = w.Seq
		t.state.LastSeq = w.Seq
		t.state.LastSettledAt = w.SettledAt
		if err != nil {
			t.state.Status = SyncRejected
			t.state.LastError = err.Error()
		} else {
			t.state.Status = SyncFulfilled
			t.state.LastError = ""
		}
	}

	if t.inflight > 0 {
		t.inflight--
	}
	t.loading = t.inflight > 0
	return w
}

func logSettled(ctx context.Context, w PendingWrite) {
	l := logging.FromContext(ctx).With("svc", "state."+w.Kind+"_sync", "seq", w.Seq, "user_id", w.UserID)
	switch {
	case w.Err != nil:
		l.Warn("sync_rejected", "size", w.Size, "error", w.Err)
	case w.Stale:
		l.Warn("sync_out_of_order", "reason", "newer write already settled")
	default:
		l.Debug("sync_fulfilled", "size", w.Size, "duration_ms", w.SettledAt.Sub(w.IssuedAt).Milliseconds())
	}
}
