// Package correlation implements the RPC correlation engine: a concurrent
// registry matching outbound requests to their eventual responses by
// FrameID, with per-entry timeout and bulk-disconnect semantics.
package correlation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/sideband/internal/identity"
	"github.com/danmuck/sideband/internal/protoerr"
)

// Outcome is what a Handle eventually resolves to: either a Value (on
// Match) or an Err (on Reject, timeout, or disconnect). Exactly one of the
// two is meaningful per Outcome.
type Outcome struct {
	Value any
	Err   error
}

// Handle is a one-shot, read-only view onto a single pending request's
// eventual outcome.
type Handle struct {
	ch <-chan Outcome
}

// Wait blocks until the handle resolves or ctx is cancelled. It does not
// remove the underlying registration; if ctx is cancelled first, the
// registration is still pending and a later Match/Reject/timeout/Clear
// resolves it independently (the channel send will simply have no reader).
func (h Handle) Wait(ctx context.Context) (any, error) {
	select {
	case out, ok := <-h.ch:
		if !ok {
			return nil, fmt.Errorf("%w: handle resolved with no outcome", protoerr.ErrDisconnected)
		}
		return out.Value, out.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type entry struct {
	ch    chan Outcome
	timer *time.Timer
}

// Registry is the concurrent pending-request registry. The zero value is
// not usable; construct one with NewRegistry.
type Registry struct {
	mu      sync.Mutex
	pending map[identity.FrameID]*entry
	timeout time.Duration
}

// NewRegistry builds an empty registry. defaultTimeout is used by Register;
// a value of 0 disables the timeout entirely (the entry waits indefinitely
// for Match, Reject, or Clear).
func NewRegistry(defaultTimeout time.Duration) *Registry {
	return &Registry{
		pending: make(map[identity.FrameID]*entry),
		timeout: defaultTimeout,
	}
}

// Register begins tracking cid using the registry's default timeout. It
// fails with ErrDuplicateCorrelationID if cid is already pending.
func (r *Registry) Register(cid identity.FrameID) (Handle, error) {
	return r.RegisterWithTimeout(cid, r.timeout)
}

// RegisterWithTimeout begins tracking cid with an explicit per-call
// timeout, overriding the registry's default. A timeout of 0 disables it
// for this entry.
func (r *Registry) RegisterWithTimeout(cid identity.FrameID, timeout time.Duration) (Handle, error) {
	r.mu.Lock()
	if _, exists := r.pending[cid]; exists {
		r.mu.Unlock()
		return Handle{}, fmt.Errorf("%w: %s", protoerr.ErrDuplicateCorrelationID, cid.Hex())
	}
	e := &entry{ch: make(chan Outcome, 1)}
	r.pending[cid] = e
	r.mu.Unlock()

	if timeout > 0 {
		e.timer = time.AfterFunc(timeout, func() {
			r.terminate(cid, e, Outcome{Err: fmt.Errorf("%w: %s", protoerr.ErrTimeout, cid.Hex())})
		})
	}
	return Handle{ch: e.ch}, nil
}

// Match resolves cid's pending entry with a successful value. It fails
// with ErrUnknownCorrelationID if cid is not pending (already resolved, or
// never registered).
func (r *Registry) Match(cid identity.FrameID, value any) error {
	e, err := r.remove(cid)
	if err != nil {
		return err
	}
	r.finish(e, Outcome{Value: value})
	return nil
}

// Reject resolves cid's pending entry with a failure. reason is delivered
// to the waiter as-is; callers that want a specific sentinel (e.g.
// ErrCancelled) should pass it directly.
func (r *Registry) Reject(cid identity.FrameID, reason error) error {
	e, err := r.remove(cid)
	if err != nil {
		return err
	}
	r.finish(e, Outcome{Err: reason})
	return nil
}

// Cancel rejects cid's pending entry with ErrCancelled. It is equivalent
// to Reject(cid, protoerr.ErrCancelled).
func (r *Registry) Cancel(cid identity.FrameID) error {
	return r.Reject(cid, protoerr.ErrCancelled)
}

// Clear resolves every currently pending entry with ErrDisconnected and
// removes them all. Use it when the owning connection ends.
func (r *Registry) Clear() {
	r.mu.Lock()
	all := r.pending
	r.pending = make(map[identity.FrameID]*entry)
	r.mu.Unlock()

	for cid, e := range all {
		r.finish(e, Outcome{Err: fmt.Errorf("%w: %s", protoerr.ErrDisconnected, cid.Hex())})
	}
}

// PendingCount reports how many entries are currently registered and
// unresolved.
func (r *Registry) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// remove atomically detaches cid's entry from the map so that exactly one
// caller among a racing Match/Reject/timeout ever gets to resolve it.
func (r *Registry) remove(cid identity.FrameID) (*entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.pending[cid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", protoerr.ErrUnknownCorrelationID, cid.Hex())
	}
	delete(r.pending, cid)
	return e, nil
}

// terminate is the timeout timer's callback. It must tolerate racing with
// a Match/Reject that already removed the entry, in which case it is a
// no-op.
func (r *Registry) terminate(cid identity.FrameID, e *entry, out Outcome) {
	r.mu.Lock()
	current, ok := r.pending[cid]
	if !ok || current != e {
		r.mu.Unlock()
		return
	}
	delete(r.pending, cid)
	r.mu.Unlock()
	r.finish(e, out)
}

func (r *Registry) finish(e *entry, out Outcome) {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.ch <- out
	close(e.ch)
}
