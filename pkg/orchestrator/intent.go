package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/motormint/marketclient/pkg/types"
)

// allowedTransitions is the intent lifecycle as a directed graph. failed is
// reachable from every non-terminal state; confirmed only from pending.
var allowedTransitions = map[types.IntentStatus][]types.IntentStatus{
	types.StatusIdle:      {types.StatusSubmitted, types.StatusFailed},
	types.StatusSubmitted: {types.StatusPending, types.StatusFailed},
	types.StatusPending:   {types.StatusConfirmed, types.StatusFailed},
	types.StatusConfirmed: {},
	types.StatusFailed:    {},
}

func canTransition(from, to types.IntentStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Failure carries both renderings of an intent failure: a bounded
// human-readable reason for the UI and the raw error for logging.
type Failure struct {
	Reason string
	Err    error
}

// Intent tracks one user-initiated marketplace write from submission to a
// terminal state. An intent belongs to the orchestrator that created it and
// is never reused for a second submission.
type Intent struct {
	ID     string
	Kind   types.IntentKind
	Params any

	mu      sync.Mutex
	status  types.IntentStatus
	txHash  string
	failure *Failure

	done chan struct{}
}

func newIntent(kind types.IntentKind, params any) *Intent {
	return &Intent{
		ID:     uuid.NewString(),
		Kind:   kind,
		Params: params,
		status: types.StatusIdle,
		done:   make(chan struct{}),
	}
}

// Status returns the current lifecycle state.
func (i *Intent) Status() types.IntentStatus {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status
}

// SubmittedHash returns the broadcast transaction hash once one exists.
func (i *Intent) SubmittedHash() (string, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.txHash, i.txHash != ""
}

// Failure returns the failure payload, or nil while the intent has not
// failed.
func (i *Intent) Failure() *Failure {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.failure
}

// Wait blocks until the intent reaches a terminal state or ctx is done.
// Abandoning the wait does not cancel the intent: it still resolves
// internally and no observer is leaked.
func (i *Intent) Wait(ctx context.Context) (types.IntentStatus, error) {
	select {
	case <-ctx.Done():
		return i.Status(), ctx.Err()
	case <-i.done:
		return i.Status(), nil
	}
}

func (i *Intent) isActive() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status == types.StatusSubmitted || i.status == types.StatusPending
}

func (i *Intent) transition(to types.IntentStatus) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.transitionLocked(to)
}

func (i *Intent) transitionLocked(to types.IntentStatus) error {
	if !canTransition(i.status, to) {
		return fmt.Errorf("invalid intent transition: %s -> %s", i.status, to)
	}
	i.status = to
	if to.Terminal() {
		close(i.done)
	}
	return nil
}

// markBroadcast records the hash and moves the intent to pending.
func (i *Intent) markBroadcast(hash string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.transitionLocked(types.StatusPending); err != nil {
		return err
	}
	i.txHash = hash
	return nil
}

func (i *Intent) fail(reason string, err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.status.Terminal() {
		return
	}
	i.failure = &Failure{Reason: reason, Err: err}
	// Reachable from every non-terminal state, so this cannot fail.
	i.transitionLocked(types.StatusFailed)
}

// actionKey identifies the logical user action behind an intent. At most one
// intent per key may be active at a time.
func actionKey(kind types.IntentKind, params any) string {
	switch p := params.(type) {
	case types.ListCarParams:
		return fmt.Sprintf("%s:%d", kind, p.CarID)
	case types.PurchaseCarParams:
		return fmt.Sprintf("%s:%d", kind, p.CarID)
	default:
		return string(kind)
	}
}
