package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/motormint/marketclient/pkg/chain"
	"github.com/motormint/marketclient/pkg/constants"
	"github.com/motormint/marketclient/pkg/session"
	"github.com/motormint/marketclient/pkg/types"
)

// Orchestrator submits marketplace writes and tracks each intent through its
// confirmation lifecycle. Local state is never mutated optimistically: a
// confirmed intent triggers invalidation so the affected records are
// re-derived from the chain, which may differ from the submitted values.
type Orchestrator struct {
	session  *session.Session
	receipts chain.ReceiptWaiter
	logger   *slog.Logger

	mu          sync.Mutex
	active      map[string]*Intent
	onConfirmed func(*Intent)
}

// New creates an orchestrator bound to the session's wallet and the given
// receipt waiter (normally the chain reader).
func New(sess *session.Session, receipts chain.ReceiptWaiter, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		session:  sess,
		receipts: receipts,
		logger:   logger,
		active:   make(map[string]*Intent),
	}
}

// OnConfirmed registers the hook fired after an intent confirms. Stores use
// it to invalidate and re-aggregate the affected query keys.
func (o *Orchestrator) OnConfirmed(fn func(*Intent)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onConfirmed = fn
}

// Submit validates preconditions, broadcasts the call through the session
// signer, and starts confirmation tracking. A second submit for the same
// logical action while one is active is rejected locally, before any
// network call. The returned intent carries the outcome either way.
func (o *Orchestrator) Submit(ctx context.Context, kind types.IntentKind, params any) (*Intent, error) {
	intent := newIntent(kind, params)

	call, err := buildCall(kind, params)
	if err != nil {
		intent.fail(chain.Excerpt(err), err)
		return intent, err
	}

	signer, ok := o.session.Signer()
	if !ok {
		err := errors.New("no wallet connected")
		intent.fail(chain.Excerpt(err), err)
		return intent, err
	}

	key := actionKey(kind, params)
	o.mu.Lock()
	if existing, busy := o.active[key]; busy && existing.isActive() {
		o.mu.Unlock()
		err := &DuplicateIntentError{ActionKey: key}
		intent.fail(chain.Excerpt(err), err)
		return intent, err
	}
	o.active[key] = intent
	o.mu.Unlock()

	if err := intent.transition(types.StatusSubmitted); err != nil {
		o.failIntent(intent, key, err)
		return intent, err
	}

	submitCtx, cancel := context.WithTimeout(ctx, constants.SubmitTimeout)
	hash, err := signer.SignAndSend(submitCtx, call)
	cancel()
	if err != nil {
		err = classifySubmitError(err)
		o.failIntent(intent, key, err)
		return intent, err
	}

	if err := intent.markBroadcast(hash); err != nil {
		o.failIntent(intent, key, err)
		return intent, err
	}
	o.logger.Info("transaction broadcast", "intent", intent.ID, "kind", kind, "tx", hash)

	go o.track(intent, key, hash)
	return intent, nil
}

// track follows the broadcast transaction to a terminal state. It runs
// detached from the submitter's context: a UI that stops observing the
// intent does not stop confirmation tracking, and the intent still resolves.
func (o *Orchestrator) track(intent *Intent, key, hash string) {
	receipt, err := o.receipts.WaitForReceipt(context.Background(), hash)
	if err != nil {
		o.failIntent(intent, key, err)
		return
	}

	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		revertErr := &chain.ContractRevertError{Function: string(intent.Kind), Reason: "transaction reverted"}
		o.failIntent(intent, key, revertErr)
		return
	}

	if err := intent.transition(types.StatusConfirmed); err != nil {
		o.logger.Error("intent already terminal at confirmation", "intent", intent.ID, "error", err)
		o.clearActive(key, intent)
		return
	}
	o.clearActive(key, intent)
	o.logger.Info("transaction confirmed", "intent", intent.ID, "kind", intent.Kind, "tx", hash)

	o.mu.Lock()
	fn := o.onConfirmed
	o.mu.Unlock()
	if fn != nil {
		fn(intent)
	}
}

func (o *Orchestrator) failIntent(intent *Intent, key string, err error) {
	intent.fail(chain.Excerpt(err), err)
	o.clearActive(key, intent)
	o.logger.Error("intent failed", "intent", intent.ID, "kind", intent.Kind, "error", err)
}

func (o *Orchestrator) clearActive(key string, intent *Intent) {
	o.mu.Lock()
	if o.active[key] == intent {
		delete(o.active, key)
	}
	o.mu.Unlock()
}

// buildCall maps an intent to its contract call, checking that every
// required derived value has been loaded first.
func buildCall(kind types.IntentKind, params any) (session.ContractCall, error) {
	switch kind {
	case types.IntentRegister:
		p, ok := params.(types.RegisterDealerParams)
		if !ok {
			return session.ContractCall{}, fmt.Errorf("register intent requires RegisterDealerParams, got %T", params)
		}
		if p.Fee == nil {
			return session.ContractCall{}, &PreconditionError{Missing: "dealer registration fee"}
		}
		return session.ContractCall{
			Function: chain.FnRegisterDealer,
			Args:     []any{p.Name, p.Email},
			Value:    p.Fee,
		}, nil

	case types.IntentMint:
		p, ok := params.(types.MintCarParams)
		if !ok {
			return session.ContractCall{}, fmt.Errorf("mint intent requires MintCarParams, got %T", params)
		}
		if p.Price == nil {
			return session.ContractCall{}, &PreconditionError{Missing: "mint price"}
		}
		return session.ContractCall{
			Function: chain.FnMintCar,
			Args:     []any{p.Make, p.Model, p.Year, p.VIN, p.Price, p.TokenURI},
		}, nil

	case types.IntentList:
		p, ok := params.(types.ListCarParams)
		if !ok {
			return session.ContractCall{}, fmt.Errorf("list intent requires ListCarParams, got %T", params)
		}
		if p.Price == nil {
			return session.ContractCall{}, &PreconditionError{Missing: "listing price"}
		}
		return session.ContractCall{
			Function: chain.FnListCar,
			Args:     []any{new(big.Int).SetUint64(p.CarID), p.Price},
		}, nil

	case types.IntentPurchase:
		p, ok := params.(types.PurchaseCarParams)
		if !ok {
			return session.ContractCall{}, fmt.Errorf("purchase intent requires PurchaseCarParams, got %T", params)
		}
		if p.Price == nil {
			return session.ContractCall{}, &PreconditionError{Missing: "listed price quote"}
		}
		return session.ContractCall{
			Function: chain.FnBuyCar,
			Args:     []any{new(big.Int).SetUint64(p.CarID)},
			Value:    p.Price,
		}, nil

	default:
		return session.ContractCall{}, fmt.Errorf("unknown intent kind %q", kind)
	}
}

// classifySubmitError normalizes signer failures. Rejections pass through;
// a deadline on the bounded broadcast wait becomes a TimeoutError with
// status unknown.
func classifySubmitError(err error) error {
	var rejected *session.UserRejectedError
	if errors.As(err, &rejected) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &chain.TimeoutError{Op: "transaction broadcast", Wait: constants.SubmitTimeout}
	}
	return err
}
