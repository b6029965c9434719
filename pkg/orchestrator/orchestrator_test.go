package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motormint/marketclient/pkg/chain"
	"github.com/motormint/marketclient/pkg/constants"
	"github.com/motormint/marketclient/pkg/session"
	"github.com/motormint/marketclient/pkg/types"
)

const testAccount = "0xAAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSigner counts SignAndSend calls and can fail or block on demand.
type fakeSigner struct {
	mu    sync.Mutex
	calls int
	hash  string
	err   error

	lastCall session.ContractCall
}

func (f *fakeSigner) SignAndSend(ctx context.Context, call session.ContractCall) (string, error) {
	f.mu.Lock()
	f.calls++
	f.lastCall = call
	hash, err := f.hash, f.err
	f.mu.Unlock()
	if err != nil {
		return "", err
	}
	if hash == "" {
		hash = "0xab"
	}
	return hash, nil
}

func (f *fakeSigner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeReceipts resolves WaitForReceipt from a queue, optionally gated on a
// release channel so tests can hold an intent in pending.
type fakeReceipts struct {
	receipt *ethtypes.Receipt
	err     error
	release chan struct{}
}

func (f *fakeReceipts) WaitForReceipt(ctx context.Context, txHash string) (*ethtypes.Receipt, error) {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.receipt, nil
}

func successReceipt() *ethtypes.Receipt {
	return &ethtypes.Receipt{
		Status: ethtypes.ReceiptStatusSuccessful,
		TxHash: common.HexToHash("0xab"),
	}
}

func revertedReceipt() *ethtypes.Receipt {
	return &ethtypes.Receipt{
		Status: ethtypes.ReceiptStatusFailed,
		TxHash: common.HexToHash("0xab"),
	}
}

func connectedSession(signer session.Signer) *session.Session {
	sess := session.New(constants.NetworkBaseSepolia)
	sess.Connect(testAccount, signer)
	return sess
}

func TestSubmitPurchaseConfirms(t *testing.T) {
	signer := &fakeSigner{hash: "0xf00d"}
	orch := New(connectedSession(signer), &fakeReceipts{receipt: successReceipt()}, testLogger())

	confirmed := make(chan *Intent, 1)
	orch.OnConfirmed(func(i *Intent) { confirmed <- i })

	intent, err := orch.Submit(context.Background(), types.IntentPurchase, types.PurchaseCarParams{
		CarID: 7,
		Price: big.NewInt(1_000_000_000_000_000_000),
	})
	require.NoError(t, err)

	hash, ok := intent.SubmittedHash()
	require.True(t, ok)
	assert.Equal(t, "0xf00d", hash)

	status, err := intent.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.StatusConfirmed, status)
	assert.Nil(t, intent.Failure())

	select {
	case got := <-confirmed:
		assert.Same(t, intent, got)
	case <-time.After(time.Second):
		t.Fatal("confirmation hook never fired")
	}

	// The purchase attaches the quoted price as call value.
	assert.Equal(t, chain.FnBuyCar, signer.lastCall.Function)
	require.NotNil(t, signer.lastCall.Value)
	assert.Equal(t, big.NewInt(1_000_000_000_000_000_000), signer.lastCall.Value)
}

func TestRegisterDealerAttachesFee(t *testing.T) {
	signer := &fakeSigner{}
	orch := New(connectedSession(signer), &fakeReceipts{receipt: successReceipt()}, testLogger())

	intent, err := orch.Submit(context.Background(), types.IntentRegister, types.RegisterDealerParams{
		Name:  "Prestige Motors",
		Email: "sales@prestige.test",
		Fee:   big.NewInt(50_000_000_000_000_000),
	})
	require.NoError(t, err)

	_, err = intent.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, chain.FnRegisterDealer, signer.lastCall.Function)
	assert.Equal(t, big.NewInt(50_000_000_000_000_000), signer.lastCall.Value)
}

func TestDuplicateSubmitRejectedLocally(t *testing.T) {
	signer := &fakeSigner{}
	receipts := &fakeReceipts{receipt: successReceipt(), release: make(chan struct{})}
	orch := New(connectedSession(signer), receipts, testLogger())

	params := types.ListCarParams{CarID: 7, Price: big.NewInt(500)}
	first, err := orch.Submit(context.Background(), types.IntentList, params)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, first.Status())

	second, err := orch.Submit(context.Background(), types.IntentList, params)
	require.Error(t, err)

	var dupErr *DuplicateIntentError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, types.StatusFailed, second.Status())
	assert.Equal(t, 1, signer.callCount(), "duplicate must be rejected before reaching the signer")

	// A different car is a different logical action and goes through.
	other, err := orch.Submit(context.Background(), types.IntentList, types.ListCarParams{CarID: 8, Price: big.NewInt(500)})
	require.NoError(t, err)
	assert.Equal(t, 2, signer.callCount())

	close(receipts.release)
	status, err := first.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.StatusConfirmed, status)
	_, err = other.Wait(context.Background())
	require.NoError(t, err)

	// Once the first intent is terminal the action key is free again.
	_, err = orch.Submit(context.Background(), types.IntentList, params)
	require.NoError(t, err)
	assert.Equal(t, 3, signer.callCount())
}

func TestSubmitWithoutFeeQuoteFailsLocally(t *testing.T) {
	signer := &fakeSigner{}
	orch := New(connectedSession(signer), &fakeReceipts{receipt: successReceipt()}, testLogger())

	intent, err := orch.Submit(context.Background(), types.IntentRegister, types.RegisterDealerParams{
		Name:  "Prestige Motors",
		Email: "sales@prestige.test",
	})
	require.Error(t, err)

	var preErr *PreconditionError
	require.ErrorAs(t, err, &preErr)
	assert.Equal(t, types.StatusFailed, intent.Status())
	assert.Equal(t, 0, signer.callCount(), "precondition failures must not reach the signer")
}

func TestSubmitWithoutWalletFails(t *testing.T) {
	orch := New(session.New(constants.NetworkBaseSepolia), &fakeReceipts{}, testLogger())

	intent, err := orch.Submit(context.Background(), types.IntentMint, types.MintCarParams{
		Make: "Toyota", Model: "Supra", Year: 2021, VIN: "JT2JA82J0R0012345",
		Price: big.NewInt(1), TokenURI: "ipfs://QmExample",
	})
	require.Error(t, err)
	assert.Equal(t, types.StatusFailed, intent.Status())
}

func TestUserRejectionIsTerminal(t *testing.T) {
	signer := &fakeSigner{err: &session.UserRejectedError{Err: errors.New("denied in wallet")}}
	orch := New(connectedSession(signer), &fakeReceipts{}, testLogger())

	intent, err := orch.Submit(context.Background(), types.IntentList, types.ListCarParams{
		CarID: 7, Price: big.NewInt(500),
	})
	require.Error(t, err)

	var rejected *session.UserRejectedError
	require.ErrorAs(t, err, &rejected)

	assert.Equal(t, types.StatusFailed, intent.Status())
	_, ok := intent.SubmittedHash()
	assert.False(t, ok, "a rejected intent has no transaction hash")

	failure := intent.Failure()
	require.NotNil(t, failure)
	assert.NotEmpty(t, failure.Reason)
	assert.LessOrEqual(t, len(failure.Reason), constants.MaxErrorExcerptLen+3)
}

func TestRevertedReceiptFailsIntent(t *testing.T) {
	signer := &fakeSigner{}
	orch := New(connectedSession(signer), &fakeReceipts{receipt: revertedReceipt()}, testLogger())

	intent, err := orch.Submit(context.Background(), types.IntentPurchase, types.PurchaseCarParams{
		CarID: 7, Price: big.NewInt(500),
	})
	require.NoError(t, err)

	status, err := intent.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, status)

	failure := intent.Failure()
	require.NotNil(t, failure)
	var revertErr *chain.ContractRevertError
	assert.ErrorAs(t, failure.Err, &revertErr)
}

func TestConfirmationTimeoutFailsIntent(t *testing.T) {
	timeoutErr := &chain.TimeoutError{Op: "transaction confirmation", Wait: constants.ConfirmationTimeout}
	orch := New(connectedSession(&fakeSigner{}), &fakeReceipts{err: timeoutErr}, testLogger())

	intent, err := orch.Submit(context.Background(), types.IntentPurchase, types.PurchaseCarParams{
		CarID: 7, Price: big.NewInt(500),
	})
	require.NoError(t, err)

	status, err := intent.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, status)

	failure := intent.Failure()
	require.NotNil(t, failure)
	var gotTimeout *chain.TimeoutError
	assert.ErrorAs(t, failure.Err, &gotTimeout)
}

func TestWaitHonorsCallerContext(t *testing.T) {
	receipts := &fakeReceipts{receipt: successReceipt(), release: make(chan struct{})}
	orch := New(connectedSession(&fakeSigner{}), receipts, testLogger())

	intent, err := orch.Submit(context.Background(), types.IntentPurchase, types.PurchaseCarParams{
		CarID: 7, Price: big.NewInt(500),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	status, err := intent.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, types.StatusPending, status)

	// Abandoning the wait does not abandon tracking.
	close(receipts.release)
	status, err = intent.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.StatusConfirmed, status)
}

func TestIntentTransitions(t *testing.T) {
	intent := newIntent(types.IntentList, types.ListCarParams{CarID: 1, Price: big.NewInt(1)})
	assert.Equal(t, types.StatusIdle, intent.Status())

	require.NoError(t, intent.transition(types.StatusSubmitted))
	require.NoError(t, intent.markBroadcast("0xab"))
	assert.Equal(t, types.StatusPending, intent.Status())

	// pending cannot go back to submitted
	assert.Error(t, intent.transition(types.StatusSubmitted))

	require.NoError(t, intent.transition(types.StatusConfirmed))
	assert.True(t, intent.Status().Terminal())

	// terminal states accept no further transitions and fail is a no-op
	assert.Error(t, intent.transition(types.StatusFailed))
	intent.fail("late failure", errors.New("late"))
	assert.Equal(t, types.StatusConfirmed, intent.Status())
	assert.Nil(t, intent.Failure())
}

func TestActionKeyScopesPerToken(t *testing.T) {
	listA := actionKey(types.IntentList, types.ListCarParams{CarID: 1})
	listB := actionKey(types.IntentList, types.ListCarParams{CarID: 2})
	buyA := actionKey(types.IntentPurchase, types.PurchaseCarParams{CarID: 1})

	assert.NotEqual(t, listA, listB)
	assert.NotEqual(t, listA, buyA)
	assert.Equal(t, string(types.IntentRegister), actionKey(types.IntentRegister, types.RegisterDealerParams{}))
}
