package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/motormint/marketclient/pkg/constants"
	"github.com/motormint/marketclient/pkg/types"
)

// rpcClient is the slice of *rpc.Client the reader needs. Tests substitute
// a fake through the dial hook.
type rpcClient interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
	Close()
}

// ReadRequest names one contract view call in a ReadMany batch.
type ReadRequest struct {
	Function string
	Args     []any
}

// ReadResult is the outcome of one request in a ReadMany batch. Each slot is
// independent of its siblings.
type ReadResult struct {
	Values []any
	Err    error
}

// ReceiptWaiter blocks until a transaction reaches a terminal on-chain state
// or the bounded confirmation wait elapses.
type ReceiptWaiter interface {
	WaitForReceipt(ctx context.Context, txHash string) (*ethtypes.Receipt, error)
}

// Reader is a stateless, read-only query client for the marketplace
// contract. It holds no cache and is safe for concurrent use; results are
// cached by the aggregator, not here.
type Reader struct {
	contract  common.Address
	endpoints []string
	logger    *slog.Logger

	confirmWait time.Duration
	pollEvery   time.Duration

	dial func(ctx context.Context, url string) (rpcClient, error)
}

// NewReader creates a reader for the marketplace contract at contractAddress,
// walking endpoints in order with failover.
func NewReader(contractAddress string, endpoints []string, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		contract:    common.HexToAddress(contractAddress),
		endpoints:   endpoints,
		logger:      logger,
		confirmWait: constants.ConfirmationTimeout,
		pollEvery:   constants.ReceiptPollInterval,
		dial:        dialRPC,
	}
}

func dialRPC(ctx context.Context, url string) (rpcClient, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Read executes one contract view call and returns the decoded values.
// Errors are classified: reverts come back as *ContractRevertError, anything
// transport-level as *NetworkError.
func (r *Reader) Read(ctx context.Context, function string, args ...any) ([]any, error) {
	data, err := marketABI.Pack(function, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", function, err)
	}
	raw, err := r.call(ctx, function, data)
	if err != nil {
		return nil, err
	}
	values, err := marketABI.Unpack(function, raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s result: %w", function, err)
	}
	return values, nil
}

// ReadMany fans the requests out concurrently. One failed request never
// fails its siblings; the result slice is positionally aligned with reqs.
func (r *Reader) ReadMany(ctx context.Context, reqs []ReadRequest) []ReadResult {
	results := make([]ReadResult, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req ReadRequest) {
			defer wg.Done()
			values, err := r.Read(ctx, req.Function, req.Args...)
			results[i] = ReadResult{Values: values, Err: err}
		}(i, req)
	}
	wg.Wait()
	return results
}

// call performs eth_call against the endpoints in order with a progressive
// delay between attempts. Reverts are returned immediately: they are
// deterministic and another endpoint cannot help.
func (r *Reader) call(ctx context.Context, function string, data []byte) ([]byte, error) {
	if len(r.endpoints) == 0 {
		return nil, &NetworkError{Err: errors.New("no RPC endpoints configured")}
	}

	msg := map[string]any{
		"to":   r.contract.Hex(),
		"data": hexutil.Encode(data),
	}

	var lastErr error
	for i, endpoint := range r.endpoints {
		if i > 0 {
			delay := time.Duration(i*constants.DelayBetweenRPCCalls) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, &NetworkError{Endpoint: endpoint, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		client, err := r.dial(ctx, endpoint)
		if err != nil {
			r.logger.Warn("failed to connect to RPC", "endpoint", endpoint, "error", err)
			lastErr = &NetworkError{Endpoint: endpoint, Err: err}
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, constants.ContractCallTimeout)
		var result hexutil.Bytes
		err = client.CallContext(callCtx, &result, "eth_call", msg, "latest")
		client.Close()
		cancel()

		if err != nil {
			if reason, reverted := revertReason(err); reverted {
				return nil, &ContractRevertError{Function: function, Reason: reason, Err: err}
			}
			r.logger.Warn("RPC call failed", "endpoint", endpoint, "function", function, "error", err)
			lastErr = &NetworkError{Endpoint: endpoint, Err: err}
			continue
		}

		return result, nil
	}

	return nil, lastErr
}

// revertReason classifies err as a revert and extracts the reason string
// when the node returned ABI-encoded revert data.
func revertReason(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) && dataErr.ErrorData() != nil {
		if hexData, ok := dataErr.ErrorData().(string); ok {
			if data, decodeErr := hexutil.Decode(hexData); decodeErr == nil {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return reason, true
				}
			}
		}
	}
	if strings.Contains(strings.ToLower(err.Error()), "revert") {
		return strings.TrimSpace(strings.TrimPrefix(err.Error(), "execution reverted:")), true
	}
	return "", false
}

// CarsForSale returns every record currently listed, in on-chain
// enumeration order.
func (r *Reader) CarsForSale(ctx context.Context) ([]*types.VehicleRecord, error) {
	values, err := r.Read(ctx, FnGetCarsForSale)
	if err != nil {
		return nil, err
	}
	cars := *abi.ConvertType(values[0], new([]carTuple)).(*[]carTuple)
	return toRecords(cars), nil
}

// CarsByDealer returns the dealer's minted records in enumeration order.
func (r *Reader) CarsByDealer(ctx context.Context, dealer string) ([]*types.VehicleRecord, error) {
	values, err := r.Read(ctx, FnGetCarsByDealer, common.HexToAddress(dealer))
	if err != nil {
		return nil, err
	}
	cars := *abi.ConvertType(values[0], new([]carTuple)).(*[]carTuple)
	return toRecords(cars), nil
}

// CarDetails returns a single record by token id.
func (r *Reader) CarDetails(ctx context.Context, id uint64) (*types.VehicleRecord, error) {
	values, err := r.Read(ctx, FnGetCarDetails, new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}
	car := *abi.ConvertType(values[0], new(carTuple)).(*carTuple)
	return car.toRecord(), nil
}

// OwnershipHistory returns the append-only transfer history for a token.
func (r *Reader) OwnershipHistory(ctx context.Context, id uint64) ([]*types.OwnershipEvent, error) {
	values, err := r.Read(ctx, FnGetOwnershipHistory, new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}
	transfers := *abi.ConvertType(values[0], new([]transferTuple)).(*[]transferTuple)
	return toEvents(transfers), nil
}

// TokenURI returns the metadata document URI for a token.
func (r *Reader) TokenURI(ctx context.Context, id uint64) (string, error) {
	values, err := r.Read(ctx, FnGetTokenURI, new(big.Int).SetUint64(id))
	if err != nil {
		return "", err
	}
	return values[0].(string), nil
}

// RegistrationFee returns the current dealer registration fee in wei.
func (r *Reader) RegistrationFee(ctx context.Context) (*big.Int, error) {
	values, err := r.Read(ctx, FnDealerRegistrationFee)
	if err != nil {
		return nil, err
	}
	return values[0].(*big.Int), nil
}

// WaitForReceipt polls for the transaction receipt until it appears or the
// bounded wait elapses. A timeout means the status is unknown, not that the
// transaction reverted.
func (r *Reader) WaitForReceipt(ctx context.Context, txHash string) (*ethtypes.Receipt, error) {
	deadline := time.NewTimer(r.confirmWait)
	defer deadline.Stop()
	ticker := time.NewTicker(r.pollEvery)
	defer ticker.Stop()

	for {
		receipt, err := r.transactionReceipt(ctx, txHash)
		if receipt != nil {
			return receipt, nil
		}
		if err != nil {
			r.logger.Debug("receipt not available yet", "tx", txHash, "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, &TimeoutError{Op: "confirmation of " + txHash, Wait: r.confirmWait}
		case <-deadline.C:
			return nil, &TimeoutError{Op: "confirmation of " + txHash, Wait: r.confirmWait}
		case <-ticker.C:
		}
	}
}

// transactionReceipt fetches the receipt once with endpoint failover.
// A nil receipt with nil error means the transaction is not yet mined.
func (r *Reader) transactionReceipt(ctx context.Context, txHash string) (*ethtypes.Receipt, error) {
	var lastErr error
	for _, endpoint := range r.endpoints {
		client, err := r.dial(ctx, endpoint)
		if err != nil {
			lastErr = &NetworkError{Endpoint: endpoint, Err: err}
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, constants.ContractCallTimeout)
		var raw json.RawMessage
		err = client.CallContext(callCtx, &raw, "eth_getTransactionReceipt", common.HexToHash(txHash))
		client.Close()
		cancel()

		if err != nil {
			lastErr = &NetworkError{Endpoint: endpoint, Err: err}
			continue
		}
		if len(raw) == 0 || string(raw) == "null" {
			return nil, nil
		}

		var receipt ethtypes.Receipt
		if err := json.Unmarshal(raw, &receipt); err != nil {
			lastErr = fmt.Errorf("decode receipt: %w", err)
			continue
		}
		return &receipt, nil
	}
	return nil, lastErr
}
