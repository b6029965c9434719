package chain

import (
	"errors"
	"fmt"
	"time"

	"github.com/motormint/marketclient/pkg/constants"
)

// NetworkError is a transient transport failure. The call may succeed on a
// user-triggered retry.
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("network error: %v", e.Err)
	}
	return fmt.Sprintf("network error on %s: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ContractRevertError reports that a call reverted on-chain. Retrying with
// the same input cannot succeed.
type ContractRevertError struct {
	Function string
	Reason   string
	Err      error
}

func (e *ContractRevertError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("contract call %s reverted", e.Function)
	}
	return fmt.Sprintf("contract call %s reverted: %s", e.Function, e.Reason)
}

func (e *ContractRevertError) Unwrap() error {
	return e.Err
}

// TimeoutError reports that an operation was not observed within its bounded
// wait. The underlying transaction may still have succeeded: the status is
// unknown, not reverted.
type TimeoutError struct {
	Op   string
	Wait time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s not observed within %s, status unknown", e.Op, e.Wait)
}

// IsRetryable reports whether err is worth a user-triggered retry with the
// same input.
func IsRetryable(err error) bool {
	var netErr *NetworkError
	var timeoutErr *TimeoutError
	return errors.As(err, &netErr) || errors.As(err, &timeoutErr)
}

// Excerpt renders err as a bounded, human-readable message suitable for the
// UI. The raw error stays in the logs.
func Excerpt(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > constants.MaxErrorExcerptLen {
		msg = msg[:constants.MaxErrorExcerptLen-3] + "..."
	}
	return msg
}
