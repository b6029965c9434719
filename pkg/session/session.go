package session

import (
	"context"
	"math/big"
	"sync"
)

// ContractCall describes one state-changing marketplace call handed to the
// wallet for signing and broadcast.
type ContractCall struct {
	Function string
	Args     []any
	// Value is native currency attached to the call, in wei. Nil means none.
	Value *big.Int
}

// Signer is the wallet boundary. Implementations sign the call with the
// session account, broadcast it, and return the transaction hash. A declined
// signing request surfaces as *UserRejectedError.
type Signer interface {
	SignAndSend(ctx context.Context, call ContractCall) (string, error)
}

// UserRejectedError reports that the signer declined the request. Terminal;
// no retry implied.
type UserRejectedError struct {
	Err error
}

func (e *UserRejectedError) Error() string {
	return "user rejected the signing request"
}

func (e *UserRejectedError) Unwrap() error {
	return e.Err
}

// Session is the ambient wallet/chain context shared by the data layer:
// established on connect, cleared on disconnect, passed by reference to the
// components that need it.
type Session struct {
	network string

	mu      sync.RWMutex
	account string
	signer  Signer
}

// New creates a disconnected session for the given network.
func New(network string) *Session {
	return &Session{network: network}
}

// Network returns the network this session was created for.
func (s *Session) Network() string {
	return s.network
}

// Connect binds the active account and its signer.
func (s *Session) Connect(account string, signer Signer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = account
	s.signer = signer
}

// Disconnect clears the account and signer.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = ""
	s.signer = nil
}

// Account returns the connected address. ok is false when no wallet is
// connected; that is a valid state, not an error.
func (s *Session) Account() (account string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account, s.account != ""
}

// Signer returns the connected wallet signer, if any.
func (s *Session) Signer() (Signer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signer, s.signer != nil
}
