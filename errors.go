package btcvault

import (
	"errors"
	"fmt"
)

// Decision errors are terminal for the request; nothing in the core is
// retryable. The transport layer translates them to wire codes.
var (
	ErrVaultNotFound    = errors.New("vault not found")
	ErrProposalNotFound = errors.New("proposal not found")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrNotAMember       = errors.New("not a vault member")
	ErrProposalClosed   = errors.New("proposal closed")
)

// ValidationError reports malformed vault creation input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid vault: " + e.Reason
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// InsufficientBalanceError reports a withdrawal exceeding the vault
// balance.
type InsufficientBalanceError struct {
	Amount  int64
	Balance int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: need %d, have %d", e.Amount, e.Balance)
}

// InsufficientQuorumError carries the actual and required signer share
// so the caller can see the gap.
type InsufficientQuorumError struct {
	SignerShare int
	Required    int
}

func (e *InsufficientQuorumError) Error() string {
	return fmt.Sprintf("insufficient quorum: signer share %d%%, required %d%%", e.SignerShare, e.Required)
}

// WithdrawalLockedError reports a withdrawal attempted inside the
// policy cooldown window.
type WithdrawalLockedError struct {
	RemainingBlocks int64
}

func (e *WithdrawalLockedError) Error() string {
	return fmt.Sprintf("withdrawal locked: %d blocks remaining", e.RemainingBlocks)
}
