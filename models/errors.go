package models

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace is the error codespace every bridge error is registered under.
const Codespace = "bridge"

// Error kinds surfaced to clients. Every operation aborts with no retained
// writes when it returns one of these.
var (
	ErrUnauthorized        = errorsmod.Register(Codespace, 2, "unauthorized")
	ErrNotFound            = errorsmod.Register(Codespace, 3, "not found")
	ErrStateMismatch       = errorsmod.Register(Codespace, 4, "state mismatch")
	ErrInsufficientBalance = errorsmod.Register(Codespace, 5, "insufficient balance")
	ErrInsufficientStake   = errorsmod.Register(Codespace, 6, "insufficient stake")
	ErrInvalidSignature    = errorsmod.Register(Codespace, 7, "invalid signature")
	ErrInvalidPreimage     = errorsmod.Register(Codespace, 8, "invalid preimage")
	ErrTooEarly            = errorsmod.Register(Codespace, 9, "too early")
	ErrTimeout             = errorsmod.Register(Codespace, 10, "timeout")
	ErrQuorumNotReached    = errorsmod.Register(Codespace, 11, "quorum not reached")
	ErrAlreadySettled      = errorsmod.Register(Codespace, 12, "already settled")
	ErrStaleProof          = errorsmod.Register(Codespace, 13, "stale balance proof")
	ErrInvalidRequest      = errorsmod.Register(Codespace, 14, "invalid request")
	// ErrMirrorPending means the foreign mirror is not visible yet; drivers retry on it.
	ErrMirrorPending = errorsmod.Register(Codespace, 15, "foreign mirror pending")
)
