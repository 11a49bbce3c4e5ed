// Package failure defines the error taxonomy shared by the deploy, verify,
// liquidity and audit operations.
//
// Every named error wraps exactly one kind sentinel, so callers can branch
// either on the specific failure or on its kind:
//
//	errors.Is(err, failure.ErrNotDeployed) // specific
//	errors.Is(err, failure.ErrState)       // kind
package failure

import (
	"errors"
	"fmt"
)

// Kind sentinels.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrState         = errors.New("state error")
	ErrRemote        = errors.New("remote error")
)

// Configuration failures.
var (
	ErrUnknownNetwork    = newKind(ErrConfiguration, "unknown network")
	ErrMissingCredential = newKind(ErrConfiguration, "missing credential")
	ErrSignerUnavailable = newKind(ErrConfiguration, "signer unavailable")
	ErrChainMismatch     = newKind(ErrConfiguration, "chain id mismatch")
	ErrInvalidArtifact   = newKind(ErrConfiguration, "invalid contract artifact")
)

// State failures.
var (
	ErrNotDeployed     = newKind(ErrState, "contract not deployed")
	ErrCorruptRecord   = newKind(ErrState, "corrupt deployment record")
	ErrAlreadyDeployed = newKind(ErrState, "deployment record already exists")
)

// Remote failures.
var (
	ErrContractUnreachable = newKind(ErrRemote, "contract unreachable")
	ErrDeployTimeout       = newKind(ErrRemote, "deploy confirmation timed out")
	ErrDeployReverted      = newKind(ErrRemote, "deploy transaction reverted")
	ErrInsufficientFunds   = newKind(ErrRemote, "insufficient funds")
	ErrAllowanceTxFailed   = newKind(ErrRemote, "allowance transaction failed")
	ErrLiquidityTxFailed   = newKind(ErrRemote, "liquidity transaction failed")
)

func newKind(kind error, msg string) error {
	return fmt.Errorf("%w: %s", kind, msg)
}

// Kind returns "configuration", "state", "remote" or "unknown" for err.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrState):
		return "state"
	case errors.Is(err, ErrRemote):
		return "remote"
	default:
		return "unknown"
	}
}
