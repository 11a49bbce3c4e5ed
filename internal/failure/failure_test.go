package failure

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "unknown network", err: ErrUnknownNetwork, want: "configuration"},
		{name: "signer unavailable", err: ErrSignerUnavailable, want: "configuration"},
		{name: "not deployed", err: ErrNotDeployed, want: "state"},
		{name: "corrupt record", err: ErrCorruptRecord, want: "state"},
		{name: "deploy timeout", err: ErrDeployTimeout, want: "remote"},
		{name: "liquidity leg", err: ErrLiquidityTxFailed, want: "remote"},
		{name: "wrapped", err: fmt.Errorf("deploy: %w", ErrInsufficientFunds), want: "remote"},
		{name: "foreign", err: errors.New("boom"), want: "unknown"},
		{name: "nil", err: nil, want: "unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Kind(tc.err))
		})
	}
}

func TestNamedErrorsStayDistinct(t *testing.T) {
	err := fmt.Errorf("%w: network %q", ErrNotDeployed, "bscTestnet")

	assert.ErrorIs(t, err, ErrNotDeployed)
	assert.ErrorIs(t, err, ErrState)
	assert.NotErrorIs(t, err, ErrCorruptRecord)
	assert.NotErrorIs(t, err, ErrRemote)
}
