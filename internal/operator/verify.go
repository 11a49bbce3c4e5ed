package operator

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/compose-network/token-manager/internal/failure"
	"github.com/compose-network/token-manager/internal/token"
	"github.com/ethereum/go-ethereum/common"
)

// VerifyResult is the on-chain configuration of a deployed token plus any
// advisories raised while comparing it with expectations.
type VerifyResult struct {
	Network  string
	Contract common.Address
	Explorer string

	// Operator is zero when no signing identity is configured.
	Operator common.Address

	UpstreamToken   common.Address
	Router          common.Address
	FeeWallet       common.Address
	LiquidityWallet common.Address
	TransferFee     *big.Int
	LiquidityFee    *big.Int
	Owner           common.Address

	Advisories []string
}

// Verify reads the deployed token's configuration without mutating anything.
// Differences from expectations are advisories; only an unreachable contract
// fails.
func (o *Operator) Verify(ctx context.Context, networkID string) (*VerifyResult, error) {
	t, err := o.open(ctx, networkID)
	if err != nil {
		return nil, err
	}
	defer t.client.Close()

	contract := token.NewContract(t.client, t.record.Contract())
	result := &VerifyResult{
		Network:  t.profile.ID,
		Contract: contract.Address(),
		Explorer: t.record.Explorer,
	}

	log := o.logger.With("network", t.profile.ID).With("contract", contract.Address().Hex())
	log.Info("verifying contract")

	code, err := contract.Code(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", failure.ErrContractUnreachable, err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: no code at %s", failure.ErrContractUnreachable, contract.Address().Hex())
	}

	reads := []struct {
		name string
		read func() error
	}{
		{"upstream token", func() (err error) { result.UpstreamToken, err = contract.UpstreamToken(ctx); return }},
		{"router", func() (err error) { result.Router, err = contract.Router(ctx); return }},
		{"fee wallet", func() (err error) { result.FeeWallet, err = contract.FeeWallet(ctx); return }},
		{"liquidity wallet", func() (err error) { result.LiquidityWallet, err = contract.LiquidityWallet(ctx); return }},
		{"transfer fee", func() (err error) { result.TransferFee, err = contract.TransferFee(ctx); return }},
		{"liquidity fee", func() (err error) { result.LiquidityFee, err = contract.LiquidityFee(ctx); return }},
		{"owner", func() (err error) { result.Owner, err = contract.Owner(ctx); return }},
	}
	for _, r := range reads {
		if err := r.read(); err != nil {
			return nil, fmt.Errorf("%w: failed to read %s: %w", failure.ErrContractUnreachable, r.name, err)
		}
	}

	operatorAddr, err := o.signers.Operator(ctx, t.profile)
	switch {
	case err == nil:
		result.Operator = operatorAddr
		if result.Owner != operatorAddr {
			result.advise("owner %s is not the current operator %s", result.Owner.Hex(), operatorAddr.Hex())
		}
	case errors.Is(err, failure.ErrSignerUnavailable):
		result.advise("operator identity unavailable, owner %s not compared", result.Owner.Hex())
	default:
		return nil, err
	}

	if result.UpstreamToken != t.profile.Addresses.UpstreamToken {
		result.advise("upstream token %s differs from network profile %s", result.UpstreamToken.Hex(), t.profile.Addresses.UpstreamToken.Hex())
	}
	if result.Router != t.profile.Addresses.Router {
		result.advise("router %s differs from network profile %s", result.Router.Hex(), t.profile.Addresses.Router.Hex())
	}

	for _, advisory := range result.Advisories {
		log.With("advisory", advisory).Warn("verification advisory")
	}
	log.Info("verification completed")

	return result, nil
}

func (r *VerifyResult) advise(format string, args ...any) {
	r.Advisories = append(r.Advisories, fmt.Sprintf(format, args...))
}
