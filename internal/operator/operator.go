// Package operator reads back a deployed token's configuration and provisions
// its initial AMM liquidity.
package operator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/compose-network/token-manager/internal/chain"
	"github.com/compose-network/token-manager/internal/failure"
	"github.com/compose-network/token-manager/internal/logger"
	"github.com/compose-network/token-manager/internal/network"
	"github.com/compose-network/token-manager/internal/record"
	"github.com/compose-network/token-manager/internal/signer"
	"github.com/ethereum/go-ethereum/common"
)

type (
	// Signers resolves the operator identity for a network.
	Signers interface {
		ForNetwork(ctx context.Context, profile network.Profile) (signer.Signer, error)
		Operator(ctx context.Context, profile network.Profile) (common.Address, error)
	}

	Operator struct {
		registry     *network.Registry
		store        *record.Store
		signers      Signers
		dial         chain.Dialer
		pollInterval time.Duration
		now          func() time.Time
		logger       *slog.Logger
	}
)

func New(registry *network.Registry, store *record.Store, signers Signers, dial chain.Dialer) *Operator {
	return &Operator{
		registry:     registry,
		store:        store,
		signers:      signers,
		dial:         dial,
		pollInterval: chain.DefaultPollInterval,
		now:          time.Now,
		logger:       logger.Named("operator"),
	}
}

// WithPollInterval overrides how often confirmations are polled.
func (o *Operator) WithPollInterval(interval time.Duration) *Operator {
	if interval > 0 {
		o.pollInterval = interval
	}
	return o
}

// target is the resolved network, its record and an open connection.
type target struct {
	profile network.Profile
	record  record.Record
	client  chain.Client
}

func (o *Operator) open(ctx context.Context, networkID string) (*target, error) {
	profile, err := o.registry.Resolve(networkID)
	if err != nil {
		return nil, err
	}

	rec, found, err := o.store.Load(profile.ID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notDeployed(profile.ID)
	}

	client, err := o.dial(ctx, profile.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", failure.ErrContractUnreachable, err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: failed to get chain ID: %w", failure.ErrContractUnreachable, err)
	}
	if !chainID.IsUint64() || chainID.Uint64() != profile.ChainID {
		client.Close()
		return nil, fmt.Errorf("%w: %s expects chain %d, RPC reports %s", failure.ErrChainMismatch, profile.ID, profile.ChainID, chainID)
	}

	return &target{profile: profile, record: rec, client: client}, nil
}

func notDeployed(networkID string) error {
	return fmt.Errorf("%w: no deployment record for %s, run deploy first", failure.ErrNotDeployed, networkID)
}
