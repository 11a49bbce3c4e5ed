// Package signer provides the operator's signing identity: a local key or a
// remote JSON-RPC signer.
package signer

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/compose-network/token-manager/internal/failure"
	"github.com/compose-network/token-manager/internal/logger"
	"github.com/compose-network/token-manager/internal/network"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type (
	// Signer signs transactions for one fixed address.
	Signer interface {
		Address() common.Address
		SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
		Close()
	}

	// Options carries the operator credentials. PrivateKey is used for
	// production networks; TestPrivateKey for testnets, falling back to
	// PrivateKey. When neither applies, the remote signer at Endpoint is used,
	// or the node itself for development networks.
	Options struct {
		PrivateKey     string
		TestPrivateKey string
		Endpoint       string
		APIKey         string
		Address        string
	}

	// Provider hands out the signer for a network.
	Provider struct {
		opts   Options
		logger *slog.Logger
	}
)

func NewProvider(opts Options) *Provider {
	return &Provider{
		opts:   opts,
		logger: logger.Named("signer_provider"),
	}
}

// KeyFor returns the private key configured for a testnet or production
// network, or "".
func (o Options) KeyFor(testnet bool) string {
	if testnet && o.TestPrivateKey != "" {
		return o.TestPrivateKey
	}
	return o.PrivateKey
}

// ForNetwork returns the signer for profile. The caller must Close it.
func (p *Provider) ForNetwork(ctx context.Context, profile network.Profile) (Signer, error) {
	if key := p.opts.KeyFor(profile.Testnet); key != "" {
		local, err := NewLocal(key)
		if err != nil {
			return nil, err
		}
		p.logger.
			With("network", profile.ID).
			With("address", local.Address().Hex()).
			Info("using local key signer")
		return local, nil
	}

	endpoint, apiKey := p.opts.Endpoint, p.opts.APIKey
	if endpoint == "" && profile.DevNode {
		// Local development nodes sign for their unlocked accounts.
		endpoint, apiKey = profile.RPCURL, ""
	}

	if endpoint != "" {
		remote, err := DialRemote(ctx, endpoint, apiKey, p.opts.Address)
		if err != nil {
			return nil, err
		}
		p.logger.
			With("network", profile.ID).
			With("endpoint", endpoint).
			With("address", remote.Address().Hex()).
			Info("using remote signer")
		return remote, nil
	}

	return nil, fmt.Errorf("%w: no private key or signer endpoint configured for network %s", failure.ErrSignerUnavailable, profile.ID)
}

// Operator returns the operator address for profile without keeping a signer
// open. A configured signer address wins over deriving it.
func (p *Provider) Operator(ctx context.Context, profile network.Profile) (common.Address, error) {
	if p.opts.KeyFor(profile.Testnet) == "" && p.opts.Address != "" {
		if !common.IsHexAddress(p.opts.Address) {
			return common.Address{}, fmt.Errorf("%w: invalid signer address %q", failure.ErrMissingCredential, p.opts.Address)
		}
		return common.HexToAddress(p.opts.Address), nil
	}

	s, err := p.ForNetwork(ctx, profile)
	if err != nil {
		return common.Address{}, err
	}
	defer s.Close()

	return s.Address(), nil
}
