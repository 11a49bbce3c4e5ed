// Package deployment drives a network from "undeployed" to "deployed": it
// submits the token creation transaction, waits for confirmation and writes
// the deployment record.
package deployment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/compose-network/token-manager/internal/chain"
	"github.com/compose-network/token-manager/internal/failure"
	"github.com/compose-network/token-manager/internal/logger"
	"github.com/compose-network/token-manager/internal/network"
	"github.com/compose-network/token-manager/internal/record"
	"github.com/compose-network/token-manager/internal/signer"
	"github.com/compose-network/token-manager/internal/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

type (
	// SignerSource hands out the operator signer for a network.
	SignerSource interface {
		ForNetwork(ctx context.Context, profile network.Profile) (signer.Signer, error)
	}

	// Options configure every deployment made by an Orchestrator.
	Options struct {
		ArtifactPath string
		// Zero wallets default to the operator address.
		FeeWallet       common.Address
		LiquidityWallet common.Address
		LogoURI         string
		MetadataURI     string
		PollInterval    time.Duration
	}

	// DeployOptions configure a single Deploy call.
	DeployOptions struct {
		// Force allows overwriting an existing deployment record.
		Force bool
	}

	Orchestrator struct {
		registry *network.Registry
		store    *record.Store
		signers  SignerSource
		dial     chain.Dialer
		opts     Options
		now      func() time.Time
		logger   *slog.Logger
	}
)

func NewOrchestrator(registry *network.Registry, store *record.Store, signers SignerSource, dial chain.Dialer, opts Options) *Orchestrator {
	if opts.ArtifactPath == "" {
		opts.ArtifactPath = token.DefaultArtifactPath
	}

	return &Orchestrator{
		registry: registry,
		store:    store,
		signers:  signers,
		dial:     dial,
		opts:     opts,
		now:      time.Now,
		logger:   logger.Named("deploy_orchestrator"),
	}
}

// Deploy creates a new token instance on networkID and records it. On a
// confirmation timeout no record is written; the transaction may still be
// mined and must be checked by hand.
func (o *Orchestrator) Deploy(ctx context.Context, networkID string, deployOpts DeployOptions) (record.Record, error) {
	profile, err := o.registry.Resolve(networkID)
	if err != nil {
		return record.Record{}, err
	}

	log := o.logger.With("network", profile.ID)

	// Configuration errors must not leave a lock file behind, so the record,
	// signer and artifact are checked before locking.
	if err := o.checkExisting(profile.ID, deployOpts.Force); err != nil {
		return record.Record{}, err
	}

	s, err := o.signers.ForNetwork(ctx, profile)
	if err != nil {
		return record.Record{}, err
	}
	defer s.Close()

	artifact, err := token.LoadArtifact(o.opts.ArtifactPath)
	if err != nil {
		return record.Record{}, err
	}

	args := o.constructorArgs(profile, s.Address())
	data, err := artifact.DeployData(args)
	if err != nil {
		return record.Record{}, err
	}

	unlock, err := o.store.Lock(profile.ID)
	if err != nil {
		return record.Record{}, err
	}
	defer unlock()

	// Another deploy may have saved a record while this one was unlocked.
	if err := o.checkExisting(profile.ID, deployOpts.Force); err != nil {
		return record.Record{}, err
	}

	log.With("url", profile.RPCURL).Info("dialing the RPC")
	client, err := o.dial(ctx, profile.RPCURL)
	if err != nil {
		return record.Record{}, fmt.Errorf("%w: %w", failure.ErrContractUnreachable, err)
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return record.Record{}, fmt.Errorf("%w: failed to get chain ID: %w", failure.ErrContractUnreachable, err)
	}
	if !chainID.IsUint64() || chainID.Uint64() != profile.ChainID {
		return record.Record{}, fmt.Errorf("%w: %s expects chain %d, RPC reports %s", failure.ErrChainMismatch, profile.ID, profile.ChainID, chainID)
	}

	transactor := chain.NewTransactor(client, s, chainID, profile.Gas.Price, profile.Gas.Limit).
		WithPollInterval(o.opts.PollInterval)

	log.
		With("deployer", s.Address().Hex()).
		With("fee_wallet", args.FeeWallet.Hex()).
		With("liquidity_wallet", args.LiquidityWallet.Hex()).
		Info("deploying token")

	tx, err := transactor.Send(ctx, nil, nil, data)
	if err != nil {
		return record.Record{}, fmt.Errorf("failed to deploy contract: %w", err)
	}

	log.With("tx_hash", tx.Hash().Hex()).Info("contract deployment transaction sent")

	receipt, err := o.waitDeployed(ctx, transactor, profile, tx)
	if err != nil {
		return record.Record{}, err
	}

	address := receipt.ContractAddress
	if address == (common.Address{}) {
		address = crypto.CreateAddress(s.Address(), tx.Nonce())
	}

	code, err := client.CodeAt(ctx, address, nil)
	if err != nil {
		return record.Record{}, fmt.Errorf("%w: failed to get code at %s: %w", failure.ErrContractUnreachable, address.Hex(), err)
	}
	if len(code) == 0 {
		return record.Record{}, fmt.Errorf("%w: no code at %s after deployment", failure.ErrDeployReverted, address.Hex())
	}

	rec := record.Record{
		Network:         profile.ID,
		ContractAddress: address.Hex(),
		Deployer:        s.Address().Hex(),
		Timestamp:       record.FormatTimestamp(o.now()),
		Explorer:        profile.AddressURL(address),
		TransactionHash: tx.Hash().Hex(),
		ChainID:         profile.ChainID,
		GasUsed:         receipt.GasUsed,
		GasLimit:        tx.Gas(),
	}
	if receipt.BlockNumber != nil {
		rec.BlockNumber = receipt.BlockNumber.Uint64()
	}

	if err := o.store.Save(rec); err != nil {
		return record.Record{}, err
	}

	log.
		With("address", rec.ContractAddress).
		With("explorer", rec.Explorer).
		With("gas_used", rec.GasUsed).
		Info("token deployed")

	return rec, nil
}

func (o *Orchestrator) checkExisting(networkID string, force bool) error {
	existing, found, err := o.store.Load(networkID)
	if err != nil {
		if force && errors.Is(err, failure.ErrCorruptRecord) {
			o.logger.With("network", networkID).With("err", err.Error()).Warn("overwriting corrupt deployment record")
			return nil
		}
		return err
	}
	if !found {
		return nil
	}
	if !force {
		return fmt.Errorf("%w: %s already has contract %s deployed at %s; pass --force to replace it",
			failure.ErrAlreadyDeployed, networkID, existing.ContractAddress, existing.Timestamp)
	}

	o.logger.
		With("network", networkID).
		With("previous_address", existing.ContractAddress).
		Warn("replacing existing deployment record")
	return nil
}

func (o *Orchestrator) constructorArgs(profile network.Profile, operator common.Address) token.ConstructorArgs {
	args := token.ConstructorArgs{
		UpstreamToken:   profile.Addresses.UpstreamToken,
		Router:          profile.Addresses.Router,
		FeeWallet:       o.opts.FeeWallet,
		LiquidityWallet: o.opts.LiquidityWallet,
		PriceFeed:       profile.Addresses.PriceFeed,
		LogoURI:         o.opts.LogoURI,
		MetadataURI:     o.opts.MetadataURI,
	}
	if args.FeeWallet == (common.Address{}) {
		args.FeeWallet = operator
	}
	if args.LiquidityWallet == (common.Address{}) {
		args.LiquidityWallet = operator
	}
	return args
}

func (o *Orchestrator) waitDeployed(ctx context.Context, transactor *chain.Transactor, profile network.Profile, tx *types.Transaction) (*types.Receipt, error) {
	waitCtx := ctx
	if profile.Deploy.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, profile.Deploy.Timeout)
		defer cancel()
	}

	receipt, err := transactor.WaitConfirmed(waitCtx, tx.Hash(), profile.Deploy.Confirmations)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: transaction %s not confirmed within %s; check %s before redeploying",
				failure.ErrDeployTimeout, tx.Hash().Hex(), profile.Deploy.Timeout, txLocation(profile, tx.Hash()))
		}
		return nil, fmt.Errorf("failed to wait for transaction: %w", err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: transaction %s failed with status %d", failure.ErrDeployReverted, tx.Hash().Hex(), receipt.Status)
	}

	return receipt, nil
}

func txLocation(profile network.Profile, hash common.Hash) string {
	if url := profile.TxURL(hash); url != "" {
		return url
	}
	return "the chain"
}
