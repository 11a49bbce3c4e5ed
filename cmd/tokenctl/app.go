package main

import (
	"fmt"

	"github.com/compose-network/token-manager/configs"
	"github.com/compose-network/token-manager/internal/audit"
	"github.com/compose-network/token-manager/internal/chain"
	"github.com/compose-network/token-manager/internal/deployment"
	"github.com/compose-network/token-manager/internal/network"
	"github.com/compose-network/token-manager/internal/operator"
	"github.com/compose-network/token-manager/internal/record"
	"github.com/compose-network/token-manager/internal/signer"
	"github.com/ethereum/go-ethereum/common"
)

// app holds the services built from configs.Values.
type app struct {
	registry     *network.Registry
	store        *record.Store
	signers      *signer.Provider
	orchestrator *deployment.Orchestrator
	operator     *operator.Operator
	auditor      *audit.Auditor
}

func newApp(cfg configs.Config) (*app, error) {
	registry, err := network.DefaultRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to load network registry: %w", err)
	}
	registry = registry.WithRPCOverrides(cfg.RPCOverrides())

	store := record.NewStore(cfg.StateDir)
	signers := signer.NewProvider(signer.Options{
		PrivateKey:     cfg.Credentials.PrivateKey,
		TestPrivateKey: cfg.Credentials.TestPrivateKey,
		Endpoint:       cfg.Signer.Endpoint,
		APIKey:         cfg.Signer.APIKey,
		Address:        cfg.Signer.Address,
	})

	opts := deployment.Options{
		ArtifactPath: cfg.ArtifactPath,
		LogoURI:      cfg.Metadata.LogoURI,
		MetadataURI:  cfg.Metadata.MetadataURI,
	}
	if cfg.Wallets.Fee != "" {
		opts.FeeWallet = common.HexToAddress(cfg.Wallets.Fee)
	}
	if cfg.Wallets.Liquidity != "" {
		opts.LiquidityWallet = common.HexToAddress(cfg.Wallets.Liquidity)
	}

	return &app{
		registry:     registry,
		store:        store,
		signers:      signers,
		orchestrator: deployment.NewOrchestrator(registry, store, signers, chain.Dial, opts),
		operator:     operator.New(registry, store, signers, chain.Dial),
		auditor:      audit.NewAuditor(registry, store, signers, chain.Dial, audit.DefaultPolicy()),
	}, nil
}
