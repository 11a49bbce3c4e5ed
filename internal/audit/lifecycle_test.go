package audit_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/compose-network/token-manager/internal/audit"
	"github.com/compose-network/token-manager/internal/chain"
	"github.com/compose-network/token-manager/internal/chain/chaintest"
	"github.com/compose-network/token-manager/internal/deployment"
	"github.com/compose-network/token-manager/internal/failure"
	"github.com/compose-network/token-manager/internal/network"
	"github.com/compose-network/token-manager/internal/operator"
	"github.com/compose-network/token-manager/internal/record"
	"github.com/compose-network/token-manager/internal/signer"
	"github.com/compose-network/token-manager/internal/token"
	"github.com/compose-network/token-manager/internal/token/tokentest"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLifecycle deploys a token on a fresh network, verifies it and audits it.
func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	profile := testProfile()

	registry, err := network.NewRegistry(profile)
	require.NoError(t, err)

	backend := chaintest.NewBackend(profile.ChainID)
	backend.DeployCode = tokentest.SecureRuntime
	backend.GasUsed = 3_200_000
	backend.Fund(operatorAddr, new(big.Int).Mul(big.NewInt(5), big.NewInt(1e18)))
	backend.OnDeploy = func(addr common.Address, _ *types.Transaction) {
		tokentest.Install(backend, addr, tokentest.Fresh(token.ConstructorArgs{
			UpstreamToken:   profile.Addresses.UpstreamToken,
			Router:          profile.Addresses.Router,
			FeeWallet:       operatorAddr,
			LiquidityWallet: operatorAddr,
		}, operatorAddr))
	}

	store := record.NewStore(t.TempDir())
	signers := signer.NewProvider(signer.Options{TestPrivateKey: operatorKey})
	dial := func(context.Context, string) (chain.Client, error) { return backend, nil }

	auditor := audit.NewAuditor(registry, store, signers, dial, audit.DefaultPolicy())
	_, err = auditor.Audit(ctx, profile.ID)
	require.ErrorIs(t, err, failure.ErrNotDeployed)

	orchestrator := deployment.NewOrchestrator(registry, store, signers, dial, deployment.Options{
		ArtifactPath: tokentest.WriteArtifact(t, t.TempDir()),
		PollInterval: time.Millisecond,
	})
	rec, err := orchestrator.Deploy(ctx, profile.ID, deployment.DeployOptions{})
	require.NoError(t, err)

	stored, found, err := store.Load(profile.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, rec.ContractAddress, stored.ContractAddress)

	ops := operator.New(registry, store, signers, dial).WithPollInterval(time.Millisecond)
	verified, err := ops.Verify(ctx, profile.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Contract(), verified.Contract)
	assert.Equal(t, profile.Addresses.Router, verified.Router)
	assert.Equal(t, profile.Addresses.UpstreamToken, verified.UpstreamToken)
	assert.Equal(t, operatorAddr, verified.FeeWallet)
	assert.Equal(t, operatorAddr, verified.LiquidityWallet)
	assert.Empty(t, verified.Advisories)

	report, err := auditor.Audit(ctx, profile.ID)
	require.NoError(t, err)
	assert.True(t, report.Secure)
	assert.Empty(t, report.Critical)
	assert.Equal(t, rec.ContractAddress, report.Contract)
	require.NotEmpty(t, report.Advisory)
	assert.Equal(t, "swap-trigger threshold is zero", report.Advisory[0].Message)
	assert.Contains(t, report.Notes, "deployment used 3200000 gas (limit 10000000)")

	_, err = orchestrator.Deploy(ctx, profile.ID, deployment.DeployOptions{})
	assert.ErrorIs(t, err, failure.ErrAlreadyDeployed)
}
