// Package audit runs a fixed battery of read-only security checks against a
// deployed token and reports critical and advisory findings.
//
// A check group that fails to read its inputs does not stop the run; the
// failure becomes a critical finding for that group and the next group runs.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/compose-network/token-manager/internal/chain"
	"github.com/compose-network/token-manager/internal/failure"
	"github.com/compose-network/token-manager/internal/logger"
	"github.com/compose-network/token-manager/internal/network"
	"github.com/compose-network/token-manager/internal/record"
	"github.com/compose-network/token-manager/internal/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

type (
	// OperatorSource resolves the operator address for a network.
	OperatorSource interface {
		Operator(ctx context.Context, profile network.Profile) (common.Address, error)
	}

	Auditor struct {
		registry  *network.Registry
		store     *record.Store
		operators OperatorSource
		dial      chain.Dialer
		policy    Policy
		checks    []Check
		now       func() time.Time
		logger    *slog.Logger
	}
)

func NewAuditor(registry *network.Registry, store *record.Store, operators OperatorSource, dial chain.Dialer, policy Policy) *Auditor {
	return &Auditor{
		registry:  registry,
		store:     store,
		operators: operators,
		dial:      dial,
		policy:    policy,
		checks:    Checks(),
		now:       time.Now,
		logger:    logger.Named("security_auditor"),
	}
}

// Audit checks the token recorded for networkID. It fails only when the
// network or its record cannot be resolved; every on-chain failure is
// reported as a finding.
func (a *Auditor) Audit(ctx context.Context, networkID string) (*Report, error) {
	profile, err := a.registry.Resolve(networkID)
	if err != nil {
		return nil, err
	}

	rec, found, err := a.store.Load(profile.ID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: no deployment record for %s, run deploy first", failure.ErrNotDeployed, profile.ID)
	}

	subject := Subject{Record: rec, Policy: a.policy}

	operator, err := a.operators.Operator(ctx, profile)
	switch {
	case err == nil:
		subject.Operator = &operator
	case errors.Is(err, failure.ErrSignerUnavailable):
	default:
		return nil, err
	}

	report := &Report{
		RunID:     uuid.NewString(),
		Network:   profile.ID,
		Contract:  rec.Contract().Hex(),
		StartedAt: a.now().UTC(),
		Critical:  []Finding{},
		Advisory:  []Finding{},
	}

	log := a.logger.
		With("run_id", report.RunID).
		With("network", profile.ID).
		With("contract", report.Contract)
	log.Info("starting security audit")

	reader, closeFn, err := a.connect(ctx, profile, rec)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	subject.Token = reader

	for _, check := range a.checks {
		result, err := check.Run(ctx, subject)
		for _, f := range result.Findings {
			report.add(f)
		}
		report.Notes = append(report.Notes, result.Notes...)

		if err != nil {
			log.With("group", check.Name).With("err", err.Error()).Warn("check group failed")
			report.add(Finding{
				Severity: SeverityCritical,
				Group:    check.Name,
				Message:  fmt.Sprintf("check failed: %v", err),
			})
		}
	}

	report.FinishedAt = a.now().UTC()
	report.Secure = len(report.Critical) == 0

	log.
		With("critical", len(report.Critical)).
		With("advisory", len(report.Advisory)).
		With("secure", report.Secure).
		Info("security audit completed")

	return report, nil
}

// connect returns a reader for the recorded contract. An unreachable node
// yields a reader that fails every call so each group reports it; a node on
// the wrong chain aborts the audit.
func (a *Auditor) connect(ctx context.Context, profile network.Profile, rec record.Record) (TokenReader, func(), error) {
	client, err := a.dial(ctx, profile.RPCURL)
	if err != nil {
		return unreachable{err: fmt.Errorf("%w: %w", failure.ErrContractUnreachable, err)}, func() {}, nil
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return unreachable{err: fmt.Errorf("%w: failed to get chain ID: %w", failure.ErrContractUnreachable, err)}, client.Close, nil
	}
	if !chainID.IsUint64() || chainID.Uint64() != profile.ChainID {
		client.Close()
		return nil, nil, fmt.Errorf("%w: %s expects chain %d, RPC reports %s", failure.ErrChainMismatch, profile.ID, profile.ChainID, chainID)
	}

	return token.NewContract(client, rec.Contract()), client.Close, nil
}

// unreachable answers every read with the same error.
type unreachable struct {
	err error
}

func (u unreachable) Code(context.Context) ([]byte, error) { return nil, u.err }
func (u unreachable) Owner(context.Context) (common.Address, error) { return common.Address{}, u.err }
func (u unreachable) TransferFee(context.Context) (*big.Int, error) { return nil, u.err }
func (u unreachable) LiquidityFee(context.Context) (*big.Int, error) { return nil, u.err }
func (u unreachable) MaxFee(context.Context) (*big.Int, error) { return nil, u.err }
func (u unreachable) FeeDenominator(context.Context) (*big.Int, error) { return nil, u.err }
func (u unreachable) FeeWallet(context.Context) (common.Address, error) { return common.Address{}, u.err }
func (u unreachable) LiquidityWallet(context.Context) (common.Address, error) { return common.Address{}, u.err }
func (u unreachable) MinTokensBeforeSwap(context.Context) (*big.Int, error) { return nil, u.err }
func (u unreachable) Pair(context.Context) (common.Address, error) { return common.Address{}, u.err }
func (u unreachable) Paused(context.Context) (bool, error) { return false, u.err }
