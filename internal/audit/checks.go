package audit

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/compose-network/token-manager/internal/record"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Policy holds the thresholds the audit enforces.
type Policy struct {
	// MaxFeeCeiling bounds the contract's MAX_FEE constant.
	MaxFeeCeiling uint64
	// MaxLiquidityFee bounds liquidityFee, in percent.
	MaxLiquidityFee uint64
	// DeployGasCeiling bounds the gas used by the deployment.
	DeployGasCeiling uint64
}

func DefaultPolicy() Policy {
	return Policy{
		MaxFeeCeiling:    1000,
		MaxLiquidityFee:  100,
		DeployGasCeiling: 8_000_000,
	}
}

// TokenReader is the read-only token surface the checks consume.
type TokenReader interface {
	Code(ctx context.Context) ([]byte, error)
	Owner(ctx context.Context) (common.Address, error)
	TransferFee(ctx context.Context) (*big.Int, error)
	LiquidityFee(ctx context.Context) (*big.Int, error)
	MaxFee(ctx context.Context) (*big.Int, error)
	FeeDenominator(ctx context.Context) (*big.Int, error)
	FeeWallet(ctx context.Context) (common.Address, error)
	LiquidityWallet(ctx context.Context) (common.Address, error)
	MinTokensBeforeSwap(ctx context.Context) (*big.Int, error)
	Pair(ctx context.Context) (common.Address, error)
	Paused(ctx context.Context) (bool, error)
}

// Subject is everything a check group may look at.
type Subject struct {
	Token  TokenReader
	Record record.Record
	// Operator is nil when the operator identity is unknown.
	Operator *common.Address
	Policy   Policy
}

// Result is what one check group observed.
type Result struct {
	Findings []Finding
	Notes    []string
}

func (r *Result) critical(group, format string, args ...any) {
	r.Findings = append(r.Findings, Finding{Severity: SeverityCritical, Group: group, Message: fmt.Sprintf(format, args...)})
}

func (r *Result) advisory(group, format string, args ...any) {
	r.Findings = append(r.Findings, Finding{Severity: SeverityAdvisory, Group: group, Message: fmt.Sprintf(format, args...)})
}

func (r *Result) note(format string, args ...any) {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

// Check is one independent group of read-only checks.
type Check struct {
	Name string
	Run  func(ctx context.Context, s Subject) (Result, error)
}

// Check group names.
const (
	GroupDeployment      = "deployment sanity"
	GroupAccessControl   = "access control"
	GroupFees            = "fee configuration"
	GroupLiquidity       = "liquidity settings"
	GroupEmergency       = "emergency controls"
	GroupReentrancy      = "reentrancy posture"
	GroupInputValidation = "input validation"
	GroupGasUsage        = "gas usage"
)

var (
	privilegedOperations = []string{
		"updateFees",
		"updateWallets",
		"updateMinTokensBeforeSwap",
		"setExcludedFromFee",
		"setExcludedFromAutoLiquidity",
		"updateLogoURI",
		"updateMetadataURI",
		"recoverTokens",
		"recoverBNB",
		"pause",
		"unpause",
	}

	emergencyOperations = []string{"pause", "unpause", "recoverTokens", "recoverBNB"}

	reentrancyGuardMarkers = [][]byte{
		crypto.Keccak256([]byte("ReentrancyGuardReentrantCall()"))[:4],
		[]byte("ReentrancyGuard: reentrant call"),
	}
	swapLockMarkers = [][]byte{
		crypto.Keccak256([]byte("inSwapAndLiquify()"))[:4],
		[]byte("lockTheSwap"),
	}
)

// Checks returns the check groups in execution order.
func Checks() []Check {
	return []Check{
		{Name: GroupDeployment, Run: checkDeployment},
		{Name: GroupAccessControl, Run: checkAccessControl},
		{Name: GroupFees, Run: checkFees},
		{Name: GroupLiquidity, Run: checkLiquidity},
		{Name: GroupEmergency, Run: checkEmergency},
		{Name: GroupReentrancy, Run: checkReentrancy},
		{Name: GroupInputValidation, Run: checkInputValidation},
		{Name: GroupGasUsage, Run: checkGasUsage},
	}
}

func checkDeployment(ctx context.Context, s Subject) (Result, error) {
	var r Result

	code, err := s.Token.Code(ctx)
	if err != nil {
		return r, err
	}
	if len(code) == 0 {
		r.critical(GroupDeployment, "no contract code at %s", s.Record.ContractAddress)
		return r, nil
	}

	owner, err := s.Token.Owner(ctx)
	if err != nil {
		return r, err
	}
	if owner == (common.Address{}) {
		r.critical(GroupDeployment, "owner is the null address")
	}

	return r, nil
}

func checkAccessControl(ctx context.Context, s Subject) (Result, error) {
	var r Result

	owner, err := s.Token.Owner(ctx)
	if err != nil {
		return r, err
	}

	switch {
	case s.Operator == nil:
		r.advisory(GroupAccessControl, "operator identity unavailable, owner %s not compared", owner.Hex())
	case *s.Operator != owner:
		r.advisory(GroupAccessControl, "operator %s is not the contract owner %s", s.Operator.Hex(), owner.Hex())
	}

	r.note("%d owner-only operations expected: %s", len(privilegedOperations), strings.Join(privilegedOperations, ", "))
	return r, nil
}

func checkFees(ctx context.Context, s Subject) (Result, error) {
	var r Result

	transferFee, err := s.Token.TransferFee(ctx)
	if err != nil {
		return r, err
	}
	liquidityFee, err := s.Token.LiquidityFee(ctx)
	if err != nil {
		return r, err
	}
	maxFee, err := s.Token.MaxFee(ctx)
	if err != nil {
		return r, err
	}

	if transferFee.Cmp(maxFee) > 0 {
		r.critical(GroupFees, "transfer fee %s exceeds MAX_FEE %s", transferFee, maxFee)
	}
	if liquidityFee.Cmp(new(big.Int).SetUint64(s.Policy.MaxLiquidityFee)) > 0 {
		r.critical(GroupFees, "liquidity fee %s%% exceeds %d%%", liquidityFee, s.Policy.MaxLiquidityFee)
	}

	feeWallet, err := s.Token.FeeWallet(ctx)
	if err != nil {
		return r, err
	}
	liquidityWallet, err := s.Token.LiquidityWallet(ctx)
	if err != nil {
		return r, err
	}

	if feeWallet == (common.Address{}) {
		r.critical(GroupFees, "fee wallet is the null address")
	}
	if liquidityWallet == (common.Address{}) {
		r.critical(GroupFees, "liquidity wallet is the null address")
	}

	return r, nil
}

func checkLiquidity(ctx context.Context, s Subject) (Result, error) {
	var r Result

	threshold, err := s.Token.MinTokensBeforeSwap(ctx)
	if err != nil {
		return r, err
	}
	pair, err := s.Token.Pair(ctx)
	if err != nil {
		return r, err
	}

	if threshold.Sign() == 0 {
		r.advisory(GroupLiquidity, "swap-trigger threshold is zero")
	}
	if pair == (common.Address{}) {
		r.advisory(GroupLiquidity, "trading pair is not set")
	}

	return r, nil
}

func checkEmergency(ctx context.Context, s Subject) (Result, error) {
	var r Result

	paused, err := s.Token.Paused(ctx)
	if err != nil {
		return r, err
	}
	if paused {
		r.advisory(GroupEmergency, "contract is paused")
	}

	r.note("%d emergency operations expected: %s", len(emergencyOperations), strings.Join(emergencyOperations, ", "))
	return r, nil
}

func checkReentrancy(ctx context.Context, s Subject) (Result, error) {
	var r Result

	code, err := s.Token.Code(ctx)
	if err != nil {
		return r, err
	}

	if !containsAny(code, reentrancyGuardMarkers) {
		r.critical(GroupReentrancy, "no reentrancy guard found in contract code")
	}
	if !containsAny(code, swapLockMarkers) {
		r.advisory(GroupReentrancy, "no swap lock found in contract code")
	}

	return r, nil
}

func checkInputValidation(ctx context.Context, s Subject) (Result, error) {
	var r Result

	maxFee, err := s.Token.MaxFee(ctx)
	if err != nil {
		return r, err
	}
	denominator, err := s.Token.FeeDenominator(ctx)
	if err != nil {
		return r, err
	}

	if maxFee.Cmp(new(big.Int).SetUint64(s.Policy.MaxFeeCeiling)) > 0 {
		r.advisory(GroupInputValidation, "MAX_FEE %s exceeds policy ceiling %d", maxFee, s.Policy.MaxFeeCeiling)
	}
	if denominator.Sign() == 0 {
		r.critical(GroupInputValidation, "FEE_DENOMINATOR is zero")
	}

	return r, nil
}

func checkGasUsage(_ context.Context, s Subject) (Result, error) {
	var r Result

	if s.Record.GasUsed == 0 {
		r.note("deployment gas usage not recorded")
		return r, nil
	}

	r.note("deployment used %d gas (limit %d)", s.Record.GasUsed, s.Record.GasLimit)
	if s.Record.GasUsed > s.Policy.DeployGasCeiling {
		r.advisory(GroupGasUsage, "deployment used %d gas, above %d", s.Record.GasUsed, s.Policy.DeployGasCeiling)
	}

	return r, nil
}

func containsAny(code []byte, markers [][]byte) bool {
	for _, marker := range markers {
		if bytes.Contains(code, marker) {
			return true
		}
	}
	return false
}
