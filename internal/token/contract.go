package token

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"
)

// Getter and router signatures.
const (
	SigOwner               = "owner()"
	SigTransferFee         = "transferFee()"
	SigLiquidityFee        = "liquidityFee()"
	SigMaxFee              = "MAX_FEE()"
	SigFeeDenominator      = "FEE_DENOMINATOR()"
	SigFeeWallet           = "motherWallet()"
	SigLiquidityWallet     = "liquidityWallet()"
	SigMinTokensBeforeSwap = "minTokensBeforeSwap()"
	SigPair                = "uniswapPair()"
	SigPaused              = "paused()"
	SigUpstreamToken       = "ORIGINAL_TOKEN()"
	SigRouter              = "uniswapRouter()"
	SigAllowance           = "allowance(address,address)"
	SigApprove             = "approve(address,uint256)"
	SigAddLiquidityETH     = "addLiquidityETH(address,uint256,uint256,uint256,address,uint256)"
)

var (
	funcOwner               = w3.MustNewFunc(SigOwner, "address")
	funcTransferFee         = w3.MustNewFunc(SigTransferFee, "uint256")
	funcLiquidityFee        = w3.MustNewFunc(SigLiquidityFee, "uint256")
	funcMaxFee              = w3.MustNewFunc(SigMaxFee, "uint256")
	funcFeeDenominator      = w3.MustNewFunc(SigFeeDenominator, "uint256")
	funcFeeWallet           = w3.MustNewFunc(SigFeeWallet, "address")
	funcLiquidityWallet     = w3.MustNewFunc(SigLiquidityWallet, "address")
	funcMinTokensBeforeSwap = w3.MustNewFunc(SigMinTokensBeforeSwap, "uint256")
	funcPair                = w3.MustNewFunc(SigPair, "address")
	funcPaused              = w3.MustNewFunc(SigPaused, "bool")
	funcUpstreamToken       = w3.MustNewFunc(SigUpstreamToken, "address")
	funcRouter              = w3.MustNewFunc(SigRouter, "address")
	funcAllowance           = w3.MustNewFunc(SigAllowance, "uint256")
	funcApprove             = w3.MustNewFunc(SigApprove, "bool")
	funcAddLiquidityETH     = w3.MustNewFunc(SigAddLiquidityETH, "uint256,uint256,uint256")
)

type (
	// Caller is the read side of a node connection.
	Caller interface {
		CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
		CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	}

	// Contract reads the state of a deployed token.
	Contract struct {
		caller  Caller
		address common.Address
	}
)

func NewContract(caller Caller, address common.Address) *Contract {
	return &Contract{caller: caller, address: address}
}

func (c *Contract) Address() common.Address {
	return c.address
}

// Code returns the runtime bytecode at the token address.
func (c *Contract) Code(ctx context.Context) ([]byte, error) {
	code, err := c.caller.CodeAt(ctx, c.address, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get code at %s: %w", c.address.Hex(), err)
	}
	return code, nil
}

func (c *Contract) Owner(ctx context.Context) (common.Address, error) {
	return c.callAddress(ctx, funcOwner, SigOwner)
}

func (c *Contract) TransferFee(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, funcTransferFee, SigTransferFee)
}

func (c *Contract) LiquidityFee(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, funcLiquidityFee, SigLiquidityFee)
}

func (c *Contract) MaxFee(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, funcMaxFee, SigMaxFee)
}

func (c *Contract) FeeDenominator(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, funcFeeDenominator, SigFeeDenominator)
}

// FeeWallet is the contract's motherWallet.
func (c *Contract) FeeWallet(ctx context.Context) (common.Address, error) {
	return c.callAddress(ctx, funcFeeWallet, SigFeeWallet)
}

func (c *Contract) LiquidityWallet(ctx context.Context) (common.Address, error) {
	return c.callAddress(ctx, funcLiquidityWallet, SigLiquidityWallet)
}

func (c *Contract) MinTokensBeforeSwap(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, funcMinTokensBeforeSwap, SigMinTokensBeforeSwap)
}

// Pair is the AMM trading pair created for the token, zero until created.
func (c *Contract) Pair(ctx context.Context) (common.Address, error) {
	return c.callAddress(ctx, funcPair, SigPair)
}

func (c *Contract) Paused(ctx context.Context) (bool, error) {
	output, err := c.call(ctx, funcPaused, SigPaused)
	if err != nil {
		return false, err
	}

	var paused bool
	if err := funcPaused.DecodeReturns(output, &paused); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", SigPaused, err)
	}
	return paused, nil
}

// UpstreamToken is the asset the token wraps (ORIGINAL_TOKEN).
func (c *Contract) UpstreamToken(ctx context.Context) (common.Address, error) {
	return c.callAddress(ctx, funcUpstreamToken, SigUpstreamToken)
}

func (c *Contract) Router(ctx context.Context) (common.Address, error) {
	return c.callAddress(ctx, funcRouter, SigRouter)
}

func (c *Contract) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	output, err := c.call(ctx, funcAllowance, SigAllowance, owner, spender)
	if err != nil {
		return nil, err
	}

	allowance := new(big.Int)
	if err := funcAllowance.DecodeReturns(output, allowance); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", SigAllowance, err)
	}
	return allowance, nil
}

func (c *Contract) call(ctx context.Context, fn *w3.Func, sig string, args ...any) ([]byte, error) {
	input, err := fn.EncodeArgs(args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", sig, err)
	}

	output, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", sig, c.address.Hex(), err)
	}
	return output, nil
}

func (c *Contract) callAddress(ctx context.Context, fn *w3.Func, sig string) (common.Address, error) {
	output, err := c.call(ctx, fn, sig)
	if err != nil {
		return common.Address{}, err
	}

	var addr common.Address
	if err := fn.DecodeReturns(output, &addr); err != nil {
		return common.Address{}, fmt.Errorf("failed to decode %s: %w", sig, err)
	}
	return addr, nil
}

func (c *Contract) callUint(ctx context.Context, fn *w3.Func, sig string) (*big.Int, error) {
	output, err := c.call(ctx, fn, sig)
	if err != nil {
		return nil, err
	}

	value := new(big.Int)
	if err := fn.DecodeReturns(output, value); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", sig, err)
	}
	return value, nil
}

// EncodeApprove builds approve(spender, amount) calldata.
func EncodeApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return funcApprove.EncodeArgs(spender, amount)
}

// AddLiquidityArgs are the parameters of the router's addLiquidityETH.
type AddLiquidityArgs struct {
	Token              common.Address
	AmountTokenDesired *big.Int
	AmountTokenMin     *big.Int
	AmountETHMin       *big.Int
	To                 common.Address
	Deadline           *big.Int
}

// EncodeAddLiquidityETH builds the router call providing token/native
// liquidity.
func EncodeAddLiquidityETH(args AddLiquidityArgs) ([]byte, error) {
	return funcAddLiquidityETH.EncodeArgs(
		args.Token,
		args.AmountTokenDesired,
		args.AmountTokenMin,
		args.AmountETHMin,
		args.To,
		args.Deadline,
	)
}
