package operator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/compose-network/token-manager/internal/chain"
	"github.com/compose-network/token-manager/internal/failure"
	"github.com/compose-network/token-manager/internal/network"
	"github.com/compose-network/token-manager/internal/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// LiquidityDeadline is how long the router accepts the liquidity call.
const LiquidityDeadline = 20 * time.Minute

type (
	// LiquidityResult describes both confirmed legs of AddLiquidity.
	LiquidityResult struct {
		Network      string
		Token        common.Address
		Router       common.Address
		TokenAmount  *big.Int
		NativeAmount *big.Int
		Deadline     time.Time
		ApproveTx    common.Hash
		LiquidityTx  common.Hash
	}

	// DanglingAllowanceError is returned when the allowance was granted but the
	// liquidity call failed. The router may still spend Amount of Token on
	// behalf of Owner until the allowance is reset.
	DanglingAllowanceError struct {
		Token     common.Address
		Owner     common.Address
		Spender   common.Address
		Amount    *big.Int
		ApproveTx common.Hash
		// Remaining is the allowance read back after the failure, nil when the
		// read failed.
		Remaining *big.Int
		Err       error
	}
)

func (e *DanglingAllowanceError) Error() string {
	remaining := "unknown"
	if e.Remaining != nil {
		remaining = e.Remaining.String()
	}
	return fmt.Sprintf("%v; router %s was approved for %s on token %s (approve tx %s, remaining allowance %s), reset it with approve(%s, 0)",
		e.Err, e.Spender.Hex(), e.Amount, e.Token.Hex(), e.ApproveTx.Hex(), remaining, e.Spender.Hex())
}

func (e *DanglingAllowanceError) Unwrap() error {
	return e.Err
}

// AddLiquidity approves the router for tokenAmount and then adds
// tokenAmount/nativeAmount of liquidity, paying nativeAmount as value. Each
// leg is confirmed before the next one is sent and neither is retried.
func (o *Operator) AddLiquidity(ctx context.Context, networkID string, tokenAmount, nativeAmount *big.Int) (*LiquidityResult, error) {
	if tokenAmount == nil || tokenAmount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: token amount must be positive", failure.ErrConfiguration)
	}
	if nativeAmount == nil || nativeAmount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: native amount must be positive", failure.ErrConfiguration)
	}

	profile, err := o.registry.Resolve(networkID)
	if err != nil {
		return nil, err
	}

	// Locking creates the record directory, so refuse undeployed networks first.
	if _, found, err := o.store.Load(profile.ID); err != nil {
		return nil, err
	} else if !found {
		return nil, notDeployed(profile.ID)
	}

	unlock, err := o.store.Lock(profile.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	t, err := o.open(ctx, profile.ID)
	if err != nil {
		return nil, err
	}
	defer t.client.Close()

	s, err := o.signers.ForNetwork(ctx, t.profile)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	transactor := chain.NewTransactor(t.client, s, new(big.Int).SetUint64(t.profile.ChainID), t.profile.Gas.Price, t.profile.Gas.Limit).
		WithPollInterval(o.pollInterval)

	tokenAddr := t.record.Contract()
	router := t.profile.Addresses.Router
	result := &LiquidityResult{
		Network:      t.profile.ID,
		Token:        tokenAddr,
		Router:       router,
		TokenAmount:  tokenAmount,
		NativeAmount: nativeAmount,
	}

	log := o.logger.
		With("network", t.profile.ID).
		With("token", tokenAddr.Hex()).
		With("router", router.Hex())

	approveData, err := token.EncodeApprove(router, tokenAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", failure.ErrAllowanceTxFailed, err)
	}

	log.With("amount", tokenAmount.String()).Info("approving router")
	approveTx, err := o.sendAndWait(ctx, transactor, t.profile, &tokenAddr, nil, approveData)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", failure.ErrAllowanceTxFailed, err)
	}
	result.ApproveTx = approveTx

	result.Deadline = o.now().Add(LiquidityDeadline)
	liquidityData, err := token.EncodeAddLiquidityETH(token.AddLiquidityArgs{
		Token:              tokenAddr,
		AmountTokenDesired: tokenAmount,
		AmountTokenMin:     tokenAmount,
		AmountETHMin:       nativeAmount,
		To:                 s.Address(),
		Deadline:           big.NewInt(result.Deadline.Unix()),
	})
	if err == nil {
		log.
			With("token_amount", tokenAmount.String()).
			With("native_amount", nativeAmount.String()).
			Info("adding liquidity")
		result.LiquidityTx, err = o.sendAndWait(ctx, transactor, t.profile, &router, nativeAmount, liquidityData)
	}
	if err != nil {
		dangling := &DanglingAllowanceError{
			Token:     tokenAddr,
			Owner:     s.Address(),
			Spender:   router,
			Amount:    tokenAmount,
			ApproveTx: approveTx,
			Err:       fmt.Errorf("%w: %w", failure.ErrLiquidityTxFailed, err),
		}
		remaining, allowanceErr := token.NewContract(t.client, tokenAddr).Allowance(ctx, s.Address(), router)
		if allowanceErr != nil {
			log.With("err", allowanceErr.Error()).Warn("failed to read remaining allowance")
		} else {
			dangling.Remaining = remaining
		}
		log.With("err", dangling.Error()).Error("liquidity leg failed after approval")
		return nil, dangling
	}

	log.With("tx_hash", result.LiquidityTx.Hex()).Info("liquidity added")

	return result, nil
}

func (o *Operator) sendAndWait(ctx context.Context, transactor *chain.Transactor, profile network.Profile, to *common.Address, value *big.Int, data []byte) (common.Hash, error) {
	tx, err := transactor.Send(ctx, to, value, data)
	if err != nil {
		return common.Hash{}, err
	}

	waitCtx := ctx
	if profile.Deploy.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, profile.Deploy.Timeout)
		defer cancel()
	}

	receipt, err := transactor.WaitConfirmed(waitCtx, tx.Hash(), profile.Deploy.Confirmations)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return tx.Hash(), fmt.Errorf("transaction %s not confirmed within %s", tx.Hash().Hex(), profile.Deploy.Timeout)
		}
		return tx.Hash(), err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return tx.Hash(), fmt.Errorf("transaction %s reverted", tx.Hash().Hex())
	}

	return tx.Hash(), nil
}
