package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/compose-network/token-manager/internal/failure"
	"github.com/compose-network/token-manager/internal/logger"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// DefaultPollInterval is how often WaitConfirmed polls for the receipt and
// chain head.
const DefaultPollInterval = 2 * time.Second

type (
	// TxSigner signs transactions on behalf of a fixed address.
	TxSigner interface {
		Address() common.Address
		SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
	}

	// Transactor builds, signs and submits legacy transactions for one signer
	// on one chain, one at a time.
	Transactor struct {
		client       Client
		signer       TxSigner
		chainID      *big.Int
		gasPrice     *big.Int
		gasLimit     uint64
		pollInterval time.Duration
		logger       *slog.Logger
	}
)

// NewTransactor creates a transactor. A nil gasPrice means "ask the node".
func NewTransactor(client Client, signer TxSigner, chainID, gasPrice *big.Int, gasLimit uint64) *Transactor {
	return &Transactor{
		client:       client,
		signer:       signer,
		chainID:      chainID,
		gasPrice:     gasPrice,
		gasLimit:     gasLimit,
		pollInterval: DefaultPollInterval,
		logger:       logger.Named("transactor"),
	}
}

// WithPollInterval overrides DefaultPollInterval.
func (t *Transactor) WithPollInterval(interval time.Duration) *Transactor {
	if interval > 0 {
		t.pollInterval = interval
	}
	return t
}

// From returns the sending address.
func (t *Transactor) From() common.Address {
	return t.signer.Address()
}

// GasLimit returns the gas limit applied to every transaction.
func (t *Transactor) GasLimit() uint64 {
	return t.gasLimit
}

// Send submits a transaction. A nil to creates a contract. Before signing it
// checks that the sender can cover gasLimit*gasPrice+value; failures of that
// check, and node rejections for lack of funds, wrap
// failure.ErrInsufficientFunds.
func (t *Transactor) Send(ctx context.Context, to *common.Address, value *big.Int, data []byte) (*types.Transaction, error) {
	from := t.signer.Address()
	if value == nil {
		value = new(big.Int)
	}

	gasPrice := t.gasPrice
	if gasPrice == nil {
		suggested, err := t.client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get gas price: %w", err)
		}
		gasPrice = suggested
	}

	if err := t.ensureFunds(ctx, from, gasPrice, value); err != nil {
		return nil, err
	}

	nonce, err := t.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce for %s: %w", from.Hex(), err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      t.gasLimit,
		To:       to,
		Value:    value,
		Data:     data,
	})

	signed, err := t.signer.SignTx(ctx, tx, t.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := t.client.SendTransaction(ctx, signed); err != nil {
		if isInsufficientFunds(err) {
			return nil, fmt.Errorf("%w: %w", failure.ErrInsufficientFunds, err)
		}
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	t.logger.
		With("tx_hash", signed.Hash().Hex()).
		With("nonce", nonce).
		With("from", from.Hex()).
		Info("transaction sent")

	return signed, nil
}

// WaitConfirmed blocks until hash is mined and the chain head is at least
// confirmations-1 blocks past it, or ctx is done. A reverted receipt is
// returned as is; the caller decides what a revert means.
func (t *Transactor) WaitConfirmed(ctx context.Context, hash common.Hash, confirmations uint64) (*types.Receipt, error) {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := t.client.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			head, err := t.client.BlockNumber(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				return nil, fmt.Errorf("failed to get block number: %w", err)
			}
			if Confirmed(receipt, head, confirmations) {
				return receipt, nil
			}
		case errors.Is(err, ethereum.NotFound):
		default:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to get receipt for %s: %w", hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Confirmed reports whether a receipt has the required depth at head. The
// block containing the transaction counts as the first confirmation.
func Confirmed(receipt *types.Receipt, head, confirmations uint64) bool {
	if confirmations <= 1 || receipt.BlockNumber == nil {
		return true
	}
	return head+1 >= receipt.BlockNumber.Uint64()+confirmations
}

func (t *Transactor) ensureFunds(ctx context.Context, from common.Address, gasPrice, value *big.Int) error {
	balance, err := t.client.BalanceAt(ctx, from, nil)
	if err != nil {
		return fmt.Errorf("failed to get balance of %s: %w", from.Hex(), err)
	}

	cost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(t.gasLimit))
	cost.Add(cost, value)

	if balance.Cmp(cost) < 0 {
		return fmt.Errorf("%w: %s holds %s wei, needs up to %s wei", failure.ErrInsufficientFunds, from.Hex(), balance, cost)
	}
	return nil
}

func isInsufficientFunds(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "insufficient funds")
}
