// Package chaintest provides an in-memory chain.Client for tests.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

type (
	// Backend is a single-account-agnostic fake node. Every accepted
	// transaction is mined immediately into its own block; each BlockNumber
	// call advances the head by one so confirmation waits make progress.
	Backend struct {
		mu sync.Mutex

		chainID  *big.Int
		head     uint64
		gasPrice *big.Int

		balances map[common.Address]*big.Int
		nonces   map[common.Address]uint64
		code     map[common.Address][]byte
		calls    map[common.Address]map[[4]byte]callResult
		receipts map[common.Hash]*types.Receipt

		sent   []*types.Transaction
		closed int

		// DeployCode is installed at the created address of every contract
		// creation transaction. Empty means creations leave no code.
		DeployCode []byte
		// OnDeploy runs after a creation transaction is mined.
		OnDeploy func(addr common.Address, tx *types.Transaction)
		// Revert marks matching transactions as failed in their receipt.
		Revert func(tx *types.Transaction) bool
		// SendErr rejects matching transactions before they are mined.
		SendErr func(tx *types.Transaction) error
		// StallReceipts keeps every receipt pending forever.
		StallReceipts bool
		// GasUsed is written to every receipt.
		GasUsed uint64
		// ChainIDErr, when set, is returned by ChainID.
		ChainIDErr error
	}

	callResult struct {
		ret []byte
		err error
	}
)

// NewBackend creates a fake node for chainID.
func NewBackend(chainID uint64) *Backend {
	return &Backend{
		chainID:  new(big.Int).SetUint64(chainID),
		head:     100,
		gasPrice: big.NewInt(1_000_000_000),
		balances: make(map[common.Address]*big.Int),
		nonces:   make(map[common.Address]uint64),
		code:     make(map[common.Address][]byte),
		calls:    make(map[common.Address]map[[4]byte]callResult),
		receipts: make(map[common.Hash]*types.Receipt),
		GasUsed:  21_000,
	}
}

// Selector returns the 4-byte function selector of a signature such as
// "owner()".
func Selector(sig string) [4]byte {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte(sig))[:4])
	return sel
}

// Fund sets the balance of addr.
func (b *Backend) Fund(addr common.Address, wei *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[addr] = new(big.Int).Set(wei)
}

// SetCode installs runtime code at addr.
func (b *Backend) SetCode(addr common.Address, code []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.code[addr] = code
}

// SetCall programs the return data of sig on contract addr.
func (b *Backend) SetCall(addr common.Address, sig string, ret []byte) {
	b.setCall(addr, sig, callResult{ret: ret})
}

// SetCallError makes sig on contract addr fail with err.
func (b *Backend) SetCallError(addr common.Address, sig string, err error) {
	b.setCall(addr, sig, callResult{err: err})
}

func (b *Backend) setCall(addr common.Address, sig string, res callResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.calls[addr] == nil {
		b.calls[addr] = make(map[[4]byte]callResult)
	}
	b.calls[addr][Selector(sig)] = res
}

// Sent returns the accepted transactions in submission order.
func (b *Backend) Sent() []*types.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*types.Transaction(nil), b.sent...)
}

// Closed reports how many times Close was called.
func (b *Backend) Closed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Backend) ChainID(context.Context) (*big.Int, error) {
	if b.ChainIDErr != nil {
		return nil, b.ChainIDErr
	}
	return new(big.Int).Set(b.chainID), nil
}

func (b *Backend) BlockNumber(context.Context) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head++
	return b.head, nil
}

func (b *Backend) CodeAt(_ context.Context, account common.Address, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.code[account], nil
}

func (b *Backend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if msg.To == nil || len(msg.Data) < 4 {
		return nil, errors.New("chaintest: malformed call")
	}
	if len(b.code[*msg.To]) == 0 {
		return nil, nil
	}

	var sel [4]byte
	copy(sel[:], msg.Data[:4])
	res, ok := b.calls[*msg.To][sel]
	if !ok {
		return nil, fmt.Errorf("execution reverted: no handler for 0x%x on %s", sel, msg.To.Hex())
	}
	return res.ret, res.err
}

func (b *Backend) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bal, ok := b.balances[account]; ok {
		return new(big.Int).Set(bal), nil
	}
	return new(big.Int), nil
}

func (b *Backend) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonces[account], nil
}

func (b *Backend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.gasPrice), nil
}

func (b *Backend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	from, err := types.Sender(types.LatestSignerForChainID(b.chainID), tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if b.SendErr != nil {
		if err := b.SendErr(tx); err != nil {
			return err
		}
	}

	b.mu.Lock()
	if want := b.nonces[from]; tx.Nonce() != want {
		b.mu.Unlock()
		return fmt.Errorf("nonce too low: have %d, want %d", tx.Nonce(), want)
	}
	b.nonces[from]++
	b.head++
	b.sent = append(b.sent, tx)

	receipt := &types.Receipt{
		Type:        tx.Type(),
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		GasUsed:     b.GasUsed,
		BlockNumber: new(big.Int).SetUint64(b.head),
	}
	if b.Revert != nil && b.Revert(tx) {
		receipt.Status = types.ReceiptStatusFailed
	}

	var created *common.Address
	if tx.To() == nil && receipt.Status == types.ReceiptStatusSuccessful {
		addr := crypto.CreateAddress(from, tx.Nonce())
		receipt.ContractAddress = addr
		if len(b.DeployCode) > 0 {
			b.code[addr] = b.DeployCode
		}
		created = &addr
	}
	b.receipts[tx.Hash()] = receipt
	onDeploy := b.OnDeploy
	b.mu.Unlock()

	if created != nil && onDeploy != nil {
		onDeploy(*created, tx)
	}
	return nil
}

func (b *Backend) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.StallReceipts {
		return nil, ethereum.NotFound
	}
	receipt, ok := b.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
}

// EncodeAddress ABI-encodes a single address return value.
func EncodeAddress(addr common.Address) []byte {
	return common.LeftPadBytes(addr.Bytes(), 32)
}

// EncodeUint ABI-encodes a single uint256 return value.
func EncodeUint(v uint64) []byte {
	return math.U256Bytes(new(big.Int).SetUint64(v))
}

// EncodeBig ABI-encodes a single uint256 return value.
func EncodeBig(v *big.Int) []byte {
	return math.U256Bytes(new(big.Int).Set(v))
}

// EncodeBool ABI-encodes a single bool return value.
func EncodeBool(v bool) []byte {
	if v {
		return EncodeUint(1)
	}
	return EncodeUint(0)
}
