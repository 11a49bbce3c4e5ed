package signer

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/compose-network/token-manager/internal/failure"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

// RemoteSigner signs through a JSON-RPC signer exposing eth_accounts and
// eth_signTransaction, authenticated with an X-API-Key header.
type RemoteSigner struct {
	client  *rpc.Client
	address common.Address
}

type txArgs struct {
	From     string  `json:"from"`
	To       *string `json:"to,omitempty"`
	Gas      string  `json:"gas"`
	GasPrice string  `json:"gasPrice"`
	Value    string  `json:"value"`
	Nonce    string  `json:"nonce"`
	Data     string  `json:"data,omitempty"`
	ChainID  string  `json:"chainId"`
}

// DialRemote connects to the signer at endpoint. When address is empty the
// first account reported by eth_accounts is used.
func DialRemote(ctx context.Context, endpoint, apiKey, address string) (*RemoteSigner, error) {
	var opts []rpc.ClientOption
	if apiKey != "" {
		opts = append(opts, rpc.WithHeader("X-API-Key", apiKey))
	}

	client, err := rpc.DialOptions(ctx, endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to dial signer %s: %w", failure.ErrSignerUnavailable, endpoint, err)
	}

	s := &RemoteSigner{client: client}

	if address != "" {
		if !common.IsHexAddress(address) {
			client.Close()
			return nil, fmt.Errorf("%w: invalid signer address %q", failure.ErrMissingCredential, address)
		}
		s.address = common.HexToAddress(address)
		return s, nil
	}

	var accounts []common.Address
	if err := client.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: eth_accounts: %w", failure.ErrSignerUnavailable, err)
	}
	if len(accounts) == 0 {
		client.Close()
		return nil, fmt.Errorf("%w: signer %s exposes no accounts", failure.ErrSignerUnavailable, endpoint)
	}
	s.address = accounts[0]

	return s, nil
}

func (s *RemoteSigner) Address() common.Address {
	return s.address
}

// SignTx asks the remote signer to sign a legacy transaction. The result may
// be the raw transaction hex or an object carrying it under "raw".
func (s *RemoteSigner) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	var result json.RawMessage
	if err := s.client.CallContext(ctx, &result, "eth_signTransaction", buildTxArgs(s.address, tx, chainID)); err != nil {
		return nil, fmt.Errorf("eth_signTransaction: %w", err)
	}

	raw, err := decodeSignResult(result)
	if err != nil {
		return nil, err
	}

	var signed types.Transaction
	if err := signed.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("unmarshal signed transaction: %w", err)
	}

	sender, err := types.Sender(types.LatestSignerForChainID(chainID), &signed)
	if err != nil {
		return nil, fmt.Errorf("recover signer of signed transaction: %w", err)
	}
	if sender != s.address {
		return nil, fmt.Errorf("remote signer signed as %s, expected %s", sender.Hex(), s.address.Hex())
	}

	return &signed, nil
}

func (s *RemoteSigner) Close() {
	s.client.Close()
}

func buildTxArgs(from common.Address, tx *types.Transaction, chainID *big.Int) txArgs {
	args := txArgs{
		From:     from.Hex(),
		Gas:      hexutil.EncodeUint64(tx.Gas()),
		GasPrice: hexutil.EncodeBig(tx.GasPrice()),
		Value:    hexutil.EncodeBig(tx.Value()),
		Nonce:    hexutil.EncodeUint64(tx.Nonce()),
		ChainID:  hexutil.EncodeBig(chainID),
	}

	// nil for contract creation
	if tx.To() != nil {
		to := tx.To().Hex()
		args.To = &to
	}
	if len(tx.Data()) > 0 {
		args.Data = hexutil.Encode(tx.Data())
	}

	return args
}

func decodeSignResult(result json.RawMessage) ([]byte, error) {
	var rawHex hexutil.Bytes
	if err := json.Unmarshal(result, &rawHex); err == nil {
		return rawHex, nil
	}

	var wrapped struct {
		Raw hexutil.Bytes `json:"raw"`
	}
	if err := json.Unmarshal(result, &wrapped); err != nil {
		return nil, fmt.Errorf("unmarshal sign result: %w", err)
	}
	if len(wrapped.Raw) == 0 {
		return nil, fmt.Errorf("sign result carries no raw transaction")
	}

	return wrapped.Raw, nil
}
