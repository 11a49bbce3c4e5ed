// Package tokentest programs a chaintest.Backend to behave like a deployed
// token contract.
package tokentest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/compose-network/token-manager/internal/chain/chaintest"
	"github.com/compose-network/token-manager/internal/token"
	"github.com/ethereum/go-ethereum/common"
)

// SecureRuntime carries both the reentrancy guard and the swap-lock markers.
var SecureRuntime = []byte("\x60\x80\x60\x40ReentrancyGuard: reentrant call\x00lockTheSwap\x00")

// State is the observable state of a token instance.
type State struct {
	Owner           common.Address
	UpstreamToken   common.Address
	Router          common.Address
	FeeWallet       common.Address
	LiquidityWallet common.Address
	Pair            common.Address

	TransferFee         uint64
	LiquidityFee        uint64
	MaxFee              uint64
	FeeDenominator      uint64
	MinTokensBeforeSwap uint64
	Paused              bool

	Code []byte
}

// Fresh is the state right after construction with args by owner: fees at
// their constructor defaults, no pair and no swap threshold.
func Fresh(args token.ConstructorArgs, owner common.Address) State {
	return State{
		Owner:           owner,
		UpstreamToken:   args.UpstreamToken,
		Router:          args.Router,
		FeeWallet:       args.FeeWallet,
		LiquidityWallet: args.LiquidityWallet,
		TransferFee:     50,
		LiquidityFee:    2,
		MaxFee:          1000,
		FeeDenominator:  10000,
		Code:            SecureRuntime,
	}
}

// Install programs backend so that addr answers every token getter from s.
func Install(backend *chaintest.Backend, addr common.Address, s State) {
	backend.SetCode(addr, s.Code)

	backend.SetCall(addr, token.SigOwner, chaintest.EncodeAddress(s.Owner))
	backend.SetCall(addr, token.SigUpstreamToken, chaintest.EncodeAddress(s.UpstreamToken))
	backend.SetCall(addr, token.SigRouter, chaintest.EncodeAddress(s.Router))
	backend.SetCall(addr, token.SigFeeWallet, chaintest.EncodeAddress(s.FeeWallet))
	backend.SetCall(addr, token.SigLiquidityWallet, chaintest.EncodeAddress(s.LiquidityWallet))
	backend.SetCall(addr, token.SigPair, chaintest.EncodeAddress(s.Pair))

	backend.SetCall(addr, token.SigTransferFee, chaintest.EncodeUint(s.TransferFee))
	backend.SetCall(addr, token.SigLiquidityFee, chaintest.EncodeUint(s.LiquidityFee))
	backend.SetCall(addr, token.SigMaxFee, chaintest.EncodeUint(s.MaxFee))
	backend.SetCall(addr, token.SigFeeDenominator, chaintest.EncodeUint(s.FeeDenominator))
	backend.SetCall(addr, token.SigMinTokensBeforeSwap, chaintest.EncodeUint(s.MinTokensBeforeSwap))
	backend.SetCall(addr, token.SigPaused, chaintest.EncodeBool(s.Paused))
	backend.SetCall(addr, token.SigAllowance, chaintest.EncodeUint(0))
}

// ArtifactJSON is a minimal hardhat artifact for the token: the constructor
// ABI and a placeholder creation bytecode.
const ArtifactJSON = `{
  "_format": "hh-sol-artifact-1",
  "contractName": "TeamToken",
  "sourceName": "contracts/TeamToken.sol",
  "abi": [
    {
      "type": "constructor",
      "stateMutability": "nonpayable",
      "inputs": [
        {"name": "_originalToken", "type": "address", "internalType": "address"},
        {"name": "_uniswapRouter", "type": "address", "internalType": "address"},
        {"name": "_motherWallet", "type": "address", "internalType": "address"},
        {"name": "_liquidityWallet", "type": "address", "internalType": "address"},
        {"name": "_priceFeed", "type": "address", "internalType": "address"},
        {"name": "_logoURI", "type": "string", "internalType": "string"},
        {"name": "_metadataURI", "type": "string", "internalType": "string"}
      ]
    },
    {
      "type": "function",
      "name": "owner",
      "stateMutability": "view",
      "inputs": [],
      "outputs": [{"name": "", "type": "address", "internalType": "address"}]
    }
  ],
  "bytecode": "0x6080604052348015600f57600080fd5b50",
  "deployedBytecode": "0x6080604052"
}`

// WriteArtifact writes ArtifactJSON under dir and returns its path.
func WriteArtifact(t testing.TB, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "TeamToken.json")
	if err := os.WriteFile(path, []byte(ArtifactJSON), 0644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}
