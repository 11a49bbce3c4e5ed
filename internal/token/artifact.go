// Package token describes the managed token contract: its compiled artifact,
// constructor, read-only getters and the router calls used for liquidity.
package token

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/compose-network/token-manager/internal/failure"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DefaultArtifactPath is where hardhat writes the compiled token.
const DefaultArtifactPath = "artifacts/contracts/TeamToken.sol/TeamToken.json"

type (
	// Artifact is a compiled contract: ABI plus creation bytecode.
	Artifact struct {
		ContractName string
		ABI          abi.ABI
		Bytecode     []byte
	}

	// ConstructorArgs are the deploy-time parameters of the token, in
	// constructor order.
	ConstructorArgs struct {
		UpstreamToken   common.Address
		Router          common.Address
		FeeWallet       common.Address
		LiquidityWallet common.Address
		PriceFeed       common.Address
		LogoURI         string
		MetadataURI     string
	}
)

// LoadArtifact reads a hardhat artifact file.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %w", failure.ErrInvalidArtifact, path, err)
	}

	return ParseArtifact(data)
}

// ParseArtifact parses hardhat artifact JSON.
func ParseArtifact(data []byte) (*Artifact, error) {
	var raw struct {
		ContractName string          `json:"contractName"`
		ABI          json.RawMessage `json:"abi"`
		Bytecode     string          `json:"bytecode"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: failed to parse artifact: %w", failure.ErrInvalidArtifact, err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(string(raw.ABI)))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse ABI for %s: %w", failure.ErrInvalidArtifact, raw.ContractName, err)
	}

	if !strings.HasPrefix(raw.Bytecode, "0x") {
		raw.Bytecode = "0x" + raw.Bytecode
	}
	bytecode, err := hexutil.Decode(raw.Bytecode)
	if err != nil || len(bytecode) == 0 {
		return nil, fmt.Errorf("%w: %s has no deployable bytecode", failure.ErrInvalidArtifact, raw.ContractName)
	}

	return &Artifact{
		ContractName: raw.ContractName,
		ABI:          parsedABI,
		Bytecode:     bytecode,
	}, nil
}

// DeployData returns creation bytecode followed by the packed constructor
// arguments.
func (a *Artifact) DeployData(args ConstructorArgs) ([]byte, error) {
	packed, err := a.ABI.Pack("",
		args.UpstreamToken,
		args.Router,
		args.FeeWallet,
		args.LiquidityWallet,
		args.PriceFeed,
		args.LogoURI,
		args.MetadataURI,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: constructor arguments do not match %s: %w", failure.ErrInvalidArtifact, a.ContractName, err)
	}

	data := make([]byte, 0, len(a.Bytecode)+len(packed))
	data = append(data, a.Bytecode...)
	return append(data, packed...), nil
}
