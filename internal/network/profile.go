package network

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type (
	// Profile describes one supported network. Profiles are built once at
	// startup and never mutated afterwards.
	Profile struct {
		ID             string
		Name           string
		ChainID        uint64
		RPCURL         string
		ExplorerURL    string
		Testnet        bool
		// DevNode marks a local node that signs for its unlocked accounts.
		DevNode        bool
		NativeCurrency NativeCurrency
		Addresses      ContractAddressSet
		Gas            GasPolicy
		Deploy         DeploySettings
	}

	NativeCurrency struct {
		Name     string
		Symbol   string
		Decimals int
	}

	// ContractAddressSet holds the fixed addresses of the contracts the token
	// depends on.
	ContractAddressSet struct {
		UpstreamToken common.Address
		Router        common.Address
		Factory       common.Address
		WrappedNative common.Address
		PriceFeed     common.Address
	}

	GasPolicy struct {
		Price *big.Int
		Limit uint64
	}

	DeploySettings struct {
		Confirmations uint64
		Timeout       time.Duration
	}
)

// AddressURL returns the block-explorer page for addr, or "" when the network
// has no explorer.
func (p Profile) AddressURL(addr common.Address) string {
	if p.ExplorerURL == "" {
		return ""
	}
	return strings.TrimSuffix(p.ExplorerURL, "/") + "/address/" + addr.Hex()
}

// TxURL returns the block-explorer page for a transaction hash.
func (p Profile) TxURL(hash common.Hash) string {
	if p.ExplorerURL == "" {
		return ""
	}
	return strings.TrimSuffix(p.ExplorerURL, "/") + "/tx/" + hash.Hex()
}
