package configs

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var Values Config

type (
	Config struct {
		Network      string                     `mapstructure:"network"`
		StateDir     string                     `mapstructure:"state-dir"`
		ArtifactPath string                     `mapstructure:"artifact-path"`
		LogLevel     string                     `mapstructure:"log-level"`
		Credentials  Credentials                `mapstructure:"credentials"`
		Signer       Signer                     `mapstructure:"signer"`
		Wallets      Wallets                    `mapstructure:"wallets"`
		Metadata     Metadata                   `mapstructure:"metadata"`
		Networks     map[string]NetworkOverride `mapstructure:"networks"`
		Explorer     Explorer                   `mapstructure:"explorer"`
	}

	Credentials struct {
		PrivateKey     string `mapstructure:"private-key"`
		TestPrivateKey string `mapstructure:"test-private-key"`
	}

	// Signer configures a remote JSON-RPC signer, used when no local key is
	// set.
	Signer struct {
		Endpoint string `mapstructure:"endpoint"`
		APIKey   string `mapstructure:"api-key"`
		Address  string `mapstructure:"address"`
	}

	// Wallets override the fee and liquidity wallets passed to the
	// constructor. Empty means the operator address.
	Wallets struct {
		Fee       string `mapstructure:"fee"`
		Liquidity string `mapstructure:"liquidity"`
	}

	Metadata struct {
		LogoURI     string `mapstructure:"logo-uri"`
		MetadataURI string `mapstructure:"metadata-uri"`
	}

	NetworkOverride struct {
		RPCURL string `mapstructure:"rpc-url"`
	}

	// Explorer is carried for contract source verification tooling.
	Explorer struct {
		APIKey string `mapstructure:"api-key"`
	}
)

// RPCOverrides returns network id -> endpoint for every configured override.
func (c *Config) RPCOverrides() map[string]string {
	out := make(map[string]string, len(c.Networks))
	for id, n := range c.Networks {
		if n.RPCURL != "" {
			out[id] = n.RPCURL
		}
	}
	return out
}

func (c *Config) Validate() error {
	var errs []error

	if c.Network == "" {
		errs = append(errs, errors.New("network is required"))
	}
	if c.StateDir == "" {
		errs = append(errs, errors.New("state-dir is required"))
	}
	if c.ArtifactPath == "" {
		errs = append(errs, errors.New("artifact-path is required"))
	}

	if c.Wallets.Fee != "" && !common.IsHexAddress(c.Wallets.Fee) {
		errs = append(errs, fmt.Errorf("wallets.fee %q is not an address", c.Wallets.Fee))
	}
	if c.Wallets.Liquidity != "" && !common.IsHexAddress(c.Wallets.Liquidity) {
		errs = append(errs, fmt.Errorf("wallets.liquidity %q is not an address", c.Wallets.Liquidity))
	}
	if c.Signer.Address != "" && !common.IsHexAddress(c.Signer.Address) {
		errs = append(errs, fmt.Errorf("signer.address %q is not an address", c.Signer.Address))
	}
	if c.Signer.APIKey != "" && c.Signer.Endpoint == "" {
		errs = append(errs, errors.New("signer.endpoint is required when signer.api-key is set"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}
