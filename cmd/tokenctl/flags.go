package main

import (
	"github.com/spf13/viper"
)

type (
	flagType interface {
		string | bool
	}

	// flagDef is a persistent flag bound to a viper key.
	flagDef[T flagType] struct {
		name         string
		viperKey     string
		defaultValue T
		description  string
	}

	envDef struct {
		viperKey string
		names    []string
	}
)

var (
	stringFlags = []flagDef[string]{
		{"network", "network", "", "Target network id (default from TOKEN_NETWORK, HARDHAT_NETWORK or bscTestnet)"},
		{"state-dir", "state-dir", "", "Directory containing deployments/<network>/deploy-info.json"},
		{"artifact", "artifact-path", "", "Path to the compiled token artifact JSON"},
		{"log-level", "log-level", "", "Log level (debug, info, warn, error)"},
		{"signer-endpoint", "signer.endpoint", "", "Remote JSON-RPC signer URL, used when no private key is set"},
		{"signer-address", "signer.address", "", "Address the remote signer signs for"},
		{"fee-wallet", "wallets.fee", "", "Fee wallet passed to the constructor (default: operator)"},
		{"liquidity-wallet", "wallets.liquidity", "", "Liquidity wallet passed to the constructor (default: operator)"},
		{"logo-uri", "metadata.logo-uri", "", "Token logo URI"},
		{"metadata-uri", "metadata.metadata-uri", "", "Token metadata URI"},
	}

	// Secrets are only read from the environment or the config file.
	envBindings = []envDef{
		{"network", []string{"TOKEN_NETWORK", "HARDHAT_NETWORK"}},
		{"credentials.private-key", []string{"PRIVATE_KEY"}},
		{"credentials.test-private-key", []string{"TEST_PRIVATE_KEY"}},
		{"signer.endpoint", []string{"SIGNER_ENDPOINT"}},
		{"signer.api-key", []string{"SIGNER_API_KEY"}},
		{"wallets.fee", []string{"MOTHER_WALLET"}},
		{"wallets.liquidity", []string{"LIQUIDITY_WALLET"}},
		{"networks.bscmainnet.rpc-url", []string{"BSC_RPC_URL"}},
		{"networks.bsctestnet.rpc-url", []string{"BSC_TESTNET_RPC_URL"}},
		{"explorer.api-key", []string{"BSCSCAN_API_KEY"}},
	}
)

func init() {
	if err := declareFlags(stringFlags); err != nil {
		panic(err)
	}
}

// declareFlags declares persistent flags and binds them to viper configuration keys.
func declareFlags[T flagType](flags []flagDef[T]) error {
	for _, flag := range flags {
		if err := declareFlag(flag.name, flag.viperKey, flag.defaultValue, flag.description); err != nil {
			return err
		}
	}
	return nil
}

// declareFlag declares a single persistent flag. Only flags set on the
// command line override config and environment values.
func declareFlag[T flagType](flagName, viperKey string, defaultValue T, description string) error {
	var zero T
	switch any(zero).(type) {
	case string:
		rootCmd.PersistentFlags().String(flagName, any(defaultValue).(string), description)
	case bool:
		rootCmd.PersistentFlags().Bool(flagName, any(defaultValue).(bool), description)
	}
	return viper.BindPFlag(viperKey, rootCmd.PersistentFlags().Lookup(flagName))
}

func bindEnv() error {
	for _, env := range envBindings {
		args := append([]string{env.viperKey}, env.names...)
		if err := viper.BindEnv(args...); err != nil {
			return err
		}
	}
	return nil
}
