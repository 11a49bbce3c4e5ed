package main

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/compose-network/token-manager/internal/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoot_RequiresKnownVerb(t *testing.T) {
	tests := []struct {
		name string
		args []string
		err  string
	}{
		{"missing", []string{}, "a command is required"},
		{"unknown", []string{"mint"}, `unknown command "mint"`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			rootCmd.SetOut(&out)
			rootCmd.SetErr(&out)
			rootCmd.SetArgs(tc.args)
			t.Cleanup(func() { rootCmd.SetArgs(nil) })

			err := rootCmd.Execute()
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.err)
			assert.Contains(t, out.String(), "Usage:")
		})
	}
}

func TestAmountFlag(t *testing.T) {
	liquidityCmd.ResetFlags()
	liquidityCmd.Flags().String("token-amount", defaultTokenAmount, "")
	liquidityCmd.Flags().String("native-amount", defaultNativeAmount, "")

	tokens, err := amountFlag(liquidityCmd, "token-amount")
	require.NoError(t, err)
	expected, _ := new(big.Int).SetString("100000000000000000000000", 10)
	assert.Equal(t, expected, tokens)

	native, err := amountFlag(liquidityCmd, "native-amount")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100_000_000_000_000_000), native)

	require.NoError(t, liquidityCmd.Flags().Set("native-amount", "-1"))
	_, err = amountFlag(liquidityCmd, "native-amount")
	assert.ErrorIs(t, err, failure.ErrConfiguration)
}
