package main

import (
	"fmt"
	"log/slog"
	"math/big"
	"strconv"

	"github.com/compose-network/token-manager/configs"
	"github.com/compose-network/token-manager/internal/audit"
	"github.com/compose-network/token-manager/internal/deployment"
	"github.com/compose-network/token-manager/internal/failure"
	"github.com/compose-network/token-manager/internal/token"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

const (
	defaultTokenAmount  = "100000"
	defaultNativeAmount = "0.1"
)

var (
	deployCmd = &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the token and record its address",
		Args:  cobra.NoArgs,
		RunE:  runDeploy,
	}

	verifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Read back and cross-check the deployed token configuration",
		Args:  cobra.NoArgs,
		RunE:  runVerify,
	}

	liquidityCmd = &cobra.Command{
		Use:   "liquidity",
		Short: "Approve the router and add initial token/native liquidity",
		Args:  cobra.NoArgs,
		RunE:  runLiquidity,
	}

	auditCmd = &cobra.Command{
		Use:   "audit",
		Short: "Run the read-only security audit against the deployed token",
		Args:  cobra.NoArgs,
		RunE:  runAudit,
	}

	networksCmd = &cobra.Command{
		Use:   "networks",
		Short: "List supported networks",
		Args:  cobra.NoArgs,
		RunE:  runNetworks,
	}
)

func init() {
	deployCmd.Flags().Bool("force", false, "Redeploy even if a deployment record exists")

	liquidityCmd.Flags().String("token-amount", defaultTokenAmount, "Token amount, in whole tokens")
	liquidityCmd.Flags().String("native-amount", defaultNativeAmount, "Native currency amount, in whole units")

	auditCmd.Flags().String("format", audit.FormatTable, "Report format (table, json, yaml)")
	auditCmd.Flags().String("metrics-file", "", "Write a Prometheus textfile with the audit outcome")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	a, err := newApp(configs.Values)
	if err != nil {
		return err
	}

	slog.With("network", configs.Values.Network).With("force", force).Info("deploying token")

	rec, err := a.orchestrator.Deploy(cmd.Context(), configs.Values.Network, deployment.DeployOptions{Force: force})
	if err != nil {
		return fmt.Errorf("deployment failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Token deployed on %s\n", rec.Network)
	fmt.Fprintf(out, "Address:  %s\n", rec.ContractAddress)
	fmt.Fprintf(out, "Deployer: %s\n", rec.Deployer)
	fmt.Fprintf(out, "Tx:       %s (block %d, gas %d)\n", rec.TransactionHash, rec.BlockNumber, rec.GasUsed)
	if rec.Explorer != "" {
		fmt.Fprintf(out, "Explorer: %s\n", rec.Explorer)
	}
	fmt.Fprintf(out, "Record:   %s\n", a.store.Path(rec.Network))

	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	a, err := newApp(configs.Values)
	if err != nil {
		return err
	}

	result, err := a.operator.Verify(cmd.Context(), configs.Values.Network)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Token on %s: %s\n", result.Network, result.Contract.Hex())
	if result.Explorer != "" {
		fmt.Fprintf(out, "Explorer: %s\n", result.Explorer)
	}

	table := tablewriter.NewWriter(out)
	table.Header("Setting", "Value")
	rows := [][]string{
		{"Upstream token", result.UpstreamToken.Hex()},
		{"Router", result.Router.Hex()},
		{"Fee wallet", result.FeeWallet.Hex()},
		{"Liquidity wallet", result.LiquidityWallet.Hex()},
		{"Transfer fee", result.TransferFee.String()},
		{"Liquidity fee", result.LiquidityFee.String() + "%"},
		{"Owner", result.Owner.Hex()},
	}
	if err := table.Bulk(rows); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	for _, advisory := range result.Advisories {
		fmt.Fprintf(out, "advisory: %s\n", advisory)
	}

	return nil
}

func runLiquidity(cmd *cobra.Command, args []string) error {
	tokenAmount, err := amountFlag(cmd, "token-amount")
	if err != nil {
		return err
	}
	nativeAmount, err := amountFlag(cmd, "native-amount")
	if err != nil {
		return err
	}

	a, err := newApp(configs.Values)
	if err != nil {
		return err
	}

	result, err := a.operator.AddLiquidity(cmd.Context(), configs.Values.Network, tokenAmount, nativeAmount)
	if err != nil {
		return fmt.Errorf("adding liquidity failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Liquidity added on %s\n", result.Network)
	fmt.Fprintf(out, "Token:    %s\n", result.Token.Hex())
	fmt.Fprintf(out, "Router:   %s\n", result.Router.Hex())
	fmt.Fprintf(out, "Amounts:  %s tokens, %s native\n", token.FormatUnits(result.TokenAmount, token.Decimals), token.FormatUnits(result.NativeAmount, token.Decimals))
	fmt.Fprintf(out, "Approve:  %s\n", result.ApproveTx.Hex())
	fmt.Fprintf(out, "Add:      %s\n", result.LiquidityTx.Hex())

	return nil
}

func runAudit(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	metricsFile, err := cmd.Flags().GetString("metrics-file")
	if err != nil {
		return err
	}

	a, err := newApp(configs.Values)
	if err != nil {
		return err
	}

	report, err := a.auditor.Audit(cmd.Context(), configs.Values.Network)
	if err != nil {
		return fmt.Errorf("audit failed: %w", err)
	}

	if err := report.Render(cmd.OutOrStdout(), format); err != nil {
		return err
	}

	if metricsFile != "" {
		if err := audit.WriteMetrics(metricsFile, report); err != nil {
			return err
		}
		slog.With("path", metricsFile).Info("audit metrics written")
	}

	return nil
}

func runNetworks(cmd *cobra.Command, args []string) error {
	a, err := newApp(configs.Values)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("Network", "Name", "Chain ID", "Testnet", "Deployed")

	for _, id := range a.registry.List() {
		profile, err := a.registry.Resolve(id)
		if err != nil {
			return err
		}

		deployed := "-"
		rec, found, err := a.store.Load(id)
		switch {
		case err != nil:
			deployed = "corrupt record"
		case found:
			deployed = rec.ContractAddress
		}

		row := []string{id, profile.Name, strconv.FormatUint(profile.ChainID, 10), strconv.FormatBool(profile.Testnet), deployed}
		if err := table.Append(row); err != nil {
			return err
		}
	}

	return table.Render()
}

func amountFlag(cmd *cobra.Command, name string) (*big.Int, error) {
	value, err := cmd.Flags().GetString(name)
	if err != nil {
		return nil, err
	}
	amount, err := token.ParseUnits(value, token.Decimals)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid --%s: %w", failure.ErrConfiguration, name, err)
	}
	return amount, nil
}
