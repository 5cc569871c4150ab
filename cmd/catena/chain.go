package main

import (
	"fmt"

	"github.com/cuemby/catena/pkg/api"
	"github.com/cuemby/catena/pkg/types"
	"github.com/spf13/cobra"
)

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Manage chains",
}

var chainCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a chain and its controller node",
	Long: `Create a chain on a cloud account. The command returns once the
controller node is allocated and provisioned.

  catena chain create net1 --cloud <cloud-id> --mining-account 0xabc \
    --cloud-config chain-cloud.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cloudID, _ := cmd.Flags().GetString("cloud")
		chainFile, _ := cmd.Flags().GetString("chain-config")
		cloudFile, _ := cmd.Flags().GetString("cloud-config")
		miningAccount, _ := cmd.Flags().GetString("mining-account")

		req := api.ChainRequest{CloudID: cloudID, Name: args[0]}
		var err error
		if req.ChainConfig, err = readJSONFile(chainFile); err != nil {
			return err
		}
		if req.CloudConfig, err = readJSONFile(cloudFile); err != nil {
			return err
		}
		if miningAccount != "" {
			req.ChainConfig["mining_account"] = miningAccount
		}

		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		fmt.Printf("Creating chain: %s\n", req.Name)
		chain, err := c.CreateChain(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("failed to create chain: %w", err)
		}
		fmt.Printf("✓ Chain created: %s (ID: %s, network_id: %v)\n", chain.Name, chain.ID, chain.ChainConfig["network_id"])
		return nil
	},
}

var chainListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chains",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		chains, err := c.ListChains(cmd.Context(), listOptions(cmd))
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(chains))
		for _, ch := range chains {
			rows = append(rows, chainRow(ch))
		}
		return printTable(cmd, chains, chainHeader, rows)
	},
}

var chainGetCmd = &cobra.Command{
	Use:   "get CHAIN_ID",
	Short: "Show a chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		chain, err := c.GetChain(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printTable(cmd, chain, chainHeader, [][]string{chainRow(chain)})
	},
}

var chainDeleteCmd = &cobra.Command{
	Use:   "delete CHAIN_ID",
	Short: "Delete a chain and all of its nodes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.DeleteChain(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to delete chain: %w", err)
		}
		fmt.Printf("✓ Chain deleted: %s\n", args[0])
		return nil
	},
}

var chainHeader = []string{"ID", "NAME", "BACKEND", "CLOUD", "NETWORK", "AGE"}

func chainRow(ch *types.ChainView) []string {
	return []string{ch.ID, ch.Name, ch.ChainBackend, ch.CloudID, configSummary(ch.ChainConfig, "network_id"), age(ch.CreatedAt)}
}

func init() {
	chainCreateCmd.Flags().String("cloud", "", "ID of the cloud to create the chain on")
	chainCreateCmd.Flags().String("chain-config", "", "JSON file with the chain settings")
	chainCreateCmd.Flags().String("cloud-config", "", "JSON file with the chain's cloud settings")
	chainCreateCmd.Flags().String("mining-account", "", "Account receiving mining rewards")
	_ = chainCreateCmd.MarkFlagRequired("cloud")
	addListFlags(chainListCmd)

	chainCmd.AddCommand(chainCreateCmd)
	chainCmd.AddCommand(chainListCmd)
	chainCmd.AddCommand(chainGetCmd)
	chainCmd.AddCommand(chainDeleteCmd)

	rootCmd.AddCommand(chainCmd)
}
