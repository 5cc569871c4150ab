package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cuemby/catena/pkg/api"
	"github.com/cuemby/catena/pkg/client"
	"github.com/cuemby/catena/pkg/types"
	"github.com/spf13/cobra"
)

var cloudCmd = &cobra.Command{
	Use:   "cloud",
	Short: "Manage cloud accounts",
}

var cloudCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Register a cloud account",
	Long: `Register a cloud account.

Authentication and provider settings are read from JSON files:

  catena cloud create lab --type openstack --auth auth.json --config cloud.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cloudType, _ := cmd.Flags().GetString("type")
		authFile, _ := cmd.Flags().GetString("auth")
		configFile, _ := cmd.Flags().GetString("config-file")

		req := api.CloudRequest{Type: cloudType, Name: args[0]}
		var err error
		if req.Authentication, err = readJSONFile(authFile); err != nil {
			return err
		}
		if req.Config, err = readJSONFile(configFile); err != nil {
			return err
		}

		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		cloud, err := c.CreateCloud(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("failed to create cloud: %w", err)
		}
		fmt.Printf("✓ Cloud created: %s (ID: %s)\n", cloud.Name, cloud.ID)
		return nil
	},
}

var cloudListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cloud accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		clouds, err := c.ListClouds(cmd.Context(), listOptions(cmd))
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(clouds))
		for _, cl := range clouds {
			rows = append(rows, []string{cl.ID, cl.Name, configSummary(cl.CloudConfig, "auth_url", "region", "location"), age(cl.CreatedAt)})
		}
		return printTable(cmd, clouds, []string{"ID", "NAME", "CONFIG", "AGE"}, rows)
	},
}

var cloudTypesCmd = &cobra.Command{
	Use:   "types",
	Short: "List supported cloud providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		cloudTypes, err := c.CloudTypes(cmd.Context())
		if err != nil {
			return err
		}
		return printList(cmd, cloudTypes)
	},
}

// cloudQueryCmd builds a command listing a provider resource of a cloud
func cloudQueryCmd(use, short string, query func(*client.Client, context.Context, string) ([]string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " CLOUD_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			items, err := query(c, cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printList(cmd, items)
		},
	}
}

func readJSONFile(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %s is not a JSON object: %v", types.ErrValidation, path, err)
	}
	return out, nil
}

func init() {
	cloudCreateCmd.Flags().String("type", "", "Cloud provider type (openstack, azure)")
	cloudCreateCmd.Flags().String("auth", "", "JSON file with the provider credentials")
	cloudCreateCmd.Flags().String("config-file", "", "JSON file with the provider settings")
	_ = cloudCreateCmd.MarkFlagRequired("type")
	addListFlags(cloudListCmd)

	cloudCmd.AddCommand(cloudCreateCmd)
	cloudCmd.AddCommand(cloudListCmd)
	cloudCmd.AddCommand(cloudTypesCmd)
	cloudCmd.AddCommand(cloudQueryCmd("flavours", "List node flavours of a cloud", (*client.Client).NodeFlavours))
	cloudCmd.AddCommand(cloudQueryCmd("networks", "List networks of a cloud", (*client.Client).Networks))
	cloudCmd.AddCommand(cloudQueryCmd("instances", "List instances of a cloud", (*client.Client).Instances))

	rootCmd.AddCommand(cloudCmd)
}
