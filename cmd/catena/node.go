package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/cuemby/catena/pkg/chain"
	"github.com/cuemby/catena/pkg/cloud"
	"github.com/cuemby/catena/pkg/manager"
	"github.com/cuemby/catena/pkg/security"
	"github.com/cuemby/catena/pkg/sshclient"
	"github.com/cuemby/catena/pkg/storage"
	"github.com/cuemby/catena/pkg/types"
	"github.com/spf13/cobra"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Manage chain nodes",
}

var nodeCreateCmd = &cobra.Command{
	Use:   "create CHAIN_ID",
	Short: "Add a worker node to a chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		flavour, _ := cmd.Flags().GetString("flavour")
		nodeType, _ := cmd.Flags().GetString("type")
		req := manager.NodeRequest{Name: name, Flavour: flavour, Type: nodeType}
		if err := req.Validate(); err != nil {
			return err
		}

		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		fmt.Printf("Creating node: %s\n", name)
		node, err := c.CreateNode(cmd.Context(), args[0], req)
		if err != nil {
			return fmt.Errorf("failed to create node: %w", err)
		}
		fmt.Printf("✓ Node created: %s (ID: %s, IP: %s)\n", node.Name, node.ID, node.IP)
		return nil
	},
}

var nodeListCmd = &cobra.Command{
	Use:   "list CHAIN_ID",
	Short: "List the nodes of a chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		nodes, err := c.ListNodes(cmd.Context(), args[0], listOptions(cmd))
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(nodes))
		for _, n := range nodes {
			rows = append(rows, nodeRow(n))
		}
		return printTable(cmd, nodes, nodeHeader, rows)
	},
}

var nodeGetCmd = &cobra.Command{
	Use:   "get CHAIN_ID NODE_ID",
	Short: "Show a node",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		node, err := c.GetNode(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return printTable(cmd, node, nodeHeader, [][]string{nodeRow(node)})
	},
}

var nodeDeleteCmd = &cobra.Command{
	Use:   "delete CHAIN_ID NODE_ID",
	Short: "Remove a worker node",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.DeleteNode(cmd.Context(), args[0], args[1]); err != nil {
			return fmt.Errorf("failed to delete node: %w", err)
		}
		fmt.Printf("✓ Node deleted: %s\n", args[1])
		return nil
	},
}

var nodeSSHCmd = &cobra.Command{
	Use:   "ssh CHAIN_ID NODE_ID [COMMAND...]",
	Short: "Open a shell on a node through the chain's jumpbox",
	Long: `Open a shell on a node through the chain's jumpbox, or run COMMAND.

Node keys never leave the server's store, so this command reads the store
directly and must run where the server's data directory and encryption key
are available.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := loadNodeCredentials(cmd, args[0], args[1])
		if err != nil {
			return err
		}
		defer creds.wipe()

		conn, err := sshclient.Dial(cmd.Context(), sshclient.Config{
			User:     creds.user,
			Addr:     creds.nodeIP,
			Key:      creds.nodeKey,
			JumpAddr: creds.jumpboxIP,
			JumpKey:  creds.jumpboxKey,
		})
		if err != nil {
			return err
		}
		defer conn.Close()

		if len(args) > 2 {
			out, err := conn.Run(cmd.Context(), strings.Join(args[2:], " "))
			_, _ = os.Stdout.Write(out)
			return err
		}
		return conn.Shell(os.Stdin, os.Stdout, os.Stderr)
	},
}

var nodeSSHKeyCmd = &cobra.Command{
	Use:   "ssh-key CHAIN_ID NODE_ID",
	Short: "Print the decrypted private key of a node",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		jumpbox, _ := cmd.Flags().GetBool("jumpbox")
		creds, err := loadNodeCredentials(cmd, args[0], args[1])
		if err != nil {
			return err
		}
		defer creds.wipe()

		key := creds.nodeKey
		if jumpbox {
			key = creds.jumpboxKey
		}
		_, err = os.Stdout.Write(key)
		return err
	},
}

type nodeCredentials struct {
	user       string
	nodeIP     string
	jumpboxIP  string
	nodeKey    []byte
	jumpboxKey []byte
}

func (c *nodeCredentials) wipe() {
	for _, b := range [][]byte{c.nodeKey, c.jumpboxKey} {
		for i := range b {
			b[i] = 0
		}
	}
}

// loadNodeCredentials reads a node's connection details straight from the
// store and decrypts both keys
func loadNodeCredentials(cmd *cobra.Command, chainID, nodeID string) (*nodeCredentials, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := promptEncryptionKey(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := storage.Open(cfg.StoreEngine, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	secrets, err := security.NewSecretsManager(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	mgr, err := manager.NewManager(manager.Config{
		Store:   store,
		Secrets: secrets,
		Clouds:  cloud.NewRegistry(cloud.Environment{Secrets: secrets}),
		Chains:  chain.NewRegistry(),
	})
	if err != nil {
		return nil, err
	}

	access, err := mgr.NodeAccess(cmd.Context(), chainID, nodeID)
	if err != nil {
		return nil, err
	}
	creds := &nodeCredentials{user: cfg.SSHUser, nodeIP: access.NodeIP, jumpboxIP: access.JumpboxIP}
	if creds.nodeKey, err = secrets.Decrypt(access.NodeKey); err != nil {
		return nil, fmt.Errorf("node key: %w", err)
	}
	if creds.jumpboxKey, err = secrets.Decrypt(access.JumpboxKey); err != nil {
		creds.wipe()
		return nil, fmt.Errorf("jumpbox key: %w", err)
	}
	return creds, nil
}

var nodeHeader = []string{"ID", "NAME", "TYPE", "IP", "PEER", "AGE"}

func nodeRow(n *types.NodeView) []string {
	peer := types.ConfigString(n.ChainConfig, "eth_node_id")
	if len(peer) > 16 {
		peer = peer[:16] + "..."
	}
	if peer == "" {
		peer = "-"
	}
	return []string{n.ID, n.Name, n.Type, n.IP, peer, age(n.CreatedAt)}
}

func init() {
	nodeCreateCmd.Flags().String("name", "", "Node name")
	nodeCreateCmd.Flags().String("flavour", "", "Cloud flavour (VM size)")
	nodeCreateCmd.Flags().String("type", "miner", "Node type")
	_ = nodeCreateCmd.MarkFlagRequired("name")
	_ = nodeCreateCmd.MarkFlagRequired("flavour")
	addListFlags(nodeListCmd)
	nodeSSHKeyCmd.Flags().Bool("jumpbox", false, "Print the chain's jumpbox key instead")

	nodeCmd.AddCommand(nodeCreateCmd)
	nodeCmd.AddCommand(nodeListCmd)
	nodeCmd.AddCommand(nodeGetCmd)
	nodeCmd.AddCommand(nodeDeleteCmd)
	nodeCmd.AddCommand(nodeSSHCmd)
	nodeCmd.AddCommand(nodeSSHKeyCmd)

	rootCmd.AddCommand(nodeCmd)
}
