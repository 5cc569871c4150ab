package main

import (
	"fmt"
	"os"

	"github.com/cuemby/catena/pkg/client"
	"github.com/cuemby/catena/pkg/config"
	"github.com/cuemby/catena/pkg/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "catena",
	Short: "Catena - private blockchain fleet provisioning",
	Long: `Catena provisions private Ethereum networks on OpenStack and Azure.

A chain is created with a controller node on a registered cloud account;
worker nodes are then added and discover each other through bootnodes.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log.Init(log.Config{
			Level:      log.ParseLevel(cfg.LogLevel),
			JSONOutput: cfg.LogJSON,
			Output:     os.Stderr,
		})
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Catena version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", "", "Path to the YAML configuration file")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.Bool("log-json", false, "Log in JSON format")
	pf.String("server", "localhost:1989", "Catena API server address")
	pf.StringP("output", "o", "table", "Output format (table, json)")
}

// loadConfig reads the configuration file and applies flag overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("CATENA_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if key := os.Getenv("CATENA_ENCRYPTION_KEY"); key != "" {
		cfg.EncryptionKey = key
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-json") {
		cfg.LogJSON, _ = flags.GetBool("log-json")
	}
	return cfg, nil
}

// promptEncryptionKey asks for the passphrase on the terminal when neither
// the config file nor CATENA_ENCRYPTION_KEY provided one
func promptEncryptionKey(cfg *config.Config) error {
	if cfg.EncryptionKey != "" || !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	fmt.Fprint(os.Stderr, "Encryption key: ")
	key, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to read encryption key: %w", err)
	}
	cfg.EncryptionKey = string(key)
	return nil
}

func newClient(cmd *cobra.Command) (*client.Client, error) {
	addr, _ := cmd.Flags().GetString("server")
	c, err := client.NewClient(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return c, nil
}
