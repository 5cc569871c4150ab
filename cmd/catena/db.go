package main

import (
	"fmt"
	"os"

	"github.com/cuemby/catena/pkg/config"
	"github.com/cuemby/catena/pkg/storage"
	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the Catena store",
	Long: `Manage the Catena store. These commands open the data directory
directly and cannot run while the server holds the store.`,
}

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the store in the data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()
		fmt.Printf("✓ Store initialized: %s (%s)\n", cfg.DataDir, cfg.StoreEngine)
		return nil
	},
}

var dbDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Delete every cloud, chain and node record",
	Long: `Delete every cloud, chain and node record. Cloud instances are not
released; delete chains first to free provider resources.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("refusing to drop the store without --yes")
		}
		_, store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		d, ok := store.(storage.Droppable)
		if !ok {
			return fmt.Errorf("store engine does not support drop")
		}
		if err := d.Drop(); err != nil {
			return fmt.Errorf("failed to drop store: %w", err)
		}
		fmt.Println("✓ Store dropped")
		return nil
	},
}

var dbBackupCmd = &cobra.Command{
	Use:   "backup FILE",
	Short: "Write a copy of the store to FILE",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		b, ok := store.(storage.Backupable)
		if !ok {
			return fmt.Errorf("store engine does not support backup")
		}
		f, err := os.OpenFile(args[0], os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("failed to create backup file: %w", err)
		}
		if err := b.Backup(f); err != nil {
			f.Close()
			return fmt.Errorf("failed to write backup: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Printf("✓ Backup written: %s\n", args[0])
		return nil
	},
}

func openStore(cmd *cobra.Command) (*config.Config, storage.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	f := cmd.Flags()
	if f.Changed("data-dir") {
		cfg.DataDir, _ = f.GetString("data-dir")
	}
	if f.Changed("store-engine") {
		cfg.StoreEngine, _ = f.GetString("store-engine")
	}
	store, err := storage.Open(cfg.StoreEngine, cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}
	return cfg, store, nil
}

func init() {
	dbCmd.PersistentFlags().String("data-dir", "", "Data directory for the store")
	dbCmd.PersistentFlags().String("store-engine", "", "Store engine (bolt, badger)")
	dbDropCmd.Flags().Bool("yes", false, "Confirm dropping all records")

	dbCmd.AddCommand(dbInitCmd)
	dbCmd.AddCommand(dbDropCmd)
	dbCmd.AddCommand(dbBackupCmd)

	rootCmd.AddCommand(dbCmd)
}
