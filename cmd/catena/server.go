package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cuemby/catena/pkg/api"
	"github.com/cuemby/catena/pkg/chain"
	"github.com/cuemby/catena/pkg/chain/ethereum"
	"github.com/cuemby/catena/pkg/cloud"
	"github.com/cuemby/catena/pkg/cloud/azure"
	"github.com/cuemby/catena/pkg/cloud/openstack"
	"github.com/cuemby/catena/pkg/config"
	"github.com/cuemby/catena/pkg/events"
	"github.com/cuemby/catena/pkg/log"
	"github.com/cuemby/catena/pkg/manager"
	"github.com/cuemby/catena/pkg/metrics"
	"github.com/cuemby/catena/pkg/provisioner"
	"github.com/cuemby/catena/pkg/security"
	"github.com/cuemby/catena/pkg/storage"
	"github.com/cuemby/catena/pkg/tracing"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the Catena API server",
	Long: `Run the Catena API server.

The server opens the store, registers the OpenStack and Azure cloud backends
and the Ethereum chain backend, and serves the REST API until interrupted.`,
	RunE: runServer,
}

func init() {
	f := serverCmd.Flags()
	f.String("host", "", "Address to listen on")
	f.Int("port", 0, "Port to listen on")
	f.String("data-dir", "", "Data directory for the store")
	f.String("store-engine", "", "Store engine (bolt, badger)")
	f.String("playbook-dir", "", "Directory holding the deployment playbooks")
	f.String("nats-url", "", "Publish events to this NATS server")
	f.Bool("trace", false, "Export traces to stderr")
	f.Bool("compensate", false, "Delete cloud instances left by failed operations")
	f.Bool("read-only", false, "Reject every mutating API request")

	rootCmd.AddCommand(serverCmd)
}

func applyServerFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("host") {
		cfg.Host, _ = f.GetString("host")
	}
	if f.Changed("port") {
		cfg.Port, _ = f.GetInt("port")
	}
	if f.Changed("data-dir") {
		cfg.DataDir, _ = f.GetString("data-dir")
	}
	if f.Changed("store-engine") {
		cfg.StoreEngine, _ = f.GetString("store-engine")
	}
	if f.Changed("playbook-dir") {
		cfg.PlaybookDir, _ = f.GetString("playbook-dir")
	}
	if f.Changed("nats-url") {
		cfg.NATSURL, _ = f.GetString("nats-url")
	}
	if f.Changed("trace") {
		cfg.Trace, _ = f.GetBool("trace")
	}
	if f.Changed("compensate") {
		cfg.CompensateOnFailure, _ = f.GetBool("compensate")
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyServerFlags(cmd, cfg)
	if err := promptEncryptionKey(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	readOnly, _ := cmd.Flags().GetBool("read-only")
	logger := log.WithComponent("server")

	shutdownTracing, err := tracing.Setup(tracing.Config{
		Enabled:     cfg.Trace,
		ServiceName: "catena",
		Writer:      os.Stderr,
	})
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	store, err := storage.Open(cfg.StoreEngine, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	tmpDir := filepath.Join(cfg.DataDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0700); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	secrets, err := security.NewSecretsManager(cfg.EncryptionKey, security.WithTempDir(tmpDir))
	if err != nil {
		return err
	}

	clouds := cloud.NewRegistry(cloud.Environment{Secrets: secrets, BaseImage: cfg.BaseImage})
	clouds.Register(openstack.ProviderType, openstack.Factory)
	clouds.Register(azure.ProviderType, azure.Factory)

	runner := provisioner.NewAnsible(provisioner.AnsibleConfig{
		PlaybookDir: cfg.PlaybookDir,
		User:        cfg.SSHUser,
		TempDir:     tmpDir,
	})
	chains := chain.NewRegistry()
	chains.Register(ethereum.BackendName, ethereum.New(ethereum.Config{
		Secrets:     secrets,
		Provisioner: runner,
		TempDir:     tmpDir,
	}))

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	health := metrics.NewHealthChecker(Version)
	health.Register("store", true, func(ctx context.Context) error {
		return store.View(ctx, func(tx storage.Tx) error {
			_, err := tx.ListClouds(storage.ListOptions{Limit: 1})
			return err
		})
	})

	if cfg.NATSURL != "" {
		nc, err := events.ConnectNATS(cfg.NATSURL)
		if err != nil {
			return err
		}
		forwarder := events.NewNATSForwarder(broker, nc)
		defer forwarder.Stop()
		health.Register("nats", false, func(context.Context) error {
			return forwarder.Healthy()
		})
		logger.Info().Str("url", cfg.NATSURL).Msg("Forwarding events to NATS")
	}

	mgr, err := manager.NewManager(manager.Config{
		Store:               store,
		Secrets:             secrets,
		Clouds:              clouds,
		Chains:              chains,
		Events:              broker,
		Owner:               cfg.Owner,
		CompensateOnFailure: cfg.CompensateOnFailure,
	})
	if err != nil {
		return fmt.Errorf("failed to create manager: %w", err)
	}

	collector := metrics.NewCollector(store)
	collector.Start()
	defer collector.Stop()

	srv := api.NewServer(mgr, api.Config{
		Addr:     cfg.Addr(),
		ReadOnly: readOnly,
		Health:   health,
	})
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info().
		Str("addr", cfg.Addr()).
		Str("store", cfg.StoreEngine).
		Bool("read_only", readOnly).
		Msg("Catena server started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("Shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("API server failed")
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
