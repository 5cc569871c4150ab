package openstack

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cuemby/catena/pkg/cloud"
	"github.com/cuemby/catena/pkg/log"
	"github.com/cuemby/catena/pkg/types"
	"github.com/go-goose/goose/v5/nova"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"
	"github.com/rs/zerolog"
)

// ProviderType is the cloud type handled by this package
const ProviderType = "openstack"

const (
	defaultPollDelay    = 10 * time.Second
	defaultBuildTimeout = 10 * time.Minute
)

// ProviderConfig holds the cloud-level settings of an OpenStack cloud
type ProviderConfig struct {
	ImageName string `mapstructure:"image_name"`
	ImageID   string `mapstructure:"image_id"`
	UserData  string `mapstructure:"user_data"`
}

// Backend implements cloud.Backend on OpenStack nova and neutron
type Backend struct {
	cloud  *types.Cloud
	env    cloud.Environment
	config ProviderConfig
	api    api
	clock  clock.Clock
	logger zerolog.Logger

	pollDelay    time.Duration
	buildTimeout time.Duration
}

// Factory is the cloud.Factory for OpenStack clouds
func Factory(c *types.Cloud, env cloud.Environment) (cloud.Backend, error) {
	b, err := New(c, env)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// New authenticates against the cloud's identity service and returns a backend
func New(c *types.Cloud, env cloud.Environment) (*Backend, error) {
	var auth Authentication
	if err := cloud.Decode(c.Authentication, &auth); err != nil {
		return nil, fmt.Errorf("%w: invalid openstack authentication: %v", types.ErrConfig, err)
	}
	if err := auth.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrConfig, err)
	}

	a, err := newGooseAPI(&auth)
	if err != nil {
		return nil, cloud.ProviderError("connect", err)
	}
	return newBackend(c, env, a)
}

func newBackend(c *types.Cloud, env cloud.Environment, a api) (*Backend, error) {
	var cfg ProviderConfig
	if err := cloud.Decode(c.CloudConfig, &cfg); err != nil {
		return nil, fmt.Errorf("%w: invalid openstack cloud_config: %v", types.ErrConfig, err)
	}
	return &Backend{
		cloud:        c,
		env:          env,
		config:       cfg,
		api:          a,
		clock:        clock.WallClock,
		logger:       log.WithCloudID(log.WithComponent("openstack"), c.ID),
		pollDelay:    defaultPollDelay,
		buildTimeout: defaultBuildTimeout,
	}, nil
}

// NodeFlavours lists flavor names
func (b *Backend) NodeFlavours(ctx context.Context) ([]string, error) {
	flavors, err := b.api.flavors()
	if err != nil {
		return nil, cloud.ProviderError("list flavors", err)
	}
	names := make([]string, 0, len(flavors))
	for _, f := range flavors {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names, nil
}

// Networks lists network names
func (b *Backend) Networks(ctx context.Context) ([]string, error) {
	networks, err := b.api.networks()
	if err != nil {
		return nil, cloud.ProviderError("list networks", err)
	}
	names := make([]string, 0, len(networks))
	for _, n := range networks {
		names = append(names, n.Name)
	}
	sort.Strings(names)
	return names, nil
}

// Instances lists server names
func (b *Backend) Instances(ctx context.Context) ([]string, error) {
	servers, err := b.api.servers()
	if err != nil {
		return nil, cloud.ProviderError("list servers", err)
	}
	names := make([]string, 0, len(servers))
	for _, s := range servers {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names, nil
}

// InitializeCloud resolves the jumpbox floating IP and the network id
func (b *Backend) InitializeCloud(ctx context.Context, chain *types.Chain) error {
	cfg, err := cloud.PrepareChainCloudConfig(chain, b.env.Secrets)
	if err != nil {
		return err
	}
	if cfg.Network == "" {
		return fmt.Errorf("%w: must specify a network", types.ErrConfig)
	}

	jumpbox, err := b.findServer(cfg.Jumpbox)
	if err != nil {
		return err
	}
	cfg.JumpboxIP = addressOfType(jumpbox.Addresses[cfg.Network], "floating")
	if cfg.JumpboxIP == "" {
		return fmt.Errorf("%w: jumpbox %s has no floating address on network %s", types.ErrConfig, cfg.Jumpbox, cfg.Network)
	}

	networks, err := b.api.networks()
	if err != nil {
		return cloud.ProviderError("list networks", err)
	}
	for _, n := range networks {
		if n.Name == cfg.Network || n.Id == cfg.Network {
			cfg.NetworkID = n.Id
			break
		}
	}
	if cfg.NetworkID == "" {
		return fmt.Errorf("%w: network %s not found", types.ErrConfig, cfg.Network)
	}

	cfg.Record(chain)
	b.logger.Debug().
		Str("jumpbox_ip", cfg.JumpboxIP).
		Str("network_id", cfg.NetworkID).
		Msg("Cloud initialized")
	return nil
}

// AddNode boots a server with publicKey injected through cloud-init
func (b *Backend) AddNode(ctx context.Context, publicKey, flavour, name string, chain *types.Chain) (string, string, error) {
	cfg, err := cloud.ParseChainCloudConfig(chain)
	if err != nil {
		return "", "", err
	}
	if cfg.NetworkID == "" {
		return "", "", fmt.Errorf("%w: cloud not initialized for chain %s", types.ErrConfig, chain.ID)
	}

	flavorID, err := b.flavorID(flavour)
	if err != nil {
		return "", "", err
	}
	imageID, err := b.imageID()
	if err != nil {
		return "", "", err
	}
	userData, err := renderUserData(publicKey, b.config.UserData)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", types.ErrConfig, err)
	}

	b.logger.Info().Str("name", name).Str("flavour", flavour).Msg("Creating server")
	server, err := b.api.runServer(nova.RunServerOpts{
		Name:     name,
		FlavorId: flavorID,
		ImageId:  imageID,
		UserData: userData,
		Networks: []nova.ServerNetworks{{NetworkId: cfg.NetworkID}},
	})
	if err != nil {
		return "", "", cloud.ProviderError("run server", errors.Annotatef(err, "cannot run instance %s", name))
	}

	detail, err := b.waitActive(ctx, server.Id)
	if err != nil {
		return server.Id, "", cloud.ProviderError("wait for server", err)
	}

	addrs := detail.Addresses[cfg.Network]
	ip := addressOfType(addrs, "fixed")
	if ip == "" && len(addrs) > 0 {
		ip = addrs[0].Address
	}
	if ip == "" {
		return server.Id, "", cloud.ProviderError("server address", errors.Errorf("server %s has no address on network %s", server.Id, cfg.Network))
	}

	b.logger.Info().Str("name", name).Str("instance_id", server.Id).Str("ip", ip).Msg("Server active")
	return server.Id, ip, nil
}

// DeleteNode deletes the server. Volumes and ports created with it are
// released by nova.
func (b *Backend) DeleteNode(ctx context.Context, chain *types.Chain, instanceID string) error {
	err := b.api.deleteServer(instanceID)
	if err != nil && !errors.Is(err, errServerNotFound) {
		return cloud.ProviderError("delete server", errors.Annotatef(err, "cannot delete instance %s", instanceID))
	}
	return nil
}

func (b *Backend) waitActive(ctx context.Context, id string) (*nova.ServerDetail, error) {
	errStillBuilding := errors.Errorf("instance %q has status BUILD", id)

	var server *nova.ServerDetail
	err := retry.Call(retry.CallArgs{
		Clock:       b.clock,
		Delay:       b.pollDelay,
		MaxDuration: b.buildTimeout,
		Func: func() error {
			var err error
			server, err = b.api.getServer(id)
			if err != nil {
				return err
			}
			if server.Status == nova.StatusBuild {
				return errStillBuilding
			}
			return nil
		},
		IsFatalError: func(err error) bool {
			return err != errStillBuilding
		},
		NotifyFunc: func(lastError error, attempt int) {
			b.logger.Debug().Int("attempt", attempt).Msg(lastError.Error())
		},
		Stop: ctx.Done(),
	})
	if err != nil {
		return nil, errors.Annotatef(retry.LastError(err), "instance %s did not become active", id)
	}

	if server.Status != nova.StatusActive {
		msg := fmt.Sprintf("instance %s in status %s", id, server.Status)
		if server.Fault != nil {
			msg += fmt.Sprintf(" with fault %q", server.Fault.Message)
		}
		if derr := b.api.deleteServer(id); derr != nil {
			b.logger.Error().Err(derr).Str("instance_id", id).Msg("Failed to delete server in error state; manual cleanup required")
		}
		return nil, errors.New(msg)
	}
	return server, nil
}

func (b *Backend) findServer(name string) (*nova.ServerDetail, error) {
	servers, err := b.api.servers()
	if err != nil {
		return nil, cloud.ProviderError("list servers", err)
	}
	for i := range servers {
		if servers[i].Name == name || servers[i].Id == name {
			return &servers[i], nil
		}
	}
	return nil, fmt.Errorf("%w: jumpbox %s not found", types.ErrConfig, name)
}

func (b *Backend) flavorID(name string) (string, error) {
	flavors, err := b.api.flavors()
	if err != nil {
		return "", cloud.ProviderError("list flavors", err)
	}
	for _, f := range flavors {
		if f.Name == name || f.Id == name {
			return f.Id, nil
		}
	}
	return "", fmt.Errorf("%w: unknown flavour %s", types.ErrValidation, name)
}

func (b *Backend) imageID() (string, error) {
	if b.config.ImageID != "" {
		return b.config.ImageID, nil
	}
	name := b.config.ImageName
	if name == "" {
		name = b.env.BaseImage
	}

	images, err := b.api.images()
	if err != nil {
		return "", cloud.ProviderError("list images", err)
	}
	for _, img := range images {
		if img.Name == name {
			return img.Id, nil
		}
	}
	return "", fmt.Errorf("%w: image %s not found", types.ErrConfig, name)
}

func addressOfType(addrs []nova.IPAddress, kind string) string {
	for _, a := range addrs {
		if a.Type == kind {
			return a.Address
		}
	}
	return ""
}
