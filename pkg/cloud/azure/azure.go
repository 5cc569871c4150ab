package azure

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v2"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork"
	"github.com/cuemby/catena/pkg/cloud"
	"github.com/cuemby/catena/pkg/log"
	"github.com/cuemby/catena/pkg/types"
	"github.com/google/uuid"
	jujuerrors "github.com/juju/errors"
	"github.com/rs/zerolog"
)

// ProviderType is the cloud type handled by this package
const ProviderType = "azure"

const adminUser = "ubuntu"

// ImageConfig selects the VM image: a marketplace reference or a resource id
type ImageConfig struct {
	ID        string `mapstructure:"id"`
	Publisher string `mapstructure:"publisher"`
	Offer     string `mapstructure:"offer"`
	SKU       string `mapstructure:"sku"`
	Version   string `mapstructure:"version"`
}

// ProviderConfig holds the cloud-level settings of an Azure cloud
type ProviderConfig struct {
	Image ImageConfig `mapstructure:"image"`
}

// Backend implements cloud.Backend on the Azure resource manager
type Backend struct {
	cloud  *types.Cloud
	env    cloud.Environment
	auth   Authentication
	config ProviderConfig
	api    api
	logger zerolog.Logger
}

// Factory is the cloud.Factory for Azure clouds
func Factory(c *types.Cloud, env cloud.Environment) (cloud.Backend, error) {
	b, err := New(c, env)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// New creates a backend authenticated with the cloud's service principal
func New(c *types.Cloud, env cloud.Environment) (*Backend, error) {
	var auth Authentication
	if err := cloud.Decode(c.Authentication, &auth); err != nil {
		return nil, fmt.Errorf("%w: invalid azure authentication: %v", types.ErrConfig, err)
	}
	if err := auth.validate(); err != nil {
		return nil, fmt.Errorf("%w: azure authentication: %v", types.ErrConfig, err)
	}

	a, err := newARMAPI(&auth)
	if err != nil {
		return nil, cloud.ProviderError("connect", err)
	}
	return newBackend(c, env, auth, a)
}

func newBackend(c *types.Cloud, env cloud.Environment, auth Authentication, a api) (*Backend, error) {
	var cfg ProviderConfig
	if err := cloud.Decode(c.CloudConfig, &cfg); err != nil {
		return nil, fmt.Errorf("%w: invalid azure cloud_config: %v", types.ErrConfig, err)
	}
	return &Backend{
		cloud:  c,
		env:    env,
		auth:   auth,
		config: cfg,
		api:    a,
		logger: log.WithCloudID(log.WithComponent("azure"), c.ID),
	}, nil
}

// NodeFlavours lists the VM sizes available in the cloud's location
func (b *Backend) NodeFlavours(ctx context.Context) ([]string, error) {
	sizes, err := b.api.vmSizes(ctx, b.auth.Location)
	if err != nil {
		return nil, cloud.ProviderError("list vm sizes", err)
	}
	sort.Strings(sizes)
	return sizes, nil
}

// Networks lists virtual networks as "<resource group>/<name>"
func (b *Backend) Networks(ctx context.Context) ([]string, error) {
	vnets, err := b.api.virtualNetworks(ctx)
	if err != nil {
		return nil, cloud.ProviderError("list virtual networks", err)
	}
	var names []string
	for _, n := range vnets {
		names = append(names, resourceGroupOf(toValue(n.ID))+"/"+toValue(n.Name))
	}
	sort.Strings(names)
	return names, nil
}

// Instances lists VM names
func (b *Backend) Instances(ctx context.Context) ([]string, error) {
	vms, err := b.api.virtualMachines(ctx)
	if err != nil {
		return nil, cloud.ProviderError("list virtual machines", err)
	}
	sort.Strings(vms)
	return vms, nil
}

// InitializeCloud reads the jumpbox's public IP, subnet and security group
func (b *Backend) InitializeCloud(ctx context.Context, chain *types.Chain) error {
	cfg, err := cloud.PrepareChainCloudConfig(chain, b.env.Secrets)
	if err != nil {
		return err
	}
	rg, err := resourceGroup(cfg)
	if err != nil {
		return err
	}

	vm, err := b.api.getVM(ctx, rg, cfg.Jumpbox)
	if errors.Is(err, errResourceNotFound) {
		return fmt.Errorf("%w: jumpbox %s not found in %s", types.ErrConfig, cfg.Jumpbox, rg)
	}
	if err != nil {
		return cloud.ProviderError("get jumpbox", err)
	}

	nic, err := b.api.getNIC(ctx, rg, lastSegment(primaryNICID(vm)))
	if err != nil {
		return cloud.ProviderError("get jumpbox interface", err)
	}
	ipConfig := primaryIPConfig(nic)
	if ipConfig == nil || ipConfig.PublicIPAddress == nil || ipConfig.Subnet == nil {
		return fmt.Errorf("%w: jumpbox %s has no public address", types.ErrConfig, cfg.Jumpbox)
	}

	pip, err := b.api.getPublicIP(ctx, rg, lastSegment(toValue(ipConfig.PublicIPAddress.ID)))
	if err != nil {
		return cloud.ProviderError("get jumpbox public ip", err)
	}
	if pip.Properties == nil || toValue(pip.Properties.IPAddress) == "" {
		return fmt.Errorf("%w: jumpbox %s public address not allocated", types.ErrConfig, cfg.Jumpbox)
	}

	cfg.JumpboxIP = toValue(pip.Properties.IPAddress)
	cfg.NetworkID = toValue(ipConfig.Subnet.ID)
	if nic.Properties != nil && nic.Properties.NetworkSecurityGroup != nil {
		cfg.SecurityGroup = toValue(nic.Properties.NetworkSecurityGroup.ID)
	}
	cfg.Record(chain)
	return nil
}

// AddNode creates a NIC on the chain's subnet and a VM attached to it.
// The returned instance id is the VM name.
func (b *Backend) AddNode(ctx context.Context, publicKey, flavour, name string, chain *types.Chain) (string, string, error) {
	cfg, err := cloud.ParseChainCloudConfig(chain)
	if err != nil {
		return "", "", err
	}
	rg, err := resourceGroup(cfg)
	if err != nil {
		return "", "", err
	}
	if cfg.NetworkID == "" {
		return "", "", fmt.Errorf("%w: cloud not initialized for chain %s", types.ErrConfig, chain.ID)
	}

	nicParams := armnetwork.Interface{
		Location: to.Ptr(b.auth.Location),
		Properties: &armnetwork.InterfacePropertiesFormat{
			IPConfigurations: []*armnetwork.InterfaceIPConfiguration{{
				Name: to.Ptr("netcfg-" + name),
				Properties: &armnetwork.InterfaceIPConfigurationPropertiesFormat{
					Subnet: &armnetwork.Subnet{ID: to.Ptr(cfg.NetworkID)},
				},
			}},
		},
	}
	if cfg.SecurityGroup != "" {
		nicParams.Properties.NetworkSecurityGroup = &armnetwork.SecurityGroup{ID: to.Ptr(cfg.SecurityGroup)}
	}

	b.logger.Info().Str("name", name).Str("flavour", flavour).Msg("Creating network interface")
	nic, err := b.api.createNIC(ctx, rg, "if-"+name, nicParams)
	if err != nil {
		return "", "", cloud.ProviderError("create interface", jujuerrors.Annotatef(err, "interface for %s", name))
	}

	b.logger.Info().Str("name", name).Msg("Creating virtual machine")
	vm, err := b.api.createVM(ctx, rg, name, b.vmParameters(name, flavour, publicKey, toValue(nic.ID), rg))
	if err != nil {
		if derr := b.api.deleteNIC(ctx, rg, "if-"+name); derr != nil && !errors.Is(derr, errResourceNotFound) {
			b.logger.Warn().Err(derr).Str("name", name).Msg("Failed to remove interface of failed VM")
		}
		return "", "", cloud.ProviderError("create virtual machine", jujuerrors.Annotatef(err, "vm %s", name))
	}

	nic, err = b.api.getNIC(ctx, rg, lastSegment(primaryNICID(vm)))
	if err != nil {
		return name, "", cloud.ProviderError("get interface", err)
	}
	ipConfig := primaryIPConfig(nic)
	if ipConfig == nil || toValue(ipConfig.PrivateIPAddress) == "" {
		return name, "", cloud.ProviderError("get interface", jujuerrors.Errorf("vm %s has no private address", name))
	}
	return name, toValue(ipConfig.PrivateIPAddress), nil
}

// DeleteNode deletes the VM, then its OS disk and NIC. Failures on the disk
// and NIC are logged and do not fail the call.
func (b *Backend) DeleteNode(ctx context.Context, chain *types.Chain, instanceID string) error {
	cfg, err := cloud.ParseChainCloudConfig(chain)
	if err != nil {
		return err
	}
	rg, err := resourceGroup(cfg)
	if err != nil {
		return err
	}

	vm, err := b.api.getVM(ctx, rg, instanceID)
	if errors.Is(err, errResourceNotFound) {
		b.logger.Info().Str("instance_id", instanceID).Msg("VM already deleted")
		return nil
	}
	if err != nil {
		return cloud.ProviderError("get virtual machine", err)
	}

	var diskName string
	if vm.Properties != nil && vm.Properties.StorageProfile != nil && vm.Properties.StorageProfile.OSDisk != nil {
		diskName = toValue(vm.Properties.StorageProfile.OSDisk.Name)
	}
	nicName := lastSegment(primaryNICID(vm))

	if err := b.api.deleteVM(ctx, rg, instanceID); err != nil && !errors.Is(err, errResourceNotFound) {
		return cloud.ProviderError("delete virtual machine", err)
	}
	if diskName != "" {
		if err := b.api.deleteDisk(ctx, rg, diskName); err != nil && !errors.Is(err, errResourceNotFound) {
			b.logger.Warn().Err(err).Str("disk", diskName).Msg("Failed to delete disk")
		}
	}
	if nicName != "" {
		if err := b.api.deleteNIC(ctx, rg, nicName); err != nil && !errors.Is(err, errResourceNotFound) {
			b.logger.Warn().Err(err).Str("interface", nicName).Msg("Failed to delete network interface")
		}
	}
	return nil
}

func (b *Backend) vmParameters(name, flavour, publicKey, nicID, rg string) armcompute.VirtualMachine {
	return armcompute.VirtualMachine{
		Location: to.Ptr(b.auth.Location),
		Properties: &armcompute.VirtualMachineProperties{
			HardwareProfile: &armcompute.HardwareProfile{
				VMSize: to.Ptr(armcompute.VirtualMachineSizeTypes(flavour)),
			},
			OSProfile: &armcompute.OSProfile{
				ComputerName:  to.Ptr(uuid.New().String()),
				AdminUsername: to.Ptr(adminUser),
				LinuxConfiguration: &armcompute.LinuxConfiguration{
					DisablePasswordAuthentication: to.Ptr(true),
					SSH: &armcompute.SSHConfiguration{
						PublicKeys: []*armcompute.SSHPublicKey{{
							Path:    to.Ptr(fmt.Sprintf("/home/%s/.ssh/authorized_keys", adminUser)),
							KeyData: to.Ptr(publicKey),
						}},
					},
				},
			},
			StorageProfile: &armcompute.StorageProfile{
				ImageReference: b.imageReference(rg),
			},
			NetworkProfile: &armcompute.NetworkProfile{
				NetworkInterfaces: []*armcompute.NetworkInterfaceReference{{ID: to.Ptr(nicID)}},
			},
		},
	}
}

func (b *Backend) imageReference(rg string) *armcompute.ImageReference {
	img := b.config.Image
	switch {
	case img.ID != "":
		return &armcompute.ImageReference{ID: to.Ptr(img.ID)}
	case img.Publisher != "":
		version := img.Version
		if version == "" {
			version = "latest"
		}
		return &armcompute.ImageReference{
			Publisher: to.Ptr(img.Publisher),
			Offer:     to.Ptr(img.Offer),
			SKU:       to.Ptr(img.SKU),
			Version:   to.Ptr(version),
		}
	}
	// managed image named after the configured base image
	return &armcompute.ImageReference{ID: to.Ptr(fmt.Sprintf(
		"/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Compute/images/%s",
		b.auth.SubscriptionID, rg, b.env.BaseImage))}
}

// resourceGroup extracts the group from a "<resource group>/<vnet>" network
func resourceGroup(cfg *cloud.ChainCloudConfig) (string, error) {
	rg, _, ok := strings.Cut(cfg.Network, "/")
	if !ok || rg == "" {
		return "", fmt.Errorf("%w: network must be <resource group>/<virtual network>", types.ErrConfig)
	}
	return rg, nil
}

// resourceGroupOf reads the group from a resource id
// (/subscriptions/<sub>/resourceGroups/<rg>/providers/<ns>/<type>/<name>)
func resourceGroupOf(id string) string {
	parts := strings.Split(id, "/")
	if len(parts) < 5 {
		return ""
	}
	return parts[len(parts)-5]
}

func lastSegment(id string) string {
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[i+1:]
	}
	return id
}

func primaryNICID(vm *armcompute.VirtualMachine) string {
	if vm == nil || vm.Properties == nil || vm.Properties.NetworkProfile == nil {
		return ""
	}
	for _, ref := range vm.Properties.NetworkProfile.NetworkInterfaces {
		if ref != nil && ref.ID != nil {
			return *ref.ID
		}
	}
	return ""
}

func primaryIPConfig(nic *armnetwork.Interface) *armnetwork.InterfaceIPConfigurationPropertiesFormat {
	if nic == nil || nic.Properties == nil {
		return nil
	}
	for _, c := range nic.Properties.IPConfigurations {
		if c != nil && c.Properties != nil {
			return c.Properties
		}
	}
	return nil
}
