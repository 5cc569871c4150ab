package azure

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v2"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork"
	jujuerrors "github.com/juju/errors"
)

var errResourceNotFound = errors.New("resource not found")

// api is the slice of the Azure resource manager the backend uses
type api interface {
	vmSizes(ctx context.Context, location string) ([]string, error)
	virtualNetworks(ctx context.Context) ([]*armnetwork.VirtualNetwork, error)
	virtualMachines(ctx context.Context) ([]string, error)

	getVM(ctx context.Context, rg, name string) (*armcompute.VirtualMachine, error)
	createVM(ctx context.Context, rg, name string, vm armcompute.VirtualMachine) (*armcompute.VirtualMachine, error)
	deleteVM(ctx context.Context, rg, name string) error
	deleteDisk(ctx context.Context, rg, name string) error

	getNIC(ctx context.Context, rg, name string) (*armnetwork.Interface, error)
	createNIC(ctx context.Context, rg, name string, nic armnetwork.Interface) (*armnetwork.Interface, error)
	deleteNIC(ctx context.Context, rg, name string) error
	getPublicIP(ctx context.Context, rg, name string) (*armnetwork.PublicIPAddress, error)
}

// Authentication is the service principal stored with an Azure cloud
type Authentication struct {
	Location       string `mapstructure:"location"`
	ClientID       string `mapstructure:"client_id"`
	Secret         string `mapstructure:"secret"`
	Tenant         string `mapstructure:"tenant"`
	SubscriptionID string `mapstructure:"subscription_id"`
}

func (a *Authentication) validate() error {
	for key, v := range map[string]string{
		"location":        a.Location,
		"client_id":       a.ClientID,
		"secret":          a.Secret,
		"tenant":          a.Tenant,
		"subscription_id": a.SubscriptionID,
	} {
		if v == "" {
			return fmt.Errorf("missing %s", key)
		}
	}
	return nil
}

type armAPI struct {
	vms      *armcompute.VirtualMachinesClient
	sizes    *armcompute.VirtualMachineSizesClient
	disks    *armcompute.DisksClient
	nics     *armnetwork.InterfacesClient
	vnets    *armnetwork.VirtualNetworksClient
	publicIP *armnetwork.PublicIPAddressesClient
}

func newARMAPI(auth *Authentication) (*armAPI, error) {
	cred, err := azidentity.NewClientSecretCredential(auth.Tenant, auth.ClientID, auth.Secret, nil)
	if err != nil {
		return nil, jujuerrors.Annotate(err, "creating credential")
	}

	a := &armAPI{}
	sub := auth.SubscriptionID
	if a.vms, err = armcompute.NewVirtualMachinesClient(sub, cred, nil); err != nil {
		return nil, jujuerrors.Trace(err)
	}
	if a.sizes, err = armcompute.NewVirtualMachineSizesClient(sub, cred, nil); err != nil {
		return nil, jujuerrors.Trace(err)
	}
	if a.disks, err = armcompute.NewDisksClient(sub, cred, nil); err != nil {
		return nil, jujuerrors.Trace(err)
	}
	if a.nics, err = armnetwork.NewInterfacesClient(sub, cred, nil); err != nil {
		return nil, jujuerrors.Trace(err)
	}
	if a.vnets, err = armnetwork.NewVirtualNetworksClient(sub, cred, nil); err != nil {
		return nil, jujuerrors.Trace(err)
	}
	if a.publicIP, err = armnetwork.NewPublicIPAddressesClient(sub, cred, nil); err != nil {
		return nil, jujuerrors.Trace(err)
	}
	return a, nil
}

func notFound(err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %v", errResourceNotFound, err)
	}
	return err
}

func (a *armAPI) vmSizes(ctx context.Context, location string) ([]string, error) {
	var out []string
	pager := a.sizes.NewListPager(location, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, jujuerrors.Trace(err)
		}
		for _, s := range page.Value {
			out = append(out, toValue(s.Name))
		}
	}
	return out, nil
}

func (a *armAPI) virtualNetworks(ctx context.Context) ([]*armnetwork.VirtualNetwork, error) {
	var out []*armnetwork.VirtualNetwork
	pager := a.vnets.NewListAllPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, jujuerrors.Trace(err)
		}
		out = append(out, page.Value...)
	}
	return out, nil
}

func (a *armAPI) virtualMachines(ctx context.Context) ([]string, error) {
	var out []string
	pager := a.vms.NewListAllPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, jujuerrors.Trace(err)
		}
		for _, vm := range page.Value {
			out = append(out, toValue(vm.Name))
		}
	}
	return out, nil
}

func (a *armAPI) getVM(ctx context.Context, rg, name string) (*armcompute.VirtualMachine, error) {
	resp, err := a.vms.Get(ctx, rg, name, nil)
	if err != nil {
		return nil, notFound(err)
	}
	return &resp.VirtualMachine, nil
}

func (a *armAPI) createVM(ctx context.Context, rg, name string, vm armcompute.VirtualMachine) (*armcompute.VirtualMachine, error) {
	poller, err := a.vms.BeginCreateOrUpdate(ctx, rg, name, vm, nil)
	if err != nil {
		return nil, jujuerrors.Trace(err)
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return nil, jujuerrors.Trace(err)
	}
	return &resp.VirtualMachine, nil
}

func (a *armAPI) deleteVM(ctx context.Context, rg, name string) error {
	poller, err := a.vms.BeginDelete(ctx, rg, name, nil)
	if err != nil {
		return notFound(err)
	}
	_, err = poller.PollUntilDone(ctx, nil)
	return notFound(err)
}

func (a *armAPI) deleteDisk(ctx context.Context, rg, name string) error {
	poller, err := a.disks.BeginDelete(ctx, rg, name, nil)
	if err != nil {
		return notFound(err)
	}
	_, err = poller.PollUntilDone(ctx, nil)
	return notFound(err)
}

func (a *armAPI) getNIC(ctx context.Context, rg, name string) (*armnetwork.Interface, error) {
	resp, err := a.nics.Get(ctx, rg, name, nil)
	if err != nil {
		return nil, notFound(err)
	}
	return &resp.Interface, nil
}

func (a *armAPI) createNIC(ctx context.Context, rg, name string, nic armnetwork.Interface) (*armnetwork.Interface, error) {
	poller, err := a.nics.BeginCreateOrUpdate(ctx, rg, name, nic, nil)
	if err != nil {
		return nil, jujuerrors.Trace(err)
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return nil, jujuerrors.Trace(err)
	}
	return &resp.Interface, nil
}

func (a *armAPI) deleteNIC(ctx context.Context, rg, name string) error {
	poller, err := a.nics.BeginDelete(ctx, rg, name, nil)
	if err != nil {
		return notFound(err)
	}
	_, err = poller.PollUntilDone(ctx, nil)
	return notFound(err)
}

func (a *armAPI) getPublicIP(ctx context.Context, rg, name string) (*armnetwork.PublicIPAddress, error) {
	resp, err := a.publicIP.Get(ctx, rg, name, nil)
	if err != nil {
		return nil, notFound(err)
	}
	return &resp.PublicIPAddress, nil
}

func toValue[T any](v *T) T {
	if v == nil {
		var zero T
		return zero
	}
	return *v
}
