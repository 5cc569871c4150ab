package openstack

import (
	"github.com/go-goose/goose/v5/client"
	gooseerrors "github.com/go-goose/goose/v5/errors"
	"github.com/go-goose/goose/v5/glance"
	"github.com/go-goose/goose/v5/identity"
	"github.com/go-goose/goose/v5/neutron"
	"github.com/go-goose/goose/v5/nova"
	"github.com/juju/errors"
)

// api is the slice of the OpenStack compute and network services the backend uses
type api interface {
	flavors() ([]nova.FlavorDetail, error)
	servers() ([]nova.ServerDetail, error)
	images() ([]glance.Image, error)
	networks() ([]neutron.NetworkV2, error)
	runServer(opts nova.RunServerOpts) (*nova.Entity, error)
	getServer(id string) (*nova.ServerDetail, error)
	deleteServer(id string) error
}

var errServerNotFound = errors.New("server not found")

type gooseAPI struct {
	nova    *nova.Client
	glance  *glance.Client
	neutron *neutron.Client
}

func newGooseAPI(auth *Authentication) (*gooseAPI, error) {
	creds, mode := auth.credentials()
	c := client.NewClient(creds, mode, nil)
	if err := c.Authenticate(); err != nil {
		return nil, errors.Annotate(err, "authentication failed")
	}
	return &gooseAPI{
		nova:    nova.New(c),
		glance:  glance.New(c),
		neutron: neutron.New(c),
	}, nil
}

func (g *gooseAPI) flavors() ([]nova.FlavorDetail, error) {
	return g.nova.ListFlavorsDetail()
}

func (g *gooseAPI) servers() ([]nova.ServerDetail, error) {
	return g.nova.ListServersDetail(nil)
}

func (g *gooseAPI) images() ([]glance.Image, error) {
	return g.glance.ListImages()
}

func (g *gooseAPI) networks() ([]neutron.NetworkV2, error) {
	return g.neutron.ListNetworksV2()
}

func (g *gooseAPI) runServer(opts nova.RunServerOpts) (*nova.Entity, error) {
	return g.nova.RunServer(opts)
}

func (g *gooseAPI) getServer(id string) (*nova.ServerDetail, error) {
	return g.nova.GetServer(id)
}

func (g *gooseAPI) deleteServer(id string) error {
	err := g.nova.DeleteServer(id)
	if gooseerrors.IsNotFound(err) {
		return errServerNotFound
	}
	return err
}

// Authentication is the credential bundle stored with an OpenStack cloud
type Authentication struct {
	AuthURL           string `mapstructure:"auth_url"`
	Username          string `mapstructure:"username"`
	Password          string `mapstructure:"password"`
	ProjectName       string `mapstructure:"project_name"`
	TenantName        string `mapstructure:"tenant_name"`
	TenantID          string `mapstructure:"tenant_id"`
	Region            string `mapstructure:"region_name"`
	DomainName        string `mapstructure:"domain_name"`
	UserDomainName    string `mapstructure:"user_domain_name"`
	ProjectDomainName string `mapstructure:"project_domain_name"`
	Version           int    `mapstructure:"identity_api_version"`
}

func (a *Authentication) validate() error {
	if a.AuthURL == "" {
		return errors.NotValidf("missing auth_url")
	}
	if a.Username == "" || a.Password == "" {
		return errors.NotValidf("missing username or password")
	}
	return nil
}

func (a *Authentication) credentials() (*identity.Credentials, identity.AuthMode) {
	tenant := a.TenantName
	if tenant == "" {
		tenant = a.ProjectName
	}
	creds := &identity.Credentials{
		URL:           a.AuthURL,
		User:          a.Username,
		Secrets:       a.Password,
		Region:        a.Region,
		TenantName:    tenant,
		TenantID:      a.TenantID,
		Domain:        a.DomainName,
		UserDomain:    a.UserDomainName,
		ProjectDomain: a.ProjectDomainName,
		Version:       a.Version,
	}

	mode := identity.AuthUserPass
	switch {
	case a.Version >= 3:
		mode = identity.AuthUserPassV3
	case a.Version == 0 && (a.DomainName != "" || a.UserDomainName != "" || a.ProjectDomainName != ""):
		mode = identity.AuthUserPassV3
	}
	return creds, mode
}
