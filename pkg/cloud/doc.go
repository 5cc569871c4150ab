/*
Package cloud defines the capability every cloud provider implements for
Catena and the registry that selects a provider by a cloud's type.

	registry := cloud.NewRegistry(cloud.Environment{Secrets: sm, BaseImage: cfg.BaseImage})
	registry.Register(openstack.ProviderType, openstack.Factory)
	registry.Register(azure.ProviderType, azure.Factory)

	backend, err := registry.Backend(storedCloud)

The orchestrator only talks to Backend; adding a provider means adding a
package with a Factory and registering it.

# Chain cloud configuration

Every chain carries a cloud_config map. The keys shared by all providers are
decoded into ChainCloudConfig:

	jumpbox             bastion VM name (required)
	jumpbox_key         bastion private key, encrypted on first use (required)
	controller_flavour  flavour of the controller VM (required)
	network             provider network the nodes attach to
	jumpbox_ip          discovered public address of the bastion
	network_id          discovered network or subnet id
	security_group      discovered security group id

Errors from provider SDKs are wrapped with ProviderError so callers can test
for types.ErrCloudProvider.
*/
package cloud
