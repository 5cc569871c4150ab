/*
Package chain defines the capability every blockchain type implements and the
registry the orchestrator uses to pick one by a chain's chain_backend.

A backend owns the chain-specific part of the lifecycle:

	InitializeChain      validate chain_config, generate ids and secrets
	ProvisionController  configure the controller VM, return its peer id
	ProvisionNode        configure a worker VM with the chain's bootnodes
	NodeConfig           per-node chain_config that records a peer id

Provisioning goes through a provisioner.Provisioner; plaintext keys and
generated documents only exist as scoped temporary files for the duration of
the run.
*/
package chain
