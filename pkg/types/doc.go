/*
Package types defines the core data structures shared by every Catena
component: the Cloud, Chain and Node entities, their redacted views, and the
error kinds used across the orchestrator.

# Entities

	Cloud 1 ──< Chain 1 ──< Node
	             │
	             └── exactly one Node of type "controller"

A Cloud holds a provider account (type, opaque authentication bundle and
provider settings). A Chain is a private blockchain network bound to one
Cloud. A Node is one cloud VM belonging to one Chain; its ID is the instance
identifier assigned by the provider.

# Redaction

Entities carry secrets (Cloud.Authentication, Node.SSHKey) and must never be
returned to callers directly. Each entity has a View method that builds the
whitelisted external form:

	CloudView{cloud_config, id, name, created_at, updated_at}
	ChainView{chain_backend, chain_config, id, cloud_id, name, created_at, updated_at}
	NodeView{chain_config, ip, id, name, type, chain_id, created_at, updated_at}

Views copy their config maps so callers cannot mutate stored state.

# Errors

Failures are classified with sentinel errors wrapped via fmt.Errorf("%w"):

	ErrValidation     missing or invalid caller input
	ErrConfig         backend-specific configuration absent
	ErrCredential     decrypt failure, bad passphrase
	ErrNotFound       unknown cloud, chain or node
	ErrCloudProvider  any cloud backend failure
	ErrProvisioning   provisioner failed or returned unparsable output
	ErrConflict       optimistic store transaction conflict

OrphanedResourcesError wraps the cause of a creation that failed after cloud
instances were allocated, so errors.Is still reports the original kind.
*/
package types
