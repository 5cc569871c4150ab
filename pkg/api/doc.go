/*
Package api serves the Catena orchestrator as a JSON REST API.

# Routes

	GET    /                                  API versions
	GET    /health  /ready  /metrics          health probes and Prometheus

	GET    /v1/clouds                         list clouds
	POST   /v1/clouds                         register a cloud
	GET    /v1/clouds/types                   supported cloud types
	GET    /v1/clouds/{id}/node_flavours      provider VM sizes
	GET    /v1/clouds/{id}/networks           provider networks
	GET    /v1/clouds/{id}/instances          provider instances

	GET    /v1/chains                         list chains
	POST   /v1/chains                         create a chain and its controller
	GET    /v1/chains/{id}                    get a chain
	DELETE /v1/chains/{id}                    delete a chain and all its nodes

	GET    /v1/chains/{id}/nodes              list nodes
	POST   /v1/chains/{id}/nodes              add a worker node
	GET    /v1/chains/{id}/nodes/{node_id}    get a node
	DELETE /v1/chains/{id}/nodes/{node_id}    remove a worker node

	GET    /v1/backends                       chain backend capabilities

List endpoints accept sort_key, sort_dir, marker and limit; any other query
parameter is an exact-match filter (name, status, cloud_id, chain_backend,
type).

Every entity is returned in its redacted view: cloud authentication and node
keys never leave the server.

# Errors

Errors are returned as {"error": "..."} with the status taken from the error
kind:

	validation, config     400
	not found              404
	conflict               409
	cloud, provisioning    502
	anything else          500

A failed creation that left cloud instances behind also lists them in
orphaned_instances.
*/
package api
