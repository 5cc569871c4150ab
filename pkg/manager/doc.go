/*
Package manager implements the Catena orchestrator: the component that turns
requests for clouds, chains and nodes into ordered calls to the cloud backend,
the chain backend and the store.

# Architecture

	┌──────────────────────── ORCHESTRATOR ────────────────────────┐
	│                                                                │
	│   REST API / CLI                                               │
	│        │                                                       │
	│   ┌────▼──────────────────────────────────────────┐          │
	│   │                  Manager                        │          │
	│   │  - one store transaction per mutating call      │          │
	│   │  - per-chain lock for node and chain mutations  │          │
	│   │  - spans, metrics and events per operation      │          │
	│   └───┬───────────────┬───────────────┬────────────┘          │
	│       │               │               │                        │
	│  ┌────▼─────┐   ┌─────▼──────┐   ┌────▼──────┐                │
	│  │  cloud   │   │   chain    │   │  storage  │                │
	│  │ registry │   │  registry  │   │ bolt/badger│                │
	│  └──────────┘   └────────────┘   └───────────┘                │
	└────────────────────────────────────────────────────────────────┘

# Chain Creation

CreateChain runs these steps in order inside one transaction; any failure
rolls the whole chain back:

 1. load the cloud and resolve its backend
 2. insert the chain with status "creating"
 3. chain backend InitializeChain (network id, genesis, stats secret)
 4. cloud backend InitializeCloud (jumpbox address, network, key encryption)
 5. generate the controller key pair
 6. cloud backend AddNode for "<name>_controller"
 7. insert the controller node
 8. chain backend ProvisionController, record its peer id
 9. mark the chain "active"

CreateNode follows the same pattern for a worker, passing every existing
node of the chain as a peer so the new node receives the full bootnode list.

# Partial Failures

The store transaction cannot roll back a VM. When a call fails after step 6
the error is a *types.OrphanedResourcesError listing the allocated instance
ids; errors.Is still matches the underlying kind. With CompensateOnFailure
the manager deletes those instances before returning and lists them in
Released.

DeleteChain is a best-effort sweep: a failed instance deletion is logged,
counted in catena_cloud_delete_failures_total and published as an
instances.orphaned event, and the chain record is removed anyway.

# Concurrency

Mutations of the same chain are serialized with a keyed mutex, so two
CreateNode calls never race on bootnode discovery. The bolt engine also
serializes all writers; the badger engine lets writers on different chains
run concurrently and reports a lost race as types.ErrConflict.
*/
package manager
