/*
Package storage persists clouds, chains and nodes.

The Store interface exposes transactions rather than single-call CRUD so the
orchestrator can run a whole chain or node operation as one unit of work:

	err := store.Update(ctx, func(tx storage.Tx) error {
		if err := tx.CreateChain(chain); err != nil {
			return err
		}
		// cloud and provisioning calls ...
		return tx.CreateNode(controller)
	})

Returning an error from the callback discards every write made inside it.

# Engines

Two engines implement Store and share the entity logic in tx.go through a
small key/value adapter:

	bolt    go.etcd.io/bbolt, <dataDir>/catena.db, buckets clouds/chains/nodes.
	        One writer at a time.
	badger  github.com/dgraph-io/badger/v4, <dataDir>/catena-badger, keys
	        prefixed "<bucket>:". Optimistic; conflicts surface as
	        types.ErrConflict.

Values are JSON. Nodes are keyed "<chain id>/<node id>" so deleting a chain
cascades to its nodes with one prefix scan.

# Listing

ListOptions filters on exact attribute values, sorts by any attribute
(default created_at, descending) and pages with a marker id and a limit.
Unknown ids return errors wrapping types.ErrNotFound.
*/
package storage
