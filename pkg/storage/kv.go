package storage

// kvTx is the minimal key/value surface an engine provides inside one
// transaction. get returns nil, nil for a missing key. scan visits keys with
// the given prefix in ascending order.
type kvTx interface {
	get(bucket, key []byte) ([]byte, error)
	put(bucket, key, value []byte) error
	delete(bucket, key []byte) error
	scan(bucket, prefix []byte, fn func(key, value []byte) error) error
}

var (
	// Bucket names
	bucketClouds = []byte("clouds")
	bucketChains = []byte("chains")
	bucketNodes  = []byte("nodes")

	buckets = [][]byte{bucketClouds, bucketChains, bucketNodes}
)

// nodes are keyed by chain so a chain's nodes can be scanned and cascaded
func nodeKey(chainID, nodeID string) []byte {
	return []byte(chainID + "/" + nodeID)
}

func nodePrefix(chainID string) []byte {
	return []byte(chainID + "/")
}
