package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuemby/catena/pkg/types"
)

// entityTx implements Tx on top of any engine's kvTx
type entityTx struct {
	kv  kvTx
	now func() time.Time
}

func newTx(kv kvTx) *entityTx {
	return &entityTx{kv: kv, now: func() time.Time { return time.Now().UTC() }}
}

func (t *entityTx) load(bucket, key []byte, kind, id string, out any) error {
	data, err := t.kv.get(bucket, key)
	if err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("%w: %s %s", types.ErrNotFound, kind, id)
	}
	return json.Unmarshal(data, out)
}

func (t *entityTx) save(bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return t.kv.put(bucket, key, data)
}

func (t *entityTx) exists(bucket, key []byte) (bool, error) {
	data, err := t.kv.get(bucket, key)
	return data != nil, err
}

func (t *entityTx) insert(bucket, key []byte, kind, id string, v any) error {
	if id == "" {
		return fmt.Errorf("%w: %s id is required", types.ErrValidation, kind)
	}
	found, err := t.exists(bucket, key)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("%w: %s %s already exists", types.ErrConflict, kind, id)
	}
	return t.save(bucket, key, v)
}

func (t *entityTx) replace(bucket, key []byte, kind, id string, v any) error {
	found, err := t.exists(bucket, key)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s %s", types.ErrNotFound, kind, id)
	}
	return t.save(bucket, key, v)
}

// Cloud operations
func (t *entityTx) CreateCloud(cloud *types.Cloud) error {
	cloud.CreatedAt = t.now()
	cloud.UpdatedAt = cloud.CreatedAt
	return t.insert(bucketClouds, []byte(cloud.ID), "cloud", cloud.ID, cloud)
}

func (t *entityTx) GetCloud(id string) (*types.Cloud, error) {
	var cloud types.Cloud
	if err := t.load(bucketClouds, []byte(id), "cloud", id, &cloud); err != nil {
		return nil, err
	}
	return &cloud, nil
}

func (t *entityTx) ListClouds(opts ListOptions) ([]*types.Cloud, error) {
	var clouds []*types.Cloud
	err := t.kv.scan(bucketClouds, nil, func(_, v []byte) error {
		var cloud types.Cloud
		if err := json.Unmarshal(v, &cloud); err != nil {
			return err
		}
		clouds = append(clouds, &cloud)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return apply(clouds, opts, cloudAttr)
}

func (t *entityTx) UpdateCloud(cloud *types.Cloud) error {
	cloud.UpdatedAt = t.now()
	return t.replace(bucketClouds, []byte(cloud.ID), "cloud", cloud.ID, cloud)
}

func (t *entityTx) DeleteCloud(id string) error {
	if _, err := t.GetCloud(id); err != nil {
		return err
	}
	inUse := false
	err := t.kv.scan(bucketChains, nil, func(_, v []byte) error {
		var chain types.Chain
		if err := json.Unmarshal(v, &chain); err != nil {
			return err
		}
		if chain.CloudID == id {
			inUse = true
		}
		return nil
	})
	if err != nil {
		return err
	}
	if inUse {
		return fmt.Errorf("%w: cloud %s is used by a chain", types.ErrConflict, id)
	}
	return t.kv.delete(bucketClouds, []byte(id))
}

// Chain operations
func (t *entityTx) CreateChain(chain *types.Chain) error {
	chain.CreatedAt = t.now()
	chain.UpdatedAt = chain.CreatedAt
	return t.insert(bucketChains, []byte(chain.ID), "chain", chain.ID, chain)
}

func (t *entityTx) GetChain(id string) (*types.Chain, error) {
	var chain types.Chain
	if err := t.load(bucketChains, []byte(id), "chain", id, &chain); err != nil {
		return nil, err
	}
	return &chain, nil
}

func (t *entityTx) ListChains(opts ListOptions) ([]*types.Chain, error) {
	var chains []*types.Chain
	err := t.kv.scan(bucketChains, nil, func(_, v []byte) error {
		var chain types.Chain
		if err := json.Unmarshal(v, &chain); err != nil {
			return err
		}
		chains = append(chains, &chain)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return apply(chains, opts, chainAttr)
}

func (t *entityTx) UpdateChain(chain *types.Chain) error {
	chain.UpdatedAt = t.now()
	return t.replace(bucketChains, []byte(chain.ID), "chain", chain.ID, chain)
}

func (t *entityTx) DeleteChain(id string) error {
	if _, err := t.GetChain(id); err != nil {
		return err
	}

	var keys [][]byte
	err := t.kv.scan(bucketNodes, nodePrefix(id), func(k, _ []byte) error {
		keys = append(keys, append([]byte(nil), k...))
		return nil
	})
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := t.kv.delete(bucketNodes, k); err != nil {
			return err
		}
	}
	return t.kv.delete(bucketChains, []byte(id))
}

// Node operations
func (t *entityTx) CreateNode(node *types.Node) error {
	if _, err := t.GetChain(node.ChainID); err != nil {
		return err
	}
	node.CreatedAt = t.now()
	node.UpdatedAt = node.CreatedAt
	return t.insert(bucketNodes, nodeKey(node.ChainID, node.ID), "node", node.ID, node)
}

func (t *entityTx) GetNode(chainID, nodeID string) (*types.Node, error) {
	var node types.Node
	if err := t.load(bucketNodes, nodeKey(chainID, nodeID), "node", nodeID, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

func (t *entityTx) GetControllerNode(chainID string) (*types.Node, error) {
	nodes, err := t.ListNodes(chainID, ListOptions{Filters: map[string]string{"type": types.NodeTypeController}})
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: controller node of chain %s", types.ErrNotFound, chainID)
	}
	return nodes[0], nil
}

func (t *entityTx) ListNodes(chainID string, opts ListOptions) ([]*types.Node, error) {
	var nodes []*types.Node
	err := t.kv.scan(bucketNodes, nodePrefix(chainID), func(_, v []byte) error {
		var node types.Node
		if err := json.Unmarshal(v, &node); err != nil {
			return err
		}
		nodes = append(nodes, &node)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return apply(nodes, opts, nodeAttr)
}

func (t *entityTx) UpdateNode(node *types.Node) error {
	node.UpdatedAt = t.now()
	return t.replace(bucketNodes, nodeKey(node.ChainID, node.ID), "node", node.ID, node)
}

func (t *entityTx) DeleteNode(chainID, nodeID string) error {
	if _, err := t.GetNode(chainID, nodeID); err != nil {
		return err
	}
	return t.kv.delete(bucketNodes, nodeKey(chainID, nodeID))
}
