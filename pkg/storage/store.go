package storage

import (
	"context"

	"github.com/cuemby/catena/pkg/types"
)

// Store is a transactional store for clouds, chains and nodes.
//
// Every mutation performed inside one Update call commits together or not at
// all; returning an error from fn rolls the transaction back.
type Store interface {
	View(ctx context.Context, fn func(tx Tx) error) error
	Update(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// Tx is the set of entity operations available inside a transaction.
// Reads observe writes made earlier in the same transaction.
type Tx interface {
	// Clouds
	CreateCloud(cloud *types.Cloud) error
	GetCloud(id string) (*types.Cloud, error)
	ListClouds(opts ListOptions) ([]*types.Cloud, error)
	UpdateCloud(cloud *types.Cloud) error
	DeleteCloud(id string) error

	// Chains
	CreateChain(chain *types.Chain) error
	GetChain(id string) (*types.Chain, error)
	ListChains(opts ListOptions) ([]*types.Chain, error)
	UpdateChain(chain *types.Chain) error
	// DeleteChain removes the chain and every node that belongs to it
	DeleteChain(id string) error

	// Nodes
	CreateNode(node *types.Node) error
	GetNode(chainID, nodeID string) (*types.Node, error)
	GetControllerNode(chainID string) (*types.Node, error)
	ListNodes(chainID string, opts ListOptions) ([]*types.Node, error)
	UpdateNode(node *types.Node) error
	DeleteNode(chainID, nodeID string) error
}
