package types

import (
	"time"
)

// Cloud is a configured cloud-provider account used to allocate nodes
type Cloud struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	Name           string         `json:"name"`
	Authentication map[string]any `json:"authentication"`
	CloudConfig    map[string]any `json:"cloud_config"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Chain is a provisioned private blockchain network bound to a cloud
type Chain struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	ChainBackend string         `json:"chain_backend"`
	CloudID      string         `json:"cloud_id"`
	Status       ChainStatus    `json:"status"`
	ChainConfig  map[string]any `json:"chain_config"`
	CloudConfig  map[string]any `json:"cloud_config"`
	Owner        string         `json:"owner"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// ChainStatus represents the lifecycle state of a chain
type ChainStatus string

const (
	ChainStatusCreating ChainStatus = "creating"
	ChainStatusActive   ChainStatus = "active"
	ChainStatusDeleting ChainStatus = "deleting"
	ChainStatusError    ChainStatus = "error"
)

// Node is a single VM instance participating in a chain.
// ID is the identifier assigned by the cloud provider.
type Node struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	ChainID     string         `json:"chain_id"`
	Type        string         `json:"type"`
	IP          string         `json:"ip"`
	SSHKey      string         `json:"ssh_key"` // encrypted PEM blob
	ChainConfig map[string]any `json:"chain_config"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NodeTypeController is the role of the single coordination node of a chain.
// Worker roles are defined by each chain backend.
const NodeTypeController = "controller"

// IsController reports whether the node holds the controller role
func (n *Node) IsController() bool {
	return n.Type == NodeTypeController
}

// CloudView is the externally visible form of a Cloud.
// Authentication is never part of it.
type CloudView struct {
	CloudConfig map[string]any `json:"cloud_config"`
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ChainView is the externally visible form of a Chain
type ChainView struct {
	ChainBackend string         `json:"chain_backend"`
	ChainConfig  map[string]any `json:"chain_config"`
	ID           string         `json:"id"`
	CloudID      string         `json:"cloud_id"`
	Name         string         `json:"name"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NodeView is the externally visible form of a Node, without key material
type NodeView struct {
	ChainConfig map[string]any `json:"chain_config"`
	IP          string         `json:"ip"`
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	ChainID     string         `json:"chain_id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// View returns the redacted form of the cloud
func (c *Cloud) View() *CloudView {
	return &CloudView{
		CloudConfig: copyMap(c.CloudConfig),
		ID:          c.ID,
		Name:        c.Name,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// View returns the redacted form of the chain
func (c *Chain) View() *ChainView {
	return &ChainView{
		ChainBackend: c.ChainBackend,
		ChainConfig:  copyMap(c.ChainConfig),
		ID:           c.ID,
		CloudID:      c.CloudID,
		Name:         c.Name,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// View returns the redacted form of the node
func (n *Node) View() *NodeView {
	return &NodeView{
		ChainConfig: copyMap(n.ChainConfig),
		IP:          n.IP,
		ID:          n.ID,
		Name:        n.Name,
		Type:        n.Type,
		ChainID:     n.ChainID,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
}

// ConfigString reads a string value from a config map, returning "" when the
// key is absent or holds a non-string value.
func ConfigString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
