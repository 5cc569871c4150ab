package provisioner

import (
	"context"
)

// Request describes one remote configuration run
type Request struct {
	// Playbook is a deployment name, resolved against the playbook directory
	// unless absolute
	Playbook       string
	Hosts          []string
	PrivateKeyPath string
	Vars           map[string]any
	JumpboxIP      string
	JumpboxKeyPath string
	// User overrides the runner's default remote user
	User string
}

// Result is the structured outcome of a run
type Result struct {
	Output string
	// NodeID is the raw identifier the deployment reported for the host,
	// empty if it reported none
	NodeID string
}

// Provisioner applies a deployment to hosts reachable through a jumpbox
type Provisioner interface {
	Run(ctx context.Context, req Request) (*Result, error)
}
