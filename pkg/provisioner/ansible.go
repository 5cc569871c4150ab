package provisioner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cuemby/catena/pkg/log"
	"github.com/cuemby/catena/pkg/types"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"
)

// NodeIDFileVar is the variable naming the file a playbook writes the
// node's peer identifier to
const NodeIDFileVar = "node_id_file"

// number of output bytes kept in error messages
const outputTail = 2048

// AnsibleConfig configures the ansible-playbook runner
type AnsibleConfig struct {
	// Binary defaults to "ansible-playbook"
	Binary      string
	PlaybookDir string
	// User defaults to "ubuntu"
	User    string
	TempDir string
}

// Ansible runs deployments with ansible-playbook
type Ansible struct {
	cfg    AnsibleConfig
	logger zerolog.Logger

	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewAnsible creates an ansible-playbook runner
func NewAnsible(cfg AnsibleConfig) *Ansible {
	if cfg.Binary == "" {
		cfg.Binary = "ansible-playbook"
	}
	if cfg.User == "" {
		cfg.User = "ubuntu"
	}
	return &Ansible{
		cfg:         cfg,
		logger:      log.WithComponent("provisioner"),
		execCommand: exec.CommandContext,
	}
}

// Run executes the playbook and collects the node identifier it reports
func (a *Ansible) Run(ctx context.Context, req Request) (*Result, error) {
	idFile, err := os.CreateTemp(a.cfg.TempDir, "catena-node-id-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create node id file: %w", err)
	}
	idPath := idFile.Name()
	idFile.Close()
	defer os.Remove(idPath)

	vars := make(map[string]any, len(req.Vars)+1)
	for k, v := range req.Vars {
		vars[k] = v
	}
	vars[NodeIDFileVar] = idPath

	args, err := a.Args(req, vars)
	if err != nil {
		return nil, err
	}

	a.logger.Debug().
		Str("playbook", req.Playbook).
		Strs("hosts", req.Hosts).
		Msg("Running: " + shellquote.Join(append([]string{a.cfg.Binary}, args[:len(args)-1]...)...))

	var out bytes.Buffer
	cmd := a.execCommand(ctx, a.cfg.Binary, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		a.logger.Error().Err(err).Str("playbook", req.Playbook).Msg("Playbook failed")
		return nil, fmt.Errorf("%w: %s failed: %v: %s", types.ErrProvisioning, req.Playbook, err, tail(out.String()))
	}

	nodeID, err := os.ReadFile(idPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading node id: %v", types.ErrProvisioning, err)
	}

	return &Result{
		Output: out.String(),
		NodeID: strings.TrimSpace(string(nodeID)),
	}, nil
}

// Args builds the ansible-playbook argument list. The process is started
// without a shell, so values are passed unquoted.
func (a *Ansible) Args(req Request, vars map[string]any) ([]string, error) {
	if len(req.Hosts) == 0 {
		return nil, fmt.Errorf("%w: no target hosts", types.ErrProvisioning)
	}

	playbook := req.Playbook
	if !filepath.IsAbs(playbook) {
		playbook = filepath.Join(a.cfg.PlaybookDir, playbook)
	}
	user := req.User
	if user == "" {
		user = a.cfg.User
	}

	extraVars, err := json.Marshal(vars)
	if err != nil {
		return nil, fmt.Errorf("failed to encode extra vars: %w", err)
	}

	args := []string{
		playbook,
		// a trailing comma makes ansible treat the list as inline hosts
		"-i", strings.Join(req.Hosts, ",") + ",",
		"--user=" + user,
		"--private-key=" + req.PrivateKeyPath,
	}
	if req.JumpboxIP != "" {
		args = append(args, "--ssh-common-args="+SSHCommonArgs(user, req.JumpboxIP, req.JumpboxKeyPath))
	}
	// extra vars stay last so they can be left out of logs
	return append(args, "--extra-vars="+string(extraVars)), nil
}

// SSHCommonArgs returns ssh options that reach hosts through the jumpbox
func SSHCommonArgs(user, jumpboxIP, jumpboxKeyPath string) string {
	proxy := "ssh -q -i " + shellquote.Join(jumpboxKeyPath) + " -W %h:%p " + user + "@" + jumpboxIP
	return shellquote.Join("-o", "ProxyCommand="+proxy, "-o", "StrictHostKeyChecking=no")
}

func tail(s string) string {
	if len(s) <= outputTail {
		return s
	}
	return "..." + s[len(s)-outputTail:]
}
