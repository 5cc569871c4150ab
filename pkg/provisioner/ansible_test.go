package provisioner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/cuemby/catena/pkg/types"
	"github.com/kballard/go-shellquote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHelperProcess stands in for ansible-playbook in tests
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for i, a := range args {
		if a == "--" {
			args = args[i+1:]
			break
		}
	}

	var vars map[string]any
	for _, a := range args {
		if v, ok := strings.CutPrefix(a, "--extra-vars="); ok {
			if err := json.Unmarshal([]byte(v), &vars); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}
		}
	}

	fmt.Println("PLAY [all] ****")
	if os.Getenv("HELPER_FAIL") == "1" {
		fmt.Println("fatal: [10.0.0.5]: UNREACHABLE!")
		os.Exit(4)
	}
	path, _ := vars[NodeIDFileVar].(string)
	os.WriteFile(path, []byte("\"abc123\"\n"), 0600)
	os.Exit(0)
}

func helperAnsible(t *testing.T, fail bool) *Ansible {
	t.Helper()
	a := NewAnsible(AnsibleConfig{PlaybookDir: "/opt/catena/playbooks", TempDir: t.TempDir()})
	a.execCommand = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
		if fail {
			cmd.Env = append(cmd.Env, "HELPER_FAIL=1")
		}
		return cmd
	}
	return a
}

func TestArgs(t *testing.T) {
	a := NewAnsible(AnsibleConfig{PlaybookDir: "/opt/catena/playbooks"})
	args, err := a.Args(Request{
		Playbook:       "deploy-geth.yml",
		Hosts:          []string{"10.0.0.5", "10.0.0.6"},
		PrivateKeyPath: "/tmp/node key",
		JumpboxIP:      "52.1.2.3",
		JumpboxKeyPath: "/tmp/jump key",
	}, map[string]any{"network_id": 5001})
	require.NoError(t, err)

	require.Len(t, args, 7)
	assert.Equal(t, "/opt/catena/playbooks/deploy-geth.yml", args[0])
	assert.Equal(t, []string{"-i", "10.0.0.5,10.0.0.6,"}, args[1:3])
	assert.Equal(t, "--user=ubuntu", args[3])
	assert.Equal(t, "--private-key=/tmp/node key", args[4])
	assert.JSONEq(t, `{"network_id":5001}`, strings.TrimPrefix(args[6], "--extra-vars="))

	sshArgs, err := shellquote.Split(strings.TrimPrefix(args[5], "--ssh-common-args="))
	require.NoError(t, err)
	require.Len(t, sshArgs, 4)
	assert.Equal(t, "-o", sshArgs[0])
	assert.Equal(t, "-o", sshArgs[2])
	assert.Equal(t, "StrictHostKeyChecking=no", sshArgs[3])

	proxy, ok := strings.CutPrefix(sshArgs[1], "ProxyCommand=")
	require.True(t, ok)
	proxyArgs, err := shellquote.Split(proxy)
	require.NoError(t, err)
	assert.Equal(t, []string{"ssh", "-q", "-i", "/tmp/jump key", "-W", "%h:%p", "ubuntu@52.1.2.3"}, proxyArgs)
}

func TestArgsNoHosts(t *testing.T) {
	a := NewAnsible(AnsibleConfig{})
	_, err := a.Args(Request{Playbook: "x.yml"}, nil)
	assert.True(t, errors.Is(err, types.ErrProvisioning))
}

func TestRun(t *testing.T) {
	a := helperAnsible(t, false)
	res, err := a.Run(context.Background(), Request{
		Playbook:       "deploy-controller.yml",
		Hosts:          []string{"10.0.0.5"},
		PrivateKeyPath: "/tmp/key",
		Vars:           map[string]any{"network_id": 5001},
	})
	require.NoError(t, err)
	assert.Equal(t, `"abc123"`, res.NodeID)
	assert.Contains(t, res.Output, "PLAY [all]")
}

func TestRunFailure(t *testing.T) {
	a := helperAnsible(t, true)
	_, err := a.Run(context.Background(), Request{
		Playbook: "deploy-controller.yml",
		Hosts:    []string{"10.0.0.5"},
	})
	assert.True(t, errors.Is(err, types.ErrProvisioning))
	assert.Contains(t, err.Error(), "UNREACHABLE")
}

func TestRunCleansNodeIDFile(t *testing.T) {
	a := helperAnsible(t, false)
	_, err := a.Run(context.Background(), Request{Playbook: "p.yml", Hosts: []string{"h"}})
	require.NoError(t, err)

	entries, err := os.ReadDir(a.cfg.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
