package ethereum

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/cuemby/catena/pkg/chain"
	"github.com/cuemby/catena/pkg/cloud"
	"github.com/cuemby/catena/pkg/log"
	"github.com/cuemby/catena/pkg/provisioner"
	"github.com/cuemby/catena/pkg/security"
	"github.com/cuemby/catena/pkg/types"
)

// BackendName is the chain_backend value handled by this package
const BackendName = "ethereum"

// ChainTypeProofOfWork is the only chain type with a synthesized genesis
const ChainTypeProofOfWork = "proof-of-work"

// NodeTypeMiner is the worker role of an ethereum chain
const NodeTypeMiner = "miner"

// Playbooks run for each node role
const (
	ControllerPlaybook = "deploy-controller.yml"
	NodePlaybook       = "deploy-geth.yml"
)

// chain_config keys
const (
	KeyType              = "type"
	KeyNetworkID         = "network_id"
	KeyGenesis           = "genesis"
	KeyMiningAccount     = "mining_account"
	KeyStatsSecret       = "stats_secret"
	KeyExternalBootnodes = "external_bootnodes"
	// KeyNodeID is the per-node chain_config key holding the enode id
	KeyNodeID = "eth_node_id"
)

const (
	minNetworkID = 5000
	maxNetworkID = 1<<53 - 1

	p2pPort           = 30303
	statsSecretLength = 16
	statsSecretChars  = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// KeyOpener materializes an encrypted private key as a scoped file
type KeyOpener interface {
	OpenDecryptedKey(blob string) (*security.KeyFile, error)
}

// Config holds the dependencies of the ethereum backend
type Config struct {
	Secrets     KeyOpener
	Provisioner provisioner.Provisioner
	// TempDir holds the genesis document during a run; empty means os.TempDir
	TempDir string
}

// Backend provisions geth networks
type Backend struct {
	secrets     KeyOpener
	provisioner provisioner.Provisioner
	tempDir     string
}

var _ chain.Backend = (*Backend)(nil)

// New creates an ethereum chain backend
func New(cfg Config) *Backend {
	return &Backend{
		secrets:     cfg.Secrets,
		provisioner: cfg.Provisioner,
		tempDir:     cfg.TempDir,
	}
}

// Info reports the supported chain and node types
func (b *Backend) Info() chain.BackendInfo {
	return chain.BackendInfo{
		ChainTypes: []string{ChainTypeProofOfWork},
		NodeTypes:  []string{NodeTypeMiner},
	}
}

// NodeConfig records the enode id of a node
func (b *Backend) NodeConfig(peerID string) map[string]any {
	return map[string]any{KeyNodeID: peerID}
}

// InitializeChain validates the chain_config and fills in the network id,
// genesis document and stats secret.
//
// A chain without an explicit type is treated as proof-of-work. A caller
// joining an existing network supplies both network_id and genesis.
func (b *Backend) InitializeChain(c *types.Chain) error {
	if c.ChainConfig == nil {
		c.ChainConfig = map[string]any{}
	}
	cfg := c.ChainConfig

	chainType := types.ConfigString(cfg, KeyType)
	if chainType == "" {
		chainType = ChainTypeProofOfWork
		cfg[KeyType] = chainType
	}
	hasNetworkID := present(cfg[KeyNetworkID])
	hasGenesis := present(cfg[KeyGenesis])
	if chainType != ChainTypeProofOfWork && !(hasNetworkID && hasGenesis) {
		return fmt.Errorf("%w: unknown chain type for ethereum: %s", types.ErrConfig, chainType)
	}
	if types.ConfigString(cfg, KeyMiningAccount) == "" {
		return fmt.Errorf("%w: must specify a mining account", types.ErrConfig)
	}

	if !hasNetworkID {
		id, err := randomNetworkID()
		if err != nil {
			return err
		}
		cfg[KeyNetworkID] = id
	}
	if !hasGenesis {
		cfg[KeyGenesis] = proofOfWorkGenesis(cfg[KeyNetworkID])
	}

	secret, err := randomString(statsSecretLength)
	if err != nil {
		return err
	}
	cfg[KeyStatsSecret] = secret
	return nil
}

// ProvisionController runs the controller playbook on the controller node
// and returns its enode id
func (b *Backend) ProvisionController(ctx context.Context, req chain.ProvisionRequest) (string, error) {
	vars, err := b.vars(req)
	if err != nil {
		return "", err
	}
	return b.run(ctx, ControllerPlaybook, req, vars)
}

// ProvisionNode runs the geth playbook on a worker node, pointing it at the
// controller for stats and at the chain's known peers for discovery
func (b *Backend) ProvisionNode(ctx context.Context, req chain.ProvisionRequest) (string, error) {
	vars, err := b.vars(req)
	if err != nil {
		return "", err
	}
	vars["stats_ip"] = req.ControllerIP
	vars["bootnodes"] = Bootnodes(req.Chain.ChainConfig, req.Peers)
	vars["etherbase"] = types.ConfigString(req.Chain.ChainConfig, KeyMiningAccount)
	return b.run(ctx, NodePlaybook, req, vars)
}

func (b *Backend) vars(req chain.ProvisionRequest) (map[string]any, error) {
	cfg := req.Chain.ChainConfig
	if !present(cfg[KeyNetworkID]) || !present(cfg[KeyStatsSecret]) {
		return nil, fmt.Errorf("%w: chain %s is not initialized", types.ErrConfig, req.Chain.ID)
	}
	var providerConfig map[string]any
	if req.Cloud != nil {
		providerConfig = req.Cloud.CloudConfig
	}
	return map[string]any{
		"network_id":   cfg[KeyNetworkID],
		"stats_secret": cfg[KeyStatsSecret],
		"proxy_env":    proxyEnv(types.ConfigString(providerConfig, "proxy")),
	}, nil
}

func (b *Backend) run(ctx context.Context, playbook string, req chain.ProvisionRequest, vars map[string]any) (string, error) {
	logger := log.WithNodeID(log.WithChainID(log.WithComponent("ethereum"), req.Chain.ID), req.Node.ID)

	cloudCfg, err := cloud.ParseChainCloudConfig(req.Chain)
	if err != nil {
		return "", err
	}
	genesis, err := json.Marshal(req.Chain.ChainConfig[KeyGenesis])
	if err != nil {
		return "", fmt.Errorf("%w: encode genesis: %v", types.ErrConfig, err)
	}

	var result *provisioner.Result
	err = security.WithTempFile(b.tempDir, "genesis-*.json", genesis, func(genesisPath string) error {
		nodeKey, err := b.secrets.OpenDecryptedKey(req.Node.SSHKey)
		if err != nil {
			return err
		}
		defer nodeKey.Close()

		jumpboxKey, err := b.secrets.OpenDecryptedKey(cloudCfg.JumpboxKey)
		if err != nil {
			return err
		}
		defer jumpboxKey.Close()

		vars["genesis_file"] = genesisPath
		logger.Debug().
			Str("playbook", playbook).
			Str("host", req.Node.IP).
			Msg("Provisioning node")

		result, err = b.provisioner.Run(ctx, provisioner.Request{
			Playbook:       playbook,
			Hosts:          []string{req.Node.IP},
			PrivateKeyPath: nodeKey.Path(),
			Vars:           vars,
			JumpboxIP:      req.JumpboxIP,
			JumpboxKeyPath: jumpboxKey.Path(),
		})
		return err
	})
	if err != nil {
		return "", err
	}

	id, err := ParsePeerID(result.NodeID)
	if err != nil {
		return "", err
	}
	logger.Info().Str("enode_id", id).Msg("Node provisioned")
	return id, nil
}

// Bootnodes builds the comma separated discovery list: external bootnodes
// first, then every peer that already reported an enode id.
func Bootnodes(chainConfig map[string]any, peers []*types.Node) string {
	nodes := stringList(chainConfig[KeyExternalBootnodes])
	for _, peer := range peers {
		id := types.ConfigString(peer.ChainConfig, KeyNodeID)
		if id == "" {
			continue
		}
		nodes = append(nodes, fmt.Sprintf("enode://%s@%s:%d", id, peer.IP, p2pPort))
	}
	return strings.Join(nodes, ",")
}

// ParsePeerID extracts the enode id from the raw value a playbook wrote.
// Playbooks print the id as a quoted string; a bare hex id is accepted too.
func ParsePeerID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, `"`) {
		parts := strings.Split(raw, `"`)
		if len(parts) >= 3 && parts[1] != "" {
			return parts[1], nil
		}
		return "", fmt.Errorf("%w: unparsable node id %q", types.ErrProvisioning, raw)
	}
	if raw == "" || !isHex(raw) {
		return "", fmt.Errorf("%w: unparsable node id %q", types.ErrProvisioning, raw)
	}
	return raw, nil
}

func proxyEnv(proxy string) map[string]string {
	if proxy == "" {
		return map[string]string{}
	}
	return map[string]string{
		"http_proxy":  proxy,
		"https_proxy": proxy,
		"ftp_proxy":   proxy,
		"no_proxy":    "localhost,127.0.0.1",
	}
}

func proofOfWorkGenesis(networkID any) map[string]any {
	zeroHash := "0x" + strings.Repeat("0", 64)
	return map[string]any{
		"alloc": map[string]any{},
		"config": map[string]any{
			// chainId follows the network id so wallets assuming the two are
			// equal keep working
			"chainId":        networkID,
			"homesteadBlock": 0,
			"eip155Block":    0,
			"eip158Block":    0,
		},
		"nonce":      "0x0000000000000042",
		"difficulty": "0x6666",
		"mixhash":    zeroHash,
		"coinbase":   "0x" + strings.Repeat("0", 40),
		"timestamp":  "0x00",
		"parentHash": zeroHash,
		"extraData":  "0x11bbe8db4e347b4e8c937c1c8370e4b5ed33adb3db69cbdb7a38e1e50b1b82fa",
		"gasLimit":   "0x4c4b40",
	}
}

func randomNetworkID() (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(maxNetworkID-minNetworkID+1))
	if err != nil {
		return 0, fmt.Errorf("generate network id: %w", err)
	}
	return n.Int64() + minNetworkID, nil
}

func randomString(n int) (string, error) {
	max := big.NewInt(int64(len(statsSecretChars)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate stats secret: %w", err)
		}
		out[i] = statsSecretChars[idx.Int64()]
	}
	return string(out), nil
}

// present reports whether a config value was supplied and is not a zero value
func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

func stringList(v any) []string {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return strings.Split(t, ",")
	}
	return nil
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
