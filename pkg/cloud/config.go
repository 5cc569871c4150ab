package cloud

import (
	"fmt"

	"github.com/cuemby/catena/pkg/security"
	"github.com/cuemby/catena/pkg/types"
	"github.com/mitchellh/mapstructure"
	"golang.org/x/crypto/ssh"
)

// Keys of a chain's cloud_config
const (
	KeyJumpbox           = "jumpbox"
	KeyJumpboxKey        = "jumpbox_key"
	KeyControllerFlavour = "controller_flavour"
	KeyNetwork           = "network"
	KeyJumpboxIP         = "jumpbox_ip"
	KeyNetworkID         = "network_id"
	KeySecurityGroup     = "security_group"
)

// ChainCloudConfig is the typed form of a chain's cloud_config
type ChainCloudConfig struct {
	Jumpbox           string `mapstructure:"jumpbox"`
	JumpboxKey        string `mapstructure:"jumpbox_key"`
	ControllerFlavour string `mapstructure:"controller_flavour"`
	Network           string `mapstructure:"network"`

	// discovered by InitializeCloud
	JumpboxIP     string `mapstructure:"jumpbox_ip"`
	NetworkID     string `mapstructure:"network_id"`
	SecurityGroup string `mapstructure:"security_group"`
}

// Decode reads a config map into out, ignoring unknown keys
func Decode(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

// ParseChainCloudConfig decodes a chain's cloud_config without validating it
func ParseChainCloudConfig(chain *types.Chain) (*ChainCloudConfig, error) {
	var cfg ChainCloudConfig
	if err := Decode(chain.CloudConfig, &cfg); err != nil {
		return nil, fmt.Errorf("%w: invalid cloud_config: %v", types.ErrConfig, err)
	}
	return &cfg, nil
}

// PrepareChainCloudConfig checks the settings every provider needs and
// replaces a plaintext jumpbox key with its encrypted form in the chain.
func PrepareChainCloudConfig(chain *types.Chain, secrets KeyEncrypter) (*ChainCloudConfig, error) {
	cfg, err := ParseChainCloudConfig(chain)
	if err != nil {
		return nil, err
	}

	if cfg.Jumpbox == "" {
		return nil, fmt.Errorf("%w: must specify a jumpbox", types.ErrConfig)
	}
	if cfg.JumpboxKey == "" {
		return nil, fmt.Errorf("%w: must specify a jumpbox ssh key", types.ErrConfig)
	}
	if cfg.ControllerFlavour == "" {
		return nil, fmt.Errorf("%w: must specify a controller flavour", types.ErrConfig)
	}

	if !security.IsEncrypted(cfg.JumpboxKey) {
		encrypted, err := secrets.EncryptPrivateKey(cfg.JumpboxKey)
		if err != nil {
			return nil, err
		}
		cfg.JumpboxKey = encrypted
		chain.CloudConfig[KeyJumpboxKey] = encrypted
		return cfg, nil
	}

	plaintext, err := secrets.Decrypt(cfg.JumpboxKey)
	if err != nil {
		return nil, fmt.Errorf("jumpbox key: %w", err)
	}
	defer clear(plaintext)
	if _, err := ssh.ParseRawPrivateKey(plaintext); err != nil {
		return nil, fmt.Errorf("%w: jumpbox key: %v", types.ErrCredential, err)
	}
	return cfg, nil
}

// Record writes the discovered provider facts back into the chain
func (c *ChainCloudConfig) Record(chain *types.Chain) {
	if chain.CloudConfig == nil {
		chain.CloudConfig = map[string]any{}
	}
	if c.JumpboxIP != "" {
		chain.CloudConfig[KeyJumpboxIP] = c.JumpboxIP
	}
	if c.NetworkID != "" {
		chain.CloudConfig[KeyNetworkID] = c.NetworkID
	}
	if c.SecurityGroup != "" {
		chain.CloudConfig[KeySecurityGroup] = c.SecurityGroup
	}
}
