package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cuemby/catena/pkg/api"
	"github.com/cuemby/catena/pkg/manager"
	"github.com/cuemby/catena/pkg/storage"
	"github.com/cuemby/catena/pkg/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a configuration file",
	Long: `Apply Catena resources from a YAML file. Documents are applied in order,
so a Chain may reference a Cloud defined earlier in the same file by name.
Resources that already exist by name are skipped.

Examples:
  # Create a cloud, a chain and two miners
  catena apply -f network.yaml`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML file to apply (required)")
	_ = applyCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(applyCmd)
}

// Resource is one YAML document of an apply file
type Resource struct {
	APIVersion string           `yaml:"apiVersion"`
	Kind       string           `yaml:"kind"`
	Metadata   ResourceMetadata `yaml:"metadata"`
	Spec       map[string]any   `yaml:"spec"`
}

type ResourceMetadata struct {
	Name string `yaml:"name"`
}

// applyClient is the part of the API client apply needs
type applyClient interface {
	CreateCloud(ctx context.Context, req api.CloudRequest) (*types.CloudView, error)
	ListClouds(ctx context.Context, opts storage.ListOptions) ([]*types.CloudView, error)
	CreateChain(ctx context.Context, req api.ChainRequest) (*types.ChainView, error)
	ListChains(ctx context.Context, opts storage.ListOptions) ([]*types.ChainView, error)
	CreateNode(ctx context.Context, chainID string, req manager.NodeRequest) (*types.NodeView, error)
	ListNodes(ctx context.Context, chainID string, opts storage.ListOptions) ([]*types.NodeView, error)
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	defer f.Close()

	resources, err := decodeResources(f)
	if err != nil {
		return err
	}

	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	for _, r := range resources {
		if err := applyResource(cmd.Context(), c, r, cmd.OutOrStdout()); err != nil {
			return fmt.Errorf("%s %s: %w", r.Kind, r.Metadata.Name, err)
		}
	}
	return nil
}

func decodeResources(r io.Reader) ([]*Resource, error) {
	dec := yaml.NewDecoder(r)
	var out []*Resource
	for {
		var res Resource
		err := dec.Decode(&res)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		if res.Kind == "" && res.Metadata.Name == "" {
			continue
		}
		if res.Metadata.Name == "" {
			return nil, fmt.Errorf("%w: %s without metadata.name", types.ErrValidation, res.Kind)
		}
		if res.Spec == nil {
			res.Spec = map[string]any{}
		}
		out = append(out, &res)
	}
	return out, nil
}

func applyResource(ctx context.Context, c applyClient, r *Resource, w io.Writer) error {
	switch r.Kind {
	case "Cloud":
		return applyCloud(ctx, c, r, w)
	case "Chain":
		return applyChain(ctx, c, r, w)
	case "Node":
		return applyNode(ctx, c, r, w)
	default:
		return fmt.Errorf("%w: unsupported resource kind %q", types.ErrValidation, r.Kind)
	}
}

func applyCloud(ctx context.Context, c applyClient, r *Resource, w io.Writer) error {
	name := r.Metadata.Name
	existing, err := c.ListClouds(ctx, byName(name))
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		fmt.Fprintf(w, "Cloud already exists: %s (skipping)\n", name)
		return nil
	}

	fmt.Fprintf(w, "Creating cloud: %s\n", name)
	cloud, err := c.CreateCloud(ctx, api.CloudRequest{
		Type:           getString(r.Spec, "type", ""),
		Name:           name,
		Authentication: getMap(r.Spec, "authentication"),
		Config:         getMap(r.Spec, "config"),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "✓ Cloud created: %s (ID: %s)\n", name, cloud.ID)
	return nil
}

func applyChain(ctx context.Context, c applyClient, r *Resource, w io.Writer) error {
	name := r.Metadata.Name
	existing, err := c.ListChains(ctx, byName(name))
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		fmt.Fprintf(w, "Chain already exists: %s (skipping)\n", name)
		return nil
	}

	cloudID := getString(r.Spec, "cloud_id", "")
	if cloudName := getString(r.Spec, "cloud", ""); cloudID == "" && cloudName != "" {
		clouds, err := c.ListClouds(ctx, byName(cloudName))
		if err != nil {
			return err
		}
		if len(clouds) == 0 {
			return fmt.Errorf("%w: cloud %s", types.ErrNotFound, cloudName)
		}
		cloudID = clouds[0].ID
	}

	fmt.Fprintf(w, "Creating chain: %s\n", name)
	chain, err := c.CreateChain(ctx, api.ChainRequest{
		CloudID:     cloudID,
		Name:        name,
		ChainConfig: getMap(r.Spec, "chain_config"),
		CloudConfig: getMap(r.Spec, "cloud_config"),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "✓ Chain created: %s (ID: %s)\n", name, chain.ID)
	return nil
}

func applyNode(ctx context.Context, c applyClient, r *Resource, w io.Writer) error {
	name := r.Metadata.Name
	chainID := getString(r.Spec, "chain_id", "")
	if chainName := getString(r.Spec, "chain", ""); chainID == "" && chainName != "" {
		chains, err := c.ListChains(ctx, byName(chainName))
		if err != nil {
			return err
		}
		if len(chains) == 0 {
			return fmt.Errorf("%w: chain %s", types.ErrNotFound, chainName)
		}
		chainID = chains[0].ID
	}
	if chainID == "" {
		return fmt.Errorf("%w: node needs spec.chain or spec.chain_id", types.ErrValidation)
	}

	existing, err := c.ListNodes(ctx, chainID, byName(name))
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		fmt.Fprintf(w, "Node already exists: %s (skipping)\n", name)
		return nil
	}

	req := manager.NodeRequest{
		Name:    name,
		Flavour: getString(r.Spec, "flavour", ""),
		Type:    getString(r.Spec, "type", "miner"),
	}
	if err := req.Validate(); err != nil {
		return err
	}

	fmt.Fprintf(w, "Creating node: %s\n", name)
	node, err := c.CreateNode(ctx, chainID, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "✓ Node created: %s (ID: %s, IP: %s)\n", name, node.ID, node.IP)
	return nil
}

func byName(name string) storage.ListOptions {
	return storage.ListOptions{Filters: map[string]string{"name": name}}
}

func getString(m map[string]any, key, defaultValue string) string {
	if v, ok := m[key]; ok && v != nil {
		return fmt.Sprintf("%v", v)
	}
	return defaultValue
}

func getMap(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return map[string]any{}
}
