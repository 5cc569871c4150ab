package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cuemby/catena/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func engines(t *testing.T) map[string]Store {
	t.Helper()

	bolt, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { bolt.Close() })

	badger, err := NewInMemoryBadgerStore()
	require.NoError(t, err)
	t.Cleanup(func() { badger.Close() })

	return map[string]Store{"bolt": bolt, "badger": badger}
}

func seedChain(t *testing.T, s Store, chainID string) {
	t.Helper()
	err := s.Update(context.Background(), func(tx Tx) error {
		if _, err := tx.GetCloud("cloud-1"); errors.Is(err, types.ErrNotFound) {
			if err := tx.CreateCloud(&types.Cloud{ID: "cloud-1", Type: "openstack", Name: "os"}); err != nil {
				return err
			}
		}
		return tx.CreateChain(&types.Chain{
			ID:           chainID,
			Name:         chainID,
			ChainBackend: "ethereum",
			CloudID:      "cloud-1",
			Status:       types.ChainStatusActive,
		})
	})
	require.NoError(t, err)
}

func TestCRUD(t *testing.T) {
	ctx := context.Background()
	for name, s := range engines(t) {
		t.Run(name, func(t *testing.T) {
			seedChain(t, s, "chain-1")

			err := s.Update(ctx, func(tx Tx) error {
				return tx.CreateNode(&types.Node{
					ID:      "vm-1",
					Name:    "chain-1_controller",
					ChainID: "chain-1",
					Type:    types.NodeTypeController,
					IP:      "10.0.0.5",
					SSHKey:  "encrypted",
				})
			})
			require.NoError(t, err)

			err = s.View(ctx, func(tx Tx) error {
				chain, err := tx.GetChain("chain-1")
				require.NoError(t, err)
				assert.Equal(t, "ethereum", chain.ChainBackend)
				assert.False(t, chain.CreatedAt.IsZero())

				node, err := tx.GetNode("chain-1", "vm-1")
				require.NoError(t, err)
				assert.Equal(t, "10.0.0.5", node.IP)

				controller, err := tx.GetControllerNode("chain-1")
				require.NoError(t, err)
				assert.Equal(t, "vm-1", controller.ID)
				return nil
			})
			require.NoError(t, err)

			err = s.Update(ctx, func(tx Tx) error {
				node, err := tx.GetNode("chain-1", "vm-1")
				if err != nil {
					return err
				}
				created := node.CreatedAt
				node.ChainConfig = map[string]any{"eth_node_id": "abc"}
				time.Sleep(time.Millisecond)
				if err := tx.UpdateNode(node); err != nil {
					return err
				}
				got, err := tx.GetNode("chain-1", "vm-1")
				require.NoError(t, err)
				assert.Equal(t, "abc", got.ChainConfig["eth_node_id"])
				assert.True(t, got.CreatedAt.Equal(created))
				assert.True(t, got.UpdatedAt.After(created))
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	for name, s := range engines(t) {
		t.Run(name, func(t *testing.T) {
			err := s.View(ctx, func(tx Tx) error {
				_, err := tx.GetChain("missing")
				return err
			})
			assert.True(t, errors.Is(err, types.ErrNotFound))

			err = s.Update(ctx, func(tx Tx) error {
				return tx.DeleteNode("missing", "vm")
			})
			assert.True(t, errors.Is(err, types.ErrNotFound))

			err = s.Update(ctx, func(tx Tx) error {
				return tx.UpdateChain(&types.Chain{ID: "missing"})
			})
			assert.True(t, errors.Is(err, types.ErrNotFound))

			err = s.Update(ctx, func(tx Tx) error {
				return tx.CreateNode(&types.Node{ID: "vm", ChainID: "missing"})
			})
			assert.True(t, errors.Is(err, types.ErrNotFound))
		})
	}
}

func TestCreateDuplicate(t *testing.T) {
	for name, s := range engines(t) {
		t.Run(name, func(t *testing.T) {
			seedChain(t, s, "chain-1")
			err := s.Update(context.Background(), func(tx Tx) error {
				return tx.CreateChain(&types.Chain{ID: "chain-1"})
			})
			assert.True(t, errors.Is(err, types.ErrConflict))
		})
	}
}

func TestRollback(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	for name, s := range engines(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Update(ctx, func(tx Tx) error {
				if err := tx.CreateCloud(&types.Cloud{ID: "cloud-1", Type: "openstack", Name: "os"}); err != nil {
					return err
				}
				if err := tx.CreateChain(&types.Chain{ID: "chain-1", CloudID: "cloud-1"}); err != nil {
					return err
				}
				// read-your-writes inside the transaction
				_, err := tx.GetChain("chain-1")
				require.NoError(t, err)
				return boom
			})
			assert.ErrorIs(t, err, boom)

			err = s.View(ctx, func(tx Tx) error {
				chains, err := tx.ListChains(ListOptions{})
				require.NoError(t, err)
				assert.Empty(t, chains)
				clouds, err := tx.ListClouds(ListOptions{})
				require.NoError(t, err)
				assert.Empty(t, clouds)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestDeleteChainCascades(t *testing.T) {
	ctx := context.Background()
	for name, s := range engines(t) {
		t.Run(name, func(t *testing.T) {
			seedChain(t, s, "chain-1")
			seedChain(t, s, "chain-10")

			err := s.Update(ctx, func(tx Tx) error {
				for _, n := range []*types.Node{
					{ID: "a", ChainID: "chain-1", Type: types.NodeTypeController},
					{ID: "b", ChainID: "chain-1", Type: "miner"},
					{ID: "c", ChainID: "chain-10", Type: types.NodeTypeController},
				} {
					if err := tx.CreateNode(n); err != nil {
						return err
					}
				}
				return nil
			})
			require.NoError(t, err)

			require.NoError(t, s.Update(ctx, func(tx Tx) error {
				return tx.DeleteChain("chain-1")
			}))

			err = s.View(ctx, func(tx Tx) error {
				_, err := tx.GetChain("chain-1")
				assert.True(t, errors.Is(err, types.ErrNotFound))

				nodes, err := tx.ListNodes("chain-1", ListOptions{})
				require.NoError(t, err)
				assert.Empty(t, nodes)

				// a chain whose id shares a prefix keeps its nodes
				nodes, err = tx.ListNodes("chain-10", ListOptions{})
				require.NoError(t, err)
				assert.Len(t, nodes, 1)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestDeleteCloudInUse(t *testing.T) {
	for name, s := range engines(t) {
		t.Run(name, func(t *testing.T) {
			seedChain(t, s, "chain-1")
			err := s.Update(context.Background(), func(tx Tx) error {
				return tx.DeleteCloud("cloud-1")
			})
			assert.True(t, errors.Is(err, types.ErrConflict))
		})
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for name, s := range engines(t) {
		t.Run(name, func(t *testing.T) {
			called := false
			err := s.Update(ctx, func(tx Tx) error {
				called = true
				return nil
			})
			assert.ErrorIs(t, err, context.Canceled)
			assert.False(t, called)
		})
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		engine  string
		wantErr bool
	}{
		{engine: "bolt"},
		{engine: "badger"},
		{engine: "sqlite", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.engine, func(t *testing.T) {
			s, err := Open(tt.engine, t.TempDir())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer s.Close()

			require.NoError(t, s.Update(context.Background(), func(tx Tx) error {
				return tx.CreateCloud(&types.Cloud{ID: "cloud-1", Type: "openstack", Name: "lab"})
			}))

			var buf bytes.Buffer
			b, ok := s.(Backupable)
			require.True(t, ok)
			require.NoError(t, b.Backup(&buf))
			assert.NotZero(t, buf.Len())

			d, ok := s.(Droppable)
			require.True(t, ok)
			assert.NoError(t, d.Drop())
		})
	}
}
