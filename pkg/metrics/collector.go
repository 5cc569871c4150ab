package metrics

import (
	"context"
	"time"

	"github.com/cuemby/catena/pkg/log"
	"github.com/cuemby/catena/pkg/storage"
)

// Collector periodically refreshes the inventory gauges from the store
type Collector struct {
	store    storage.Store
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a collector reading from store
func NewCollector(store storage.Store) *Collector {
	return &Collector{
		store:    store,
		interval: 15 * time.Second,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.Collect(context.Background())

		for {
			select {
			case <-ticker.C:
				c.Collect(context.Background())
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

// Collect reads the store once and updates the gauges
func (c *Collector) Collect(ctx context.Context) {
	clouds := make(map[string]int)
	chains := make(map[[2]string]int)
	nodes := make(map[string]int)

	err := c.store.View(ctx, func(tx storage.Tx) error {
		cloudList, err := tx.ListClouds(storage.ListOptions{})
		if err != nil {
			return err
		}
		for _, cloud := range cloudList {
			clouds[cloud.Type]++
		}

		chainList, err := tx.ListChains(storage.ListOptions{})
		if err != nil {
			return err
		}
		for _, chain := range chainList {
			chains[[2]string{chain.ChainBackend, string(chain.Status)}]++

			nodeList, err := tx.ListNodes(chain.ID, storage.ListOptions{})
			if err != nil {
				return err
			}
			for _, node := range nodeList {
				nodes[node.Type]++
			}
		}
		return nil
	})
	if err != nil {
		logger := log.WithComponent("metrics")
		logger.Warn().Err(err).Msg("Failed to collect inventory metrics")
		return
	}

	CloudsTotal.Reset()
	for cloudType, n := range clouds {
		CloudsTotal.WithLabelValues(cloudType).Set(float64(n))
	}
	ChainsTotal.Reset()
	for key, n := range chains {
		ChainsTotal.WithLabelValues(key[0], key[1]).Set(float64(n))
	}
	NodesTotal.Reset()
	for nodeType, n := range nodes {
		NodesTotal.WithLabelValues(nodeType).Set(float64(n))
	}
}
