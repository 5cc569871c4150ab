package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

func TestConfigSummary(t *testing.T) {
	m := map[string]any{"network_id": 5001, "genesis": "{}", "empty": ""}
	assert.Equal(t, "network_id=5001", configSummary(m, "network_id", "empty", "missing"))
	assert.Equal(t, "-", configSummary(nil, "network_id"))
}

func TestListOptionsFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "list"}
	addListFlags(cmd)
	assert.NoError(t, cmd.ParseFlags([]string{"--filter", "type=miner", "--sort-key", "name", "--limit", "5"}))

	opts := listOptions(cmd)
	assert.Equal(t, map[string]string{"type": "miner"}, opts.Filters)
	assert.Equal(t, "name", opts.SortKey)
	assert.Equal(t, 5, opts.Limit)
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, sortedKeys(map[string]int{"c": 1, "a": 2, "b": 3}))
}
