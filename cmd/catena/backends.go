package main

import (
	"strings"

	"github.com/spf13/cobra"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List chain backends and the node types they support",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		info, err := c.Backends(cmd.Context())
		if err != nil {
			return err
		}
		var rows [][]string
		for _, name := range sortedKeys(info) {
			b := info[name]
			rows = append(rows, []string{name, strings.Join(b.ChainTypes, ","), strings.Join(b.NodeTypes, ",")})
		}
		return printTable(cmd, info, []string{"BACKEND", "CHAIN TYPES", "NODE TYPES"}, rows)
	},
}

func init() {
	rootCmd.AddCommand(backendsCmd)
}
