package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cuemby/catena/pkg/storage"
	"github.com/spf13/cobra"
)

func outputJSON(cmd *cobra.Command) bool {
	format, _ := cmd.Flags().GetString("output")
	return format == "json"
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTable writes rows under header, or v as JSON with -o json
func printTable(cmd *cobra.Command, v any, header []string, rows [][]string) error {
	if outputJSON(cmd) {
		return printJSON(os.Stdout, v)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func printList(cmd *cobra.Command, items []string) error {
	if outputJSON(cmd) {
		return printJSON(os.Stdout, items)
	}
	for _, item := range items {
		fmt.Println(item)
	}
	return nil
}

func age(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return time.Since(t).Round(time.Second).String()
}

func configSummary(m map[string]any, keys ...string) string {
	var parts []string
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil && v != "" {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ",")
}

func addListFlags(cmd *cobra.Command) {
	cmd.Flags().StringToString("filter", nil, "Filter by field (key=value)")
	cmd.Flags().String("sort-key", "", "Field to sort by")
	cmd.Flags().String("sort-dir", "", "Sort direction (asc, desc)")
	cmd.Flags().String("marker", "", "Return items after this id")
	cmd.Flags().Int("limit", 0, "Maximum number of items")
}

func listOptions(cmd *cobra.Command) storage.ListOptions {
	filters, _ := cmd.Flags().GetStringToString("filter")
	sortKey, _ := cmd.Flags().GetString("sort-key")
	sortDir, _ := cmd.Flags().GetString("sort-dir")
	marker, _ := cmd.Flags().GetString("marker")
	limit, _ := cmd.Flags().GetInt("limit")
	return storage.ListOptions{
		Filters: filters,
		SortKey: sortKey,
		SortDir: sortDir,
		Marker:  marker,
		Limit:   limit,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
