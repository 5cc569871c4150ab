package storage

import (
	"fmt"
	"sort"
	"time"

	"github.com/cuemby/catena/pkg/types"
)

// Sort directions
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// DefaultSortKey orders listings newest first unless told otherwise
const DefaultSortKey = "created_at"

// ListOptions filters, orders and pages a listing.
// Filters match attribute values exactly. Marker is the id of the last item
// of the previous page; results start after it.
type ListOptions struct {
	Filters map[string]string
	SortKey string
	SortDir string
	Marker  string
	Limit   int
}

// fixed width so timestamps sort lexically
const sortTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(sortTimeFormat)
}

func cloudAttr(c *types.Cloud, key string) (string, bool) {
	switch key {
	case "id":
		return c.ID, true
	case "name":
		return c.Name, true
	case "type":
		return c.Type, true
	case "created_at":
		return formatTime(c.CreatedAt), true
	case "updated_at":
		return formatTime(c.UpdatedAt), true
	}
	return "", false
}

func chainAttr(c *types.Chain, key string) (string, bool) {
	switch key {
	case "id":
		return c.ID, true
	case "name":
		return c.Name, true
	case "status":
		return string(c.Status), true
	case "cloud_id":
		return c.CloudID, true
	case "chain_backend":
		return c.ChainBackend, true
	case "owner":
		return c.Owner, true
	case "created_at":
		return formatTime(c.CreatedAt), true
	case "updated_at":
		return formatTime(c.UpdatedAt), true
	}
	return "", false
}

func nodeAttr(n *types.Node, key string) (string, bool) {
	switch key {
	case "id":
		return n.ID, true
	case "name":
		return n.Name, true
	case "type":
		return n.Type, true
	case "ip":
		return n.IP, true
	case "chain_id":
		return n.ChainID, true
	case "created_at":
		return formatTime(n.CreatedAt), true
	case "updated_at":
		return formatTime(n.UpdatedAt), true
	}
	return "", false
}

// apply runs filter, sort and paging over items
func apply[T any](items []T, opts ListOptions, attr func(T, string) (string, bool)) ([]T, error) {
	for key := range opts.Filters {
		if len(items) == 0 {
			break
		}
		if _, ok := attr(items[0], key); !ok {
			return nil, fmt.Errorf("%w: unknown filter %q", types.ErrValidation, key)
		}
	}

	filtered := items[:0:0]
	for _, item := range items {
		match := true
		for key, want := range opts.Filters {
			if got, _ := attr(item, key); got != want {
				match = false
				break
			}
		}
		if match {
			filtered = append(filtered, item)
		}
	}

	sortKey := opts.SortKey
	if sortKey == "" {
		sortKey = DefaultSortKey
	}
	desc := true
	switch opts.SortDir {
	case "", SortDesc:
	case SortAsc:
		desc = false
	default:
		return nil, fmt.Errorf("%w: invalid sort direction %q", types.ErrValidation, opts.SortDir)
	}
	if len(filtered) > 0 {
		if _, ok := attr(filtered[0], sortKey); !ok {
			return nil, fmt.Errorf("%w: invalid sort key %q", types.ErrValidation, sortKey)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		a, _ := attr(filtered[i], sortKey)
		b, _ := attr(filtered[j], sortKey)
		if a == b {
			a, _ = attr(filtered[i], "id")
			b, _ = attr(filtered[j], "id")
		}
		if desc {
			return a > b
		}
		return a < b
	})

	if opts.Marker != "" {
		start := -1
		for i, item := range filtered {
			if id, _ := attr(item, "id"); id == opts.Marker {
				start = i + 1
				break
			}
		}
		if start < 0 {
			return nil, fmt.Errorf("%w: marker %s not found", types.ErrValidation, opts.Marker)
		}
		filtered = filtered[start:]
	}

	if opts.Limit > 0 && len(filtered) > opts.Limit {
		filtered = filtered[:opts.Limit]
	}
	return filtered, nil
}
