package hierarchy

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// LinkSource provides active links for frontier expansion.
type LinkSource interface {
	ActiveLinksByParents(ctx context.Context, parentIDs []int64, at time.Time) ([]Link, error)
}

// Resolver walks the ownership hierarchy with effective dating.
type Resolver struct {
	source LinkSource
}

// NewResolver constructs a resolver over the given link source.
func NewResolver(source LinkSource) *Resolver {
	return &Resolver{source: source}
}

// Descendants returns the entities reachable from root through links whose
// interval contains the given date. The visited set guarantees termination
// even if a cycle slipped past validation.
func (r *Resolver) Descendants(ctx context.Context, root int64, at time.Time, includeSelf bool) ([]int64, error) {
	if r == nil || r.source == nil {
		return nil, fmt.Errorf("hierarchy: resolver not initialised")
	}
	if root <= 0 {
		return nil, fmt.Errorf("hierarchy: root entity required")
	}

	visited := map[int64]struct{}{root: {}}
	result := make([]int64, 0, 8)
	if includeSelf {
		result = append(result, root)
	}

	frontier := []int64{root}
	for len(frontier) > 0 {
		links, err := r.source.ActiveLinksByParents(ctx, frontier, at)
		if err != nil {
			return nil, err
		}
		next := make([]int64, 0, len(links))
		for _, l := range links {
			if !l.Active || !l.ContainsDate(at) {
				continue
			}
			if _, ok := visited[l.ChildID]; ok {
				continue
			}
			visited[l.ChildID] = struct{}{}
			result = append(result, l.ChildID)
			next = append(next, l.ChildID)
		}
		frontier = next
	}

	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result, nil
}
