package hierarchy

// Validate checks a candidate link against the currently active link set.
// It is pure so the same rules can run inside the repository transaction and
// in isolation under test.
//
// Rules, in order:
//  1. parent and child must differ
//  2. no other active link for the same child may overlap in time
//  3. the graph must stay acyclic: if the candidate's child already reaches
//     the candidate's parent through active links, closing the edge would
//     make the parent its own ancestor
func Validate(candidate Link, existing []Link) error {
	if candidate.ParentID == candidate.ChildID {
		return ErrSelfLink
	}

	for _, l := range existing {
		if l.ID == candidate.ID || !l.Active {
			continue
		}
		if l.ChildID == candidate.ChildID && l.Overlaps(candidate) {
			return ErrOverlap
		}
	}

	// Cycle scan runs over all active links regardless of dating: a link that
	// is dormant today can still close a loop tomorrow.
	children := make(map[int64][]int64)
	for _, l := range existing {
		if !l.Active || l.ID == candidate.ID {
			continue
		}
		children[l.ParentID] = append(children[l.ParentID], l.ChildID)
	}

	seen := map[int64]struct{}{candidate.ChildID: {}}
	frontier := []int64{candidate.ChildID}
	for len(frontier) > 0 {
		next := frontier[:0:0]
		for _, id := range frontier {
			for _, child := range children[id] {
				if child == candidate.ParentID {
					return ErrCycle
				}
				if _, ok := seen[child]; ok {
					continue
				}
				seen[child] = struct{}{}
				next = append(next, child)
			}
		}
		frontier = next
	}

	return nil
}
