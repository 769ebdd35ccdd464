package odatabatch

// groupTracker implements the atomicity-group bookkeeping used by the JSON
// batch driver: which request ids belong to which group, whether the
// active group has just ended, and dependsOn validation/flattening.
type groupTracker struct {
	activeGroup  string
	hasActive    bool
	groups       map[string][]string
	requestGroup map[string]string
}

func newGroupTracker() *groupTracker {
	return &groupTracker{
		groups:       make(map[string][]string),
		requestGroup: make(map[string]string),
	}
}

// add registers requestID as a member of groupID ("" means ungrouped).
func (g *groupTracker) add(requestID, groupID string) {
	if groupID == "" {
		return
	}
	g.groups[groupID] = append(g.groups[groupID], requestID)
	g.requestGroup[requestID] = groupID
	g.activeGroup = groupID
	g.hasActive = true
}

// isEnd reports whether an active group is open and nextGroupID is not a
// continuation of it, meaning the caller should close the changeset before
// proceeding.
func (g *groupTracker) isEnd(nextGroupID string) bool {
	return g.hasActive && g.activeGroup != nextGroupID
}

func (g *groupTracker) closeActive() {
	g.hasActive = false
	g.activeGroup = ""
}

// validateDependsOn enforces the structural dependsOn rules: a request may
// not depend on itself, may not depend on its own group, and must name a
// group (not an individual request) when the request it would otherwise
// name belongs to a different group than its own. Naming a request of the
// same group is allowed.
func (g *groupTracker) validateDependsOn(requestID, groupID string, dependsOn []string) error {
	for _, ref := range dependsOn {
		if ref == requestID {
			return newError(KindSelfReference, "request %q depends on itself", requestID)
		}
		if groupID != "" && ref == groupID {
			return newError(KindSelfGroupReference, "request %q depends on its own group %q", requestID, groupID)
		}
		if refGroup, ok := g.requestGroup[ref]; ok && refGroup != "" && refGroup != groupID {
			return newError(KindMustReferenceGroup, "dependsOn must reference group %q instead of request %q", refGroup, ref)
		}
	}
	return nil
}

// flatten expands a dependsOn list (request ids or group ids) into leaf
// request ids, in declaration order, deduplicated by first occurrence.
// A reference that names neither a known group nor a known (already-seen)
// request is a forward reference and is rejected.
func (g *groupTracker) flatten(dependsOn []string, knownRequests map[string]bool) ([]string, error) {
	if len(dependsOn) == 0 {
		return nil, nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, ref := range dependsOn {
		if members, isGroup := g.groups[ref]; isGroup {
			for _, m := range members {
				if !seen[m] {
					seen[m] = true
					out = append(out, m)
				}
			}
			continue
		}
		if knownRequests[ref] {
			if !seen[ref] {
				seen[ref] = true
				out = append(out, ref)
			}
			continue
		}
		return nil, newError(KindForwardReferenceNotAllowed, "dependsOn references unknown or not-yet-seen id %q", ref)
	}
	return out, nil
}
