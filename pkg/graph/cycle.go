package graph

// findCyclePath searches for a directed path from fromID to toID over active,
// non-bidirectional edges. It is used before inserting an edge toID->...: if
// the proposed edge's target already reaches its source, the insert would
// close a cycle. The returned slice holds node keys along the discovered
// path, or nil when no path exists within maxDepth hops.
//
// Callers must hold the partition lock.
func (p *partition) findCyclePath(fromID, toID string, maxDepth int) []string {
	onPath := map[string]bool{fromID: true}
	path := []string{fromID}
	if found := p.cycleDFS(fromID, toID, maxDepth, onPath, &path); found {
		keys := make([]string, len(path))
		for i, id := range path {
			keys[i] = p.nodes[id].NodeKey
		}
		return keys
	}
	return nil
}

func (p *partition) cycleDFS(currentID, toID string, remaining int, onPath map[string]bool, path *[]string) bool {
	if currentID == toID {
		return true
	}
	if remaining <= 0 {
		return false
	}
	for _, edgeID := range p.out[currentID] {
		e := p.edges[edgeID]
		if !e.IsActive || e.Bidirectional {
			continue
		}
		next := e.TargetNodeID
		if onPath[next] {
			continue
		}
		onPath[next] = true
		*path = append(*path, next)
		if p.cycleDFS(next, toID, remaining-1, onPath, path) {
			return true
		}
		*path = (*path)[:len(*path)-1]
		delete(onPath, next)
	}
	return false
}
