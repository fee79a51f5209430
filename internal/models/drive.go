package models

import "encoding/json"

// The drive and wiki store their trees as flat lists with parent pointers.
// Child listings, breadcrumbs, and cascade deletion are derived by scanning
// the arena rather than materializing a nested structure.

// ChildrenOf returns the direct children of parentID in list order.
// An empty parentID selects root nodes.
func ChildrenOf(items []DriveItem, parentID string) []DriveItem {
	var out []DriveItem
	for _, it := range items {
		if it.ParentID == parentID {
			out = append(out, it)
		}
	}
	return out
}

// FindItem returns the item with the given id, or nil.
func FindItem(items []DriveItem, id string) *DriveItem {
	for i := range items {
		if items[i].ID == id {
			return &items[i]
		}
	}
	return nil
}

// Breadcrumb returns the path from the root to the given node, inclusive.
// A missing intermediate parent terminates the walk at that point.
func Breadcrumb(items []DriveItem, id string) []DriveItem {
	byID := make(map[string]DriveItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	var path []DriveItem
	cur, ok := byID[id]
	for ok {
		path = append([]DriveItem{cur}, path...)
		if cur.ParentID == "" {
			break
		}
		cur, ok = byID[cur.ParentID]
	}
	return path
}

// SubtreeIDs collects the id of the given node plus every transitive
// descendant, using a derived adjacency index.
func SubtreeIDs(items []DriveItem, rootID string) map[string]bool {
	children := make(map[string][]string, len(items))
	for _, it := range items {
		if it.ParentID != "" {
			children[it.ParentID] = append(children[it.ParentID], it.ID)
		}
	}

	collected := map[string]bool{rootID: true}
	queue := []string{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range children[id] {
			if !collected[child] {
				collected[child] = true
				queue = append(queue, child)
			}
		}
	}
	return collected
}

// FilePayload decodes the embedded JSON payload of a FILE node. Malformed or
// empty content is recovered locally by substituting an empty payload; it is
// never propagated as an error.
func FilePayload(item DriveItem) map[string]any {
	if item.Kind != KindFile || item.Content == "" {
		return map[string]any{}
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(item.Content), &payload); err != nil || payload == nil {
		return map[string]any{}
	}
	return payload
}

// DeleteSubtree returns a new list with the node and its full subtree
// removed in one batch, so no surviving node's parent points at a removed id.
func DeleteSubtree(items []DriveItem, rootID string) []DriveItem {
	doomed := SubtreeIDs(items, rootID)
	out := make([]DriveItem, 0, len(items))
	for _, it := range items {
		if !doomed[it.ID] {
			out = append(out, it)
		}
	}
	return out
}
