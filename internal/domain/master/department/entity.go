package department

import "sort"

type Department struct {
	ID       string
	Name     string
	ParentID *string
}

// Tree indexes a department hierarchy as a flat map keyed by ID with parent
// references. It is built once per request and read-only afterwards.
type Tree struct {
	nodes    map[string]Department
	children map[string][]string
}

// NewTree builds the hierarchy and rejects unknown parents and cycles.
func NewTree(departments []Department) (*Tree, error) {
	t := &Tree{
		nodes:    make(map[string]Department, len(departments)),
		children: make(map[string][]string),
	}

	for _, d := range departments {
		if _, exists := t.nodes[d.ID]; exists {
			return nil, ErrDuplicateDepartment
		}
		t.nodes[d.ID] = d
	}

	for _, d := range departments {
		if d.ParentID == nil {
			continue
		}
		if _, ok := t.nodes[*d.ParentID]; !ok {
			return nil, ErrUnknownParent
		}
		t.children[*d.ParentID] = append(t.children[*d.ParentID], d.ID)
	}
	for parent := range t.children {
		sort.Strings(t.children[parent])
	}

	if err := t.checkCycles(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) checkCycles() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(t.nodes))

	for id := range t.nodes {
		// Walk up the parent chain; a node seen twice on one walk is a cycle.
		var path []string
		current := id
		for {
			if state[current] == done {
				break
			}
			if state[current] == visiting {
				return ErrHierarchyCycle
			}
			state[current] = visiting
			path = append(path, current)

			parent := t.nodes[current].ParentID
			if parent == nil {
				break
			}
			current = *parent
		}
		for _, p := range path {
			state[p] = done
		}
	}
	return nil
}

func (t *Tree) Get(id string) (Department, bool) {
	d, ok := t.nodes[id]
	return d, ok
}

// Subtree returns id and the IDs of all of its descendants, breadth first.
func (t *Tree) Subtree(id string) ([]string, error) {
	if _, ok := t.nodes[id]; !ok {
		return nil, ErrDepartmentNotFound
	}

	result := []string{id}
	for i := 0; i < len(result); i++ {
		result = append(result, t.children[result[i]]...)
	}
	return result, nil
}

// Contains reports whether id is root or one of its descendants.
func (t *Tree) Contains(root, id string) bool {
	current, ok := t.nodes[id]
	for ok {
		if current.ID == root {
			return true
		}
		if current.ParentID == nil {
			return false
		}
		current, ok = t.nodes[*current.ParentID]
	}
	return false
}
