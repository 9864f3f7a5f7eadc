package compiler

import "github.com/roach88/cascade/internal/ir"

type visitState int

const (
	unvisited visitState = iota
	onPath
	done
)

// findCycle returns the first loop of sub-spec references, walking specs
// and their entries in declaration order, e.g. ["Image", "Folder", "Image"].
// It returns nil when the references form a DAG. Entries must already be
// resolved.
func findCycle(specs []*ir.Spec) []string {
	state := make([]visitState, len(specs))
	var path []int

	var visit func(i int) []string
	visit = func(i int) []string {
		state[i] = onPath
		path = append(path, i)
		for _, e := range specs[i].Entries {
			if !e.HasSubSpec() {
				continue
			}
			switch state[e.SubSpec] {
			case onPath:
				return cyclePath(specs, path, e.SubSpec)
			case unvisited:
				if cycle := visit(e.SubSpec); cycle != nil {
					return cycle
				}
			}
		}
		path = path[:len(path)-1]
		state[i] = done
		return nil
	}

	for i := range specs {
		if state[i] != unvisited {
			continue
		}
		if cycle := visit(i); cycle != nil {
			return cycle
		}
	}
	return nil
}

// cyclePath names the specs on path from the first occurrence of start,
// closed by start again.
func cyclePath(specs []*ir.Spec, path []int, start int) []string {
	var names []string
	for k := len(path) - 1; k >= 0; k-- {
		if path[k] == start {
			for _, i := range path[k:] {
				names = append(names, specs[i].Name)
			}
			break
		}
	}
	return append(names, specs[start].Name)
}
