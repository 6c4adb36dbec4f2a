package domain

import (
	"fmt"
	"sort"
)

// FindCycle searches a dependency graph (service → dependencies) and returns
// the first cycle found, with its starting service repeated at the end, or nil.
// Dependencies missing from the graph are treated as leaves. Traversal order is
// sorted so the reported cycle is deterministic.
func FindCycle(graph map[string][]string) []string {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(graph))
	var stack []string

	var visit func(name string) []string
	visit = func(name string) []string {
		switch state[name] {
		case done:
			return nil
		case visiting:
			for i, s := range stack {
				if s == name {
					cycle := append([]string{}, stack[i:]...)
					return append(cycle, name)
				}
			}
			return []string{name, name}
		}

		state[name] = visiting
		stack = append(stack, name)

		deps := append([]string{}, graph[name]...)
		sort.Strings(deps)
		for _, dep := range deps {
			if cycle := visit(dep); cycle != nil {
				return cycle
			}
		}

		stack = stack[:len(stack)-1]
		state[name] = done
		return nil
	}

	names := make([]string, 0, len(graph))
	for name := range graph {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if cycle := visit(name); cycle != nil {
			return cycle
		}
	}
	return nil
}

// DependencyGraph builds the graph of the given records plus an extra record
// that is about to be registered.
func DependencyGraph(records []ServiceRecord, extra ...ServiceRecord) map[string][]string {
	graph := make(map[string][]string, len(records)+len(extra))
	for _, rec := range records {
		graph[rec.Name] = rec.Dependencies
	}
	for _, rec := range extra {
		graph[rec.Name] = rec.Dependencies
	}
	return graph
}

// CheckRegistration validates that rec can join the existing records: its name
// must be free and its dependencies must not close a cycle.
func CheckRegistration(existing []ServiceRecord, rec ServiceRecord) error {
	for _, other := range existing {
		if other.Name == rec.Name {
			return fmt.Errorf("%w: %s is already hosted by %s", ErrDuplicateService, rec.Name, other.NodeID)
		}
	}
	if cycle := FindCycle(DependencyGraph(existing, rec)); cycle != nil {
		return &CycleError{Cycle: cycle}
	}
	return nil
}
