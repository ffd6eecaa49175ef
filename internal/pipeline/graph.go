package pipeline

import (
	"fmt"
	"strings"

	"github.com/crzyc98/planwise-navigator-sub019/internal/types"
)

// ValidateGraph checks the stage dependency graph for duplicates, unknown
// references, and cycles before any execution starts. A broken graph is a
// startup error, not something discovered when the engine refuses a
// selector.
func ValidateGraph(defs []Definition) error {
	byName := make(map[Stage]Definition, len(defs))
	for _, d := range defs {
		if _, dup := byName[d.Name]; dup {
			return types.NewError(types.STAGE_GRAPH_INVALID,
				fmt.Sprintf("stage %s is defined twice", d.Name))
		}
		byName[d.Name] = d
	}

	for _, d := range defs {
		for _, dep := range d.DependsOn {
			if _, ok := byName[dep]; !ok {
				return types.NewError(types.STAGE_GRAPH_INVALID,
					fmt.Sprintf("stage %s depends on unknown stage %s", d.Name, dep))
			}
		}
	}

	if cycle := findCycle(defs, byName); cycle != nil {
		names := make([]string, len(cycle))
		for i, s := range cycle {
			names[i] = string(s)
		}
		return types.NewError(types.STAGE_GRAPH_INVALID,
			fmt.Sprintf("stage dependency cycle: %s", strings.Join(names, " -> ")))
	}

	return nil
}

// findCycle runs DFS color-marking (white unvisited, gray in-progress, black
// done) over DependsOn edges and returns the cycle path when one exists.
func findCycle(defs []Definition, byName map[Stage]Definition) []Stage {
	const (
		white = iota
		gray
		black
	)
	color := make(map[Stage]int, len(defs))
	parent := make(map[Stage]Stage)

	var dfs func(name Stage) []Stage
	dfs = func(name Stage) []Stage {
		color[name] = gray

		for _, dep := range byName[name].DependsOn {
			switch color[dep] {
			case white:
				parent[dep] = name
				if cycle := dfs(dep); cycle != nil {
					return cycle
				}
			case gray:
				// Back edge: reconstruct the path from the parent chain
				cycle := []Stage{dep}
				for cur := name; cur != dep; cur = parent[cur] {
					cycle = append([]Stage{cur}, cycle...)
				}
				return append([]Stage{dep}, cycle...)
			}
		}

		color[name] = black
		return nil
	}

	for _, d := range defs {
		if color[d.Name] == white {
			if cycle := dfs(d.Name); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// TopologicalOrder sorts the stages so every stage follows its dependencies,
// using Kahn's algorithm. The queue is seeded in declaration order so
// equal-rank stages keep a stable order. Fails when the graph is not a DAG.
func TopologicalOrder(defs []Definition) ([]Definition, error) {
	byName := make(map[Stage]Definition, len(defs))
	inDegree := make(map[Stage]int, len(defs))
	dependents := make(map[Stage][]Stage, len(defs))

	for _, d := range defs {
		byName[d.Name] = d
		inDegree[d.Name] = len(d.DependsOn)
	}
	for _, d := range defs {
		for _, dep := range d.DependsOn {
			dependents[dep] = append(dependents[dep], d.Name)
		}
	}

	queue := make([]Stage, 0, len(defs))
	for _, d := range defs {
		if inDegree[d.Name] == 0 {
			queue = append(queue, d.Name)
		}
	}

	ordered := make([]Definition, 0, len(defs))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		ordered = append(ordered, byName[current])

		for _, next := range dependents[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(ordered) != len(defs) {
		return nil, types.NewError(types.STAGE_GRAPH_INVALID,
			"stage graph is not a DAG")
	}

	return ordered, nil
}
