package pipeline

import (
	"fmt"
	"sort"

	"github.com/cesargomez89/flixetl/internal/domain"
)

// DAG is a validated task graph with its topological levels. Every task in a
// level depends only on tasks in earlier levels.
type DAG struct {
	tasks      map[string]*domain.Task
	downstream map[string][]string
	levels     [][]string
}

// NewDAG validates tasks and computes their levels. Levels and the tasks in
// each level are ordered by name.
func NewDAG(tasks []*domain.Task) (*DAG, error) {
	d := &DAG{
		tasks:      make(map[string]*domain.Task, len(tasks)),
		downstream: make(map[string][]string),
	}
	for _, t := range tasks {
		if t.Name == "" {
			return nil, fmt.Errorf("invalid pipeline declaration: task without name")
		}
		if _, dup := d.tasks[t.Name]; dup {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateTask, t.Name)
		}
		d.tasks[t.Name] = t
	}

	for _, name := range d.Names() {
		for _, up := range d.tasks[name].Upstream {
			if _, ok := d.tasks[up]; !ok {
				return nil, fmt.Errorf("%w: %s (upstream of %s)", domain.ErrUnknownUpstream, up, name)
			}
			d.downstream[up] = append(d.downstream[up], name)
		}
	}

	if cycle := d.findCycle(); cycle != nil {
		return nil, &domain.DagCycleError{Cycle: cycle}
	}
	d.levels = d.computeLevels()
	return d, nil
}

// FromSpec builds the DAG of a parsed declaration.
func FromSpec(spec *Spec) (*DAG, error) {
	return NewDAG(spec.TaskList())
}

func (d *DAG) Task(name string) *domain.Task {
	return d.tasks[name]
}

// Names returns every task name, sorted.
func (d *DAG) Names() []string {
	names := make([]string, 0, len(d.tasks))
	for name := range d.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d *DAG) Levels() [][]string {
	return d.levels
}

// Order flattens the levels into one topological order.
func (d *DAG) Order() []string {
	var order []string
	for _, level := range d.levels {
		order = append(order, level...)
	}
	return order
}

// Downstream returns every task that transitively depends on name.
func (d *DAG) Downstream(name string) []string {
	seen := map[string]bool{}
	var walk func(string)
	walk = func(n string) {
		for _, child := range d.downstream[n] {
			if !seen[child] {
				seen[child] = true
				walk(child)
			}
		}
	}
	walk(name)

	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// findCycle returns one cycle as a closed path, or nil.
func (d *DAG) findCycle() []string {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(d.tasks))
	var stack []string
	var cycle []string

	var visit func(string) bool
	visit = func(n string) bool {
		state[n] = visiting
		stack = append(stack, n)

		ups := append([]string(nil), d.tasks[n].Upstream...)
		sort.Strings(ups)
		for _, up := range ups {
			switch state[up] {
			case visiting:
				for i, s := range stack {
					if s == up {
						cycle = append(append([]string(nil), stack[i:]...), up)
						return true
					}
				}
			case unvisited:
				if visit(up) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[n] = done
		return false
	}

	for _, name := range d.Names() {
		if state[name] == unvisited && visit(name) {
			return cycle
		}
	}
	return nil
}

func (d *DAG) computeLevels() [][]string {
	depth := make(map[string]int, len(d.tasks))
	var depthOf func(string) int
	depthOf = func(n string) int {
		if v, ok := depth[n]; ok {
			return v
		}
		level := 0
		for _, up := range d.tasks[n].Upstream {
			if l := depthOf(up) + 1; l > level {
				level = l
			}
		}
		depth[n] = level
		return level
	}

	var levels [][]string
	for _, name := range d.Names() {
		l := depthOf(name)
		for len(levels) <= l {
			levels = append(levels, nil)
		}
		levels[l] = append(levels[l], name)
	}
	return levels
}
