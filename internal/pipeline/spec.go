package pipeline

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/cesargomez89/flixetl/internal/domain"
)

//go:embed pipeline.yaml
var defaultPipeline []byte

// Spec is a pipeline declaration: tasks keyed by name.
type Spec struct {
	Tasks map[string]*domain.Task `yaml:"tasks"`
}

// Parse reads a YAML declaration. Relative input and output paths are
// resolved against dataDir, and a task without kind takes its name as kind.
func Parse(data []byte, dataDir string) (*Spec, error) {
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("invalid pipeline declaration: %w", err)
	}
	if len(spec.Tasks) == 0 {
		return nil, fmt.Errorf("invalid pipeline declaration: no tasks")
	}

	for name, task := range spec.Tasks {
		if task == nil {
			task = &domain.Task{}
			spec.Tasks[name] = task
		}
		task.Name = name
		if task.Kind == "" {
			task.Kind = name
		}
		task.Inputs = resolvePaths(dataDir, task.Inputs)
		task.Outputs = resolvePaths(dataDir, task.Outputs)
	}
	return &spec, nil
}

// Load reads the declaration at path, or the built-in one when path is empty.
func Load(path, dataDir string) (*Spec, error) {
	if path == "" {
		return Parse(defaultPipeline, dataDir)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline %s: %w", path, err)
	}
	return Parse(data, dataDir)
}

// TaskList returns the tasks sorted by name.
func (s *Spec) TaskList() []*domain.Task {
	names := make([]string, 0, len(s.Tasks))
	for name := range s.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	tasks := make([]*domain.Task, 0, len(names))
	for _, name := range names {
		tasks = append(tasks, s.Tasks[name])
	}
	return tasks
}

func resolvePaths(dir string, paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		if filepath.IsAbs(p) || dir == "" {
			out[i] = p
			continue
		}
		out[i] = filepath.Join(dir, p)
	}
	return out
}
