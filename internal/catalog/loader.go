package catalog

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Chandra-cc/personalized-learning/internal/models"
)

//go:embed data/catalog.yaml
var builtinCatalog []byte

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
	defaultErr      error
)

// Default returns the built-in catalog, parsed once per process
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		goals, err := Parse(builtinCatalog)
		if err != nil {
			defaultErr = fmt.Errorf("failed to parse built-in catalog: %w", err)
			return
		}
		defaultRegistry = New(goals...)
	})
	return defaultRegistry, defaultErr
}

// Load builds a registry from the built-in catalog plus every YAML file in
// dir. Goals from dir override built-in goals with the same name and new
// goals are appended. An empty dir loads only the built-in catalog.
func Load(dir string) (*Registry, error) {
	goals, err := Parse(builtinCatalog)
	if err != nil {
		return nil, fmt.Errorf("failed to parse built-in catalog: %w", err)
	}

	if dir != "" {
		extra, err := loadDir(dir)
		if err != nil {
			return nil, err
		}
		goals = append(goals, extra...)
	}

	reg := New(goals...)
	slog.Info("catalog loaded", "goals", reg.Len(), "dir", dir)
	return reg, nil
}

// loadDir reads *.yaml / *.yml files from dir in lexical order. A file that
// fails to parse is skipped with a warning.
func loadDir(dir string) ([]Goal, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		slog.Warn("catalog directory not found, using built-in catalog only", "dir", dir)
		return nil, nil
	}

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to list catalog files: %w", err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	var goals []Goal
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			slog.Warn("failed to read catalog file", "file", file, "error", err)
			continue
		}
		parsed, err := Parse(data)
		if err != nil {
			slog.Warn("failed to load catalog file", "file", file, "error", err)
			continue
		}
		slog.Info("catalog file loaded", "file", file, "goals", len(parsed))
		goals = append(goals, parsed...)
	}
	return goals, nil
}

// Parse decodes a catalog YAML document
func Parse(data []byte) ([]Goal, error) {
	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	goals := make([]Goal, 0, len(cf.Goals))
	for i, g := range cf.Goals {
		name := strings.TrimSpace(g.Name)
		if name == "" {
			return nil, fmt.Errorf("goal #%d: name is required", i)
		}

		steps := make([]models.StepTemplate, 0, len(g.Steps))
		for j, s := range g.Steps {
			step, err := s.toTemplate()
			if err != nil {
				return nil, fmt.Errorf("goal %q step #%d: %w", name, j, err)
			}
			steps = append(steps, step)
		}
		goals = append(goals, Goal{Name: name, Steps: steps})
	}
	return goals, nil
}

func (s stepFile) toTemplate() (models.StepTemplate, error) {
	if strings.TrimSpace(s.Title) == "" {
		return models.StepTemplate{}, fmt.Errorf("title is required")
	}
	if strings.TrimSpace(s.Duration) == "" {
		return models.StepTemplate{}, fmt.Errorf("duration is required")
	}

	resources := make(models.Resources, len(s.Resources)+1)
	for k, v := range s.Resources {
		resources[k] = v
	}
	// single-link steps use the shorthand "resource" key
	if s.Resource != "" {
		if _, ok := resources["primary"]; !ok {
			resources["primary"] = s.Resource
		}
	}

	difficulty := s.Difficulty
	if difficulty == "" && len(s.Projects) > 0 {
		difficulty = s.Projects[0].Difficulty
	}

	return models.StepTemplate{
		Title:              s.Title,
		Duration:           s.Duration,
		Description:        s.Description,
		Difficulty:         difficulty,
		LearningObjectives: orEmpty(s.LearningObjectives),
		Resources:          resources,
		SkillsGained:       orEmpty(s.SkillsGained),
		Prerequisites:      orEmpty(s.Prerequisites),
		Projects:           s.Projects,
	}, nil
}

func orEmpty(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

// --- YAML file structs ---

type catalogFile struct {
	Goals []goalFile `yaml:"goals"`
}

type goalFile struct {
	Name  string     `yaml:"name"`
	Steps []stepFile `yaml:"steps"`
}

type stepFile struct {
	Title              string            `yaml:"title"`
	Duration           string            `yaml:"duration"`
	Description        string            `yaml:"description"`
	Difficulty         string            `yaml:"difficulty"`
	LearningObjectives []string          `yaml:"learning_objectives"`
	Resources          map[string]string `yaml:"resources"`
	Resource           string            `yaml:"resource"`
	Projects           []models.Project  `yaml:"projects"`
	Prerequisites      []string          `yaml:"prerequisites"`
	SkillsGained       []string          `yaml:"skills_gained"`
}
