package session

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// StepDefinition mirrors one step entry in the on-disk YAML schema.
type StepDefinition struct {
	Name         string   `yaml:"name"`
	Capabilities []string `yaml:"capabilities"`
	Timeout      string   `yaml:"timeout,omitempty"`
	Retries      int      `yaml:"retries,omitempty"`
	Needs        []string `yaml:"needs,omitempty"`
}

// PipelineDefinition mirrors the on-disk YAML schema for a session type.
// Deployments drop *.yaml files next to their service configuration to add
// session types without writing Go code; steps defined this way use the
// default payload envelope enriched with their declared needs.
type PipelineDefinition struct {
	Type        string           `yaml:"type"`
	Description string           `yaml:"description,omitempty"`
	Steps       []StepDefinition `yaml:"steps"`
}

// ParsePipelineYAML decodes one pipeline definition payload and converts it
// into a validated Pipeline.
func ParsePipelineYAML(data []byte) (Pipeline, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Pipeline{}, fmt.Errorf("pipeline definition payload is empty")
	}

	var def PipelineDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Pipeline{}, fmt.Errorf("decode pipeline definition: %w", err)
	}

	p := Pipeline{Type: strings.TrimSpace(def.Type), Description: strings.TrimSpace(def.Description)}
	for _, sd := range def.Steps {
		step := Step{
			Name:         strings.TrimSpace(sd.Name),
			Capabilities: sd.Capabilities,
			MaxRetries:   sd.Retries,
			Needs:        sd.Needs,
		}
		if sd.Timeout != "" {
			d, err := time.ParseDuration(sd.Timeout)
			if err != nil {
				return Pipeline{}, fmt.Errorf("step %q: parse timeout: %w", sd.Name, err)
			}
			step.Timeout = d
		}
		if len(sd.Needs) > 0 {
			step.BuildPayload = needsPayload(sd.Needs...)
		}
		p.Steps = append(p.Steps, step)
	}

	if err := p.Validate(); err != nil {
		return Pipeline{}, err
	}

	return p, nil
}

// LoadPipelineFile reads a YAML file from disk and returns the parsed
// pipeline.
func LoadPipelineFile(path string) (Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("read %s: %w", path, err)
	}

	p, err := ParsePipelineYAML(data)
	if err != nil {
		return Pipeline{}, fmt.Errorf("%s: %w", path, err)
	}

	return p, nil
}

// LoadPipelineDir scans a directory for *.yaml pipeline definitions. A
// missing directory is treated as "no pipelines" to simplify startup.
func LoadPipelineDir(dir string) ([]Pipeline, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	out := make([]Pipeline, 0, len(paths))
	for _, path := range paths {
		p, err := LoadPipelineFile(path)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	return out, nil
}
