// Package models resolves client-supplied model names onto upstream Claude
// models.
package models

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Spec describes one servable model.
type Spec struct {
	ID              string   `yaml:"id"`
	DisplayName     string   `yaml:"display_name"`
	MaxOutputTokens int      `yaml:"max_output_tokens"`
	Aliases         []string `yaml:"aliases"`
}

// builtinSpecs is the default Claude model table.
var builtinSpecs = []Spec{
	{ID: "claude-opus-4-1", DisplayName: "Claude Opus 4.1", MaxOutputTokens: 32000},
	{ID: "claude-sonnet-4-5", DisplayName: "Claude Sonnet 4.5", MaxOutputTokens: 64000},
	{ID: "claude-haiku-4-5", DisplayName: "Claude Haiku 4.5", MaxOutputTokens: 64000},
	{ID: "claude-3-5-haiku-latest", DisplayName: "Claude Haiku 3.5", MaxOutputTokens: 8192},
}

// openAIAliasPrefixes are client model names resolved to the default model,
// so OpenAI-tooling clients work without per-model configuration.
var openAIAliasPrefixes = []string{"gpt-", "o1", "o3", "o4", "chatgpt-"}

// Registry maps requested model names onto upstream model IDs.
type Registry struct {
	specs        []Spec
	byID         map[string]int
	alias        map[string]string
	defaultModel string
}

// NewRegistry builds a registry over the builtin model table.
func NewRegistry(defaultModel string) *Registry {
	r := &Registry{
		byID:         make(map[string]int),
		alias:        make(map[string]string),
		defaultModel: defaultModel,
	}
	for _, s := range builtinSpecs {
		r.register(s)
	}
	if _, ok := r.byID[defaultModel]; !ok {
		r.register(Spec{ID: defaultModel, MaxOutputTokens: 32000})
	}
	return r
}

// LoadCustomModels merges model specs from a YAML file into the registry.
// The file holds a `models:` list of Spec entries; an entry whose id already
// exists overrides the builtin one.
func (r *Registry) LoadCustomModels(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read models file: %w", err)
	}
	var doc struct {
		Models []Spec `yaml:"models"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse models file: %w", err)
	}
	for _, s := range doc.Models {
		if strings.TrimSpace(s.ID) == "" {
			continue
		}
		r.register(s)
	}
	return nil
}

func (r *Registry) register(s Spec) {
	if idx, ok := r.byID[s.ID]; ok {
		r.specs[idx] = s
	} else {
		r.byID[s.ID] = len(r.specs)
		r.specs = append(r.specs, s)
	}
	for _, a := range s.Aliases {
		if a = strings.TrimSpace(a); a != "" {
			r.alias[strings.ToLower(a)] = s.ID
		}
	}
}

// Resolve maps a requested model name to an upstream model ID. OpenAI-style
// names fall back to the default model; unknown Claude names are rejected.
func (r *Registry) Resolve(requested string) (string, bool) {
	name := strings.ToLower(strings.TrimSpace(requested))
	if name == "" {
		return r.defaultModel, true
	}
	if _, ok := r.byID[name]; ok {
		return name, true
	}
	if target, ok := r.alias[name]; ok {
		return target, true
	}
	for _, prefix := range openAIAliasPrefixes {
		if strings.HasPrefix(name, prefix) {
			return r.defaultModel, true
		}
	}
	// Unversioned claude names map onto the default rather than erroring,
	// matching how clients send e.g. "claude-3-5-sonnet-20241022".
	if strings.HasPrefix(name, "claude-") {
		return r.closestClaude(name), true
	}
	return "", false
}

func (r *Registry) closestClaude(name string) string {
	for id := range r.byID {
		if strings.HasPrefix(name, id) {
			return id
		}
	}
	return r.defaultModel
}

// MaxOutputTokens returns the output ceiling for a model, or def when the
// model carries none.
func (r *Registry) MaxOutputTokens(id string, def int) int {
	if idx, ok := r.byID[id]; ok && r.specs[idx].MaxOutputTokens > 0 {
		return r.specs[idx].MaxOutputTokens
	}
	return def
}

// List returns all registered specs sorted by id.
func (r *Registry) List() []Spec {
	out := make([]Spec, len(r.specs))
	copy(out, r.specs)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Hint returns a comma-separated list of known model IDs for error messages.
func (r *Registry) Hint() string {
	ids := make([]string, 0, len(r.specs))
	for _, s := range r.specs {
		ids = append(ids, s.ID)
	}
	sort.Strings(ids)
	return strings.Join(ids, ", ")
}
