// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the YAML file that names the available configurations.
//
// A configuration is a named pairing of a persisted vector index, the corpus
// it was built from, and the embedding model that built it:
//
//	defaults:
//	  k: 5
//	  threshold: 0.45
//	ai:
//	  backend: langchaingo
//	  embedding_host: http://localhost:11434/v1
//	  generation_model: qwen2.5:3b
//	configurations:
//	  MiniLM:
//	    index_path: indexes/minilm
//	    corpus_path: corpus/chunks_semantic.json
//	    embedding_model: all-minilm
//
// Relative paths are resolved against the directory of the config file.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"

	"github.com/poiesic/faqrag/ai"
	"github.com/poiesic/faqrag/query"
	"gopkg.in/yaml.v3"
)

// Default values applied to missing settings.
const (
	DefaultK               = query.DefaultK
	DefaultThreshold       = query.DefaultThreshold
	DefaultMaxOutputTokens = query.DefaultMaxOutputTokens
	DefaultAssistantName   = query.DefaultAssistantName
	DefaultNotFoundAnswer  = query.DefaultNotFoundAnswer
	DefaultAPIKeyEnv       = "OPENAI_API_KEY"
	DefaultName            = "MiniLM"
)

// ErrNoConfigurations is returned when a file defines no configurations.
var ErrNoConfigurations = errors.New("no configurations defined")

// Defaults holds query parameters shared by every configuration.
type Defaults struct {
	K               int      `yaml:"k"`
	Threshold       *float32 `yaml:"threshold"`
	MaxOutputTokens int      `yaml:"max_output_tokens"`
	AssistantName   string   `yaml:"assistant_name"`
	NotFoundAnswer  string   `yaml:"not_found_answer"`
}

// AISettings holds model service settings shared by every configuration.
type AISettings struct {
	Backend         string `yaml:"backend"`
	EmbeddingHost   string `yaml:"embedding_host"`
	GenerationHost  string `yaml:"generation_host"`
	GenerationModel string `yaml:"generation_model"`
	APIKeyEnv       string `yaml:"api_key_env"`
}

// Entry describes one configuration.
type Entry struct {
	IndexPath      string `yaml:"index_path"`
	CorpusPath     string `yaml:"corpus_path"`
	EmbeddingModel string `yaml:"embedding_model"`

	// Optional per-entry overrides of AISettings.
	EmbeddingHost string `yaml:"embedding_host,omitempty"`
	Backend       string `yaml:"backend,omitempty"`
}

// File is the root configuration structure.
type File struct {
	Defaults       Defaults         `yaml:"defaults"`
	AI             AISettings       `yaml:"ai"`
	Configurations map[string]Entry `yaml:"configurations"`
}

// Load reads a config file. If the file does not exist, returns defaults.
func Load(path string) (*File, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a config file that must exist.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	applyDefaults(&f)
	f.resolvePaths(filepath.Dir(path))

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &f, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, f *File) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Default returns a file with a single MiniLM configuration.
func Default() *File {
	f := &File{
		Configurations: map[string]Entry{
			DefaultName: {
				IndexPath:      filepath.Join("indexes", "minilm"),
				CorpusPath:     filepath.Join("corpus", "chunks_semantic.json"),
				EmbeddingModel: "all-minilm",
			},
		},
	}
	applyDefaults(f)
	return f
}

func applyDefaults(f *File) {
	if f.Defaults.K == 0 {
		f.Defaults.K = DefaultK
	}
	if f.Defaults.Threshold == nil {
		threshold := DefaultThreshold
		f.Defaults.Threshold = &threshold
	}
	if f.Defaults.MaxOutputTokens == 0 {
		f.Defaults.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if f.Defaults.AssistantName == "" {
		f.Defaults.AssistantName = DefaultAssistantName
	}
	if f.Defaults.NotFoundAnswer == "" {
		f.Defaults.NotFoundAnswer = DefaultNotFoundAnswer
	}

	base := ai.DefaultConfig()
	if f.AI.Backend == "" {
		f.AI.Backend = base.Backend
	}
	if f.AI.EmbeddingHost == "" {
		f.AI.EmbeddingHost = base.EmbeddingHost
	}
	if f.AI.GenerationHost == "" {
		f.AI.GenerationHost = f.AI.EmbeddingHost
	}
	if f.AI.GenerationModel == "" {
		f.AI.GenerationModel = base.GenerationModel
	}
	if f.AI.APIKeyEnv == "" {
		f.AI.APIKeyEnv = DefaultAPIKeyEnv
	}
}

func (f *File) resolvePaths(dir string) {
	for name, e := range f.Configurations {
		if e.IndexPath != "" && !filepath.IsAbs(e.IndexPath) {
			e.IndexPath = filepath.Join(dir, e.IndexPath)
		}
		if e.CorpusPath != "" && !filepath.IsAbs(e.CorpusPath) {
			e.CorpusPath = filepath.Join(dir, e.CorpusPath)
		}
		f.Configurations[name] = e
	}
}

// Validate checks that every configuration is complete.
func (f *File) Validate() error {
	if len(f.Configurations) == 0 {
		return ErrNoConfigurations
	}
	if f.Defaults.K < 1 {
		return fmt.Errorf("defaults: k must be at least 1, got %d", f.Defaults.K)
	}
	if f.Defaults.Threshold != nil && math.IsNaN(float64(*f.Defaults.Threshold)) {
		return errors.New("defaults: threshold must be a number")
	}
	if f.Defaults.MaxOutputTokens < 1 {
		return fmt.Errorf("defaults: max_output_tokens must be at least 1, got %d", f.Defaults.MaxOutputTokens)
	}
	for _, name := range f.Names() {
		e := f.Configurations[name]
		switch {
		case e.IndexPath == "":
			return fmt.Errorf("configuration %q: index_path is required", name)
		case e.CorpusPath == "":
			return fmt.Errorf("configuration %q: corpus_path is required", name)
		case e.EmbeddingModel == "":
			return fmt.Errorf("configuration %q: embedding_model is required", name)
		}
		if e.Backend != "" && !slices.Contains(ai.Backends, e.Backend) {
			return fmt.Errorf("configuration %q: unsupported backend %q", name, e.Backend)
		}
	}
	return nil
}

// Names returns the configuration names in sorted order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Configurations))
	for name := range f.Configurations {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Entry returns the named configuration.
func (f *File) Entry(name string) (Entry, bool) {
	e, ok := f.Configurations[name]
	return e, ok
}

// Threshold returns the default similarity threshold.
func (f *File) Threshold() float32 {
	if f.Defaults.Threshold == nil {
		return DefaultThreshold
	}
	return *f.Defaults.Threshold
}

// AIConfig builds the model service configuration for an entry.
// The API key is read from the environment variable named by APIKeyEnv.
func (f *File) AIConfig(e Entry) *ai.Config {
	backend := f.AI.Backend
	if e.Backend != "" {
		backend = e.Backend
	}
	embeddingHost := f.AI.EmbeddingHost
	if e.EmbeddingHost != "" {
		embeddingHost = e.EmbeddingHost
	}

	cfg := ai.NewConfig(
		ai.WithBackend(backend),
		ai.WithEmbeddingHost(embeddingHost),
		ai.WithGenerationHost(f.AI.GenerationHost),
		ai.WithEmbeddingModel(e.EmbeddingModel),
		ai.WithGenerationModel(f.AI.GenerationModel),
	)
	if key := os.Getenv(f.AI.APIKeyEnv); key != "" {
		cfg.APIKey = key
	}
	return cfg
}
