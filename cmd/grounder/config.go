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


package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/poiesic/grounder/ai"
)

// fileConfig mirrors the optional YAML configuration file. Command-line
// flags override anything set here.
type fileConfig struct {
	Database string `yaml:"database"`

	AI struct {
		Host           string  `yaml:"host"`
		EmbeddingHost  string  `yaml:"embedding_host"`
		GeneratorHost  string  `yaml:"generator_host"`
		EmbeddingModel string  `yaml:"embedding_model"`
		GeneratorModel string  `yaml:"generator_model"`
		Token          string  `yaml:"token"`
		Temperature    float64 `yaml:"temperature"`
	} `yaml:"ai"`

	Retrieval struct {
		TopK int `yaml:"top_k"`
	} `yaml:"retrieval"`
}

// loadFileConfig reads the YAML configuration at path. An empty path
// returns an empty configuration.
func loadFileConfig(path string) (*fileConfig, error) {
	cfg := &fileConfig{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// aiConfig merges the file configuration with flag overrides into a
// provider configuration.
func (fc *fileConfig) aiConfig(overrides ...ai.ConfigOption) (*ai.Config, error) {
	var opts []ai.ConfigOption
	if fc.AI.Host != "" {
		opts = append(opts, ai.WithHost(fc.AI.Host))
	}
	if fc.AI.EmbeddingHost != "" {
		opts = append(opts, ai.WithEmbeddingHost(fc.AI.EmbeddingHost))
	}
	if fc.AI.GeneratorHost != "" {
		opts = append(opts, ai.WithGeneratorHost(fc.AI.GeneratorHost))
	}
	if fc.AI.EmbeddingModel != "" {
		opts = append(opts, ai.WithEmbeddingModel(fc.AI.EmbeddingModel))
	}
	if fc.AI.GeneratorModel != "" {
		opts = append(opts, ai.WithGeneratorModel(fc.AI.GeneratorModel))
	}
	if fc.AI.Token != "" {
		opts = append(opts, ai.WithToken(fc.AI.Token))
	}
	if fc.AI.Temperature != 0 {
		opts = append(opts, ai.WithTemperature(fc.AI.Temperature))
	}
	opts = append(opts, overrides...)

	cfg := ai.NewConfig(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	return cfg, nil
}
