// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	// Global is a singleton instance
	Global XiaobaiConfig
	once   sync.Once

	validate = validator.New()
)

// Load ensures the config is loaded into the Global variable. The
// first run writes a default config file.
func Load() error {
	var err error
	once.Do(func() {
		err = loadInternal(configPath())
	})
	return err
}

// LoadFrom reads and validates a config file at an explicit path,
// bypassing the singleton. Used by tests and the --config flag.
func LoadFrom(path string) (XiaobaiConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return XiaobaiConfig{}, fmt.Errorf("failed to read the config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return XiaobaiConfig{}, fmt.Errorf("failed to parse the config file: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return XiaobaiConfig{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func configPath() string {
	if path := os.Getenv("XIAOBAI_CONFIG"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "xiaobai.yaml"
	}
	return filepath.Join(home, ".xiaobai", "xiaobai.yaml")
}

func loadInternal(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Printf("First run detected, creating the config at %s\n", path)
		if err := createDefault(path); err != nil {
			return err
		}
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		return err
	}
	Global = cfg
	return nil
}

func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	defaultCfg := DefaultConfig()
	data, err := yaml.Marshal(defaultCfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
