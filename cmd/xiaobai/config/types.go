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
	"os"
	"path/filepath"
)

type XiaobaiConfig struct {
	// Gateway: the HTTP surface hosts connect to
	Gateway GatewayConfig `yaml:"gateway"`

	// Logging: level and optional file destination
	Logging LoggingConfig `yaml:"logging"`

	// Upstream: the Wenxiaobai API endpoints and timeouts
	Upstream UpstreamConfig `yaml:"upstream"`

	// Session: conversation renewal behavior
	Session SessionConfig `yaml:"session"`

	// Storage: where credentials and transcripts live
	Storage StorageConfig `yaml:"storage"`
}

type GatewayConfig struct {
	Port int `yaml:"port" validate:"min=1,max=65535"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Dir   string `yaml:"dir"`
}

type UpstreamConfig struct {
	// BaseURL overrides the default API host; empty keeps the built-in.
	BaseURL     string `yaml:"base_url,omitempty" validate:"omitempty,url"`
	TrackingURL string `yaml:"tracking_url,omitempty" validate:"omitempty,url"`

	TimeoutSeconds       int `yaml:"timeout_seconds" validate:"min=1"`
	StreamTimeoutSeconds int `yaml:"stream_timeout_seconds" validate:"min=1"`
}

type SessionConfig struct {
	// CooldownSeconds is how long a conversation may idle before the
	// next message opens a fresh one.
	CooldownSeconds int `yaml:"cooldown_seconds" validate:"min=1"`
}

type StorageConfig struct {
	DataDir        string `yaml:"data_dir"`
	HistoryEnabled bool   `yaml:"history_enabled"`
}

func DefaultConfig() XiaobaiConfig {
	dataDir := ".xiaobai"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".xiaobai")
	}
	return XiaobaiConfig{
		Gateway: GatewayConfig{Port: 12310},
		Logging: LoggingConfig{Level: "info"},
		Upstream: UpstreamConfig{
			TimeoutSeconds:       30,
			StreamTimeoutSeconds: 120,
		},
		Session: SessionConfig{CooldownSeconds: 180},
		Storage: StorageConfig{
			DataDir:        dataDir,
			HistoryEnabled: true,
		},
	}
}
