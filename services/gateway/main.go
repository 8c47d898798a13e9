// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/AleutianAI/XiaobaiBridge/pkg/logging"
	"github.com/AleutianAI/XiaobaiBridge/services/gateway/server"
)

func dataDir() string {
	if dir := os.Getenv("XIAOBAI_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".xiaobai"
	}
	return filepath.Join(home, ".xiaobai")
}

func main() {
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(os.Getenv("XIAOBAI_LOG_LEVEL")),
		LogDir:  os.Getenv("XIAOBAI_LOG_DIR"),
		Service: "gateway",
		JSON:    true,
	})
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := server.Run(ctx, server.Options{
		Port:           os.Getenv("XIAOBAI_GATEWAY_PORT"),
		DataDir:        dataDir(),
		HistoryEnabled: true,
		Logger:         logger.Slog(),
	})
	if err != nil {
		log.Fatalf("gateway exited with error: %v", err)
	}
	logger.Slog().Info("gateway stopped")
}
