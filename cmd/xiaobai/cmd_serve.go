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
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/XiaobaiBridge/cmd/xiaobai/config"
	"github.com/AleutianAI/XiaobaiBridge/pkg/logging"
	"github.com/AleutianAI/XiaobaiBridge/pkg/ux"
	"github.com/AleutianAI/XiaobaiBridge/services/gateway/server"
	"github.com/AleutianAI/XiaobaiBridge/services/wenxiaobai"
)

func runServe(cmd *cobra.Command, args []string) {
	cfg := config.Global

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "gateway",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	ux.Info(fmt.Sprintf("网关启动于端口 %d", cfg.Gateway.Port))
	err := server.Run(ctx, server.Options{
		Port:    fmt.Sprintf("%d", cfg.Gateway.Port),
		DataDir: cfg.Storage.DataDir,
		Client: wenxiaobai.ClientConfig{
			BaseURL:       cfg.Upstream.BaseURL,
			TrackingURL:   cfg.Upstream.TrackingURL,
			Timeout:       time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
			StreamTimeout: time.Duration(cfg.Upstream.StreamTimeoutSeconds) * time.Second,
		},
		Cooldown:       time.Duration(cfg.Session.CooldownSeconds) * time.Second,
		HistoryEnabled: cfg.Storage.HistoryEnabled,
		Logger:         logger.Slog(),
	})
	if err != nil {
		ux.Error("网关异常退出: " + err.Error())
		os.Exit(1)
	}
	ux.Success("网关已停止")
}
