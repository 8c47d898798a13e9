// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server wires and runs the gateway. The standalone gateway
// binary and the CLI's serve command both call Run so the two
// entrypoints cannot drift apart.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/AleutianAI/XiaobaiBridge/pkg/credstore"
	"github.com/AleutianAI/XiaobaiBridge/services/gateway/observability"
	"github.com/AleutianAI/XiaobaiBridge/services/gateway/routes"
	"github.com/AleutianAI/XiaobaiBridge/services/history"
	"github.com/AleutianAI/XiaobaiBridge/services/login"
	"github.com/AleutianAI/XiaobaiBridge/services/router"
	"github.com/AleutianAI/XiaobaiBridge/services/session"
	"github.com/AleutianAI/XiaobaiBridge/services/wenxiaobai"
)

// serviceName identifies the gateway in exported traces.
const serviceName = "xiaobai-gateway"

// Options configures one gateway run. Zero values fall back to the
// upstream client's built-in defaults.
type Options struct {
	Port           string
	DataDir        string
	Client         wenxiaobai.ClientConfig
	Cooldown       time.Duration
	HistoryEnabled bool
	Logger         *slog.Logger
}

// initTracer installs the OTLP trace pipeline when a collector endpoint
// is configured; otherwise tracing stays a local no-op.
func initTracer(ctx context.Context) (func(context.Context), error) {
	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		return func(context.Context) {}, nil
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// Run wires the bridge and serves it until ctx is cancelled. It blocks.
func Run(ctx context.Context, opts Options) error {
	if opts.Port == "" {
		opts.Port = "12310"
	}
	if opts.Logger != nil {
		slog.SetDefault(opts.Logger)
	}

	cleanup, err := initTracer(ctx)
	if err != nil {
		return err
	}
	defer cleanup(context.Background())

	metrics := observability.InitMetrics()

	store, err := credstore.Open(filepath.Join(opts.DataDir, "credentials.json"))
	if err != nil {
		return err
	}

	client := wenxiaobai.NewClient(opts.Client, store)
	loginFlow := login.New(client, store)
	sessions := session.New(client, store).WithCooldown(opts.Cooldown)

	var hist *history.Store
	if opts.HistoryEnabled {
		hist, err = history.Open(history.Config{
			Path:   filepath.Join(opts.DataDir, "history"),
			Logger: slog.Default(),
		})
		if err != nil {
			slog.Warn("history store unavailable, transcripts disabled", "error", err)
			hist = nil
		} else {
			defer hist.Close()
		}
	}

	bridge := router.New(client, sessions, loginFlow, store, hist).WithMetrics(metrics)

	engine := gin.Default()
	engine.Use(otelgin.Middleware(serviceName))
	routes.SetupRoutes(engine, bridge, hist)

	srv := &http.Server{
		Addr:    ":" + opts.Port,
		Handler: engine,
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		slog.Info("starting the gateway server", "port", opts.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	// Reload credentials when another process (the CLI login command)
	// rewrites the file.
	group.Go(func() error {
		if err := store.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("credential watcher stopped", "error", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
