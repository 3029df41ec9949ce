// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// agentd is the support-agent orchestrator service.
//
// It exposes the /v1/agent HTTP surface the platform's job queue and API
// call into, and composes the full stack: model client, tool executor,
// guardrails, tenant settings, and the interaction audit trail.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ClawdeskHQ/clawdesk/services/agent"
	"github.com/ClawdeskHQ/clawdesk/services/agent/tools"
	"github.com/ClawdeskHQ/clawdesk/services/config"
	"github.com/ClawdeskHQ/clawdesk/services/dispatch"
	"github.com/ClawdeskHQ/clawdesk/services/guardrails"
	"github.com/ClawdeskHQ/clawdesk/services/interactions"
	"github.com/ClawdeskHQ/clawdesk/services/llm"
	badgerstore "github.com/ClawdeskHQ/clawdesk/services/storage/badger"
	"github.com/ClawdeskHQ/clawdesk/services/ticketing"
)

func main() {
	configPath := flag.String("config", "", "Path to the service config YAML")
	dev := flag.Bool("dev", false, "Run with an in-memory seeded ticket store")
	debug := flag.Bool("debug", false, "Enable debug logging and gin debug mode")
	trace := flag.Bool("trace", false, "Export spans to stdout")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(*configPath, *dev, *debug, *trace, logger); err != nil {
		logger.Error("agentd exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(configPath string, dev, debug, trace bool, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if trace {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("stdout trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		otel.SetTracerProvider(tp)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(ctx)
		}()
	}

	// Model client.
	client, err := llm.NewClient(llm.ClientConfig{
		BaseURL:           cfg.Model.BaseURL,
		APIKey:            cfg.Model.APIKey(),
		Model:             cfg.Model.Name,
		Timeout:           cfg.Model.Timeout.Std(),
		RequestsPerMinute: cfg.Model.RequestsPerMinute,
	})
	if err != nil {
		return err
	}

	// Ticket store. The real deployment points the tool executor at the
	// platform store; -dev runs against seeded in-process data.
	var store ticketing.Store
	events := ticketing.NewMemEmitter()
	if dev {
		mem := ticketing.NewMemStore()
		seedDevData(mem)
		store = mem
		logger.Info("dev mode: using seeded in-memory ticket store")
	} else {
		// Without a platform store binding the service can still serve
		// health checks, but agent runs would fail on every tool call.
		// Dev mode is the only in-tree store; deployments link their own.
		mem := ticketing.NewMemStore()
		store = mem
		logger.Warn("no platform store configured; running with an empty in-memory store")
	}

	// Interaction audit trail.
	db, err := badgerstore.Open(cfg.InteractionsDir, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("closing interactions DB", slog.String("error", err.Error()))
		}
	}()
	audit := interactions.NewStore(db, 0, logger)

	// Rate gate: Redis when configured, in-memory otherwise.
	var counter guardrails.ActionCounter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("redis at %s: %w", cfg.RedisAddr, err)
		}
		counter = guardrails.NewRedisCounter(rdb, 0)
		logger.Info("rate gate backed by redis", slog.String("addr", cfg.RedisAddr))
	} else {
		counter = guardrails.NewMemoryCounter(0)
		logger.Info("rate gate backed by in-process counter")
	}
	gate := guardrails.NewTaskGate(counter)

	// Tenant settings with hot reload.
	tenants, err := config.LoadTenants(cfg.TenantsFile, logger)
	if err != nil {
		return err
	}
	defer tenants.Close()

	// Agent core.
	executor := tools.NewExecutor(store, events, logger)
	orch := agent.NewOrchestrator(client, executor, logger)
	tasks := agent.NewService(orch)

	dispatcher := dispatch.NewDispatcher(tasks, store, events, tenants, gate, audit, logger)

	// HTTP surface.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("clawdesk-agentd"))
	if debug {
		router.Use(gin.Logger())
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers := dispatch.NewHandlers(tasks, tenants, client, audit, dispatcher)
	v1 := router.Group("/v1")
	dispatch.RegisterRoutes(v1, handlers)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: router}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("agentd listening", slog.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace.Std())
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		// Periodic Badger value-log GC.
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := db.RunGC(); err != nil {
					logger.Warn("badger GC", slog.String("error", err.Error()))
				}
			}
		}
	})

	status := client.CheckConnectivity(ctx)
	if status.Connected {
		logger.Info("model endpoint reachable", slog.String("url", status.URL))
	} else {
		logger.Warn("model endpoint unreachable at startup",
			slog.String("url", status.URL),
			slog.String("error", status.Error),
		)
	}

	return g.Wait()
}

// seedDevData loads a small fixture tenant so dev mode has something to
// triage.
func seedDevData(store *ticketing.MemStore) {
	const tenant = "dev"
	contact := store.PutContact(ticketing.Contact{
		TenantID: tenant,
		Name:     "Dana Developer",
		Email:    "dana@example.com",
	})
	store.PutTeam(ticketing.Team{ID: "team-billing", TenantID: tenant, Name: "Billing"})
	store.PutTeam(ticketing.Team{ID: "team-support", TenantID: tenant, Name: "Support"})
	store.PutCannedResponse(ticketing.CannedResponse{
		TenantID: tenant,
		Title:    "Password reset",
		Content:  "You can reset your password from the login page via 'Forgot password'.",
		Shortcut: "/pwreset",
	})
	store.PutTicket(ticketing.Ticket{
		ID:        "ticket-dev-1",
		TenantID:  tenant,
		Subject:   "Cannot log in after password reset",
		Status:    ticketing.StatusOpen,
		Priority:  ticketing.PriorityNormal,
		Channel:   ticketing.ChannelEmail,
		ContactID: contact.ID,
	})
}
