package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/osbench/osbench/apps/server/config"
	"github.com/osbench/osbench/apps/server/routes"
	"github.com/osbench/osbench/pkg/artifacts"
	"github.com/osbench/osbench/pkg/engine"
	"github.com/osbench/osbench/pkg/notify"
	"github.com/osbench/osbench/pkg/orchestrator"
	"github.com/osbench/osbench/pkg/runstore"
	"github.com/osbench/osbench/pkg/workspace"
)

func main() {
	cfg, err := config.ValidateEnv()
	if err != nil {
		log.Fatalf("❌ %v\n", err)
	}

	cfg.Print(log.Printf)

	eng, err := engine.NewDockerEngine()
	if err != nil {
		log.Fatalf("failed to initialize container engine: %v", err)
	}
	defer eng.Close()

	store, err := runstore.NewFileStore(filepath.Join(cfg.DataDir, "results"))
	if err != nil {
		log.Fatalf("failed to initialize record store: %v", err)
	}
	workspaces := workspace.NewManager(filepath.Join(cfg.DataDir, "workspaces"))

	hub := notify.NewHub()
	notifiers := notify.Multi{hub}
	if cfg.RedisEnabled() {
		rn, err := notify.NewRedisNotifier(notify.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Channel:  cfg.RedisChannel,
		})
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer rn.Close()
		notifiers = append(notifiers, rn)
	}

	var artifactStore artifacts.Store
	opts := []orchestrator.Option{orchestrator.WithNotifier(notifiers)}
	if cfg.DefaultImage != "" {
		opts = append(opts, orchestrator.WithDefaultImage(cfg.DefaultImage))
	}
	if cfg.ArtifactsEnabled() {
		s3, err := artifacts.NewS3Store(artifacts.S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			log.Fatalf("failed to initialize artifact store: %v", err)
		}
		if err := s3.EnsureBucket(context.Background()); err != nil {
			log.Fatalf("failed to ensure artifact bucket: %v", err)
		}
		artifactStore = s3
		opts = append(opts, orchestrator.WithArtifacts(s3))
	}

	orch := orchestrator.New(eng, store, workspaces, opts...)

	router := chi.NewMux()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	api := humachi.New(router, huma.DefaultConfig("osbench", "1.0.0"))
	routes.RegisterRoutes(api, orch, hub, artifactStore)

	addr := fmt.Sprintf(":%s", cfg.Port)

	log.Printf("🚀 Server starting on %s\n", addr)
	log.Printf("📚 OpenAPI docs: %s/docs\n", cfg.BaseURL)
	log.Printf("📄 OpenAPI spec: %s/openapi.json\n", cfg.BaseURL)

	if err := http.ListenAndServe(addr, router); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
