package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/prosapient/datacop/audit"
	"github.com/prosapient/datacop/config"
	"github.com/prosapient/datacop/controller"
	"github.com/prosapient/datacop/dataloader"
	"github.com/prosapient/datacop/db"
	logger "github.com/prosapient/datacop/logging"
	"github.com/prosapient/datacop/pdp"
	"github.com/prosapient/datacop/router"
	"github.com/prosapient/datacop/sources/neo4jsource"
	"github.com/prosapient/datacop/sources/redissource"
	"github.com/prosapient/datacop/util"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	// Initialize logger
	logger.InitLogger()
	defer logger.Sync()

	// Initialize Redis
	if err := db.InitRedis(); err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer db.CloseRedis()

	// Pick the batched permission backend
	var members dataloader.Source
	switch config.GetString("acl.backend") {
	case "neo4j":
		if err := db.InitNeo4j(); err != nil {
			logger.Fatal("Failed to initialize Neo4j", zap.Error(err))
		}
		defer db.CloseNeo4j()
		members = neo4jsource.NewMembershipSource(db.Neo4jDriver)
	default:
		members = redissource.New(db.RedisClient, config.GetString("acl.prefix"))
	}

	// Initialize EventBus
	eventBus := util.NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eventBus.Start(ctx)

	// Initialize the decision audit trail
	var auditRepo audit.Repository = audit.ZapRepository{}
	if esURL := config.GetString("elasticsearch.url"); esURL != "" {
		repo, err := audit.NewElasticsearchRepository(esURL)
		if err != nil {
			logger.Fatal("Failed to initialize Elasticsearch", zap.Error(err))
		}
		auditRepo = repo
	}
	auditService := audit.NewService(auditRepo)
	auditor := audit.NewDispatcher(eventBus, auditService)

	// Initialize the policy and the demo document set
	policy := pdp.NewDocumentPolicy(members)
	store := pdp.NewStaticStore([]pdp.Document{
		{ID: "doc-1", Title: "Quarterly report", OwnerID: "alice", OrgID: "acme"},
		{ID: "doc-2", Title: "Hiring plan", OwnerID: "bob", OrgID: "acme"},
		{ID: "doc-3", Title: "Runbook", OwnerID: "carol", OrgID: "globex"},
	})

	accessController := controller.NewAccessController(policy, store, auditor)

	// Set up the server
	r := router.SetupRouter(accessController, 100, time.Minute)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", config.GetString("server.port")),
		Handler: r,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", config.GetString("server.port")))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	// Flush in-flight audit writes before exiting
	eventBus.Drain()

	logger.Info("Server exiting")
}
