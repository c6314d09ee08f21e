package lattice

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	lattice "github.com/latticehq/lattice"
	"github.com/latticehq/lattice/pkg/alert"
	"github.com/latticehq/lattice/pkg/archive"
	"github.com/latticehq/lattice/pkg/config"
	"github.com/latticehq/lattice/pkg/embedder"
	"github.com/latticehq/lattice/pkg/graph"
	latticeLogger "github.com/latticehq/lattice/pkg/logger"
	"github.com/latticehq/lattice/pkg/nlp"
	"github.com/latticehq/lattice/pkg/persist"
	"github.com/latticehq/lattice/pkg/search"
	"github.com/latticehq/lattice/pkg/server"
	"github.com/latticehq/lattice/pkg/telemetry"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Lattice HTTP server",
	Long: `Start the Lattice HTTP server to provide REST API access to hybrid
search and the knowledge graph.

The server provides endpoints for:
- Hybrid search over the content corpus
- Upserting and retrieving content items
- Knowledge graph administration (nodes, edges, traversal, snapshots)
- Health checks

Configuration can be provided through config files, environment variables, or command-line flags.`,
	RunE: runServer,
}

var (
	serverHost string
	serverPort int
	serverMode string
)

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVar(&serverHost, "host", "localhost", "Server host")
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Server port")
	serverCmd.Flags().StringVar(&serverMode, "mode", "debug", "Server mode (debug, release, test)")

	serverCmd.Flags().String("db-driver", "", "Write-through persistence driver (neo4j, empty for memory-only)")
	serverCmd.Flags().String("db-uri", "bolt://localhost:7687", "Database URI")
	serverCmd.Flags().String("db-username", "", "Database username")
	serverCmd.Flags().String("db-password", "", "Database password")
	serverCmd.Flags().String("db-database", "", "Database name")

	serverCmd.Flags().String("embedding-provider", "", "Embedding provider (openai, embedeverything)")
	serverCmd.Flags().String("embedding-model", "", "Embedding model")
	serverCmd.Flags().String("embedding-api-key", "", "Embedding API key")
	serverCmd.Flags().String("embedding-base-url", "", "Embedding base URL")

	serverCmd.Flags().String("archive-path", "", "Snapshot archive directory (empty disables)")
	serverCmd.Flags().String("export-dir", "", "Snapshot parquet export directory (empty disables)")
	serverCmd.Flags().String("telemetry-parquet-path", "", "Directory for telemetry Parquet files")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	overrideConfigWithFlags(cmd, cfg)

	if err := validateServerConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, engine, err := initializeEngine(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer engine.Close()

	srv := server.New(cfg, engine, logger)
	srv.Setup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		logger.Info("server stopped gracefully")
		return nil
	}
}

func overrideConfigWithFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serverHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = serverPort
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode = serverMode
	}

	if cmd.Flags().Changed("db-driver") {
		cfg.Database.Driver, _ = cmd.Flags().GetString("db-driver")
	}
	if cmd.Flags().Changed("db-uri") {
		cfg.Database.URI, _ = cmd.Flags().GetString("db-uri")
	}
	if cmd.Flags().Changed("db-username") {
		cfg.Database.Username, _ = cmd.Flags().GetString("db-username")
	}
	if cmd.Flags().Changed("db-password") {
		cfg.Database.Password, _ = cmd.Flags().GetString("db-password")
	}
	if cmd.Flags().Changed("db-database") {
		cfg.Database.Database, _ = cmd.Flags().GetString("db-database")
	}

	if cmd.Flags().Changed("embedding-provider") {
		cfg.Embedding.Provider, _ = cmd.Flags().GetString("embedding-provider")
	}
	if cmd.Flags().Changed("embedding-model") {
		cfg.Embedding.Model, _ = cmd.Flags().GetString("embedding-model")
	}
	if cmd.Flags().Changed("embedding-api-key") {
		cfg.Embedding.APIKey, _ = cmd.Flags().GetString("embedding-api-key")
	}
	if cmd.Flags().Changed("embedding-base-url") {
		cfg.Embedding.BaseURL, _ = cmd.Flags().GetString("embedding-base-url")
	}

	if cmd.Flags().Changed("archive-path") {
		cfg.Graph.ArchivePath, _ = cmd.Flags().GetString("archive-path")
	}
	if cmd.Flags().Changed("export-dir") {
		cfg.Graph.ExportDir, _ = cmd.Flags().GetString("export-dir")
	}
	if cmd.Flags().Changed("telemetry-parquet-path") {
		cfg.Telemetry.ParquetPath, _ = cmd.Flags().GetString("telemetry-parquet-path")
	}
}

func validateServerConfig(cfg *config.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}
	if cfg.Database.Driver != "" && cfg.Database.URI == "" {
		return fmt.Errorf("database URI is required when a driver is configured")
	}
	return nil
}

// initializeEngine assembles the engine from configuration: logger and
// telemetry first, then graph store backends, embedding provider and LLM
// collaborators.
func initializeEngine(cfg *config.Config) (*slog.Logger, *lattice.Engine, error) {
	logger := latticeLogger.New(cfg.Log.Level, cfg.Log.Format)

	if cfg.Telemetry.ParquetPath != "" {
		if err := os.MkdirAll(cfg.Telemetry.ParquetPath, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create telemetry directory: %w", err)
		}
		parquetHandler, err := telemetry.NewParquetHandler(logger.Handler(), cfg.Telemetry.ParquetPath)
		if err != nil {
			logger.Warn("error telemetry disabled", "error", err)
		} else {
			logger = slog.New(parquetHandler)
		}
	}
	if cfg.Telemetry.MySQLDSN != "" {
		db, err := sql.Open("mysql", cfg.Telemetry.MySQLDSN)
		if err != nil {
			logger.Warn("sql telemetry disabled", "error", err)
		} else if sqlHandler, err := telemetry.NewSQLHandler(logger.Handler(), db); err != nil {
			logger.Warn("sql telemetry disabled", "error", err)
		} else {
			logger = slog.New(sqlHandler)
		}
	}

	storeOpts := []graph.StoreOption{graph.WithLogger(logger)}
	if cfg.Graph.CycleDetectionDepth > 0 {
		storeOpts = append(storeOpts, graph.WithCycleDetectionDepth(cfg.Graph.CycleDetectionDepth))
	}

	switch cfg.Database.Driver {
	case "":
		// Memory-only store.
	case "neo4j":
		persistence, err := persist.NewNeo4jPersistence(cfg.Database.URI, cfg.Database.Username, cfg.Database.Password, cfg.Database.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create neo4j persistence: %w", err)
		}
		storeOpts = append(storeOpts, graph.WithPersistence(persistence))
		logger.Info("graph persistence enabled", "driver", "neo4j", "uri", cfg.Database.URI)
	default:
		return nil, nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}

	if cfg.Graph.ArchivePath != "" {
		snapshotArchive, err := archive.Open(cfg.Graph.ArchivePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open snapshot archive: %w", err)
		}
		storeOpts = append(storeOpts, graph.WithSnapshotArchive(snapshotArchive))
		logger.Info("snapshot archive enabled", "path", cfg.Graph.ArchivePath)
	}

	engineOpts := []lattice.Option{
		lattice.WithLogger(logger),
		lattice.WithGraphStore(graph.NewStore(storeOpts...)),
		lattice.WithCache(search.NewCache(
			search.WithCacheTTL(time.Duration(cfg.Search.CacheTTLSeconds)*time.Second),
			search.WithCacheWindow(time.Duration(cfg.Search.CacheWindowSecs)*time.Second),
			search.WithCacheSize(cfg.Search.CacheSize),
		)),
	}
	if cfg.Search.DefaultK > 0 {
		engineOpts = append(engineOpts, lattice.WithDefaultK(cfg.Search.DefaultK))
	}
	if cfg.Search.StrategyTimeoutMs > 0 {
		engineOpts = append(engineOpts, lattice.WithStrategyTimeout(time.Duration(cfg.Search.StrategyTimeoutMs)*time.Millisecond))
	}

	embedderClient, err := buildEmbedder(cfg)
	if err != nil {
		return nil, nil, err
	}
	if embedderClient != nil {
		engineOpts = append(engineOpts, lattice.WithEmbedder(embedderClient))
		logger.Info("embedding enabled", "provider", cfg.Embedding.Provider, "model", cfg.Embedding.Model)
	}

	alerter := alert.NewEmailAlerter(cfg.Alert)

	if classifierClient, err := buildNLPClient(cfg, "classifier", alerter); err != nil {
		return nil, nil, err
	} else if classifierClient != nil {
		engineOpts = append(engineOpts, lattice.WithClassifier(nlp.NewClassifier(classifierClient, logger)))
		logger.Info("intent classifier enabled", "model", cfg.NLP.Models["classifier"].Model)
	}

	if rerankerClient, err := buildNLPClient(cfg, "reranker", alerter); err != nil {
		return nil, nil, err
	} else if rerankerClient != nil {
		engineOpts = append(engineOpts, lattice.WithReranker(nlp.NewLLMReranker(rerankerClient, logger), cfg.Search.RerankTopK))
		logger.Info("reranker enabled", "model", cfg.NLP.Models["reranker"].Model)
	}

	return logger, lattice.NewEngine(engineOpts...), nil
}

func buildEmbedder(cfg *config.Config) (embedder.Client, error) {
	embedderConfig := embedder.Config{
		Model:   cfg.Embedding.Model,
		BaseURL: cfg.Embedding.BaseURL,
	}
	switch cfg.Embedding.Provider {
	case "":
		return nil, nil
	case "openai":
		if cfg.Embedding.APIKey == "" {
			return nil, nil
		}
		return embedder.NewOpenAIEmbedder(cfg.Embedding.APIKey, embedderConfig), nil
	case "embedeverything":
		client, err := embedder.NewEmbedEverythingClient(embedderConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedeverything client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
}

// buildNLPClient constructs one named collaborator client with retry, token
// tracking and circuit breaking layered in. Returns nil when the model is
// disabled or has no key.
func buildNLPClient(cfg *config.Config, name string, alerter alert.Alerter) (nlp.Client, error) {
	model, ok := cfg.NLP.Models[name]
	if !ok || !model.Enabled || model.APIKey == "" {
		return nil, nil
	}
	if model.Provider != "openai" {
		return nil, fmt.Errorf("unsupported NLP provider for %s: %s", name, model.Provider)
	}

	nlpConfig := nlp.ModelConfig{
		Model:       model.Model,
		Temperature: &model.Temperature,
		BaseURL:     model.BaseURL,
	}
	if model.MaxTokens > 0 {
		nlpConfig.MaxTokens = &model.MaxTokens
	}
	baseClient, err := nlp.NewOpenAIClient(model.APIKey, nlpConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", name, err)
	}

	var client nlp.Client = nlp.NewRetryClient(baseClient, nlp.DefaultRetryConfig())

	if cfg.Telemetry.ParquetPath != "" {
		if tracker, err := nlp.NewTokenTracker(cfg.Telemetry.ParquetPath); err == nil {
			client = nlp.NewTokenTrackingClient(client, tracker)
		}
	}

	if cfg.CircuitBreaker.Enabled {
		client = nlp.NewCircuitBreakerClient(client, cfg.CircuitBreaker, alerter, name)
	}
	return client, nil
}
