package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/docindexer/backend/internal/cache/redis"
	"github.com/docindexer/backend/internal/chunking"
	"github.com/docindexer/backend/internal/enrich"
	"github.com/docindexer/backend/internal/index"
	"github.com/docindexer/backend/internal/ingestion"
	"github.com/docindexer/backend/internal/llm"
	"github.com/docindexer/backend/internal/metrics"
	"github.com/docindexer/backend/internal/policy"
	"github.com/docindexer/backend/internal/storage/sqlite"
	"github.com/docindexer/backend/pkg/config"
	appLogger "github.com/docindexer/backend/pkg/logger"

	"github.com/docindexer/backend/internal/extract"
)

type app struct {
	cfg       *config.Config
	processor *ingestion.Processor
	store     *sqlite.Client
	closers   []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			appLogger.Warn("Failed to close resource", zap.Error(err))
		}
	}
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &app{cfg: cfg}

	metrics.Init()
	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			appLogger.Info("Metrics server starting", zap.String("addr", cfg.Metrics.Addr))
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				appLogger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite client: %w", err)
	}
	a.store = sqliteClient
	a.closers = append(a.closers, sqliteClient.Close)

	if err := sqliteClient.InitSchema(); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	indexClient, err := index.NewClient(
		cfg.Index.Endpoint,
		cfg.Index.CollectionName,
		cfg.Index.VectorDim,
		cfg.Index.BatchSize,
	)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create index client: %w", err)
	}
	a.closers = append(a.closers, indexClient.Close)

	if err := indexClient.EnsureCollection(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	llmClient, err := llm.NewClient(llm.Options{
		APIKey:         cfg.AI.APIKey,
		BaseURL:        cfg.AI.BaseURL,
		Model:          cfg.AI.Model,
		EmbeddingModel: cfg.AI.EmbeddingModel,
		EmbeddingDim:   cfg.AI.EmbeddingDim,
		Temperature:    cfg.AI.Temperature,
		MaxTokens:      cfg.AI.MaxTokens,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create ai client: %w", err)
	}

	var cache enrich.Cache
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, continuing without enrichment cache", zap.Error(err))
		} else {
			cache = redisClient
			a.closers = append(a.closers, redisClient.Close)
		}
	}

	semantic := chunking.NewSemanticChunker(llmClient)
	splitter := chunking.NewSplitter(
		semantic,
		chunking.Method(cfg.Processing.DefaultMethod),
		cfg.Processing.MaxChunkSize,
		cfg.Processing.DocumentType,
	)

	enricher := enrich.New(
		llmClient,
		llmClient,
		cache,
		cfg.AI.EmbeddingDim,
		cfg.Processing.DocumentType,
		time.Duration(cfg.Redis.TTLHours)*time.Hour,
	)

	policyProcessor := policy.NewProcessor(llmClient, llmClient, cfg.AI.EmbeddingDim, cfg.Processing.PolicyGroups)

	a.processor = ingestion.NewProcessor(
		extract.New(),
		enricher,
		indexClient,
		sqliteClient,
		splitter,
		policyProcessor,
		cfg.Index.CollectionName,
	)

	return a, nil
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to render result: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

var supportedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".pdf":  true,
	".docx": true,
	".html": true,
	".htm":  true,
}

func main() {
	var (
		method       string
		maxChunkSize int
		forceReindex bool
		policyID     string
		groups       []string
		watchDir     string
	)

	root := &cobra.Command{
		Use:           "docindexer",
		Short:         "Document ingestion and search index publishing pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	processCmd := &cobra.Command{
		Use:   "process [files...]",
		Short: "Extract, chunk, enrich and publish documents to the search index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			defer appLogger.Sync()

			failed := 0
			for _, path := range args {
				result := a.processor.ProcessDocument(cmd.Context(), ingestion.Request{
					Path:         path,
					Method:       method,
					MaxChunkSize: maxChunkSize,
					ForceReindex: forceReindex,
				})
				printJSON(result)
				if result.Status == "error" {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d documents failed", failed, len(args))
			}
			return nil
		},
	}
	processCmd.Flags().StringVar(&method, "method", "", "chunking method (fixed_size, sentence, heading, intelligent, paragraph)")
	processCmd.Flags().IntVar(&maxChunkSize, "max-chunk-size", 0, "maximum chunk size in characters")
	processCmd.Flags().BoolVar(&forceReindex, "force-reindex", false, "delete existing index entries for this document version before publishing")

	compareCmd := &cobra.Command{
		Use:   "compare [file]",
		Short: "Run every chunking method over one document and recommend one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			defer appLogger.Sync()

			report, err := a.processor.CompareMethods(cmd.Context(), args[0], "", maxChunkSize)
			if err != nil {
				return err
			}
			printJSON(report)

			// Echo the persisted rows so replaced prior runs are visible.
			stored, err := a.store.GetComparisons(report.FileID)
			if err != nil {
				appLogger.Warn("Failed to read stored comparisons", zap.Error(err))
				return nil
			}
			printJSON(map[string]any{"stored_comparisons": stored})
			return nil
		},
	}
	compareCmd.Flags().IntVar(&maxChunkSize, "max-chunk-size", 0, "maximum chunk size in characters")

	policyCmd := &cobra.Command{
		Use:   "policy [files...]",
		Short: "Analyze policy documents clause by clause and publish the clauses",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			defer appLogger.Sync()

			failed := 0
			for _, path := range args {
				result := a.processor.ProcessPolicyDocument(cmd.Context(), ingestion.PolicyRequest{
					Path:     path,
					PolicyID: policyID,
					Groups:   groups,
				})
				printJSON(result)
				if result.Status == "error" {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d policy documents failed", failed, len(args))
			}
			return nil
		},
	}
	policyCmd.Flags().StringVar(&policyID, "policy-id", "", "policy identifier (default derived from filename)")
	policyCmd.Flags().StringSliceVar(&groups, "groups", nil, "access groups for the policy clauses")

	invalidateCmd := &cobra.Command{
		Use:   "invalidate-cache",
		Short: "Drop cached enrichment results and embeddings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer appLogger.Sync()

			if !cfg.Redis.Enabled {
				return fmt.Errorf("redis cache is disabled in config")
			}
			redisClient, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				return fmt.Errorf("failed to connect to redis: %w", err)
			}
			defer redisClient.Close()

			return redisClient.Invalidate(cmd.Context())
		},
	}

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a directory and process new documents as they arrive",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			defer appLogger.Sync()

			dir := watchDir
			if dir == "" {
				dir = a.cfg.Processing.WatchDir
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create watch directory: %w", err)
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("failed to create watcher: %w", err)
			}
			defer watcher.Close()

			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}

			appLogger.Info("Watching for documents", zap.String("dir", dir))

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

			for {
				select {
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if !event.Has(fsnotify.Create) {
						continue
					}
					ext := strings.ToLower(filepath.Ext(event.Name))
					if !supportedExtensions[ext] {
						continue
					}
					// Writers may still be flushing right after Create.
					time.Sleep(500 * time.Millisecond)

					result := a.processor.ProcessDocument(cmd.Context(), ingestion.Request{
						Path:         event.Name,
						Method:       method,
						MaxChunkSize: maxChunkSize,
						ForceReindex: forceReindex,
					})
					printJSON(result)
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					appLogger.Warn("Watcher error", zap.Error(err))
				case <-quit:
					appLogger.Info("Shutting down watcher")
					return nil
				}
			}
		},
	}
	watchCmd.Flags().StringVar(&watchDir, "dir", "", "directory to watch (default from config)")
	watchCmd.Flags().StringVar(&method, "method", "", "chunking method for watched documents")
	watchCmd.Flags().IntVar(&maxChunkSize, "max-chunk-size", 0, "maximum chunk size in characters")
	watchCmd.Flags().BoolVar(&forceReindex, "force-reindex", false, "replace existing index entries for each document version")

	root.AddCommand(processCmd, compareCmd, policyCmd, invalidateCmd, watchCmd)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
