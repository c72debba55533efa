package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/oppuna-lab/oppuna/pkg/cli/config"
	httpctrl "github.com/oppuna-lab/oppuna/pkg/controller/http"
	"github.com/oppuna-lab/oppuna/pkg/domain/model"
	memstore "github.com/oppuna-lab/oppuna/pkg/repository/memory"
	"github.com/oppuna-lab/oppuna/pkg/service/crisis"
	"github.com/oppuna-lab/oppuna/pkg/service/llm"
	memsvc "github.com/oppuna-lab/oppuna/pkg/service/memory"
	"github.com/oppuna-lab/oppuna/pkg/service/worker"
	"github.com/oppuna-lab/oppuna/pkg/usecase"
	"github.com/oppuna-lab/oppuna/pkg/utils/async"
	"github.com/oppuna-lab/oppuna/pkg/utils/logging"
)

func cmdServe() *cli.Command {
	var addr string
	var fallbackMode bool
	var recallLimit int
	var maxFollowups int
	var embedCacheSize int
	var retention time.Duration
	var retentionInterval time.Duration
	var storeCfg config.Store
	var geminiCfg config.Gemini
	var resourcesCfg config.Resources
	var chatlogCfg config.ChatLog

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("OPPUNA_ADDR"),
			Destination: &addr,
		},
		&cli.BoolFlag{
			Name:        "fallback-mode",
			Usage:       "Serve canned content when the model service is unavailable instead of failing",
			Value:       true,
			Sources:     cli.EnvVars("OPPUNA_FALLBACK_MODE"),
			Destination: &fallbackMode,
		},
		&cli.IntFlag{
			Name:        "recall-limit",
			Usage:       "Number of memory records recalled per chat turn",
			Value:       2,
			Sources:     cli.EnvVars("OPPUNA_RECALL_LIMIT"),
			Destination: &recallLimit,
		},
		&cli.IntFlag{
			Name:        "max-followups",
			Usage:       "Number of follow-up questions attached to each reply",
			Value:       3,
			Sources:     cli.EnvVars("OPPUNA_MAX_FOLLOWUPS"),
			Destination: &maxFollowups,
		},
		&cli.IntFlag{
			Name:        "embed-cache-size",
			Usage:       "Capacity of the embedding LRU cache",
			Value:       memsvc.DefaultEmbedCacheSize,
			Sources:     cli.EnvVars("OPPUNA_EMBED_CACHE_SIZE"),
			Destination: &embedCacheSize,
		},
		&cli.DurationFlag{
			Name:        "chatlog-retention",
			Usage:       "Delete transcript rows older than this (0 disables pruning)",
			Value:       0,
			Sources:     cli.EnvVars("OPPUNA_CHATLOG_RETENTION"),
			Destination: &retention,
		},
		&cli.DurationFlag{
			Name:        "chatlog-retention-interval",
			Usage:       "How often the retention worker runs",
			Value:       time.Hour,
			Sources:     cli.EnvVars("OPPUNA_CHATLOG_RETENTION_INTERVAL"),
			Destination: &retentionInterval,
		},
	}

	// Add shared config flags
	flags = append(flags, storeCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, resourcesCfg.Flags()...)
	flags = append(flags, chatlogCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			resources, err := resourcesCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load chat resources")
			}

			mode := model.NewOperationMode(fallbackMode)

			// Initialize vector store based on backend type
			primary, err := storeCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize vector store")
			}

			chatlogRepo, err := chatlogCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to initialize chat log")
			}
			defer func() {
				if err := chatlogRepo.Close(); err != nil {
					logging.Default().Error("failed to close chat log", "error", err.Error())
				}
			}()

			// Configure the model client
			gemini, err := geminiCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to configure Gemini client")
			}

			var client llm.Client
			if gemini != nil {
				client = llm.NewLiveClient(gemini, resources, mode)
				logging.Default().Info("Model service enabled (Gemini)")
			} else {
				client = llm.NewFallbackClient(resources)
				logging.Default().Warn("No model service configured, serving canned content only")
			}

			// The manager owns both stores and closes them
			mgr, err := memsvc.NewManager(mode, primary, memstore.New(), client.Embed,
				memsvc.WithEmbedCacheSize(embedCacheSize))
			if err != nil {
				return goerr.Wrap(err, "failed to initialize memory manager")
			}
			defer func() {
				if err := mgr.Close(); err != nil {
					logging.Default().Error("failed to close memory manager", "error", err.Error())
				}
			}()

			uc := usecase.New(mgr, client, chatlogRepo, crisis.New(), resources,
				usecase.WithRecallLimit(recallLimit),
				usecase.WithMaxFollowups(maxFollowups),
			)

			// Warm up the model connection without blocking startup
			if gemini != nil {
				async.Dispatch(ctx, func(ctx context.Context) error {
					if _, err := client.Embed(ctx, "ping"); err != nil {
						return goerr.Wrap(err, "model service warm-up failed")
					}
					logging.Default().Info("Model service reachable")
					return nil
				})
			}

			var retentionWorker *worker.RetentionWorker
			if retention > 0 {
				retentionWorker = worker.NewRetentionWorker(chatlogRepo, retention, retentionInterval)
				if err := retentionWorker.Start(ctx); err != nil {
					return goerr.Wrap(err, "failed to start retention worker")
				}
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(uc),
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			// Start server in goroutine
			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr, "store", storeCfg.Backend())
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			// Wait for shutdown signal or server error
			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				if retentionWorker != nil {
					retentionWorker.Stop()
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
