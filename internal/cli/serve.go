package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"sociofi/internal/api"
	"sociofi/internal/auth"
	"sociofi/internal/backend"
	"sociofi/internal/dispatch"
	"sociofi/internal/redis"
	"sociofi/internal/retrieval"
	"sociofi/internal/service/ai"
	"sociofi/internal/session"
	"sociofi/internal/worker"
	"sociofi/internal/workspace"
)

const (
	shutdownTimeout  = 15 * time.Second
	janitorInterval  = 5 * time.Minute
	defaultChatBurst = 5
)

var chatPerMinute int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVar(&chatPerMinute, "chat-per-minute", 30, "per-session /api/chat requests per minute (0 disables the limit)")
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	cfg, logger := a.cfg, a.logger

	if cfg.BasicConfig.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	client := backend.New(cfg.BasicConfig.BackendEndpoint,
		time.Duration(cfg.BasicConfig.RequestTimeout)*time.Second,
		backend.WithLogger(logger))

	store, closeStore, err := newSessionStore(ctx, a)
	if err != nil {
		return err
	}
	defer closeStore()

	authSvc := auth.NewService(client, store, time.Duration(cfg.BasicConfig.SessionTTL)*time.Minute, logger)
	spaces := workspace.NewRegistry(client.ListUsers, time.Duration(cfg.BasicConfig.WorkspaceIdle)*time.Minute, logger)
	spaces.StartJanitor(ctx, janitorInterval)

	pool := worker.NewDispatcher(worker.Config{
		MinWorkers:  cfg.Worker.MinWorkers,
		MaxWorkers:  cfg.Worker.MaxWorkers,
		QueueSize:   cfg.Worker.QueueSize,
		IdleTimeout: time.Duration(cfg.Worker.IdleTimeout) * time.Second,
	}, logger)
	defer pool.Close()

	deps := api.Deps{
		Backend:    client,
		Auth:       authSvc,
		Workspaces: spaces,
		Dispatcher: dispatch.New(client, logger),
		Workers:    pool,
		Logger:     logger,
	}
	if chatPerMinute > 0 {
		deps.ChatRate = rate.Limit(float64(chatPerMinute) / 60)
		deps.ChatBurst = defaultChatBurst
	}
	wireAssistant(ctx, a, &deps)

	handler := api.NewHandler(deps)
	authSvc.OnSignOut(func(sess *session.Session) {
		spaces.Drop(sess.ID)
		handler.ForgetSession(sess.ID)
	})

	srv := &http.Server{
		Addr:              cfg.BasicConfig.ServerAddress,
		Handler:           api.NewRouter(handler, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening",
			zap.String("addr", srv.Addr),
			zap.String("backend", cfg.BasicConfig.BackendEndpoint))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newSessionStore(ctx context.Context, a *app) (session.Store, func(), error) {
	cipher, err := session.CipherFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("session cipher: %w", err)
	}
	switch strings.ToLower(a.cfg.BasicConfig.SessionStore) {
	case "redis":
		rdb, err := redis.NewRedisClient(ctx, a.cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("create redis client: %w", err)
		}
		a.logger.Info("session store ready", zap.String("store", "redis"))
		return session.NewRedisStore(rdb, cipher), func() { _ = rdb.Close() }, nil
	default:
		a.logger.Info("session store ready", zap.String("store", "memory"))
		return session.NewMemoryStore(cipher), func() {}, nil
	}
}

// wireAssistant enables grounded chat and document indexing when the
// providers are configured. Either half failing leaves the rest of the
// gateway running.
func wireAssistant(ctx context.Context, a *app, deps *api.Deps) {
	var retriever ai.Retriever
	emb, err := a.embedder(ctx)
	if err != nil {
		a.logger.Warn("embeddings disabled", zap.Error(err))
	} else {
		retriever = retrieval.NewRetriever(emb, a.docs, a.logger)
		deps.Embeddings = a.docs
		indexer, err := retrieval.NewIndexer(ctx, emb, a.docs, a.cfg.Embedding.ChunkSize, a.logger)
		if err != nil {
			a.logger.Warn("document indexing disabled", zap.Error(err))
		} else {
			deps.Indexer = indexer
		}
	}

	chatModel, err := ai.NewChatModel(ctx, a.cfg.Assistant, a.cfg.Providers)
	if err != nil {
		a.logger.Warn("assistant disabled", zap.Error(err))
		return
	}
	deps.Assistant = ai.NewAssistant(chatModel, retriever, a.logger)
	a.logger.Info("assistant ready",
		zap.String("provider", a.cfg.Assistant.Provider),
		zap.String("model", a.cfg.Assistant.Model),
		zap.Bool("grounded", retriever != nil))
}
