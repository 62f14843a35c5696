// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/notemind/internal/ai"
	"github.com/starford/notemind/internal/api"
	"github.com/starford/notemind/internal/attachments"
	"github.com/starford/notemind/internal/changefeed"
	"github.com/starford/notemind/internal/export"
	"github.com/starford/notemind/internal/identity"
	"github.com/starford/notemind/internal/mcpserver"
	"github.com/starford/notemind/internal/models"
	"github.com/starford/notemind/internal/session"
	"github.com/starford/notemind/internal/storage"
	"github.com/starford/notemind/internal/store"
)

// runtime is everything one process shares: the owner, the store and its
// change feed, blob storage and the session on top of them.
type runtime struct {
	cfg    *Config
	log    *slog.Logger
	owner  string
	broker *changefeed.Broker
	store  *store.Store
	blobs  *storage.FS
	sess   *session.Session
	pub    *export.Publisher
}

func newRuntime(opts ...Option) (*runtime, error) {
	app := &application{logOut: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	owner, err := identity.LoadOrCreate(cfg.Identity.Path)
	if err != nil {
		return nil, fmt.Errorf("init identity: %w", err)
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("attachments_path", cfg.Attachments.Path),
		slog.String("owner", owner),
		slog.String("log_level", cfg.App.LogLevel.String()))

	rt := &runtime{cfg: cfg, log: logger, owner: owner}

	// Change feed shared by the store, the listener and SSE clients.
	rt.broker = changefeed.NewBroker(2 * time.Second)

	rt.store, err = store.Open(cfg.Store.DSN, rt.broker)
	if err != nil {
		rt.broker.Close()
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info("Store opened", slog.String("driver", rt.store.Driver()))

	rt.blobs, err = storage.NewFS(cfg.Attachments.Path)
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("init storage: %w", err)
	}

	assistant := app.assistant
	if assistant == nil {
		client, err := ai.New(cfg.AI.Client(), ai.WithLogger(logger))
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("init ai client: %w", err)
		}
		assistant = client
	}

	rt.sess = session.New(owner, rt.store, rt.broker, rt.blobs, assistant,
		session.WithQuietWindow(cfg.Autosave.QuietWindow),
		session.WithLogger(logger))
	rt.pub = export.NewPublisher(cfg.Publish.APIBase, cfg.Publish.Token, logger)
	return rt, nil
}

func (rt *runtime) close() {
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			rt.log.Error("store close error", slog.String("error", err.Error()))
		}
	}
	rt.broker.Close()
}

// Run starts the HTTP server with the given options and blocks until a
// shutdown signal or ctx cancellation.
func Run(ctx context.Context, opts ...Option) error {
	rt, err := newRuntime(opts...)
	if err != nil {
		return err
	}
	defer rt.close()

	cfg, logger := rt.cfg, rt.log

	if err := rt.sess.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	apiRouter := api.NewRouter(rt.sess, rt.pub, api.RouterConfig{
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		SSE:         rt.broker,
		RepoURL:     cfg.Publish.RepoURL,
		Branch:      cfg.Publish.Branch,
	})

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health endpoints (no auth).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if rt.sess.State().Version() == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"loading"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reconcile image rows with blobs on disk.
	reconciler := attachments.NewReconciler(rt.store, rt.blobs, cfg.Attachments.Grace, logger)
	g.Go(func() error {
		err := reconciler.Watch(gCtx, func(rep attachments.Report) {
			logger.Info("attachments reconciled",
				slog.Int("rows_removed", len(rep.RowsRemoved)),
				slog.Int("blobs_removed", len(rep.BlobsRemoved)))
		})
		if err != nil {
			logger.Error("attachments watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		// Pending edits are written before the store closes.
		if err := rt.sess.Close(shutdownCtx); err != nil {
			logger.Error("session close error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group's context so the watcher stops once the
// server has shut down.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	rt, err := newRuntime(append([]Option{WithLogOutput(os.Stderr)}, opts...)...)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.sess.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := rt.sess.Close(closeCtx); err != nil {
			rt.log.Error("session close error", slog.String("error", err.Error()))
		}
	}()

	srv := mcpserver.New(rt.sess, rt.pub, rt.cfg.Publish.RepoURL, rt.cfg.Publish.Branch)
	rt.log.Info("MCP server listening on stdio")
	return srv.ServeStdio()
}

// Publish writes every note of the installation owner to repoURL. Empty
// arguments fall back to the publish section of the config.
func Publish(ctx context.Context, repoURL, branch string, opts ...Option) (export.Report, error) {
	rt, err := newRuntime(append([]Option{WithLogOutput(os.Stderr)}, opts...)...)
	if err != nil {
		return export.Report{}, err
	}
	defer rt.close()

	if repoURL == "" {
		repoURL = rt.cfg.Publish.RepoURL
	}
	if branch == "" {
		branch = rt.cfg.Publish.Branch
	}

	notes, err := rt.sess.Notes().ListNotes(ctx, rt.owner)
	if err != nil {
		return export.Report{}, fmt.Errorf("list notes: %w", err)
	}
	return rt.pub.Publish(ctx, repoURL, branch, notes)
}

// Import creates a note for the installation owner from a Markdown document.
func Import(ctx context.Context, data []byte, opts ...Option) (*models.Note, error) {
	rt, err := newRuntime(append([]Option{WithLogOutput(os.Stderr)}, opts...)...)
	if err != nil {
		return nil, err
	}
	defer rt.close()

	return rt.sess.Notes().Import(ctx, rt.owner, data)
}
