package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/debemdeboas/the-pantry/internal/auth"
	"github.com/debemdeboas/the-pantry/internal/autosave"
	"github.com/debemdeboas/the-pantry/internal/backup"
	"github.com/debemdeboas/the-pantry/internal/cache"
	"github.com/debemdeboas/the-pantry/internal/config"
	"github.com/debemdeboas/the-pantry/internal/connectivity"
	"github.com/debemdeboas/the-pantry/internal/db"
	"github.com/debemdeboas/the-pantry/internal/editor"
	"github.com/debemdeboas/the-pantry/internal/logger"
	"github.com/debemdeboas/the-pantry/internal/model"
	"github.com/debemdeboas/the-pantry/internal/remote"
	"github.com/debemdeboas/the-pantry/internal/repository"
	"github.com/debemdeboas/the-pantry/internal/sse"
)

// shutdownTimeout bounds the final flush of open drafts and the server shutdown.
const shutdownTimeout = 30 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file loaded")
	}

	configPath := os.Getenv(config.EnvConfigPath)
	if configPath == "" {
		configPath = config.DefaultConfigPath
	}

	bootLogger := logger.New(os.Getenv(config.EnvLogLevel), "console")
	config.SetLogger(bootLogger)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		bootLogger.Fatal().Err(err).Str("path", configPath).Msg("Failed to load configuration")
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	config.SetLogger(log)
	db.SetLogger(log)
	repository.SetLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

type app struct {
	handler  http.Handler
	registry *autosave.Registry
	closers  []func() error
}

// newApp wires the draft store, the local backups and the editor sessions.
// Sessions live until ctx is done.
func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	store, closeStore, err := repository.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf(config.ErrOpenStorageFmt, err)
	}
	a := &app{closers: []func() error{closeStore}}

	local, err := backup.Open(cfg.Backup)
	if err != nil {
		a.close(log)
		return nil, fmt.Errorf(config.ErrOpenBackupFmt, err)
	}

	var (
		remoteFor autosave.RemoteFor
		monitor   connectivity.Monitor
	)
	if cfg.Remote.URL != "" {
		client := remote.NewClient(cfg.Remote.URL, "", cfg.Remote.Timeout.Std())
		prober := connectivity.NewProber(client.Ping, cfg.Remote.ProbeInterval.Std(), cfg.Remote.Timeout.Std(), log)
		go prober.Run(ctx)

		remoteFor = func(owner model.UserID) repository.DraftRepository { return client.ForOwner(owner) }
		monitor = prober
		log.Info().Str("url", cfg.Remote.URL).Msg("Editor sessions use the remote draft store")
	} else {
		remoteFor = func(model.UserID) repository.DraftRepository { return store }
		monitor = connectivity.NewStatic(true)
	}

	a.registry = autosave.NewRegistry(ctx, remoteFor, local, monitor, autosave.FromSettings(cfg.Autosave), log)

	mux := http.NewServeMux()
	repository.NewHandler(store).Register(mux)
	editor.NewHandler(a.registry, sse.NewSSEClients(), log).Register(mux)

	limiter := newWriteLimiter(cfg.RateLimit)
	a.handler = auth.WithUserHeader(limiter.middleware(secureHeaders(mux.ServeHTTP)))
	return a, nil
}

func (a *app) close(log zerolog.Logger) {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			log.Error().Err(err).Msg("Error releasing storage")
		}
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// Sessions outlive the signal so pending edits can still be flushed.
	sessionsCtx, stopSessions := context.WithCancel(context.Background())
	defer stopSessions()

	a, err := newApp(sessionsCtx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close(log)

	streamsCtx, stopStreams := context.WithCancel(context.Background())
	defer stopStreams()

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		// SSE streams end when the server shuts down.
		BaseContext: func(net.Listener) context.Context { return streamsCtx },
	}
	srv.RegisterOnShutdown(stopStreams)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.registry.FlushAll(shutdownCtx); err != nil {
		log.Error().Err(err).Msg(config.ErrFlushSessions)
	}
	err = srv.Shutdown(shutdownCtx)
	a.registry.Close()
	return err
}

func secureHeaders(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-XSS-Protection", "1; mode=block")

		h(w, r)
	}
}

// writeLimiter throttles write requests per owner, or per remote address for
// anonymous requests. Reads are never throttled.
type writeLimiter struct {
	limit    rate.Limit
	burst    int
	limiters *cache.Cache[string, *rate.Limiter]
}

func newWriteLimiter(cfg config.RateLimitConfig) *writeLimiter {
	return &writeLimiter{
		limit:    rate.Limit(cfg.RPS),
		burst:    cfg.Burst,
		limiters: cache.NewCache[string, *rate.Limiter](),
	}
}

func (l *writeLimiter) allow(key string) bool {
	limiter, ok := l.limiters.Get(key)
	if !ok {
		limiter, _ = l.limiters.GetOrSet(key, rate.NewLimiter(l.limit, l.burst))
	}
	return limiter.Allow()
}

func (l *writeLimiter) middleware(next http.HandlerFunc) http.HandlerFunc {
	if l.limit <= 0 {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next(w, r)
			return
		}

		key := "addr:" + remoteHost(r)
		if owner, ok := auth.UserIDFromContext(r.Context()); ok {
			key = "user:" + string(owner)
		}
		if !l.allow(key) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, config.HTTPErrTooManyRequests, http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
