package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatwave/internal/config"
	"github.com/chatwave/internal/handler"
	"github.com/chatwave/internal/logger"
	"github.com/chatwave/internal/middleware"
	"github.com/chatwave/internal/push"
	"github.com/chatwave/internal/repository"
	"github.com/chatwave/internal/scheduler"
	"github.com/chatwave/internal/startup"
	"github.com/chatwave/internal/storage"
	"github.com/chatwave/internal/storage/memory"
	"github.com/chatwave/internal/ws"
	"github.com/chatwave/migrations"
)

func main() {
	logger.SetPrefix("api")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL and in-memory store (no external services required)")
	flag.Parse()

	logger.Info("starting API service")
	cfg := config.Load()

	var embeddedDB *embeddedpostgres.EmbeddedPostgres
	if *dev {
		var err error
		embeddedDB, err = startEmbeddedPostgres(cfg)
		if err != nil {
			logger.Errorf("embedded postgres: %v", err)
			os.Exit(1)
		}
		defer func() {
			logger.Info("stopping embedded postgres...")
			if err := embeddedDB.Stop(); err != nil {
				logger.Errorf("embedded postgres stop: %v", err)
			}
		}()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		logger.Errorf("parse db config: %v", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConnections())
	poolCfg.MinConns = 4

	pool := startup.ConnectDBWithRetry(poolCfg, 60*time.Second, "")
	defer pool.Close()

	runMigrations(pool)
	if *migrate && !*dev {
		return
	}

	resetCtx, resetCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if _, err := pool.Exec(resetCtx, "UPDATE users SET is_online = false"); err != nil {
		logger.Errorf("reset online status: %v", err)
	}
	resetCancel()
	logger.Info("database connected, migrations applied")

	var store storage.Store
	if !*dev && cfg.Redis.URL != "" {
		store = startup.ConnectRedisWithRetry(cfg.Redis.URL, 60*time.Second, "")
		logger.Info("using redis store")
	} else {
		store = memory.New()
		logger.Info("using in-memory store (single instance only)")
	}
	defer store.Close()

	userRepo := repository.NewUserRepository(pool)
	chatRepo := repository.NewChatRepository(pool)
	msgRepo := repository.NewMessageRepository(pool)
	membershipRepo := repository.NewMembershipRepository(pool)
	reactRepo := repository.NewReactionRepository(pool)
	pinnedRepo := repository.NewPinnedRepository(pool)
	starredRepo := repository.NewStarredRepository(pool)
	pushClient := push.NewClient(cfg.PushServiceURL)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	hub := ws.NewHub(chatRepo, msgRepo, userRepo, reactRepo, cfg.MaxWSConnections, pushClient)

	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		hub.Run(hubCtx)
	}()

	schedCtx, schedCancel := context.WithCancel(context.Background())
	sched := scheduler.New(msgRepo, chatRepo, hub, store, cfg.SchedulerInterval)

	var schedWg sync.WaitGroup
	schedWg.Add(1)
	go func() {
		defer schedWg.Done()
		sched.Run(schedCtx)
	}()

	userH := handler.NewUserHandler(userRepo, store)
	chatH := handler.NewChatHandler(chatRepo, userRepo, msgRepo, membershipRepo, hub)
	msgH := handler.NewMessageHandler(msgRepo, chatRepo, membershipRepo, reactRepo, pinnedRepo, starredRepo, userRepo, hub)
	wsH := handler.NewWSHandler(hub, cfg.CORSAllowedOrigins)
	pushH := handler.NewPushHandler(pushClient, cfg.PushVAPIDPublicKey)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(middleware.RecoverJSON)
	// Never compress WebSocket responses: the wrapped ResponseWriter would not
	// implement http.Hijacker and the upgrade would fail with a 500.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			chimw.Compress(5)(next).ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(middleware.RateLimitAPI(store))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSAllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Session-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })
	r.Get("/api/config/push", pushH.GetConfig)
	r.Post("/api/auth/register", userH.Register)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionAuth(store))

		r.Get("/api/users/me", userH.GetProfile)
		r.Post("/api/auth/logout", userH.Logout)

		r.Get("/api/chats", chatH.GetUserChats)
		r.Post("/api/chats/personal", chatH.CreatePersonalChat)
		r.Post("/api/chats/group", chatH.CreateGroupChat)
		r.Get("/api/chats/{id}", chatH.GetChat)
		r.Put("/api/chats/{id}", chatH.UpdateChat)
		r.Delete("/api/chats/{id}", chatH.HideChat)
		r.Post("/api/chats/{id}/members", chatH.AddMembers)
		r.Delete("/api/chats/{id}/members/{memberId}", chatH.RemoveMember)
		r.Post("/api/chats/{id}/leave", chatH.LeaveChat)

		r.Get("/api/chats/{chatId}/messages", msgH.GetMessages)
		r.Post("/api/chats/{chatId}/messages", msgH.CreateMessage)
		r.Get("/api/chats/{chatId}/messages/scheduled", msgH.GetScheduled)
		r.Post("/api/chats/{chatId}/read", msgH.MarkAsRead)
		r.Get("/api/chats/{chatId}/pinned", msgH.GetPinnedMessages)
		r.Post("/api/chats/{chatId}/pinned/{messageId}", msgH.PinMessage)
		r.Delete("/api/chats/{chatId}/pinned/{messageId}", msgH.UnpinMessage)
		r.Get("/api/chats/{chatId}/starred", msgH.GetStarredMessages)

		r.Put("/api/messages/{messageId}/scheduled", msgH.UpdateScheduled)
		r.Delete("/api/messages/{messageId}/scheduled", msgH.CancelScheduled)
		r.Post("/api/messages/{messageId}/delivered", msgH.MarkDelivered)
		r.Put("/api/messages/{messageId}", msgH.EditMessage)
		r.Delete("/api/messages/{messageId}", msgH.DeleteMessage)
		r.Post("/api/messages/{messageId}/hide", msgH.HideMessage)
		r.Get("/api/messages/{messageId}/reactions", msgH.GetReactions)
		r.Post("/api/messages/{messageId}/reactions", msgH.SetReaction)
		r.Delete("/api/messages/{messageId}/reactions", msgH.RemoveReaction)
		r.Post("/api/messages/{messageId}/star", msgH.StarMessage)
		r.Delete("/api/messages/{messageId}/star", msgH.UnstarMessage)

		r.Post("/api/push/subscribe", pushH.Subscribe)
		r.Delete("/api/push/subscribe", pushH.Unsubscribe)

		r.Get("/ws", wsH.ServeWS)
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	schedCancel()
	schedWg.Wait()
	logger.Info("scheduler stopped")
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")
	srvWg.Wait()
	logger.Info("server goroutine exited")
}

func runMigrations(pool *pgxpool.Pool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entries, err := migrations.Files.ReadDir(".")
	if err != nil {
		logger.Errorf("read migrations: %v", err)
		os.Exit(1)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		data, err := migrations.Files.ReadFile(name)
		if err != nil {
			logger.Errorf("read migration %s: %v", name, err)
			os.Exit(1)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			logger.Errorf("run migration %s: %v", name, err)
			os.Exit(1)
		}
	}
	logger.Info("migrations applied")
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5432
		user     = "chatwave"
		password = "chatwave_secret"
		database = "chatwave"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
