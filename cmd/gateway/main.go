package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/mind-engage/mindengage-assess/internal/api/http"
	auth "github.com/mind-engage/mindengage-assess/internal/auth/middleware"
	"github.com/mind-engage/mindengage-assess/internal/catalog"
	"github.com/mind-engage/mindengage-assess/internal/config"
	"github.com/mind-engage/mindengage-assess/internal/db"
	"github.com/mind-engage/mindengage-assess/internal/session"
	syncx "github.com/mind-engage/mindengage-assess/internal/sync"
	"github.com/mind-engage/mindengage-assess/internal/testdef"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer dbh.Close()

	// --- Core services ---
	resolver := testdef.NewResolver(catalog.NewSQLCatalog(dbh))
	sessions := session.NewSQLStore(dbh)
	tests := testdef.NewService(testdef.NewSQLStore(dbh), resolver, sessions)
	mgr := session.NewManager(sessions, tests, resolver,
		session.WithEvents(syncx.NewEventRepo(dbh), func(err error) { log.Printf("event log: %v", err) }),
	)
	authSvc := auth.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Local login (enabled in offline mode by default; can be enabled online via env)
	if cfg.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(authSvc, auth.StaticAccounts{
			AdminUser:     cfg.AdminUser,
			AdminPassHash: cfg.AdminPassHash,
			DevLogin:      cfg.Mode == config.ModeOffline,
		}))
	}
	api.Mount(r, api.Deps{Auth: authSvc, Tests: tests, Sessions: mgr, IdleSession: cfg.IdleSession})

	if cfg.SweepInterval > 0 {
		go sweepLoop(ctx, mgr, cfg.SweepInterval, cfg.IdleSession)
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

// sweepLoop expires overdue sessions and abandons idle ones until ctx ends.
func sweepLoop(ctx context.Context, mgr *session.Manager, every, idle time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			res, err := mgr.SweepIdle(ctx, session.IdleCutoff(now, idle))
			if err != nil {
				log.Printf("sweep: %v", err)
				continue
			}
			if n := len(res.Expired) + len(res.Abandoned); n > 0 {
				log.Printf("sweep: expired=%d abandoned=%d", len(res.Expired), len(res.Abandoned))
			}
		}
	}
}
