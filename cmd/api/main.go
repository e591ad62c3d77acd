package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gremio-backoffice/internal/clients"
	"gremio-backoffice/internal/config"
	"gremio-backoffice/internal/logger"
	"gremio-backoffice/internal/ports"
	"gremio-backoffice/internal/repository"
	"gremio-backoffice/internal/service"
	"gremio-backoffice/internal/transport/auth"
	"gremio-backoffice/internal/transport/rest"
	"gremio-backoffice/internal/transport/websocket"
	"gremio-backoffice/pkg/database/postgres"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// reportFiles is the storage behind generated reports.
type reportFiles interface {
	ports.FileStorage
	Cleanup(ctx context.Context, maxAge time.Duration) (int, error)
}

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	lg := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}).
		With(zap.String("env", cfg.Env))
	defer func() { _ = lg.Sync() }()
	zap.ReplaceGlobals(lg)
	if envErr != nil {
		lg.Info("no .env file found, using system env or defaults")
	}

	// top-level context which we can cancel on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db := mustInitPostgres(ctx, cfg.Postgres, lg)
	defer postgres.Close(db, lg)

	redisClient := mustInitRedis(cfg.Redis, lg)
	defer redisClient.Close()

	local, files := mustInitStorage(ctx, cfg, lg)

	wsHub := websocket.NewHub(lg.Named("ws"), cfg.Auth.AllowedOrigins...)
	go wsHub.Run(ctx)
	notifier := clients.NewReportNotifier(wsHub)

	store := repository.NewStore(db)

	creditSvc := service.NewCreditService(store, cfg.Billing.InstallmentConcept, lg.Named("credit"))
	cashSvc := service.NewCashService(store, cfg.Ledger, lg.Named("cash"))
	noveltySvc := service.NewNoveltyService(store, cfg.Billing.DefaultCutoffDay, lg.Named("novelty"))
	reportSvc := service.NewReportService(store, redisClient, files, notifier, cfg.Storage.ExportTTL, lg.Named("report"))

	jwtMiddleware := auth.JWTMiddleware([]byte(cfg.Auth.JWTSecret), lg.Named("auth"))

	handler := rest.NewHandler(rest.Services{
		Credit:    creditSvc,
		Cash:      cashSvc,
		Novelties: noveltySvc,
		Reports:   reportSvc,
	}, map[string]rest.HealthCheck{
		"postgres": db.PingContext,
		"redis":    redisClient.Ping,
	}, cfg.Auth.TenantHeader, lg)
	router := handler.InitRouter(jwtMiddleware)

	// public root router: /files stays public, /ws authenticates by token only,
	// everything else goes through the API router
	root := chi.NewRouter()

	if local != nil {
		root.Get(strings.TrimRight(local.PublicPrefix, "/")+"/{file}", serveFile(local))
	}

	root.With(jwtMiddleware).Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		userID, err := auth.GetUserID(r.Context())
		if err != nil {
			rest.ErrorUnauthorized(w, "Unauthorized")
			return
		}
		lg.Debug("ws connected", zap.Int64("user_id", userID))
		wsHub.HandleWebSocket(w, r, userID)
	})

	root.Mount("/", router)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      withCORS(root, cfg.Auth.TenantHeader),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		lg.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
			return
		}
		srvErr <- nil
	}()

	// report files outlive their Redis status by one TTL, then the cron job removes them
	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := scheduler.AddFunc(cfg.Storage.CleanupSpec, func() {
		removed, err := files.Cleanup(ctx, 2*cfg.Storage.ExportTTL)
		if err != nil {
			lg.Warn("storage cleanup failed", zap.Error(err))
			return
		}
		if removed > 0 {
			lg.Info("storage cleanup", zap.Int("removed", removed))
		}
	}); err != nil {
		lg.Fatal("invalid EXPORT_CLEANUP_CRON", zap.String("spec", cfg.Storage.CleanupSpec), zap.Error(err))
	}
	scheduler.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-srvErr:
		if err != nil {
			lg.Fatal("http server error", zap.Error(err))
		}
	case sig := <-stop:
		lg.Info("shutdown signal received", zap.String("signal", sig.String()))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			lg.Warn("http server shutdown", zap.Error(err))
		}

		<-scheduler.Stop().Done()
		// running reports still need the database, redis and the hub
		reportSvc.Wait()

		cancel()
		lg.Info("shutdown complete")
	}
}

func serveFile(storage *clients.LocalStorage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, original, err := storage.Open(chi.URLParam(r, "file"))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				rest.ErrorNotFound(w, "file not found")
				return
			}
			rest.ErrorInternal(w, "failed to access file")
			return
		}

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", original))
		http.ServeFile(w, r, path)
	}
}

func mustInitPostgres(ctx context.Context, cfg config.PostgresConfig, lg *zap.Logger) *sql.DB {
	db, err := postgres.NewPostgresConnection(ctx, postgres.ConnectionInfo{
		Host:         cfg.Host,
		Port:         cfg.Port,
		Username:     cfg.User,
		DBName:       cfg.DBName,
		SSLMode:      cfg.SSLMode,
		Password:     cfg.Password,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		lg.Fatal("postgres init error", zap.Error(err))
	}
	return db
}

func mustInitRedis(cfg config.RedisConfig, lg *zap.Logger) *clients.RedisClient {
	client, err := clients.NewRedisClient(clients.RedisConfig{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: time.Duration(cfg.DialTimeout) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		Prefix:      cfg.Prefix,
	})
	if err != nil {
		lg.Fatal("redis init error", zap.Error(err))
	}
	return client
}

// mustInitStorage returns the local storage too when it is the active driver, so /files can
// serve from it.
func mustInitStorage(ctx context.Context, cfg config.AppConfig, lg *zap.Logger) (*clients.LocalStorage, reportFiles) {
	if cfg.Storage.Driver == "s3" {
		s3, err := clients.NewS3Storage(ctx, clients.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Bucket:          cfg.S3.Bucket,
			UseSSL:          cfg.S3.UseSSL,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			URLTTL:          time.Duration(cfg.S3.URLTTLHours) * time.Hour,
		})
		if err != nil {
			lg.Fatal("s3 storage init error", zap.Error(err))
		}
		return nil, s3
	}

	local, err := clients.NewLocalStorage(cfg.Storage.ExportDir, cfg.Storage.PublicPrefix, cfg.Storage.ExternalURL)
	if err != nil {
		lg.Fatal("storage init error", zap.Error(err))
	}
	return local, local
}

func withCORS(next http.Handler, tenantHeader string) http.Handler {
	allowHeaders := "Content-Type, Authorization, X-Requested-With, " + tenantHeader
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")

			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
