// Command server runs the AddWise Hub QR lifecycle API.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/addwise/addwise-hub/internal/config"
	"github.com/addwise/addwise-hub/internal/database"
	"github.com/addwise/addwise-hub/internal/handler"
	"github.com/addwise/addwise-hub/internal/logger"
	"github.com/addwise/addwise-hub/internal/metrics"
	"github.com/addwise/addwise-hub/internal/middleware"
	"github.com/addwise/addwise-hub/internal/queue"
	"github.com/addwise/addwise-hub/internal/repository"
	"github.com/addwise/addwise-hub/internal/router"
	"github.com/addwise/addwise-hub/internal/service"
)

type stores struct {
	users  service.UserStore
	codes  service.QRStore
	tokens service.TokenStore
	db     *sql.DB
}

func openStores(ctx context.Context, cfg config.Config, log *zap.Logger) (stores, error) {
	if cfg.Storage == "memory" {
		log.Warn("using in-memory storage; data is lost on restart")
		m := repository.NewMemoryStore()
		return stores{users: m.Users, codes: m.QRCodes, tokens: m.Tokens}, nil
	}
	db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return stores{}, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return stores{}, err
	}
	return stores{
		users:  repository.NewUserRepo(db),
		codes:  repository.NewQRCodeRepo(db),
		tokens: repository.NewTokenRepo(db),
		db:     db,
	}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal("open storage", zap.Error(err))
	}
	var pinger handler.Pinger
	if st.db != nil {
		defer st.db.Close()
		pinger = st.db
	}

	var events service.EventPublisher = queue.Nop{}
	if cfg.RabbitMQURL != "" {
		pub, err := queue.NewPublisher(cfg.RabbitMQURL)
		if err != nil {
			log.Warn("rabbitmq unavailable, events disabled", zap.Error(err))
		} else {
			defer pub.Close()
			events = pub
			go func() {
				if err := queue.StartAuditConsumer(ctx, cfg.RabbitMQURL, cfg.EventLogPath, log); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("audit consumer stopped", zap.Error(err))
				}
			}()
		}
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.Warn("redis unavailable, rate limiting and caching disabled")
	} else {
		defer rdb.Close()
	}

	users := service.NewUserService(st.users, st.tokens, cfg.BcryptCost, log)
	qr := service.NewQRService(st.codes, st.users, events, log, service.WithMaxIssue(cfg.MaxIssuePerUser))

	if cfg.SuperAdminEmail != "" {
		if _, err := users.EnsureSuperAdmin(ctx, cfg.SuperAdminName, cfg.SuperAdminEmail, cfg.SuperAdminPassword); err != nil {
			log.Fatal("bootstrap superadmin", zap.Error(err))
		}
	}

	cache := middleware.NewResponseCache(cfg.Cache, rdb, log)
	limit := middleware.NewTokenBucket(cfg.RateLimit, rdb, log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))
	e.Use(metrics.Middleware())

	router.RegisterRoutes(e, pinger)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, st.tokens, log), cfg.JWTSecret, limit)
	router.RegisterUsers(e, handler.NewUserHandler(users, cache, log, cfg.RequestTimeout), cfg.JWTSecret)
	router.RegisterQRCodes(e, handler.NewQRHandler(qr, cache, log, cfg.RequestTimeout), cfg.JWTSecret, cache, limit)

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("storage", cfg.Storage))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}
