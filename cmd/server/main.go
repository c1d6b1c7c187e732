package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/memflow/lowcode-backend/internal/broker"
	"github.com/memflow/lowcode-backend/internal/config"
	"github.com/memflow/lowcode-backend/internal/database"
	"github.com/memflow/lowcode-backend/internal/gateway"
	"github.com/memflow/lowcode-backend/internal/handler"
	"github.com/memflow/lowcode-backend/internal/mail"
	"github.com/memflow/lowcode-backend/internal/oauth"
	"github.com/memflow/lowcode-backend/internal/queue"
	"github.com/memflow/lowcode-backend/internal/repository"
	"github.com/memflow/lowcode-backend/internal/router"
	"github.com/memflow/lowcode-backend/internal/service"
	"github.com/memflow/lowcode-backend/internal/token"
)

func main() {
	// .env is a developer convenience; in production the variables come from
	// the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	logger := newLogger(cfg.Env)
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("mysql: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(db, cfg.DBName, logger); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	// Redis is optional: without it the template cache is skipped, the
	// verification lock lives only as long as the error path allows, and the
	// broker falls back to single-instance fan-out.
	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable, degrading to local-only features")
	}

	var b broker.Broker
	if cfg.BrokerMode == "redis" && rdb != nil {
		b = broker.NewRedisBroker(rdb, logger)
		logger.Info("notification broker: redis")
	} else {
		b = broker.NewLocalBroker()
		logger.Info("notification broker: local")
	}
	defer b.Close()

	tokens := token.New(cfg.AccessSecret, cfg.RefreshSecret,
		time.Duration(cfg.AccessTTLMin)*time.Minute,
		time.Duration(cfg.RefreshTTLDays)*24*time.Hour)

	users := repository.NewUserRepo(db)
	templates := repository.NewTemplateRepo(db, rdb)
	notifications := repository.NewNotificationRepo(db)
	roles := repository.NewRoleRepo(db)

	approval := service.NewApprovalService(templates, notifications, users, b, logger)
	verify := service.NewVerificationService(rdb, mail.NewSender(cfg, logger), logger)
	github := oauth.NewGitHub(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubCallbackURL)

	registry := gateway.NewRegistry()
	gw := gateway.NewHandler(tokens, registry, logger)
	if err := gw.Bind(b); err != nil {
		log.Fatalf("gateway bind: %v", err)
	}
	defer gw.Unbind(b)

	// Audit trail consumer; reconnects on its own if the AMQP broker drops.
	go func() {
		if err := queue.StartTemplateStatusConsumer(); err != nil {
			logger.Warn("audit consumer stopped", zap.Error(err))
		}
	}()

	e := echo.New()
	e.HideBanner = true

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens, verify, github, logger))
	router.RegisterAPI(e, tokens,
		handler.NewLowcodeHandler(templates, approval),
		handler.NewUserHandler(users, notifications),
		handler.NewRoleHandler(roles))
	router.RegisterGateway(e, gw)

	addr := ":" + cfg.Port
	logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	// Drain on SIGINT/SIGTERM: stop accepting requests first, then let the
	// in-flight notification emissions finish before the process exits.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	approval.Wait()
}

// newLogger picks the zap preset by environment: structured JSON in prod,
// human-readable elsewhere.
func newLogger(env string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if env == "prod" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	return logger
}
