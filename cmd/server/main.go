package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"library-api/internal/auth"
	"library-api/internal/config"
	"library-api/internal/domain"
	"library-api/internal/graph"
	apphttp "library-api/internal/http"
	"library-api/internal/pubsub"
	"library-api/internal/repository/sqlite"
	"library-api/internal/service"
)

func main() {
	configPath := pflag.String("config", "", "path to a config file")
	pflag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}
	configureLogger(logger, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	authorRepo := sqlite.NewAuthorRepository(db)
	bookRepo := sqlite.NewBookRepository(db)
	userRepo := sqlite.NewUserRepository(db)

	if err := authorRepo.Init(ctx); err != nil {
		logger.Fatalf("init author repository: %v", err)
	}
	if err := bookRepo.Init(ctx); err != nil {
		logger.Fatalf("init book repository: %v", err)
	}
	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}

	passwordHash, err := service.HashLoginPassword(cfg.Auth.LoginPassword, cfg.Auth.BcryptCost)
	if err != nil {
		logger.Fatalf("prepare login password: %v", err)
	}
	policy := service.LoginPolicyLiteral
	if cfg.Auth.StrictLogin {
		policy = service.LoginPolicyStrict
	}

	bookAdded := pubsub.NewBroker[domain.Book]("book_added", 0, logger)
	defer bookAdded.Close()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.TokenTTL())
	catalogService := service.NewCatalogService(authorRepo, bookRepo, bookAdded)
	userService := service.NewUserService(userRepo, tokens, passwordHash, policy)
	gate := auth.NewGate(tokens, userService)

	schema, err := graph.NewSchema(
		graph.NewResolver(catalogService, userService, bookAdded, logger),
		graph.Options{MaxDepth: cfg.GraphQL.MaxDepth, Logger: logger},
	)
	if err != nil {
		logger.Fatalf("parse graphql schema: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(schema, gate, logger)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s (login policy: %s)", cfg.Server.Addr, policyName(policy))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// subscriptions hold their connections open; end them before draining
	logger.Infof("ending %d bookAdded subscriptions", bookAdded.Subscribers())
	bookAdded.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

func configureLogger(logger *logrus.Logger, cfg config.Config) {
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

func policyName(policy service.LoginPolicy) string {
	if policy == service.LoginPolicyStrict {
		return "strict"
	}
	return "literal"
}
