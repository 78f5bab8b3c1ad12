package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/iliyamo/storefront-identity/internal/config"
	"github.com/iliyamo/storefront-identity/internal/database"
	"github.com/iliyamo/storefront-identity/internal/handler"
	"github.com/iliyamo/storefront-identity/internal/queue"
	"github.com/iliyamo/storefront-identity/internal/ratelimit"
	"github.com/iliyamo/storefront-identity/internal/repository"
	"github.com/iliyamo/storefront-identity/internal/router"
	"github.com/iliyamo/storefront-identity/internal/service"
	"github.com/iliyamo/storefront-identity/internal/utils"
	customValidator "github.com/iliyamo/storefront-identity/internal/validator"
)

const (
	tokenPurgeInterval = time.Hour
	tokenRetention     = 7 * 24 * time.Hour
	eventBuffer        = 256
)

func main() {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("load config")
	}
	log := newLogger(cfg)
	zlog.Logger = log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("migrate database")
		}
	}

	// Redis only backs the shared rate limiter; without it each instance
	// keeps its own windows.
	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter()
	if cfg.RateLimit.Backend == "redis" {
		rdb := config.NewRedisClient(cfg.Redis)
		if rdb != nil {
			defer rdb.Close()
		}
		limiter = ratelimit.New(cfg.RateLimit.Backend, cfg.RateLimit.Prefix, rdb, log)
	}
	if mem, ok := limiter.(*ratelimit.MemoryLimiter); ok {
		mem.StartSweeper(ctx, cfg.RateLimit.SweepInterval)
	}

	var events queue.Sink = queue.Nop{}
	var async *queue.Async
	if cfg.Events.Enabled {
		async = queue.NewAsync(queue.NewPublisher(cfg.Events.URL, cfg.Events.Queue, log), eventBuffer, log)
		async.Start(ctx)
		events = async
		if cfg.Events.ConsumerEnabled {
			consumer := &queue.Consumer{URL: cfg.Events.URL, Queue: cfg.Events.Queue, LogDir: cfg.Events.LogDir, Log: log}
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error().Err(err).Msg("security consumer stopped")
				}
			}()
		}
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db, utils.NewTokenHasher(cfg.RefreshPepper))
	carts := repository.NewCartRepo(db)
	wishlists := repository.NewWishlistRepo(db)
	products := repository.NewProductRepo(db)
	orders := repository.NewOrderRepo(db)

	issuer := utils.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL())
	reconciler := service.NewReconciler(carts, wishlists, orders, products, events)
	authSvc := service.NewAuthService(users, tokens, issuer, reconciler, limiter, events, service.AuthOptions{
		BcryptCost:       cfg.BcryptCost,
		EmailCheckLimit:  cfg.RateLimit.EmailCheckLimit,
		EmailCheckWindow: cfg.RateLimit.EmailCheckWindow,
	})
	cartSvc := service.NewCartService(carts, wishlists, products)

	service.StartTokenJanitor(ctx, tokens, tokenPurgeInterval, tokenRetention, log)

	e := echo.New()
	e.HideBanner = true
	e.Validator = customValidator.New()

	router.UseGatekeeper(e, log, cfg.Cookies)
	router.RegisterRoutes(e, db)
	authHandler := handler.NewAuthHandler(authSvc, cfg.Cookies)
	throttle := router.Throttle{}
	if cfg.RateLimit.Enabled {
		throttle = router.Throttle{Limiter: limiter, Limit: cfg.RateLimit.LoginLimit, Window: cfg.RateLimit.LoginWindow}
	}
	router.RegisterAuth(e, authHandler, issuer, cfg.LoginPath, throttle)
	router.RegisterShopper(e, handler.NewCartHandler(cartSvc), issuer)
	router.RegisterAdmin(e, authHandler, issuer, cfg.LoginPath)

	go func() {
		addr := ":" + cfg.Port
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting HTTP server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if async != nil {
		async.Wait()
	}
	log.Info().Msg("server exited")
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogJSON {
		zerolog.TimeFieldFormat = time.RFC3339
		return zerolog.New(os.Stdout).With().Timestamp().Str("service", "storefront-identity").Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}
