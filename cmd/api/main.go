package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-shop-backend/internal/cart"
	"github.com/ariefcatur/go-shop-backend/internal/catalog"
	"github.com/ariefcatur/go-shop-backend/internal/config"
	"github.com/ariefcatur/go-shop-backend/internal/httpx"
	kafkax "github.com/ariefcatur/go-shop-backend/internal/kafka"
	"github.com/ariefcatur/go-shop-backend/internal/orders"
	"github.com/ariefcatur/go-shop-backend/internal/postgres"
	"github.com/ariefcatur/go-shop-backend/internal/redisx"
	"github.com/ariefcatur/go-shop-backend/internal/users"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.ServiceName).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		logger.Fatal().Err(err).Msg("db migrate")
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	pPlaced := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, 1024, logger)
	pPlaced.Start(ctx)
	pCancelled := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCancelled, 1024, logger)
	pCancelled.Start(ctx)

	// Wiring
	coordinator := orders.NewCoordinator(orders.NewPGStore(db), logger)
	orderRepo := &orders.Repo{DB: db}
	cartRepo := &cart.Repo{DB: db}
	checkout := &cart.Service{
		Carts:  cartRepo,
		Orders: coordinator,
		Reader: orderRepo,
		Tokens: rdb,
		Log:    logger,
	}

	router := httpx.NewRouter(logger)
	oh := &httpx.OrdersHandler{
		Coordinator: coordinator,
		Repo:        orderRepo,
		Placed:      pPlaced,
		Cancelled:   pCancelled,
		Cache:       rdb,
		Service:     cfg.ServiceName,
		Log:         logger,
	}
	oh.Register(router)
	(&httpx.CartHandler{Repo: cartRepo, Checkout: checkout, Log: logger}).Register(router)
	(&httpx.CatalogHandler{Repo: &catalog.Repo{DB: db}}).Register(router)
	(&httpx.UsersHandler{Repo: &users.Repo{DB: db}}).Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("listen")
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	pPlaced.Close()
	pCancelled.Close()
	cancel()
	pPlaced.WaitClosed()
	pCancelled.WaitClosed()
}
