package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pandutama/tripbooking/config"
	"github.com/pandutama/tripbooking/internal/auth"
	"github.com/pandutama/tripbooking/internal/bootstrap"
	"github.com/pandutama/tripbooking/internal/cache"
	"github.com/pandutama/tripbooking/internal/kafka"
	"github.com/pandutama/tripbooking/internal/midtrans"
	"github.com/pandutama/tripbooking/internal/repository"
	"github.com/pandutama/tripbooking/internal/retry"
	"github.com/pandutama/tripbooking/internal/service/booking"
	"github.com/pandutama/tripbooking/internal/service/packages"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis,
		time.Duration(cfg.Booking.CatalogTTLSeconds)*time.Second,
		time.Duration(cfg.Booking.SnapshotTTLSeconds)*time.Second)
	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()
	gateway := midtrans.NewClient(cfg.Midtrans)

	packageRepo := repository.NewPackageRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	packageService := packages.NewPackageService(packageRepo, redisCache)
	bookingService := booking.NewBookingService(
		bookingRepo,
		packageRepo,
		redisCache,
		gateway,
		producer,
		cfg.Kafka.PaymentTopic,
		retry.DefaultPolicy,
		time.Duration(cfg.Booking.StalePendingAfterMin)*time.Minute,
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
	)
	authService := auth.NewService(cfg.Auth)

	if err := bootstrap.Run(ctx, cfg, packageService, bookingService, authService); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
