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
	"github.com/pandutama/tripbooking/internal/cache"
	"github.com/pandutama/tripbooking/internal/email"
	"github.com/pandutama/tripbooking/internal/kafka"
	"github.com/pandutama/tripbooking/internal/midtrans"
	"github.com/pandutama/tripbooking/internal/repository"
	"github.com/pandutama/tripbooking/internal/retry"
	"github.com/pandutama/tripbooking/internal/service/booking"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
	defer consumer.Close()

	emailSender := email.NewSender()

	go func() {
		if err := consumer.Consume(ctx, func(ctx context.Context, event kafka.PaymentEvent) error {
			return emailSender.Send(ctx, event)
		}); err != nil {
			log.Printf("consumer stopped: %v", err)
		}
	}()

	sweepTicker := time.NewTicker(time.Duration(cfg.Worker.ReconcileSweepMinutes) * time.Minute)
	defer sweepTicker.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sweepTicker.C:
			resolved, err := bookingService.ReconcileStalePending(ctx)
			if err != nil {
				log.Printf("reconcile sweep error: %v", err)
				continue
			}
			if resolved > 0 {
				log.Printf("reconciled %d stale bookings", resolved)
			}
		case s := <-sig:
			log.Printf("received signal %v, shutting down", s)
			return
		}
	}
}
