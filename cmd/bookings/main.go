package main

import (
	"context"

	"hallbook/internal/bookings/handler"
	"hallbook/internal/bookings/receipt"
	"hallbook/internal/bookings/repository"
	"hallbook/internal/bookings/service"
	"hallbook/internal/bookings/validator"
	"hallbook/internal/notifications"
	"hallbook/pkg/app"
	"hallbook/pkg/config"
	"hallbook/pkg/contracts"
	"hallbook/pkg/kafka"
	kafka_config "hallbook/pkg/kafka/config"
	kafka_middleware "hallbook/pkg/kafka/middleware"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()
	defer cfg.Client.GracefulShutdown(cfg.Log)

	cfg.Log.Info("Starting Bookings service")
	serverApp := app.NewApplication(cfg)

	publisher, producer := initPublisher(cfg)
	notifier := notifications.NewAsyncNotifier(publisher, cfg.NotifyTimeout, cfg.Log)
	serverApp.OnShutdown("notifier", notifier)
	if producer != nil {
		serverApp.OnShutdown("kafka-producer", producer)
	}
	bookingService, receiptService := initServices(cfg, notifier)

	serverApp.SetApp(
		handler.NewBookingHandler(bookingService, receiptService, cfg.ReceiptPublicAccess, cfg.Log),
		handler.NewHealthHandler(cfg.Client.Mongo, cachePinger(cfg), cfg.Log),
	)
	serverApp.Run()
}

func initServices(cfg *config.Config, notifier service.Notifier) (service.BookingService, service.ReceiptService) {
	bookingRepo := repository.NewMongoBookingRepository(cfg)
	hallRepo := repository.NewMongoHallRepository(cfg)
	userRepo := repository.NewMongoUserRepository(cfg)

	bookingValidator := validator.NewBookingValidator(cfg.Location, cfg.Log)
	bookingValidator.RejectPastDates(cfg.RejectPastDates)
	bookingService := service.NewBookingService(
		bookingRepo,
		hallRepo,
		userRepo,
		bookingValidator,
		notifier,
		cfg,
	)

	renderer := receipt.NewPDFRenderer(receipt.Options{LogoPath: cfg.ReceiptLogoPath, Compress: true}, cfg.Log)
	receiptService := service.NewReceiptService(bookingRepo, hallRepo, userRepo, renderer, cfg)

	cfg.Log.Info("Booking service initialized", "database", cfg.MongoDatabaseName, "timezone", cfg.BookingTimezone)
	return bookingService, receiptService
}

// initPublisher picks the delivery path for notifications. In kafka mode it
// also returns the producer's drainer, which must run after the notifier's.
func initPublisher(cfg *config.Config) (notifications.Publisher, contracts.Drainer) {
	templates := notifications.MustTemplates()

	switch cfg.NotifierMode {
	case config.NotifierModeKafka:
		kafkaCfg, err := kafka_config.Load()
		if err != nil {
			cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
		}
		kafkaCfg.LogConfiguration(cfg.Log)

		producer, err := kafka.NewProducer(kafkaCfg, cfg.NotificationTopic, cfg.NotificationDLQTopic, cfg.Log)
		if err != nil {
			cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
		}
		metrics := kafka_middleware.NewMetrics()
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		producer.Use(metrics.ProducerMiddleware())

		drain := contracts.DrainerFunc(func(context.Context) error {
			cfg.Log.Info("Kafka producer metrics", metrics.Snapshot().LogAttrs()...)
			return producer.Close()
		})
		cfg.Log.Info("Notifications published to Kafka", "topic", cfg.NotificationTopic)
		return notifications.NewKafkaPublisher(producer), drain

	case config.NotifierModeSMTP:
		publisher, err := notifications.NewMailPublisher(cfg, templates)
		if err != nil {
			cfg.Log.Fatal("Failed to create SMTP publisher", "error", err)
		}
		cfg.Log.Info("Notifications sent over SMTP", "host", cfg.SMTPHost, "port", cfg.SMTPPort)
		return publisher, nil

	default:
		cfg.Log.Info("Notifications written to the log")
		return notifications.NewLogPublisher(templates, cfg.Log), nil
	}
}

func cachePinger(cfg *config.Config) handler.CachePinger {
	if cfg.Client.Redis == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return cfg.Client.Redis.Ping(ctx).Err()
	}
}
