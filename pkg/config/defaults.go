package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "hallbook"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultBookingTimezone = "Asia/Kolkata"
	DefaultPublicBaseURL   = "http://localhost:8080"
	DefaultFrontendURL     = "http://localhost:3000"

	DefaultNotifierMode         = NotifierModeLog
	DefaultNotificationTopic    = "hallbook.notifications"
	DefaultNotificationDLQTopic = "hallbook.notifications.dlq"
	DefaultNotificationGroupID  = "hallbook-notifier"
	DefaultNotifyTimeout        = 15 * time.Second

	DefaultSMTPPort = 587
)

const (
	NotifierModeKafka = "kafka"
	NotifierModeSMTP  = "smtp"
	NotifierModeLog   = "log"
)
