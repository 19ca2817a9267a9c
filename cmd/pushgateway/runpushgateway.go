package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-push-gateway/internal/api"
	"github.com/tinywideclouds/go-push-gateway/internal/pipeline"
	"github.com/tinywideclouds/go-push-gateway/internal/storage/cache"
	fsStore "github.com/tinywideclouds/go-push-gateway/internal/storage/firestore"
	"github.com/tinywideclouds/go-push-gateway/pkg/conference"
	"github.com/tinywideclouds/go-push-gateway/pkg/eventlog"

	"github.com/tinywideclouds/go-push-gateway/pushgateway"
	"github.com/tinywideclouds/go-push-gateway/pushgateway/config"

	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gopkg.in/yaml.v3"
)

//go:embed local.yaml
var configFile []byte

func main() {
	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "info", "INFO":
		logLevel = slog.LevelInfo
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "go-push-gateway")
	slog.SetDefault(logger)

	ctx := context.Background()

	// --- Config Loading ---
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		logger.Error("Failed to unmarshal embedded yaml config", "err", err)
		os.Exit(1)
	}
	baseCfg, _ := config.NewConfigFromYaml(&yamlCfg, logger)
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}

	// --- Infrastructure Clients ---
	var clientOpts []option.ClientOption
	if credsFile := os.Getenv("GOOGLE_CREDENTIALS_FILE"); credsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(credsFile))
	}

	psClient, err := pubsub.NewClient(ctx, cfg.ProjectID, clientOpts...)
	if err != nil {
		logger.Error("PubSub client failed", "err", err)
		os.Exit(1)
	}
	defer psClient.Close()

	// --- Push Backends ---
	pushService, err := pushgateway.BuildPushService(cfg, logger)
	if err != nil {
		logger.Error("Push backend bootstrap failed", "err", err)
		os.Exit(1)
	}
	logger.Info("Push backends initialized")

	// --- Duplicate Suppression ---
	var dedup pipeline.DedupGuard
	if cfg.Redis.Enabled {
		logger.Info("Initializing Redis dedup layer...", "addr", cfg.Redis.Addr)
		redisClient, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Error("Failed to connect to Redis", "err", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		ttl := time.Duration(cfg.Push.DedupTTLSecs) * time.Second
		if ttl <= 0 {
			ttl = time.Minute
		}
		dedup = cache.NewDedupStore(redisClient, ttl, logger)
	}

	// --- Audit Trail ---
	var audit pipeline.AuditWriter
	if cfg.Push.EventLogDir != "" {
		writer, err := eventlog.NewWriter(cfg.Push.EventLogDir, logger)
		if err != nil {
			logger.Error("Event log setup failed", "err", err)
			os.Exit(1)
		}
		audit = writer
		logger.Info("Audit trail enabled", "dir", cfg.Push.EventLogDir)
	}

	// --- Conference Factory ---
	var allocator api.AddressAllocator
	if cfg.Conference.Enabled {
		fsClient, err := firestore.NewClient(ctx, cfg.ProjectID, clientOpts...)
		if err != nil {
			logger.Error("Firestore client failed", "err", err)
			os.Exit(1)
		}
		defer fsClient.Close()
		registrar := fsStore.NewRegistrarStore(fsClient)
		allocator, err = conference.NewAllocator(cfg.Conference.FactoryDomain, registrar, logger)
		if err != nil {
			logger.Error("Conference allocator setup failed", "err", err)
			os.Exit(1)
		}
		logger.Info("Conference factory enabled", "domain", cfg.Conference.FactoryDomain)
	}

	// --- Auth ---
	identityURL := os.Getenv("IDENTITY_SERVICE_URL")
	if identityURL == "" {
		identityURL = "http://localhost:3000"
	}
	jwksURL, _ := middleware.DiscoverAndValidateJWTConfig(identityURL, middleware.RSA256, logger)
	authMiddleware, _ := middleware.NewJWKSAuthMiddleware(jwksURL, logger)

	// --- Consumer & Service ---
	consumer, err := newIngestionConsumer(ctx, cfg, psClient, logger)
	if err != nil {
		logger.Error("Consumer setup failed", "err", err)
		os.Exit(1)
	}

	service, err := pushgateway.New(
		cfg,
		consumer,
		pushService,
		dedup,
		audit,
		allocator,
		authMiddleware,
		logger,
	)
	if err != nil {
		logger.Error("Service creation failed", "err", err)
		os.Exit(1)
	}

	logger.Info("Starting service...")
	if err := service.Start(ctx); err != nil {
		logger.Error("Service shutdown with error", "err", err)
		os.Exit(1)
	}
}

func newIngestionConsumer(ctx context.Context, cfg *config.Config, psClient *pubsub.Client, logger *slog.Logger) (messagepipeline.MessageConsumer, error) {
	sub := convertPubsub(cfg.ProjectID, cfg.PubsubConsumerConfig.SubscriptionID, "subscriptions")
	topicID := convertPubsub(cfg.ProjectID, cfg.TopicID, "topics")
	dlt := convertPubsub(cfg.ProjectID, cfg.SubscriptionDLQTopicID, "topics")

	subConfig := &pubsubpb.Subscription{
		Name:               sub,
		Topic:              topicID,
		AckDeadlineSeconds: 10,
		DeadLetterPolicy: &pubsubpb.DeadLetterPolicy{
			DeadLetterTopic:     dlt,
			MaxDeliveryAttempts: 5,
		},
		EnableMessageOrdering: false,
	}
	logger.Debug("Ensuring subscription exists", "sub", subConfig.Name, "topic", subConfig.Topic)
	_, err := psClient.SubscriptionAdminClient.CreateSubscription(ctx, subConfig)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			logger.Debug("Subscription already exists, skipping creation", "sub", subConfig.Name)
		} else {
			logger.Error("Failed to create subscription", "sub", subConfig.Name, "err", err)
			return nil, fmt.Errorf("could not create sub: %s", sub)
		}
	}

	return messagepipeline.NewGooglePubsubConsumer(
		messagepipeline.NewGooglePubsubConsumerDefaults(subConfig.Name), psClient, logger,
	)
}

type PS string

func convertPubsub(project, id string, ps PS) string {
	return fmt.Sprintf("projects/%s/%s/%s", project, ps, id)
}
