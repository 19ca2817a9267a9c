// Package config defines the single, authoritative configuration of the
// push gateway: a YAML file mapped onto Config, then environment
// overrides and final validation.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type VapidConfig struct {
	Identifier      string
	PublicKey       string
	PrivateKey      string
	SubscriberEmail string
}

// PushConfig is the configuration surface of the backend registry.
type PushConfig struct {
	// MaxQueueSize is the shared outstanding-request bound handed to
	// every queue-backed backend.
	MaxQueueSize uint

	// GenericTarget, when set, installs the generic relay that fronts
	// all native backends.
	GenericTarget   string
	GenericMethod   string
	GenericProtocol string

	// FallbackTarget, when set, installs a generic HTTP client under the
	// fallback key.
	FallbackTarget string

	// AppleCertDir is scanned for *.pem credential files, one APNs
	// client per file.
	AppleCertDir string

	// FirebaseAPIKeys lists identifier:apiKey pairs (legacy API).
	FirebaseAPIKeys []string
	// FirebaseServiceAccounts lists identifier:filePath pairs (v1 API).
	FirebaseServiceAccounts []string
	// FirebaseRefreshIntervalSecs is the default access-token refresh
	// cadence of the v1 clients.
	FirebaseRefreshIntervalSecs int
	// FirebaseTokenAnticipationSecs is the safety margin before token
	// expiry by which a refresh must have happened.
	FirebaseTokenAnticipationSecs int

	// Vapid configures an optional web push backend.
	Vapid VapidConfig

	// EventLogDir is the root of the filesystem audit log; empty
	// disables audit logging.
	EventLogDir string

	// DedupTTLSecs suppresses duplicate wake-ups for the same call and
	// token within the window; zero disables the guard.
	DedupTTLSecs int
}

type ConferenceConfig struct {
	Enabled       bool
	FactoryDomain string
}

// Config is the validated runtime configuration.
type Config struct {
	ProjectID              string
	ListenAddr             string
	TopicID                string
	SubscriptionID         string
	SubscriptionDLQTopicID string
	NumPipelineWorkers     int

	CorsConfig middleware.CorsConfig
	Redis      RedisConfig
	Push       PushConfig
	Conference ConferenceConfig

	PubsubConsumerConfig *messagepipeline.GooglePubsubConsumerConfig
}

// UpdateConfigWithEnvOverrides applies environment variables and final
// validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	if val := os.Getenv("PROJECT_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "PROJECT_ID", "source", "env")
		cfg.ProjectID = val
	}
	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}
	if val := os.Getenv("SUBSCRIPTION_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_ID", "source", "env")
		cfg.SubscriptionID = val
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(val)
	}
	if val := os.Getenv("SUBSCRIPTION_DLQ_TOPIC_ID"); val != "" {
		cfg.SubscriptionDLQTopicID = val
	}
	if val := os.Getenv("NUM_PIPELINE_WORKERS"); val != "" {
		if workers, err := strconv.Atoi(val); err == nil && workers > 0 {
			cfg.NumPipelineWorkers = workers
		}
	}

	// Redis overrides
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
		cfg.Redis.Enabled = true
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = db
		}
	}
	if val := os.Getenv("REDIS_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Redis.Enabled = enabled
	}

	// Push backend overrides
	if val := os.Getenv("PUSH_GENERIC_TARGET"); val != "" {
		logger.Debug("Overriding config value", "key", "PUSH_GENERIC_TARGET", "source", "env")
		cfg.Push.GenericTarget = val
	}
	if val := os.Getenv("PUSH_APPLE_CERT_DIR"); val != "" {
		logger.Debug("Overriding config value", "key", "PUSH_APPLE_CERT_DIR", "source", "env")
		cfg.Push.AppleCertDir = val
	}
	if val := os.Getenv("PUSH_MAX_QUEUE_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			cfg.Push.MaxQueueSize = uint(size)
		}
	}
	if val := os.Getenv("VAPID_PUBLIC_KEY"); val != "" {
		cfg.Push.Vapid.PublicKey = val
	}
	if val := os.Getenv("VAPID_PRIVATE_KEY"); val != "" {
		cfg.Push.Vapid.PrivateKey = val
	}
	if val := os.Getenv("VAPID_SUB_EMAIL"); val != "" {
		cfg.Push.Vapid.SubscriberEmail = val
	}

	// CORS overrides
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		rawOrigins := strings.Split(corsOrigins, ",")
		var cleanOrigins []string
		for _, o := range rawOrigins {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cleanOrigins = append(cleanOrigins, trimmed)
			}
		}
		cfg.CorsConfig.AllowedOrigins = cleanOrigins
	}

	// Final validation
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required (set via YAML or PROJECT_ID env var)")
	}
	if cfg.SubscriptionID == "" {
		return nil, fmt.Errorf("subscription_id is required (set via YAML or SUBSCRIPTION_ID env var)")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.NumPipelineWorkers <= 0 {
		cfg.NumPipelineWorkers = 1
	}
	if cfg.Push.GenericMethod == "" {
		cfg.Push.GenericMethod = "POST"
	}
	if cfg.Push.GenericProtocol == "" {
		cfg.Push.GenericProtocol = "http2"
	}
	if cfg.Push.FirebaseRefreshIntervalSecs <= 0 {
		cfg.Push.FirebaseRefreshIntervalSecs = 3600
	}
	if cfg.Push.FirebaseTokenAnticipationSecs <= 0 {
		cfg.Push.FirebaseTokenAnticipationSecs = 300
	}

	if cfg.PubsubConsumerConfig == nil && cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}
