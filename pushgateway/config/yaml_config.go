package config

import (
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	Role           string   `yaml:"role"`
}

type YamlRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

type YamlVapidConfig struct {
	Identifier      string `yaml:"identifier"`
	PublicKey       string `yaml:"public_key"`
	PrivateKey      string `yaml:"private_key"`
	SubscriberEmail string `yaml:"subscriber_email"`
}

type YamlPushConfig struct {
	MaxQueueSize                  uint            `yaml:"max_queue_size"`
	GenericTarget                 string          `yaml:"generic_target"`
	GenericMethod                 string          `yaml:"generic_method"`
	GenericProtocol               string          `yaml:"generic_protocol"`
	FallbackTarget                string          `yaml:"fallback_target"`
	AppleCertDir                  string          `yaml:"apple_cert_dir"`
	FirebaseAPIKeys               []string        `yaml:"firebase_projects_api_keys"`
	FirebaseServiceAccounts       []string        `yaml:"firebase_service_accounts"`
	FirebaseRefreshIntervalSecs   int             `yaml:"firebase_default_refresh_interval"`
	FirebaseTokenAnticipationSecs int             `yaml:"firebase_token_expiration_anticipation_time"`
	Vapid                         YamlVapidConfig `yaml:"vapid"`
	EventLogDir                   string          `yaml:"event_log_dir"`
	DedupTTLSecs                  int             `yaml:"dedup_ttl"`
}

type YamlConferenceConfig struct {
	Enabled       bool   `yaml:"enabled"`
	FactoryDomain string `yaml:"factory_domain"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	ProjectID              string               `yaml:"project_id"`
	ListenAddr             string               `yaml:"listen_addr"`
	TopicID                string               `yaml:"topic_id"`
	SubscriptionID         string               `yaml:"subscription_id"`
	SubscriptionDLQTopicID string               `yaml:"subscription_dlq_topic_id"`
	NumPipelineWorkers     int                  `yaml:"num_pipeline_workers"`
	CorsConfig             YamlCorsConfig       `yaml:"cors"`
	RedisConfig            YamlRedisConfig      `yaml:"redis"`
	PushConfig             YamlPushConfig       `yaml:"push"`
	ConferenceConfig       YamlConferenceConfig `yaml:"conference"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	cfg := &Config{
		ProjectID:      baseCfg.ProjectID,
		ListenAddr:     baseCfg.ListenAddr,
		TopicID:        baseCfg.TopicID,
		SubscriptionID: baseCfg.SubscriptionID,
		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
			Role:           middleware.CorsRole(baseCfg.CorsConfig.Role),
		},
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Enabled:  baseCfg.RedisConfig.Enabled,
		},
		Push: PushConfig{
			MaxQueueSize:                  baseCfg.PushConfig.MaxQueueSize,
			GenericTarget:                 baseCfg.PushConfig.GenericTarget,
			GenericMethod:                 baseCfg.PushConfig.GenericMethod,
			GenericProtocol:               baseCfg.PushConfig.GenericProtocol,
			FallbackTarget:                baseCfg.PushConfig.FallbackTarget,
			AppleCertDir:                  baseCfg.PushConfig.AppleCertDir,
			FirebaseAPIKeys:               baseCfg.PushConfig.FirebaseAPIKeys,
			FirebaseServiceAccounts:       baseCfg.PushConfig.FirebaseServiceAccounts,
			FirebaseRefreshIntervalSecs:   baseCfg.PushConfig.FirebaseRefreshIntervalSecs,
			FirebaseTokenAnticipationSecs: baseCfg.PushConfig.FirebaseTokenAnticipationSecs,
			Vapid: VapidConfig{
				Identifier:      baseCfg.PushConfig.Vapid.Identifier,
				PublicKey:       baseCfg.PushConfig.Vapid.PublicKey,
				PrivateKey:      baseCfg.PushConfig.Vapid.PrivateKey,
				SubscriberEmail: baseCfg.PushConfig.Vapid.SubscriberEmail,
			},
			EventLogDir:  baseCfg.PushConfig.EventLogDir,
			DedupTTLSecs: baseCfg.PushConfig.DedupTTLSecs,
		},
		Conference: ConferenceConfig{
			Enabled:       baseCfg.ConferenceConfig.Enabled,
			FactoryDomain: baseCfg.ConferenceConfig.FactoryDomain,
		},
		SubscriptionDLQTopicID: baseCfg.SubscriptionDLQTopicID,
		NumPipelineWorkers:     baseCfg.NumPipelineWorkers,
	}

	if cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("YAML config mapping complete",
		"project_id", cfg.ProjectID,
		"listen_addr", cfg.ListenAddr,
		"subscription_id", cfg.SubscriptionID,
	)

	return cfg, nil
}
