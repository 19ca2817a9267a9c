package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-push-gateway/pushgateway/config"
)

func TestNewConfigFromYaml(t *testing.T) {
	logger := newTestLogger()

	t.Run("Success - maps all fields correctly", func(t *testing.T) {
		yamlCfg := &config.YamlConfig{
			ProjectID:              "yaml-project",
			ListenAddr:             ":9000",
			TopicID:                "yaml-topic",
			SubscriptionID:         "yaml-subscription",
			SubscriptionDLQTopicID: "yaml-dlq",
			NumPipelineWorkers:     5,
			CorsConfig: config.YamlCorsConfig{
				AllowedOrigins: []string{"http://yaml.com"},
				Role:           "editor",
			},
			PushConfig: config.YamlPushConfig{
				MaxQueueSize:                  75,
				GenericTarget:                 "https://relay.example.org/push",
				GenericMethod:                 "GET",
				GenericProtocol:               "http",
				FallbackTarget:                "https://fallback.example.org/push",
				AppleCertDir:                  "/etc/push/apple",
				FirebaseAPIKeys:               []string{"app-a:key-a"},
				FirebaseServiceAccounts:       []string{"app-b:/etc/push/app-b.json"},
				FirebaseRefreshIntervalSecs:   1800,
				FirebaseTokenAnticipationSecs: 120,
				EventLogDir:                   "/var/log/push-events",
			},
			ConferenceConfig: config.YamlConferenceConfig{
				Enabled:       true,
				FactoryDomain: "conference.example.org",
			},
		}

		cfg, err := config.NewConfigFromYaml(yamlCfg, logger)

		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "yaml-project", cfg.ProjectID)
		assert.Equal(t, ":9000", cfg.ListenAddr)
		assert.Equal(t, "yaml-topic", cfg.TopicID)
		assert.Equal(t, "yaml-subscription", cfg.SubscriptionID)
		assert.Equal(t, "yaml-dlq", cfg.SubscriptionDLQTopicID)
		assert.Equal(t, 5, cfg.NumPipelineWorkers)

		assert.Equal(t, []string{"http://yaml.com"}, cfg.CorsConfig.AllowedOrigins)
		assert.Equal(t, middleware.CorsRoleEditor, cfg.CorsConfig.Role)

		assert.Equal(t, uint(75), cfg.Push.MaxQueueSize)
		assert.Equal(t, "https://relay.example.org/push", cfg.Push.GenericTarget)
		assert.Equal(t, "GET", cfg.Push.GenericMethod)
		assert.Equal(t, "http", cfg.Push.GenericProtocol)
		assert.Equal(t, "https://fallback.example.org/push", cfg.Push.FallbackTarget)
		assert.Equal(t, "/etc/push/apple", cfg.Push.AppleCertDir)
		assert.Equal(t, []string{"app-a:key-a"}, cfg.Push.FirebaseAPIKeys)
		assert.Equal(t, []string{"app-b:/etc/push/app-b.json"}, cfg.Push.FirebaseServiceAccounts)
		assert.Equal(t, 1800, cfg.Push.FirebaseRefreshIntervalSecs)
		assert.Equal(t, 120, cfg.Push.FirebaseTokenAnticipationSecs)
		assert.Equal(t, "/var/log/push-events", cfg.Push.EventLogDir)

		assert.True(t, cfg.Conference.Enabled)
		assert.Equal(t, "conference.example.org", cfg.Conference.FactoryDomain)

		assert.NotNil(t, cfg.PubsubConsumerConfig)
	})

	t.Run("Success - Handles missing optional fields gracefully", func(t *testing.T) {
		yamlCfg := &config.YamlConfig{
			ProjectID:      "minimal-project",
			SubscriptionID: "minimal-sub",
		}

		cfg, err := config.NewConfigFromYaml(yamlCfg, logger)

		require.NoError(t, err)
		assert.Equal(t, "minimal-project", cfg.ProjectID)
		assert.Equal(t, 0, cfg.NumPipelineWorkers)
		assert.Empty(t, cfg.ListenAddr)
		assert.Empty(t, cfg.Push.GenericTarget)
		assert.False(t, cfg.Conference.Enabled)
	})
}
