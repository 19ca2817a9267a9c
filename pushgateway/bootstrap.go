package pushgateway

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tinywideclouds/go-push-gateway/internal/client/apple"
	"github.com/tinywideclouds/go-push-gateway/internal/client/firebase"
	"github.com/tinywideclouds/go-push-gateway/internal/client/firebasev1"
	"github.com/tinywideclouds/go-push-gateway/internal/client/generic"
	"github.com/tinywideclouds/go-push-gateway/internal/client/web"
	"github.com/tinywideclouds/go-push-gateway/pkg/push"
	"github.com/tinywideclouds/go-push-gateway/pushgateway/config"
)

const certSuffix = ".pem"

// BuildPushService populates the backend registry from configuration.
// All installation happens here, before the service is exposed to
// callers; afterwards the registry is read-only. Configuration errors
// (bad relay method, duplicate identifiers) abort startup; a single bad
// certificate file only shrinks coverage.
func BuildPushService(cfg *config.Config, logger *slog.Logger) (*push.Service, error) {
	svc := push.NewService(cfg.Push.MaxQueueSize, logger)

	if cfg.Push.GenericTarget != "" {
		if err := setupGenericClient(svc, &cfg.Push, logger); err != nil {
			return nil, err
		}
	}

	setupAppleClients(svc, cfg.Push.AppleCertDir, logger)

	if err := setupFirebaseClients(svc, &cfg.Push, logger); err != nil {
		return nil, err
	}

	if err := setupWebClient(svc, &cfg.Push, logger); err != nil {
		return nil, err
	}

	if cfg.Push.FallbackTarget != "" {
		fallback, err := generic.NewClient(cfg.Push.FallbackTarget, http.MethodPost, generic.ProtocolHTTP,
			push.FallbackClientKey, svc.MaxQueueSize(), logger)
		if err != nil {
			return nil, fmt.Errorf("installing fallback client: %w", err)
		}
		svc.SetFallbackClient(fallback)
		logger.Info("Installed fallback push client", "target", cfg.Push.FallbackTarget)
	}

	return svc, nil
}

func setupGenericClient(svc *push.Service, cfg *config.PushConfig, logger *slog.Logger) error {
	client, err := generic.NewClient(cfg.GenericTarget, cfg.GenericMethod, generic.Protocol(cfg.GenericProtocol),
		push.GenericClientName, svc.MaxQueueSize(), logger)
	if err != nil {
		return fmt.Errorf("installing generic client: %w", err)
	}
	svc.SetGenericClient(client)
	logger.Info("Installed generic push client",
		"target", cfg.GenericTarget, "method", cfg.GenericMethod, "protocol", cfg.GenericProtocol)
	return nil
}

// setupAppleClients installs one APNs client per credential file. A file
// that fails to produce a client is skipped; an unreadable directory
// aborts this step only, so the other backends still install.
func setupAppleClients(svc *push.Service, certDir string, logger *slog.Logger) {
	if certDir == "" {
		return
	}
	entries, err := os.ReadDir(certDir)
	if err != nil {
		logger.Error("Could not open push notification certificates directory", "dir", certDir, "err", err)
		return
	}
	logger.Debug("Searching push notification clients", "dir", certDir)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, certSuffix) {
			continue
		}
		certName := strings.TrimSuffix(name, certSuffix)
		client, err := apple.NewClient(filepath.Join(certDir, name), certName, svc.MaxQueueSize(), logger)
		if err != nil {
			logger.Warn("Couldn't make APNs client, skipping certificate", "cert", certName, "err", err)
			continue
		}
		if err := svc.RegisterClient(certName, client); err != nil {
			client.Close()
			logger.Warn("Couldn't register APNs client", "cert", certName, "err", err)
			continue
		}
		logger.Info("Added APNs push client", "app_id", certName)
	}
}

// setupFirebaseClients installs the legacy api-key clients first, then
// the service-account clients. The two lists are mutually exclusive per
// identifier; a collision is fatal.
func setupFirebaseClients(svc *push.Service, cfg *config.PushConfig, logger *slog.Logger) error {
	for _, keyval := range cfg.FirebaseAPIKeys {
		appID, apiKey, ok := strings.Cut(keyval, ":")
		if !ok || appID == "" {
			return fmt.Errorf("malformed firebase api key entry %q, want identifier:apiKey", keyval)
		}
		if err := svc.RegisterClient(appID, firebase.NewClient(appID, apiKey, svc.MaxQueueSize(), logger)); err != nil {
			return fmt.Errorf("installing firebase client: %w", err)
		}
		logger.Info("Added firebase push client", "app_id", appID)
	}

	refreshInterval := time.Duration(cfg.FirebaseRefreshIntervalSecs) * time.Second
	anticipation := time.Duration(cfg.FirebaseTokenAnticipationSecs) * time.Second

	for _, keyval := range cfg.FirebaseServiceAccounts {
		appID, filePath, ok := strings.Cut(keyval, ":")
		if !ok || appID == "" {
			return fmt.Errorf("malformed firebase service account entry %q, want identifier:filePath", keyval)
		}
		// Checked before construction so a collision doesn't leak a
		// refresh goroutine.
		if _, exists := svc.Client(appID); exists {
			return fmt.Errorf("unable to add firebase v1 client: %w", &push.DuplicateIdentifierError{AppID: appID})
		}
		client, err := firebasev1.NewClient(appID, filePath, refreshInterval, anticipation, svc.MaxQueueSize(), logger)
		if err != nil {
			return fmt.Errorf("installing firebase v1 client %q: %w", appID, err)
		}
		if err := svc.RegisterClient(appID, client); err != nil {
			client.Close()
			return fmt.Errorf("installing firebase v1 client: %w", err)
		}
		logger.Info("Added firebase v1 push client", "app_id", appID)
	}
	return nil
}

func setupWebClient(svc *push.Service, cfg *config.PushConfig, logger *slog.Logger) error {
	if cfg.Vapid.PublicKey == "" && cfg.Vapid.PrivateKey == "" {
		return nil
	}
	identifier := cfg.Vapid.Identifier
	if identifier == "" {
		identifier = "web"
	}
	client, err := web.NewClient(web.Config{
		PublicKey:       cfg.Vapid.PublicKey,
		PrivateKey:      cfg.Vapid.PrivateKey,
		SubscriberEmail: cfg.Vapid.SubscriberEmail,
	}, identifier, svc.MaxQueueSize(), logger)
	if err != nil {
		return fmt.Errorf("installing web push client: %w", err)
	}
	if err := svc.RegisterClient(identifier, client); err != nil {
		client.Close()
		return fmt.Errorf("installing web push client: %w", err)
	}
	logger.Info("Added web push client", "app_id", identifier)
	return nil
}
