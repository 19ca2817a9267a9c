package firebasev1

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const messagingScope = "https://www.googleapis.com/auth/firebase.messaging"

// TokenFetcher obtains a fresh bearer credential. The production fetcher
// performs the service-account JWT exchange.
type TokenFetcher func(ctx context.Context) (*oauth2.Token, error)

// AuthManager owns the bearer credential of one FCM v1 client. A
// background loop refreshes it no later than anticipation ahead of
// expiry; senders read the current credential through a lock so a refresh
// never races an in-flight send. A failed refresh is retried at the
// default interval while concurrent sends keep using the still-valid
// token.
type AuthManager struct {
	fetch           TokenFetcher
	refreshInterval time.Duration
	anticipation    time.Duration
	logger          *slog.Logger

	mu    sync.RWMutex
	token *oauth2.Token

	stopOnce sync.Once
	done     chan struct{}
}

// NewAuthManager reads the service-account file and starts the refresh
// loop. It returns the project identifier declared by the file, which
// the client needs to address the v1 send endpoint.
func NewAuthManager(serviceAccountPath string, refreshInterval, anticipation time.Duration, logger *slog.Logger) (*AuthManager, string, error) {
	data, err := os.ReadFile(serviceAccountPath)
	if err != nil {
		return nil, "", fmt.Errorf("reading service account file: %w", err)
	}
	var account struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, "", fmt.Errorf("parsing service account file %s: %w", serviceAccountPath, err)
	}
	if account.ProjectID == "" {
		return nil, "", fmt.Errorf("service account file %s declares no project_id", serviceAccountPath)
	}

	conf, err := google.JWTConfigFromJSON(data, messagingScope)
	if err != nil {
		return nil, "", fmt.Errorf("parsing service account credentials: %w", err)
	}
	// A new TokenSource per call: the reuse wrapper would otherwise hand
	// back the cached token inside the anticipation window.
	fetch := func(ctx context.Context) (*oauth2.Token, error) {
		return conf.TokenSource(ctx).Token()
	}

	return NewAuthManagerWithFetcher(fetch, refreshInterval, anticipation, logger), account.ProjectID, nil
}

// NewAuthManagerWithFetcher starts a manager around an explicit fetcher.
func NewAuthManagerWithFetcher(fetch TokenFetcher, refreshInterval, anticipation time.Duration, logger *slog.Logger) *AuthManager {
	m := &AuthManager{
		fetch:           fetch,
		refreshInterval: refreshInterval,
		anticipation:    anticipation,
		logger:          logger.With("component", "FirebaseAuthManager"),
		done:            make(chan struct{}),
	}
	go m.loop()
	return m
}

// Token returns the current bearer credential. ok is false when no
// credential is held or the held one is past expiry; a stale credential
// is never presented.
func (m *AuthManager) Token() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == nil || m.token.AccessToken == "" {
		return "", false
	}
	if !m.token.Expiry.IsZero() && !time.Now().Before(m.token.Expiry) {
		return "", false
	}
	return m.token.AccessToken, true
}

// Stop terminates the refresh loop.
func (m *AuthManager) Stop() {
	m.stopOnce.Do(func() { close(m.done) })
}

func (m *AuthManager) loop() {
	timer := time.NewTimer(0) // refresh immediately on startup
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			timer.Reset(m.refreshOnce())
		case <-m.done:
			return
		}
	}
}

// refreshOnce fetches a new credential and returns the delay until the
// next attempt: the default interval, clamped so the next refresh lands
// at least the anticipation window before the new token expires.
func (m *AuthManager) refreshOnce() time.Duration {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	token, err := m.fetch(ctx)
	if err != nil {
		m.logger.Warn("access token refresh failed, will retry", "err", err)
		return m.refreshInterval
	}

	m.mu.Lock()
	m.token = token
	m.mu.Unlock()

	next := m.refreshInterval
	if !token.Expiry.IsZero() {
		if ahead := time.Until(token.Expiry) - m.anticipation; ahead < next {
			next = ahead
		}
	}
	if next < time.Second {
		next = time.Second
	}
	m.logger.Debug("access token refreshed", "expiry", token.Expiry, "next_refresh_in", next)
	return next
}
