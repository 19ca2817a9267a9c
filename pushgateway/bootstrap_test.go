package pushgateway_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"io"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-push-gateway/pkg/push"
	"github.com/tinywideclouds/go-push-gateway/pushgateway"
	"github.com/tinywideclouds/go-push-gateway/pushgateway/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func baseConfig() *config.Config {
	return &config.Config{
		ProjectID:      "test-project",
		SubscriptionID: "test-sub",
		Push: config.PushConfig{
			MaxQueueSize:                  10,
			GenericMethod:                 "POST",
			GenericProtocol:               "http",
			FirebaseRefreshIntervalSecs:   3600,
			FirebaseTokenAnticipationSecs: 300,
		},
	}
}

// writePemCert writes a self-signed certificate + key usable as an APNs
// credential file.
func writePemCert(t *testing.T, path string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "Apple Push Services: com.example.test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, pem.Encode(f, &pem.Block{Type: "CERTIFICATE", Bytes: der}))
	require.NoError(t, pem.Encode(f, &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))
}

// writeServiceAccount writes a minimal service-account file the OAuth
// config parser accepts.
func writeServiceAccount(t *testing.T, dir, projectID string) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keyDer, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	keyPem := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDer})

	account := map[string]string{
		"type":         "service_account",
		"project_id":   projectID,
		"private_key":  string(keyPem),
		"client_email": "push@" + projectID + ".iam.gserviceaccount.com",
		"token_uri":    "https://oauth2.googleapis.com/token",
	}
	data, err := json.Marshal(account)
	require.NoError(t, err)

	path := filepath.Join(dir, projectID+".json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestBuildPushService_AppleCertificateScan(t *testing.T) {
	dir := t.TempDir()
	writePemCert(t, filepath.Join(dir, "a.pem"))
	writePemCert(t, filepath.Join(dir, "b.pem"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("not a cert"), 0o600))

	cfg := baseConfig()
	cfg.Push.AppleCertDir = dir

	svc, err := pushgateway.BuildPushService(cfg, newTestLogger())
	require.NoError(t, err)

	_, ok := svc.Client("a")
	assert.True(t, ok, "a.pem must yield client 'a'")
	_, ok = svc.Client("b")
	assert.True(t, ok, "b.pem must yield client 'b'")
	_, ok = svc.Client("readme")
	assert.False(t, ok)
	_, ok = svc.Client("readme.txt")
	assert.False(t, ok)
}

func TestBuildPushService_BadCertificateIsSkipped(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.pem"), []byte("garbage"), 0o600))
	writePemCert(t, filepath.Join(dir, "good.pem"))

	cfg := baseConfig()
	cfg.Push.AppleCertDir = dir

	svc, err := pushgateway.BuildPushService(cfg, newTestLogger())
	require.NoError(t, err, "one bad certificate must not abort bootstrap")

	_, ok := svc.Client("broken")
	assert.False(t, ok)
	_, ok = svc.Client("good")
	assert.True(t, ok)
}

func TestBuildPushService_MissingCertDirAbortsStepOnly(t *testing.T) {
	cfg := baseConfig()
	cfg.Push.AppleCertDir = filepath.Join(t.TempDir(), "does-not-exist")
	cfg.Push.FirebaseAPIKeys = []string{"app-a:key-a"}

	svc, err := pushgateway.BuildPushService(cfg, newTestLogger())
	require.NoError(t, err)

	_, ok := svc.Client("app-a")
	assert.True(t, ok, "other backends must still install")
}

func TestBuildPushService_FirebaseMutualExclusion(t *testing.T) {
	t.Run("legacy then service account", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Push.FirebaseAPIKeys = []string{"app-x:key-x"}
		cfg.Push.FirebaseServiceAccounts = []string{"app-x:" + writeServiceAccount(t, t.TempDir(), "app-x")}

		_, err := pushgateway.BuildPushService(cfg, newTestLogger())
		var dup *push.DuplicateIdentifierError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "app-x", dup.AppID)
	})

	t.Run("distinct identifiers coexist", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Push.FirebaseAPIKeys = []string{"app-a:key-a"}
		cfg.Push.FirebaseServiceAccounts = []string{"app-b:" + writeServiceAccount(t, t.TempDir(), "app-b")}

		svc, err := pushgateway.BuildPushService(cfg, newTestLogger())
		require.NoError(t, err)
		_, ok := svc.Client("app-a")
		assert.True(t, ok)
		_, ok = svc.Client("app-b")
		assert.True(t, ok)
	})
}

func TestBuildPushService_RelayMethodValidation(t *testing.T) {
	cfg := baseConfig()
	cfg.Push.GenericTarget = "https://relay.example.org/push"
	cfg.Push.GenericMethod = "PUT"

	_, err := pushgateway.BuildPushService(cfg, newTestLogger())
	require.ErrorIs(t, err, push.ErrInvalidMethod)
}

func TestBuildPushService_FallbackInstalledOnlyWhenConfigured(t *testing.T) {
	cfg := baseConfig()
	svc, err := pushgateway.BuildPushService(cfg, newTestLogger())
	require.NoError(t, err)
	_, ok := svc.Client(push.FallbackClientKey)
	assert.False(t, ok)

	cfg = baseConfig()
	cfg.Push.FallbackTarget = "https://fallback.example.org/push"
	svc, err = pushgateway.BuildPushService(cfg, newTestLogger())
	require.NoError(t, err)
	_, ok = svc.Client(push.FallbackClientKey)
	assert.True(t, ok)
}
