package eventlog_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-push-gateway/pkg/eventlog"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewWriter_RejectsRelativeRoot(t *testing.T) {
	_, err := eventlog.NewWriter("relative/path", newTestLogger())
	assert.Error(t, err)
}

func TestWriter_AppendsToUserTree(t *testing.T) {
	root := t.TempDir()
	w, err := eventlog.NewWriter(root, newTestLogger())
	require.NoError(t, err)

	at := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)
	w.Write(eventlog.Event{
		Kind:   eventlog.KindPush,
		User:   "alice",
		Domain: "example.org",
		Status: 200,
		Text:   "pn-type=message provider=apple",
		At:     at,
	})
	w.Write(eventlog.Event{
		Kind:   eventlog.KindPush,
		User:   "alice",
		Domain: "example.org",
		Status: 200,
		Text:   "pn-type=voip provider=apple",
		At:     at.Add(time.Minute),
	})

	path := filepath.Join(root, "users", "example.org", "alice", "push", "2026-08-29.log")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := string(data)
	assert.Contains(t, lines, "status=200 pn-type=message provider=apple")
	assert.Contains(t, lines, "status=200 pn-type=voip provider=apple")

	_, err = os.Stat(filepath.Join(root, "errors"))
	assert.True(t, os.IsNotExist(err), "success events must not reach the errors tree")
}

func TestWriter_ErrorStatusAlsoLandsInErrorsTree(t *testing.T) {
	root := t.TempDir()
	w, err := eventlog.NewWriter(root, newTestLogger())
	require.NoError(t, err)

	at := time.Date(2026, 8, 29, 11, 0, 0, 0, time.UTC)
	w.Write(eventlog.Event{
		Kind:   eventlog.KindPush,
		User:   "bob",
		Domain: "example.org",
		Status: 410,
		Text:   "subscription gone",
		At:     at,
	})

	userData, err := os.ReadFile(filepath.Join(root, "users", "example.org", "bob", "push", "2026-08-29.log"))
	require.NoError(t, err)
	assert.Contains(t, string(userData), "subscription gone")

	errData, err := os.ReadFile(filepath.Join(root, "errors", "push", "410", "2026-08-29.log"))
	require.NoError(t, err)
	assert.Contains(t, string(errData), "subscription gone")
}

func TestSplitAddress(t *testing.T) {
	cases := []struct {
		addr   string
		user   string
		domain string
	}{
		{"sip:alice@example.org", "alice", "example.org"},
		{"alice@example.org", "alice", "example.org"},
		{"sips:bob@other.net", "bob", "other.net"},
		{"not-an-address", "unknown", "unknown"},
		{"sip:@example.org", "unknown", "example.org"},
	}
	for _, tc := range cases {
		user, domain := eventlog.SplitAddress(tc.addr)
		assert.Equal(t, tc.user, user, tc.addr)
		assert.Equal(t, tc.domain, domain, tc.addr)
	}
}

func TestNewPushEvent(t *testing.T) {
	ev := eventlog.NewPushEvent("sip:carol@example.org", 200, "ok")
	assert.Equal(t, eventlog.KindPush, ev.Kind)
	assert.Equal(t, "carol", ev.User)
	assert.Equal(t, "example.org", ev.Domain)
	assert.Equal(t, 200, ev.Status)
}
