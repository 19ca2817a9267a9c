// Package eventlog appends signaling events to a filesystem audit tree.
//
// Events land under <root>/users/<domain>/<user>/<kind>/YYYY-MM-DD.log.
// Events carrying a status of 300 or above are additionally written to
// <root>/errors/<kind>/<status>/YYYY-MM-DD.log so operators can scan
// failures without walking the per-user tree.
package eventlog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Kind partitions the audit tree by event family.
type Kind string

const (
	KindPush         Kind = "push"
	KindMessage      Kind = "message"
	KindRegistration Kind = "registration"
	KindAuth         Kind = "auth"
)

const (
	usersDir   = "users"
	errorsDir  = "errors"
	dateLayout = "2006-01-02"
)

// Event is a single audit line. At defaults to the write time when zero.
type Event struct {
	Kind   Kind
	User   string
	Domain string
	Status int
	Text   string
	At     time.Time
}

// NewPushEvent builds a push audit event for a recipient address.
// The address may carry a scheme prefix ("sip:alice@example.org").
func NewPushEvent(to string, status int, text string) Event {
	user, domain := SplitAddress(to)
	return Event{
		Kind:   KindPush,
		User:   user,
		Domain: domain,
		Status: status,
		Text:   text,
	}
}

// SplitAddress splits an address of the form [scheme:]user@domain.
// A missing user or domain comes back as "unknown" so the event still
// has a home in the tree.
func SplitAddress(addr string) (user, domain string) {
	if _, rest, ok := strings.Cut(addr, ":"); ok {
		addr = rest
	}
	user, domain, ok := strings.Cut(addr, "@")
	if !ok {
		return "unknown", "unknown"
	}
	if user == "" {
		user = "unknown"
	}
	if domain == "" {
		domain = "unknown"
	}
	return user, domain
}

// Writer appends events below a fixed root directory. It is safe for
// concurrent use; each write opens the day file in append mode so
// interleaved lines stay whole.
type Writer struct {
	root   string
	logger *slog.Logger
}

// NewWriter validates the root path and ensures it exists. The root
// must be absolute so a misconfigured relative path can't scatter log
// trees across working directories.
func NewWriter(root string, logger *slog.Logger) (*Writer, error) {
	if !filepath.IsAbs(root) {
		return nil, fmt.Errorf("event log root %q must be an absolute path", root)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating event log root: %w", err)
	}
	return &Writer{root: root, logger: logger.With("component", "eventlog")}, nil
}

// Write appends the event. Failures are logged and swallowed; the
// audit trail must never take the dispatch path down with it.
func (w *Writer) Write(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	day := ev.At.Format(dateLayout) + ".log"
	line := fmt.Sprintf("%s status=%d %s\n", ev.At.Format(time.RFC3339), ev.Status, ev.Text)

	userPath := filepath.Join(w.root, usersDir, ev.Domain, ev.User, string(ev.Kind), day)
	if err := appendLine(userPath, line); err != nil {
		w.logger.Error("Could not write audit event", "path", userPath, "err", err)
	}

	if ev.Status >= 300 {
		errPath := filepath.Join(w.root, errorsDir, string(ev.Kind), strconv.Itoa(ev.Status), day)
		if err := appendLine(errPath, line); err != nil {
			w.logger.Error("Could not write audit error event", "path", errPath, "err", err)
		}
	}
}

func appendLine(path, line string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(line)
	return err
}
