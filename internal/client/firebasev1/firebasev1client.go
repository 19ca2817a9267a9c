// Package firebasev1 implements the FCM HTTP v1 delivery backend,
// authenticated with an OAuth service account. Each client owns its own
// AuthManager; the refresh schedule and the expiration anticipation
// window are fixed at construction time.
package firebasev1

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/tinywideclouds/go-push-gateway/pkg/push"
)

const sendEndpointFormat = "https://fcm.googleapis.com/v1/projects/%s/messages:send"

// Doer is the transport surface, extracted for tests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	httpClient Doer
	endpoint   string
	appID      string
	auth       *AuthManager
	queue      *push.SendQueue
	logger     *slog.Logger
}

// NewClient builds the client and its credential lifecycle manager from
// a service-account file. Construction fails on an unreadable or
// malformed file.
func NewClient(appID, serviceAccountPath string, refreshInterval, anticipation time.Duration, maxQueueSize uint, logger *slog.Logger) (*Client, error) {
	auth, projectID, err := NewAuthManager(serviceAccountPath, refreshInterval, anticipation, logger)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf(sendEndpointFormat, projectID)
	return NewClientWithTransport(&http.Client{Timeout: 10 * time.Second}, endpoint, appID, auth, maxQueueSize, logger), nil
}

// NewClientWithTransport wires an explicit transport, endpoint and auth
// manager.
func NewClientWithTransport(doer Doer, endpoint, appID string, auth *AuthManager, maxQueueSize uint, logger *slog.Logger) *Client {
	return &Client{
		httpClient: doer,
		endpoint:   endpoint,
		appID:      appID,
		auth:       auth,
		queue:      push.NewSendQueue(maxQueueSize),
		logger:     logger.With("component", "FirebaseV1Client", "app_id", appID),
	}
}

type request struct {
	push.ReqInfo
	body []byte
}

// Payload exposes the encoded v1 message for the generic relay.
func (r *request) Payload() []byte { return r.body }

func (c *Client) MakeRequest(pType push.PushType, info *push.PushInfo) (push.Request, error) {
	dest, ok := info.Destination(pType)
	if !ok {
		return nil, fmt.Errorf("push description carries no %s destination", pType)
	}
	if dest.PushID == "" {
		return nil, errors.New("push description carries no registration token")
	}

	msg := &messaging.Message{
		Token: dest.PushID,
		Data:  info.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}
	if pType != push.Background {
		msg.Notification = &messaging.Notification{
			Title: info.Content.Title,
			Body:  info.Content.Body,
		}
	}

	body, err := json.Marshal(struct {
		Message *messaging.Message `json:"message"`
	}{msg})
	if err != nil {
		return nil, fmt.Errorf("encoding FCM v1 payload: %w", err)
	}
	return &request{ReqInfo: push.NewReqInfo(c.appID, pType, dest), body: body}, nil
}

// SendPush rejects the submission outright when no valid credential is
// held; a push is never sent with a stale token. The token itself is
// read again at transmission time, since a queued send may outlive the
// credential that was valid at admission.
func (c *Client) SendPush(r push.Request) error {
	req, ok := r.(*request)
	if !ok {
		return fmt.Errorf("request was not built by the firebase v1 client: %s", r.Desc())
	}
	if _, ok := c.auth.Token(); !ok {
		return push.ErrNoValidCredential
	}
	return c.queue.Submit(func() { c.post(req) })
}

func (c *Client) post(req *request) {
	token, ok := c.auth.Token()
	if !ok {
		c.logger.Warn("FCM v1 credential expired while queued, dropping push", "token", req.Token)
		return
	}
	httpReq, err := http.NewRequest(http.MethodPost, c.endpoint, bytes.NewReader(req.body))
	if err != nil {
		c.logger.Error("FCM v1 request build failed", "err", err)
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("FCM v1 transport failed", "token", req.Token, "err", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("FCM v1 rejected notification",
			"token", req.Token, "status", resp.StatusCode, "body", string(body))
		return
	}
	c.logger.Debug("FCM v1 push accepted", "token", req.Token)
}

func (c *Client) IsIdle() bool { return c.queue.Idle() }

// Close stops the send queue and the credential refresh loop.
func (c *Client) Close() {
	c.queue.Close()
	c.auth.Stop()
}
