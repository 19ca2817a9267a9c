// Package firebase implements the legacy FCM delivery backend, keyed by
// a per-project server API key.
package firebase

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

const legacyEndpoint = "https://fcm.googleapis.com/fcm/send"

// Doer is the transport surface, extracted for tests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	httpClient Doer
	endpoint   string
	appID      string
	apiKey     string
	queue      *push.SendQueue
	logger     *slog.Logger
}

func NewClient(appID, apiKey string, maxQueueSize uint, logger *slog.Logger) *Client {
	return NewClientWithTransport(&http.Client{Timeout: 10 * time.Second}, legacyEndpoint, appID, apiKey, maxQueueSize, logger)
}

// NewClientWithTransport wires an explicit transport and endpoint.
func NewClientWithTransport(doer Doer, endpoint, appID, apiKey string, maxQueueSize uint, logger *slog.Logger) *Client {
	return &Client{
		httpClient: doer,
		endpoint:   endpoint,
		appID:      appID,
		apiKey:     apiKey,
		queue:      push.NewSendQueue(maxQueueSize),
		logger:     logger.With("component", "FirebaseClient", "app_id", appID),
	}
}

// legacyMessage is the wire form of the legacy send API. The notification
// block reuses the SDK's struct, whose JSON tags match the legacy schema.
type legacyMessage struct {
	To               string                  `json:"to"`
	Priority         string                  `json:"priority,omitempty"`
	ContentAvailable bool                    `json:"content_available,omitempty"`
	Notification     *messaging.Notification `json:"notification,omitempty"`
	Data             map[string]string       `json:"data,omitempty"`
}

type request struct {
	push.ReqInfo
	body []byte
}

// Payload exposes the encoded legacy message for the generic relay.
func (r *request) Payload() []byte { return r.body }

func (c *Client) MakeRequest(pType push.PushType, info *push.PushInfo) (push.Request, error) {
	dest, ok := info.Destination(pType)
	if !ok {
		return nil, fmt.Errorf("push description carries no %s destination", pType)
	}
	if dest.PushID == "" {
		return nil, errors.New("push description carries no registration token")
	}

	msg := legacyMessage{
		To:       dest.PushID,
		Priority: "high",
		Data:     info.Data,
	}
	if pType == push.Background {
		msg.ContentAvailable = true
	} else {
		msg.Notification = &messaging.Notification{
			Title: info.Content.Title,
			Body:  info.Content.Body,
		}
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding FCM payload: %w", err)
	}
	return &request{ReqInfo: push.NewReqInfo(c.appID, pType, dest), body: body}, nil
}

func (c *Client) SendPush(r push.Request) error {
	req, ok := r.(*request)
	if !ok {
		return fmt.Errorf("request was not built by the firebase client: %s", r.Desc())
	}
	return c.queue.Submit(func() { c.post(req) })
}

func (c *Client) post(req *request) {
	httpReq, err := http.NewRequest(http.MethodPost, c.endpoint, bytes.NewReader(req.body))
	if err != nil {
		c.logger.Error("FCM request build failed", "err", err)
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "key="+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("FCM transport failed", "token", req.Token, "err", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("FCM rejected notification",
			"token", req.Token, "status", resp.StatusCode, "body", string(body))
		return
	}
	c.logger.Debug("FCM push accepted", "token", req.Token)
}

func (c *Client) IsIdle() bool { return c.queue.Idle() }

func (c *Client) Close() { c.queue.Close() }
