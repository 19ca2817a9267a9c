// Package apple implements the APNs delivery backend. One client is
// created per certificate found in the configured directory, keyed by the
// certificate's base name, which doubles as the APNs topic.
package apple

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/certificate"
	"github.com/sideshow/apns2/payload"
	"github.com/tinywideclouds/go-push-gateway/pkg/push"
)

// Pusher is the subset of apns2.Client used here, extracted so tests can
// substitute the transport.
type Pusher interface {
	Push(n *apns2.Notification) (*apns2.Response, error)
}

type Client struct {
	pusher Pusher
	appID  string
	queue  *push.SendQueue
	logger *slog.Logger
}

// NewClient loads the PEM certificate and connects the client to the
// production gateway. A malformed certificate fails construction; the
// caller skips the file and keeps bootstrapping.
func NewClient(certPath, appID string, maxQueueSize uint, logger *slog.Logger) (*Client, error) {
	cert, err := certificate.FromPemFile(certPath, "")
	if err != nil {
		return nil, fmt.Errorf("loading APNs certificate %s: %w", certPath, err)
	}
	return NewClientWithPusher(apns2.NewClient(cert).Production(), appID, maxQueueSize, logger), nil
}

// NewClientWithPusher wires an explicit transport.
func NewClientWithPusher(pusher Pusher, appID string, maxQueueSize uint, logger *slog.Logger) *Client {
	return &Client{
		pusher: pusher,
		appID:  appID,
		queue:  push.NewSendQueue(maxQueueSize),
		logger: logger.With("component", "AppleClient", "app_id", appID),
	}
}

type request struct {
	push.ReqInfo
	notification *apns2.Notification
}

// Payload exposes the encoded APS payload for the generic relay.
func (r *request) Payload() []byte {
	b, err := json.Marshal(r.notification.Payload)
	if err != nil {
		return nil
	}
	return b
}

func (c *Client) MakeRequest(pType push.PushType, info *push.PushInfo) (push.Request, error) {
	dest, ok := info.Destination(pType)
	if !ok {
		return nil, fmt.Errorf("push description carries no %s destination", pType)
	}
	if dest.PushID == "" {
		return nil, errors.New("push description carries no device token")
	}

	builder := payload.NewPayload()
	switch pType {
	case push.Background:
		builder.ContentAvailable()
	default:
		builder.
			AlertTitle(info.Content.Title).
			AlertBody(info.Content.Body).
			Sound(info.Content.Sound)
	}
	for k, v := range info.Data {
		builder.Custom(k, v)
	}
	if info.CallID != "" {
		builder.Custom("call-id", info.CallID)
	}

	topic := c.appID
	if t, ok := dest.Extra["topic"]; ok && t != "" {
		topic = t
	}

	n := &apns2.Notification{
		DeviceToken: dest.PushID,
		Topic:       topic,
		Payload:     builder,
		PushType:    apnsPushType(pType),
	}
	return &request{ReqInfo: push.NewReqInfo(c.appID, pType, dest), notification: n}, nil
}

func (c *Client) SendPush(r push.Request) error {
	req, ok := r.(*request)
	if !ok {
		return fmt.Errorf("request was not built by the APNs client: %s", r.Desc())
	}
	return c.queue.Submit(func() {
		res, err := c.pusher.Push(req.notification)
		if err != nil {
			c.logger.Error("APNs transport failed", "token", req.Token, "err", err)
			return
		}
		if res.Sent() {
			c.logger.Debug("APNs push accepted", "token", req.Token, "apns_id", res.ApnsID)
			return
		}
		c.logger.Warn("APNs rejected notification",
			"token", req.Token, "reason", res.Reason, "status", res.StatusCode)
	})
}

func (c *Client) IsIdle() bool { return c.queue.Idle() }

// Close stops the drain goroutine at shutdown.
func (c *Client) Close() { c.queue.Close() }

func apnsPushType(pType push.PushType) apns2.EPushType {
	switch pType {
	case push.Background:
		return apns2.PushTypeBackground
	case push.VoIP:
		return apns2.PushTypeVOIP
	default:
		return apns2.PushTypeAlert
	}
}
