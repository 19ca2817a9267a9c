// Package web implements a web-push (VAPID) delivery backend so browser
// endpoints can be addressed through the same registry as mobile
// platforms.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/tinywideclouds/go-push-gateway/pkg/push"
)

type Config struct {
	PublicKey       string
	PrivateKey      string
	SubscriberEmail string
}

type Client struct {
	cfg        Config
	appID      string
	httpClient webpush.HTTPClient
	queue      *push.SendQueue
	logger     *slog.Logger
}

func NewClient(cfg Config, appID string, maxQueueSize uint, logger *slog.Logger) (*Client, error) {
	if cfg.PublicKey == "" || cfg.PrivateKey == "" {
		return nil, errors.New("web push requires both VAPID keys")
	}
	return &Client{
		cfg:        cfg,
		appID:      appID,
		httpClient: &http.Client{},
		queue:      push.NewSendQueue(maxQueueSize),
		logger:     logger.With("component", "WebPushClient", "app_id", appID),
	}, nil
}

// SetHTTPClient substitutes the transport, for tests.
func (c *Client) SetHTTPClient(httpClient webpush.HTTPClient) { c.httpClient = httpClient }

type request struct {
	push.ReqInfo
	subscription *webpush.Subscription
	body         []byte
}

// Payload exposes the encoded notification for the generic relay.
func (r *request) Payload() []byte { return r.body }

func (c *Client) MakeRequest(pType push.PushType, info *push.PushInfo) (push.Request, error) {
	dest, ok := info.Destination(pType)
	if !ok {
		return nil, fmt.Errorf("push description carries no %s destination", pType)
	}
	if dest.PushID == "" {
		return nil, errors.New("push description carries no subscription endpoint")
	}
	p256dh, auth := dest.Extra["p256dh"], dest.Extra["auth"]
	if p256dh == "" || auth == "" {
		return nil, errors.New("web push destination is missing the p256dh/auth keys")
	}

	body, err := json.Marshal(map[string]any{
		"notification": map[string]string{
			"title": info.Content.Title,
			"body":  info.Content.Body,
		},
		"data": info.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding web push payload: %w", err)
	}

	return &request{
		ReqInfo: push.NewReqInfo(c.appID, pType, dest),
		subscription: &webpush.Subscription{
			Endpoint: dest.PushID,
			Keys:     webpush.Keys{P256dh: p256dh, Auth: auth},
		},
		body: body,
	}, nil
}

func (c *Client) SendPush(r push.Request) error {
	req, ok := r.(*request)
	if !ok {
		return fmt.Errorf("request was not built by the web push client: %s", r.Desc())
	}
	return c.queue.Submit(func() { c.deliver(req) })
}

func (c *Client) deliver(req *request) {
	resp, err := webpush.SendNotification(req.body, req.subscription, &webpush.Options{
		Subscriber:      c.cfg.SubscriberEmail,
		VAPIDPublicKey:  c.cfg.PublicKey,
		VAPIDPrivateKey: c.cfg.PrivateKey,
		TTL:             60,
		HTTPClient:      c.httpClient,
	})
	if err != nil {
		c.logger.Error("web push transport failed", "endpoint", req.subscription.Endpoint, "err", err)
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		c.logger.Debug("web push accepted", "endpoint", req.subscription.Endpoint)
	case http.StatusGone, http.StatusNotFound:
		c.logger.Warn("web push subscription is dead", "endpoint", req.subscription.Endpoint, "status", resp.StatusCode)
	default:
		c.logger.Warn("web push rejected", "endpoint", req.subscription.Endpoint, "status", resp.StatusCode)
	}
}

func (c *Client) IsIdle() bool { return c.queue.Idle() }

func (c *Client) Close() { c.queue.Close() }
