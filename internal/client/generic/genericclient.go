// Package generic implements the operator-configured relay backend. When
// installed under the reserved registry key it fronts every native
// backend; it can also be installed as the fallback for identifiers the
// operator has not configured natively.
package generic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/tinywideclouds/go-platform/pkg/notification/v1"
	"github.com/tinywideclouds/go-push-gateway/pkg/push"
	"golang.org/x/net/http2"
)

// Protocol selects the transport of the relay.
type Protocol string

const (
	ProtocolHTTP  Protocol = "http"
	ProtocolHTTP2 Protocol = "http2"
)

// ValidateMethod enforces the relay's method constraint.
func ValidateMethod(method string) error {
	switch method {
	case http.MethodGet, http.MethodPost:
		return nil
	default:
		return fmt.Errorf("invalid method value %q: %w", method, push.ErrInvalidMethod)
	}
}

// Doer is the transport surface, extracted for tests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	httpClient Doer
	target     *url.URL
	method     string
	name       string
	queue      *push.SendQueue
	logger     *slog.Logger
}

// NewClient constructs a relay for the given target. name is the
// identifier its requests record (the reserved generic or fallback key).
func NewClient(target, method string, protocol Protocol, name string, maxQueueSize uint, logger *slog.Logger) (*Client, error) {
	if err := ValidateMethod(method); err != nil {
		return nil, err
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parsing relay target %q: %w", target, err)
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}
	if protocol == ProtocolHTTP2 {
		transport := &http.Transport{}
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, fmt.Errorf("configuring HTTP/2 transport: %w", err)
		}
		httpClient.Transport = transport
	}
	return NewClientWithTransport(httpClient, u, method, name, maxQueueSize, logger), nil
}

// NewClientWithTransport wires an explicit transport.
func NewClientWithTransport(doer Doer, target *url.URL, method, name string, maxQueueSize uint, logger *slog.Logger) *Client {
	return &Client{
		httpClient: doer,
		target:     target,
		method:     method,
		name:       name,
		queue:      push.NewSendQueue(maxQueueSize),
		logger:     logger.With("component", "GenericClient", "name", name),
	}
}

// relayBody is the wire form the relay forwards.
type relayBody struct {
	PushType push.PushType                    `json:"push_type"`
	Provider string                           `json:"provider"`
	AppID    string                           `json:"app_id"`
	Token    string                           `json:"token"`
	CallID   string                           `json:"call_id,omitempty"`
	From     string                           `json:"from,omitempty"`
	To       string                           `json:"to,omitempty"`
	Content  notification.NotificationContent `json:"content"`
	Data     map[string]string                `json:"data,omitempty"`
	// Payload is the native provider payload, present when the relay
	// could consult the native backend for the destination.
	Payload json.RawMessage `json:"payload,omitempty"`
}

type request struct {
	push.ReqInfo
	httpMethod string
	url        string
	body       []byte
}

func (c *Client) MakeRequest(pType push.PushType, info *push.PushInfo) (push.Request, error) {
	return c.makeRequest(pType, info, nil)
}

// MakeRequestWithRegistry lets the relay act as a universal front: when
// the description's native backend is registered, its payload is embedded
// in the relayed body.
func (c *Client) MakeRequestWithRegistry(pType push.PushType, info *push.PushInfo, clients map[string]push.Client) (push.Request, error) {
	return c.makeRequest(pType, info, clients)
}

func (c *Client) makeRequest(pType push.PushType, info *push.PushInfo, clients map[string]push.Client) (push.Request, error) {
	dest, ok := info.Destination(pType)
	if !ok {
		return nil, fmt.Errorf("push description carries no %s destination", pType)
	}

	var native json.RawMessage
	if nativeClient, ok := clients[dest.Param]; ok && nativeClient != nil {
		if nativeReq, err := nativeClient.MakeRequest(pType, info); err == nil {
			if carrier, ok := nativeReq.(push.PayloadCarrier); ok {
				native = carrier.Payload()
			}
		} else {
			c.logger.Debug("native backend could not build relayed payload", "app_id", dest.Param, "err", err)
		}
	}

	reqInfo := push.NewReqInfo(c.name, pType, dest)

	if c.method == http.MethodGet {
		u := *c.target
		q := u.Query()
		q.Set("type", string(pType))
		q.Set("provider", dest.Provider)
		q.Set("app-id", dest.Param)
		q.Set("token", dest.PushID)
		if info.CallID != "" {
			q.Set("call-id", info.CallID)
		}
		u.RawQuery = q.Encode()
		return &request{ReqInfo: reqInfo, httpMethod: c.method, url: u.String()}, nil
	}

	body, err := json.Marshal(relayBody{
		PushType: pType,
		Provider: dest.Provider,
		AppID:    dest.Param,
		Token:    dest.PushID,
		CallID:   info.CallID,
		From:     info.From,
		To:       info.To,
		Content:  info.Content,
		Data:     info.Data,
		Payload:  native,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding relay payload: %w", err)
	}
	return &request{ReqInfo: reqInfo, httpMethod: c.method, url: c.target.String(), body: body}, nil
}

func (c *Client) SendPush(r push.Request) error {
	req, ok := r.(*request)
	if !ok {
		return fmt.Errorf("request was not built by the generic client: %s", r.Desc())
	}
	return c.queue.Submit(func() { c.forward(req) })
}

func (c *Client) forward(req *request) {
	var body io.Reader
	if len(req.body) > 0 {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequest(req.httpMethod, req.url, body)
	if err != nil {
		c.logger.Error("relay request build failed", "err", err)
		return
	}
	if len(req.body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("relay transport failed", "token", req.Token, "err", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("relay target rejected notification", "token", req.Token, "status", resp.StatusCode)
		return
	}
	c.logger.Debug("relay accepted notification", "token", req.Token)
}

func (c *Client) IsIdle() bool { return c.queue.Idle() }

func (c *Client) Close() { c.queue.Close() }
