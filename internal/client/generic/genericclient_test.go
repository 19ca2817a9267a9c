package generic_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-push-gateway/internal/client/generic"
	"github.com/tinywideclouds/go-push-gateway/pkg/push"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func relayInfo() *push.PushInfo {
	return &push.PushInfo{
		Destinations: map[push.PushType]push.Destination{
			push.VoIP: {Provider: "apns", Param: "com.example.app", PushID: "tok-7"},
		},
		CallID: "call-9",
	}
}

func TestNewClient_MethodValidation(t *testing.T) {
	_, err := generic.NewClient("https://relay.example.org/push", http.MethodPut, generic.ProtocolHTTP,
		push.GenericClientName, 4, newTestLogger())
	require.ErrorIs(t, err, push.ErrInvalidMethod)

	_, err = generic.NewClient("https://relay.example.org/push", http.MethodDelete, generic.ProtocolHTTP2,
		push.GenericClientName, 4, newTestLogger())
	require.ErrorIs(t, err, push.ErrInvalidMethod)

	_, err = generic.NewClient("https://relay.example.org/push", http.MethodGet, generic.ProtocolHTTP,
		push.GenericClientName, 4, newTestLogger())
	require.NoError(t, err)
}

func TestMakeRequest_GetEncodesQuery(t *testing.T) {
	target, _ := url.Parse("https://relay.example.org/push")
	client := generic.NewClientWithTransport(http.DefaultClient, target, http.MethodGet,
		push.GenericClientName, 4, newTestLogger())
	defer client.Close()

	req, err := client.MakeRequest(push.VoIP, relayInfo())
	require.NoError(t, err)
	assert.Equal(t, push.GenericClientName, req.AppIdentifier())
	assert.Contains(t, req.Desc(), "tok-7")
}

type payloadClient struct {
	body []byte
}

type payloadRequest struct {
	push.ReqInfo
	body []byte
}

func (r payloadRequest) Payload() []byte { return r.body }

func (c payloadClient) MakeRequest(pType push.PushType, info *push.PushInfo) (push.Request, error) {
	dest, _ := info.Destination(pType)
	return payloadRequest{push.NewReqInfo("com.example.app", pType, dest), c.body}, nil
}

func (c payloadClient) SendPush(push.Request) error { return nil }

func (c payloadClient) IsIdle() bool { return true }

func TestMakeRequestWithRegistry_EmbedsNativePayload(t *testing.T) {
	var gotBody atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody.Store(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	target, _ := url.Parse(server.URL)
	client := generic.NewClientWithTransport(server.Client(), target, http.MethodPost,
		push.GenericClientName, 4, newTestLogger())
	defer client.Close()

	registry := map[string]push.Client{
		"com.example.app": payloadClient{body: []byte(`{"aps":{"alert":"hi"}}`)},
	}
	req, err := client.MakeRequestWithRegistry(push.VoIP, relayInfo(), registry)
	require.NoError(t, err)
	require.NoError(t, client.SendPush(req))
	assert.Eventually(t, client.IsIdle, time.Second, 5*time.Millisecond)

	var forwarded struct {
		AppID   string          `json:"app_id"`
		Token   string          `json:"token"`
		Payload json.RawMessage `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(gotBody.Load().([]byte), &forwarded))
	assert.Equal(t, "com.example.app", forwarded.AppID)
	assert.Equal(t, "tok-7", forwarded.Token)
	assert.JSONEq(t, `{"aps":{"alert":"hi"}}`, string(forwarded.Payload))
}
