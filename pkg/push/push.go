// Package push contains the backend registry and routing core of the
// push gateway: the domain model for a wake-up notification, the Client
// capability contract each delivery backend implements, and the Service
// that resolves a push description to the backend responsible for it.
package push

import (
	"fmt"

	"github.com/tinywideclouds/go-platform/pkg/notification/v1"
)

// PushType distinguishes the kind of wake-up being delivered. It selects
// which destination of a PushInfo is used for routing.
type PushType string

const (
	// Background wakes the application without user-visible content.
	Background PushType = "background"
	// Message carries a user-visible alert.
	Message PushType = "message"
	// VoIP wakes the application for an incoming call.
	VoIP PushType = "voip"
)

// Destination describes one per-platform delivery target.
type Destination struct {
	// Provider is the push service family ("apns", "fcm", ...). Used only
	// for diagnostics; routing uses Param.
	Provider string `json:"provider"`
	// Param is the application identifier the destination was registered
	// under. It is the registry lookup key.
	Param string `json:"param"`
	// PushID is the device token (or subscription endpoint for web push).
	PushID string `json:"push_id"`
	// Extra carries provider-specific parameters, e.g. the p256dh/auth
	// keys of a web push subscription.
	Extra map[string]string `json:"extra,omitempty"`
}

// PushInfo is an immutable description of one notification target. It is
// created by the signaling layer and read-only to the gateway.
type PushInfo struct {
	Destinations map[PushType]Destination `json:"destinations"`

	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	CallID string `json:"call_id,omitempty"`

	Content notification.NotificationContent `json:"content"`
	Data    map[string]string                `json:"data,omitempty"`
}

// Destination returns the delivery target for the given push type.
func (p *PushInfo) Destination(pType PushType) (Destination, bool) {
	dest, ok := p.Destinations[pType]
	return dest, ok
}

// Provider returns the provider family of any configured destination,
// for error reporting when no destination matches.
func (p *PushInfo) Provider() string {
	for _, dest := range p.Destinations {
		if dest.Provider != "" {
			return dest.Provider
		}
	}
	return "unknown"
}

// Envelope is the wire form of one push submission, consumed from the
// ingestion pipeline and from the HTTP API.
type Envelope struct {
	PushType PushType `json:"push_type"`
	Info     PushInfo `json:"info"`
}

// Validate checks that the envelope can be routed at all.
func (e *Envelope) Validate() error {
	if e.PushType == "" {
		return fmt.Errorf("missing push_type")
	}
	if _, ok := e.Info.Destinations[e.PushType]; !ok {
		return fmt.Errorf("no destination for push type %q", e.PushType)
	}
	return nil
}
