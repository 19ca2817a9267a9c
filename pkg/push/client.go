package push

import "fmt"

// Request represents one in-flight delivery attempt, bound to exactly one
// resolved backend. Backends attach their own payload and transport state
// by embedding ReqInfo in a provider-specific request type.
type Request interface {
	// AppIdentifier is the registry key of the backend that built the
	// request; SendPush uses it to resolve the sender.
	AppIdentifier() string
	// Type is the push type the request was built for.
	Type() PushType
	// Desc describes the request for logging and error reporting.
	Desc() string
}

// ReqInfo is the common part of every delivery request.
type ReqInfo struct {
	AppID    string
	PushType PushType
	Provider string
	Token    string
}

// NewReqInfo records the identifying data of a delivery attempt.
func NewReqInfo(appID string, pType PushType, dest Destination) ReqInfo {
	return ReqInfo{
		AppID:    appID,
		PushType: pType,
		Provider: dest.Provider,
		Token:    dest.PushID,
	}
}

func (r ReqInfo) AppIdentifier() string { return r.AppID }

func (r ReqInfo) Type() PushType { return r.PushType }

func (r ReqInfo) Desc() string {
	return fmt.Sprintf("%s push to %s via %s[%s]", r.PushType, r.Token, r.Provider, r.AppID)
}

// Client is the capability contract every delivery backend implements.
// A Client is created during bootstrap, lives for the process lifetime
// and owns whatever persistent connection or credential state its
// provider needs.
type Client interface {
	// MakeRequest builds a delivery request for the description. It is
	// synchronous and performs no I/O.
	MakeRequest(pType PushType, info *PushInfo) (Request, error)
	// SendPush submits the request for asynchronous delivery. Completion
	// is observed only through IsIdle, never through a returned outcome;
	// an error here means the request was not admitted (e.g. full queue).
	SendPush(req Request) error
	// IsIdle reports whether the client has no outstanding work.
	IsIdle() bool
}

// PayloadCarrier is implemented by requests that expose their encoded
// provider payload, letting the generic relay forward a native payload
// on the backend's behalf.
type PayloadCarrier interface {
	Payload() []byte
}

// RelayClient is implemented by the generic relay, whose request
// construction may consult the whole registry so it can front any native
// backend.
type RelayClient interface {
	Client
	MakeRequestWithRegistry(pType PushType, info *PushInfo, clients map[string]Client) (Request, error)
}
