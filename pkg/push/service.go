package push

import "log/slog"

// Reserved registry keys. The generic client, when registered, fronts all
// traffic regardless of the destination platform; the fallback client
// absorbs identifiers the operator has not explicitly configured.
const (
	GenericClientName = "generic"
	FallbackClientKey = "fallback"
)

// Service routes push descriptions to delivery backends. The registry is
// populated during bootstrap and read-only afterwards; installation and
// dispatch are temporally disjoint, so steady-state resolution takes no
// lock.
type Service struct {
	clients      map[string]Client
	maxQueueSize uint
	logger       *slog.Logger
}

// NewService creates an empty registry. maxQueueSize is the shared
// admission bound handed to every queue-backed backend installed later.
func NewService(maxQueueSize uint, logger *slog.Logger) *Service {
	return &Service{
		clients:      make(map[string]Client),
		maxQueueSize: maxQueueSize,
		logger:       logger.With("component", "PushService"),
	}
}

// MaxQueueSize is the shared outstanding-request bound for backends that
// pool connections.
func (s *Service) MaxQueueSize() uint { return s.maxQueueSize }

// RegisterClient binds a backend to an application identifier. An
// identifier already in use is a configuration error, never a silent
// overwrite.
func (s *Service) RegisterClient(appID string, client Client) error {
	if _, exists := s.clients[appID]; exists {
		return &DuplicateIdentifierError{AppID: appID}
	}
	s.clients[appID] = client
	return nil
}

// SetGenericClient installs the relay under its reserved key. Installing
// it again replaces the previous relay.
func (s *Service) SetGenericClient(client Client) {
	s.clients[GenericClientName] = client
}

// SetFallbackClient installs the backend used when no native client
// matches. Absent unless explicitly configured.
func (s *Service) SetFallbackClient(client Client) {
	s.clients[FallbackClientKey] = client
}

// Client returns the backend registered under appID.
func (s *Service) Client(appID string) (Client, bool) {
	c, ok := s.clients[appID]
	return c, ok && c != nil
}

// MakeRequest resolves the description to a backend and builds a delivery
// request. Resolution order: generic relay if registered, else the native
// client matching the destination's application identifier, else the
// fallback, else an UnsupportedProviderError.
func (s *Service) MakeRequest(pType PushType, info *PushInfo) (Request, error) {
	if generic, ok := s.clients[GenericClientName]; ok && generic != nil {
		// The relay fronts every native backend, so it is handed the
		// whole registry.
		if relay, ok := generic.(RelayClient); ok {
			return relay.MakeRequestWithRegistry(pType, info, s.clients)
		}
		return generic.MakeRequest(pType, info)
	}

	dest, _ := info.Destination(pType)
	if client, ok := s.clients[dest.Param]; ok && client != nil {
		return client.MakeRequest(pType, info)
	}
	if client, ok := s.clients[FallbackClientKey]; ok && client != nil {
		return client.MakeRequest(pType, info)
	}
	return nil, &UnsupportedProviderError{Provider: info.Provider()}
}

// SendPush submits a previously constructed request to the backend it was
// built by, or to the fallback when that backend is gone from the
// registry. The outcome of the delivery itself is the backend's concern.
func (s *Service) SendPush(req Request) error {
	client, ok := s.clients[req.AppIdentifier()]
	if !ok || client == nil {
		client, ok = s.clients[FallbackClientKey]
	}
	if !ok || client == nil {
		return &NoClientError{Request: req}
	}
	return client.SendPush(req)
}

// IsIdle reports whether every registered backend has drained its
// outstanding work. Vacuously true for an empty registry.
func (s *Service) IsIdle() bool {
	for _, client := range s.clients {
		if client != nil && !client.IsIdle() {
			return false
		}
	}
	return true
}
