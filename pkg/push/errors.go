package push

import (
	"errors"
	"fmt"
)

// ErrInvalidMethod is returned by SetupGenericClient for any HTTP method
// other than GET or POST. It is a configuration error and fatal to
// bootstrap.
var ErrInvalidMethod = errors.New("only GET and POST are authorized for the generic client")

// ErrQueueFull is returned by a backend's SendPush when its outstanding
// request bound is reached.
var ErrQueueFull = errors.New("push client queue is full")

// ErrNoValidCredential is returned by an OAuth-authenticated backend when
// a send is submitted while no valid bearer credential is held.
var ErrNoValidCredential = errors.New("no valid access token available")

// UnsupportedProviderError reports a push description that no registered
// backend can serve: no generic relay, no native match, no fallback.
type UnsupportedProviderError struct {
	Provider string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported push notification provider [%s]", e.Provider)
}

// NoClientError reports a constructed request whose recorded application
// identifier resolves to no backend at send time.
type NoClientError struct {
	Request Request
}

func (e *NoClientError) Error() string {
	return fmt.Sprintf("no push notification client available for request [%s]", e.Request.Desc())
}

// DuplicateIdentifierError reports an application identifier that is
// already bound to another backend. Registration never silently
// overwrites; the collision is fatal to bootstrap.
type DuplicateIdentifierError struct {
	AppID string
}

func (e *DuplicateIdentifierError) Error() string {
	return fmt.Sprintf("push notification client identifier %q is already registered", e.AppID)
}
