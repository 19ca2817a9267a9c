// Package conference allocates addresses for server-hosted chat rooms.
package conference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

const (
	addressPrefix = "chatroom-"
	maxAttempts   = 10
)

// ErrAddressSpaceExhausted is returned when every proposed address in a
// single allocation collided with an existing binding.
var ErrAddressSpaceExhausted = errors.New("could not find a free conference address")

// Binding is a registrar record tying an address to the factory that
// owns it.
type Binding struct {
	Address string
	Owner   string
}

// RegistrarLookup is the registrar surface the allocator needs: check
// whether an address is taken, and claim it.
type RegistrarLookup interface {
	// Fetch returns the binding for the address, or nil when the
	// address is free.
	Fetch(ctx context.Context, address string) (*Binding, error)
	// Bind claims the address for the owner.
	Bind(ctx context.Context, binding Binding) error
}

// Allocator hands out unique conference addresses under a factory
// domain.
type Allocator struct {
	domain    string
	registrar RegistrarLookup
	logger    *slog.Logger

	// newToken is swappable for collision tests.
	newToken func() string
}

func NewAllocator(factoryDomain string, registrar RegistrarLookup, logger *slog.Logger) (*Allocator, error) {
	return NewAllocatorWithTokenSource(factoryDomain, registrar, randomToken, logger)
}

// NewAllocatorWithTokenSource accepts a deterministic token source for
// collision testing.
func NewAllocatorWithTokenSource(factoryDomain string, registrar RegistrarLookup, newToken func() string, logger *slog.Logger) (*Allocator, error) {
	if factoryDomain == "" {
		return nil, errors.New("conference factory domain is required")
	}
	return &Allocator{
		domain:    factoryDomain,
		registrar: registrar,
		logger:    logger.With("component", "conference"),
		newToken:  newToken,
	}, nil
}

// Allocate proposes random addresses until one is free, then binds and
// returns it. Attempts are bounded so a saturated registrar surfaces
// as an error rather than a spin.
func (a *Allocator) Allocate(ctx context.Context, owner string) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		address := fmt.Sprintf("%s%s@%s", addressPrefix, a.newToken(), a.domain)

		existing, err := a.registrar.Fetch(ctx, address)
		if err != nil {
			return "", fmt.Errorf("checking conference address %q: %w", address, err)
		}
		if existing != nil {
			a.logger.Debug("Conference address collision, retrying", "address", address)
			continue
		}

		if err := a.registrar.Bind(ctx, Binding{Address: address, Owner: owner}); err != nil {
			return "", fmt.Errorf("binding conference address %q: %w", address, err)
		}
		a.logger.Info("Allocated conference address", "address", address, "owner", owner)
		return address, nil
	}
	return "", ErrAddressSpaceExhausted
}

func randomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
