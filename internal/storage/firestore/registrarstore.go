package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tinywideclouds/go-push-gateway/pkg/conference"
)

// RegistrarStore implements conference.RegistrarLookup on Google Cloud
// Firestore.
type RegistrarStore struct {
	client *firestore.Client
}

func NewRegistrarStore(client *firestore.Client) *RegistrarStore {
	return &RegistrarStore{client: client}
}

// bindingRecord is the internal DB representation.
type bindingRecord struct {
	Address   string    `firestore:"address"`
	Owner     string    `firestore:"owner"`
	CreatedAt time.Time `firestore:"created_at"`
}

func (s *RegistrarStore) Fetch(ctx context.Context, address string) (*conference.Binding, error) {
	doc, err := s.bindingRef(address).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching registrar binding: %w", err)
	}

	var record bindingRecord
	if err := doc.DataTo(&record); err != nil {
		return nil, fmt.Errorf("decoding registrar binding: %w", err)
	}
	return &conference.Binding{Address: record.Address, Owner: record.Owner}, nil
}

func (s *RegistrarStore) Bind(ctx context.Context, binding conference.Binding) error {
	record := bindingRecord{
		Address:   binding.Address,
		Owner:     binding.Owner,
		CreatedAt: time.Now(),
	}
	_, err := s.bindingRef(binding.Address).Set(ctx, record)
	return err
}

// bindingRef: conference_bindings/{addressHash}
// Addresses are hashed into the doc ID so URI characters never clash
// with Firestore path syntax.
func (s *RegistrarStore) bindingRef(address string) *firestore.DocumentRef {
	sum := sha256.Sum256([]byte(address))
	return s.client.Collection("conference_bindings").Doc(hex.EncodeToString(sum[:]))
}
