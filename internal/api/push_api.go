package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"log/slog"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"
	"github.com/tinywideclouds/go-push-gateway/pkg/push"
)

// PushSubmitter is the slice of the push service the API needs.
type PushSubmitter interface {
	MakeRequest(pType push.PushType, info *push.PushInfo) (push.Request, error)
	SendPush(req push.Request) error
	IsIdle() bool
}

// AddressAllocator hands out conference addresses.
type AddressAllocator interface {
	Allocate(ctx context.Context, owner string) (string, error)
}

type PushAPI struct {
	Service   PushSubmitter
	Allocator AddressAllocator
	Logger    *slog.Logger
}

func NewPushAPI(service PushSubmitter, allocator AddressAllocator, logger *slog.Logger) *PushAPI {
	return &PushAPI{
		Service:   service,
		Allocator: allocator,
		Logger:    logger,
	}
}

// SubmitPush accepts one push envelope and queues it for delivery.
// Admission is what gets acknowledged here; delivery is asynchronous.
func (api *PushAPI) SubmitPush(w http.ResponseWriter, r *http.Request) {
	var envelope push.Envelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := envelope.Validate(); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	req, err := api.Service.MakeRequest(envelope.PushType, &envelope.Info)
	if err != nil {
		api.Logger.Warn("SubmitPush: no backend for envelope", "err", err)
		response.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := api.Service.SendPush(req); err != nil {
		if errors.Is(err, push.ErrQueueFull) {
			response.WriteJSONError(w, http.StatusServiceUnavailable, "push queue full")
			return
		}
		api.Logger.Error("SubmitPush: submission failed", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "submission failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

// Status reports whether every backend has drained its queue. The
// shutdown sequencer polls this before stopping the process.
func (api *PushAPI) Status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"idle": api.Service.IsIdle()})
}

// AllocateConferenceAddress reserves a fresh chat room address for the
// authenticated caller.
func (api *PushAPI) AllocateConferenceAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserHandleFromContext(ctx)
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if api.Allocator == nil {
		response.WriteJSONError(w, http.StatusNotImplemented, "conference factory disabled")
		return
	}

	address, err := api.Allocator.Allocate(ctx, userID)
	if err != nil {
		api.Logger.Error("AllocateConferenceAddress: allocation failed", "user", userID, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "allocation failed")
		return
	}
	api.Logger.Info("AllocateConferenceAddress: address allocated", "user", userID, "address", address)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"address": address})
}
