package pushgateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-push-gateway/internal/api"
	"github.com/tinywideclouds/go-push-gateway/internal/pipeline"
	"github.com/tinywideclouds/go-push-gateway/pkg/push"
	"github.com/tinywideclouds/go-push-gateway/pushgateway/config"
)

type Wrapper struct {
	*microservice.BaseServer
	pipelineService *messagepipeline.StreamingService[push.Envelope]
	pushService     *push.Service
	logger          *slog.Logger
}

// New assembles the service: consumer-fed dispatch pipeline plus the
// HTTP surface for direct submission, idle probing and conference
// address allocation.
func New(
	cfg *config.Config,
	consumer messagepipeline.MessageConsumer,
	pushService *push.Service,
	dedup pipeline.DedupGuard,
	audit pipeline.AuditWriter,
	allocator api.AddressAllocator,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
) (*Wrapper, error) {

	// 1. Base Server
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	// 2. Processor
	processor := pipeline.NewProcessor(pushService, dedup, audit, logger)

	// 3. Pipeline
	streamingService, err := messagepipeline.NewStreamingService(
		messagepipeline.StreamingServiceConfig{NumWorkers: cfg.NumPipelineWorkers},
		consumer,
		pipeline.PushEnvelopeTransformer,
		processor,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create streaming service: %w", err)
	}

	// 4. API
	pushAPI := api.NewPushAPI(pushService, allocator, logger)

	// Register Routes
	mux := baseServer.Mux()
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)

	handle := func(pattern string, handlerFunc http.HandlerFunc) {
		mux.Handle(pattern, corsMiddleware(authMiddleware(handlerFunc)))
	}

	handle("POST /api/v1/push", pushAPI.SubmitPush)
	if allocator != nil {
		handle("POST /api/v1/conference/address", pushAPI.AllocateConferenceAddress)
	}

	// The shutdown sequencer polls this; it stays outside auth.
	mux.Handle("GET /api/v1/status", http.HandlerFunc(pushAPI.Status))

	// Global OPTIONS for the API namespace (CORS preflight)
	mux.Handle("OPTIONS /api/v1/", corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	return &Wrapper{
		BaseServer:      baseServer,
		pipelineService: streamingService,
		pushService:     pushService,
		logger:          logger,
	}, nil
}

func (w *Wrapper) Start(ctx context.Context) error {
	w.logger.Info("Core processing pipeline starting...")
	if err := w.pipelineService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start processing service: %w", err)
	}
	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

// Shutdown stops intake first, then waits for the backend queues to
// drain so accepted pushes still go out, then stops the HTTP server.
func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	var finalErr error
	if err := w.pipelineService.Stop(ctx); err != nil {
		w.logger.Error("Processing pipeline shutdown failed.", "err", err)
		finalErr = err
	}
	if err := w.waitForIdle(ctx); err != nil {
		w.logger.Warn("Push queues still busy at shutdown.", "err", err)
	}
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}
	w.logger.Info("Service shutdown complete.")
	return finalErr
}

func (w *Wrapper) waitForIdle(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if w.pushService.IsIdle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
