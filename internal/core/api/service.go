// Package api provides the gRPC pattern service.
package api

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/solatis/tpattern/internal/core/config"
	"github.com/solatis/tpattern/internal/ingest"
	"github.com/solatis/tpattern/internal/tpattern"
	"github.com/solatis/tpattern/internal/types"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// RunStore persists detection runs.
type RunStore interface {
	SaveRun(ctx context.Context, run *types.Run) error
	ListRuns(ctx context.Context) ([]types.RunSummary, error)
}

// PatternService implements PatternServer.
// Thin orchestration layer delegating to ingest, tpattern and the run store.
type PatternService struct {
	detection config.DetectionConfig
	maxEvents int
	store     RunStore
	logger    *zap.Logger
}

// NewPatternService creates service instance with dependencies.
// A nil store disables run persistence and ListRuns.
func NewPatternService(cfg *config.Config, store RunStore, logger *zap.Logger) (*PatternService, error) {
	if cfg == nil {
		return nil, errors.New("cfg cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PatternService{
		detection: cfg.Detection,
		maxEvents: cfg.Server.MaxEvents,
		store:     store,
		logger:    logger,
	}, nil
}

// Detect runs detection over the periods of the request.
func (s *PatternService) Detect(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req DetectRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	// Reject requests exceeding max size
	if n := req.EventCount(); n > s.maxEvents {
		return nil, status.Errorf(codes.InvalidArgument, "request holds %d events, maximum is %d", n, s.maxEvents)
	}

	cfg := s.detection.Engine()
	if req.Significance != nil {
		cfg.Significance = *req.Significance
	}
	if req.Window != nil {
		cfg.Window = *req.Window
	}

	records, err := req.Records(cfg.TimeUnit)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	periods, err := ingest.Periods(records, nil)
	if err != nil {
		return nil, toStatus(err)
	}

	detector, err := tpattern.NewDetector(cfg, tpattern.WithLogger(s.logger))
	if err != nil {
		return nil, toStatus(err)
	}
	result, err := detector.DetectContext(ctx, periods)
	if err != nil {
		return nil, toStatus(err)
	}

	run := result.Run(cfg)
	if s.store != nil {
		if err := s.store.SaveRun(ctx, run); err != nil {
			s.logger.Error("failed to save run", zap.String("run_id", string(run.ID)), zap.Error(err))
			return nil, status.Error(codes.Unavailable, "failed to save run")
		}
	}

	s.logger.Info("detection served",
		zap.String("run_id", string(run.ID)),
		zap.Int("periods", run.PeriodCount),
		zap.Int("events", run.EventCount),
		zap.Int("patterns", len(run.Patterns)),
		zap.Int("rounds", run.Rounds),
	)

	resp, err := encodeDetectResponse(run)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}

// ListRuns returns the stored run summaries, newest first.
func (s *PatternService) ListRuns(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.store == nil {
		return nil, status.Error(codes.Unavailable, "no result store configured")
	}
	runs, err := s.store.ListRuns(ctx)
	if err != nil {
		s.logger.Error("failed to list runs", zap.Error(err))
		return nil, status.Error(codes.Unavailable, "failed to list runs")
	}
	resp, err := encodeRuns(runs)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}
