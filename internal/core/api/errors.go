package api

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/solatis/tpattern/internal/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Validation errors map to INVALID_ARGUMENT.
// Round caps map to RESOURCE_EXHAUSTED.
// Context timeouts map to DEADLINE_EXCEEDED.
// Store errors are mapped inline in handlers to UNAVAILABLE.
var invalidArgument = []error{
	types.ErrInvalidConfig,
	types.ErrInvalidTimestamps,
	types.ErrUnknownEventType,
	types.ErrEmptyLabel,
	types.ErrInvalidLabel,
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, types.ErrRoundLimitExceeded):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	for _, target := range invalidArgument {
		if errors.Is(err, target) {
			return status.Error(codes.InvalidArgument, err.Error())
		}
	}
	return status.Error(codes.Internal, err.Error())
}
