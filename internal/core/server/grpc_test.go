package server

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/solatis/tpattern/internal/core/api"
	"github.com/solatis/tpattern/internal/core/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// startServer serves the pattern service on a loopback port and returns a
// connected client.
func startServer(t *testing.T) (*GRPCServer, *grpc.ClientConn) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	cfg := config.Default()

	service, err := api.NewPatternService(cfg, nil, logger)
	require.NoError(t, err)
	srv, err := NewGRPCServer(cfg.Server, service, logger)
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- srv.Serve(listener) }()

	conn, err := grpc.NewClient(listener.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, srv.Shutdown(ctx))
		assert.NoError(t, <-served)
	})
	return srv, conn
}

func openClose(t *testing.T, n int) *structpb.Struct {
	t.Helper()
	periods := make([]any, n)
	for k := range periods {
		periods[k] = map[string]any{
			"id": fmt.Sprintf("p%d", k),
			"events": []any{
				map[string]any{"type": "open", "first": "0"},
				map[string]any{"type": "close", "first": "2"},
			},
		}
	}
	req, err := structpb.NewStruct(map[string]any{"periods": periods})
	require.NoError(t, err)
	return req
}

func TestNewGRPCServer_Validation(t *testing.T) {
	cfg := config.DefaultServerConfig()
	service, err := api.NewPatternService(config.Default(), nil, nil)
	require.NoError(t, err)

	_, err = NewGRPCServer(cfg, nil, nil)
	assert.Error(t, err)

	cfg.Port = 0
	_, err = NewGRPCServer(cfg, service, nil)
	assert.Error(t, err)
}

func TestGRPCServer_Detect(t *testing.T) {
	_, conn := startServer(t)
	client := api.NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := client.Detect(ctx, openClose(t, 10))
	require.NoError(t, err)

	patterns := resp.AsMap()["patterns"].([]any)
	require.Len(t, patterns, 1)
	assert.Equal(t, "(open close)", patterns[0].(map[string]any)["signature"])
}

func TestGRPCServer_DetectInvalid(t *testing.T) {
	_, conn := startServer(t)
	client := api.NewClient(conn)

	req, err := structpb.NewStruct(map[string]any{"periods": "none"})
	require.NoError(t, err)

	_, err = client.Detect(context.Background(), req)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCServer_ListRunsWithoutStore(t *testing.T) {
	_, conn := startServer(t)

	_, err := api.NewClient(conn).ListRuns(context.Background(), nil)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestGRPCServer_Health(t *testing.T) {
	_, conn := startServer(t)
	health := grpc_health_v1.NewHealthClient(conn)

	for _, service := range []string{"", api.ServiceName} {
		resp, err := health.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: service})
		require.NoError(t, err, service)
		assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status, service)
	}
}

func TestLoggingInterceptor(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	interceptor := loggingInterceptor(zap.New(core))
	info := &grpc.UnaryServerInfo{FullMethod: api.DetectMethod}

	_, err := interceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)

	_, err = interceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return nil, status.Error(codes.InvalidArgument, "bad")
	})
	require.Error(t, err)

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "OK", entries[0].ContextMap()["code"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "InvalidArgument", entries[1].ContextMap()["code"])
	assert.Equal(t, api.DetectMethod, entries[1].ContextMap()["method"])
}

func TestTimeoutInterceptor(t *testing.T) {
	interceptor := timeoutInterceptor(time.Minute)
	info := &grpc.UnaryServerInfo{FullMethod: api.DetectMethod}

	deadlineOf := func(ctx context.Context) time.Time {
		var got time.Time
		_, err := interceptor(ctx, nil, info, func(ctx context.Context, _ any) (any, error) {
			d, ok := ctx.Deadline()
			require.True(t, ok)
			got = d
			return nil, nil
		})
		require.NoError(t, err)
		return got
	}

	t.Run("applies server timeout", func(t *testing.T) {
		got := deadlineOf(context.Background())
		assert.WithinDuration(t, time.Now().Add(time.Minute), got, 5*time.Second)
	})

	t.Run("keeps earlier caller deadline", func(t *testing.T) {
		want := time.Now().Add(time.Second)
		ctx, cancel := context.WithDeadline(context.Background(), want)
		defer cancel()
		assert.True(t, want.Equal(deadlineOf(ctx)))
	})

	t.Run("caps later caller deadline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		defer cancel()
		got := deadlineOf(ctx)
		assert.WithinDuration(t, time.Now().Add(time.Minute), got, 5*time.Second)
	})
}
