// Package toolhost provides the gRPC client for the external tool host.
package toolhost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lexdraft/lexdraft/internal/toolcall"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// callMethod is the full method name of the tool host's generic call RPC.
// Request and response are google.protobuf.Struct: the request carries
// {"tool": <name>, "params": {...}}, the response is the tool result.
const callMethod = "/lexdraft.toolhost.v1.ToolHost/Call"

// healthService is the service name the host registers with the standard
// gRPC health service.
const healthService = "lexdraft.toolhost.v1.ToolHost"

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
)

// Config holds connection settings for the tool host client.
type Config struct {
	Address          string
	ConnectTimeout   time.Duration
	RequestTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
}

// DefaultConfig returns the default connection settings.
func DefaultConfig(addr string) Config {
	return Config{
		Address:          addr,
		ConnectTimeout:   5 * time.Second,
		RequestTimeout:   120 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// Client is a toolcall.Host backed by a gRPC connection.
type Client struct {
	conn   *grpc.ClientConn
	health healthpb.HealthClient
	cfg    Config
	logger *slog.Logger
}

var _ toolcall.Host = (*Client)(nil)

// New dials the tool host and fails fast if it is not reachable within the
// connect timeout.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}

	// Build client connection (no network I/O yet).
	conn, err := grpc.NewClient(cfg.Address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to tool host at %s: %w", cfg.Address, err)
	}

	// Force a connection attempt during startup so bad endpoints surface
	// immediately rather than on the first tool call.
	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("tool host at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to tool host", "address", cfg.Address)

	return &Client{
		conn:   conn,
		health: healthpb.NewHealthClient(conn),
		cfg:    cfg,
		logger: logger,
	}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Call invokes one tool on the host. A NotFound status maps to
// toolcall.ErrToolNotFound so the wrapper skips retries.
func (c *Client) Call(ctx context.Context, tool string, params map[string]any) (map[string]any, error) {
	if params == nil {
		params = map[string]any{}
	}
	req, err := structpb.NewStruct(map[string]any{
		"tool":   tool,
		"params": params,
	})
	if err != nil {
		return nil, fmt.Errorf("encode params for tool %s: %w", tool, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, callMethod, req, resp); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("tool %q: %w", tool, toolcall.ErrToolNotFound)
		}
		return nil, fmt.Errorf("tool %s call failed: %w", tool, err)
	}
	return resp.AsMap(), nil
}

// Probe checks the host's health service.
func (c *Client) Probe(ctx context.Context) error {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: healthService})
	if err != nil {
		return fmt.Errorf("tool host health check failed: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("tool host not serving: %s", resp.GetStatus())
	}
	return nil
}

// Close closes the gRPC connection.
func (c *Client) Close() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Warn("failed to close gRPC connection", "error", err)
		}
	}
}
