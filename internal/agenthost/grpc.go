// Package agenthost provides the gRPC client for the external agent
// runtime.
package agenthost

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lexdraft/lexdraft/internal/agentbind"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
)

// runMethod is the full method name of the agent runtime's run RPC.
// Request and response are google.protobuf.Struct: the request carries
// {"message": <text>}, the response is {"text": ..., "toolCalls": [...]}.
const runMethod = "/lexdraft.agenthost.v1.AgentHost/Run"

// Config holds connection settings for the agent host client.
type Config struct {
	Address        string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// DefaultConfig returns the default connection settings.
func DefaultConfig(addr string) Config {
	return Config{
		Address:        addr,
		ConnectTimeout: 5 * time.Second,
		RequestTimeout: 300 * time.Second,
	}
}

// Client is an agentbind.Agent backed by a gRPC connection.
type Client struct {
	conn   *grpc.ClientConn
	cfg    Config
	logger *slog.Logger
}

var _ agentbind.Agent = (*Client)(nil)

// New dials the agent host. Connection establishment is lazy; a bad
// endpoint surfaces on the first run.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := grpc.NewClient(cfg.Address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    2 * time.Minute,
			Timeout: 10 * time.Second,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to agent host at %s: %w", cfg.Address, err)
	}

	logger.Info("Agent host client created", "address", cfg.Address)
	return &Client{conn: conn, cfg: cfg, logger: logger}, nil
}

// Run executes one agent turn.
func (c *Client) Run(ctx context.Context, message string) (*agentbind.Result, error) {
	req, err := structpb.NewStruct(map[string]any{"message": message})
	if err != nil {
		return nil, fmt.Errorf("encode agent message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, runMethod, req, resp); err != nil {
		return nil, fmt.Errorf("agent run failed: %w", err)
	}

	// Round-trip through JSON to decode the loose Struct into the typed
	// result shape.
	data, err := json.Marshal(resp.AsMap())
	if err != nil {
		return nil, fmt.Errorf("decode agent result: %w", err)
	}
	var result agentbind.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode agent result: %w", err)
	}
	return &result, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Warn("failed to close gRPC connection", "error", err)
		}
	}
}
