package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var (
	ErrRPCRequestFailed = errors.New("RPC request failed")
	ErrInvalidAmount    = errors.New("amount is not a base-10 integer")
)

// DefaultCallTimeout bounds a single call when the caller's context has no deadline.
const DefaultCallTimeout = 15 * time.Second

// Client is a liquidity.Source backed by a remote adapter.
type Client struct {
	conn        grpc.ClientConnInterface
	closer      func() error
	callTimeout time.Duration
}

// Dial connects to target with plaintext transport credentials unless opts override them.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	if target == "" {
		return nil, fmt.Errorf("liquidity endpoint cannot be empty")
	}
	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC client for %s: %w", target, err)
	}
	remoteLogger.Info().Str("target", target).Msg("Liquidity client created")
	return &Client{conn: conn, closer: conn.Close, callTimeout: DefaultCallTimeout}, nil
}

// NewClient wraps an existing connection; Close does not close it.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn, callTimeout: DefaultCallTimeout}
}

// Close releases the connection created by Dial.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	if _, ok := ctx.Deadline(); !ok && c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}
	if err := c.conn.Invoke(ctx, fullMethod(method), req, resp, grpc.CallContentSubtype(codecName)); err != nil {
		return fmt.Errorf("%s: %w: %w", method, ErrRPCRequestFailed, err)
	}
	return nil
}

func (c *Client) amountCall(ctx context.Context, method string, req any) (sdkmath.Int, error) {
	var resp AmountResponse
	if err := c.invoke(ctx, method, req, &resp); err != nil {
		return sdkmath.ZeroInt(), err
	}
	amount, ok := sdkmath.NewIntFromString(resp.Amount)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%s returned %q: %w", method, resp.Amount, ErrInvalidAmount)
	}
	return amount, nil
}

func (c *Client) DeployCapital(ctx context.Context, amount sdkmath.Int) error {
	return c.invoke(ctx, methodDeploy, &AmountRequest{Amount: amount.String()}, &Empty{})
}

func (c *Client) WithdrawCapital(ctx context.Context, amount sdkmath.Int) (sdkmath.Int, error) {
	return c.amountCall(ctx, methodWithdraw, &AmountRequest{Amount: amount.String()})
}

func (c *Client) ClaimRewards(ctx context.Context) (sdkmath.Int, error) {
	return c.amountCall(ctx, methodClaim, &Empty{})
}

func (c *Client) PendingRewards(ctx context.Context) (sdkmath.Int, error) {
	return c.amountCall(ctx, methodPending, &Empty{})
}

func (c *Client) ManagedBalance(ctx context.Context) (sdkmath.Int, error) {
	return c.amountCall(ctx, methodBalance, &Empty{})
}
