package remote

import (
	"context"
	"errors"

	sdkmath "cosmossdk.io/math"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/elys-network/autocompounder/internal/liquidity"
	"github.com/elys-network/autocompounder/internal/logger"
)

var remoteLogger = logger.GetForComponent("liquidity_remote")

type server struct {
	source liquidity.Source
}

// Register serves source on s under ServiceName.
func Register(s grpc.ServiceRegistrar, source liquidity.Source) {
	s.RegisterService(&serviceDesc, &server{source: source})
}

func (s *server) Deploy(ctx context.Context, req *AmountRequest) (*Empty, error) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.source.DeployCapital(ctx, amount); err != nil {
		return nil, toStatus(methodDeploy, err)
	}
	return &Empty{}, nil
}

func (s *server) Withdraw(ctx context.Context, req *AmountRequest) (*AmountResponse, error) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	got, err := s.source.WithdrawCapital(ctx, amount)
	if err != nil {
		return nil, toStatus(methodWithdraw, err)
	}
	return &AmountResponse{Amount: got.String()}, nil
}

func (s *server) Claim(ctx context.Context, _ *Empty) (*AmountResponse, error) {
	got, err := s.source.ClaimRewards(ctx)
	if err != nil {
		return nil, toStatus(methodClaim, err)
	}
	return &AmountResponse{Amount: got.String()}, nil
}

func (s *server) Pending(ctx context.Context, _ *Empty) (*AmountResponse, error) {
	got, err := s.source.PendingRewards(ctx)
	if err != nil {
		return nil, toStatus(methodPending, err)
	}
	return &AmountResponse{Amount: got.String()}, nil
}

func (s *server) Balance(ctx context.Context, _ *Empty) (*AmountResponse, error) {
	got, err := s.source.ManagedBalance(ctx)
	if err != nil {
		return nil, toStatus(methodBalance, err)
	}
	return &AmountResponse{Amount: got.String()}, nil
}

func toStatus(method string, err error) error {
	remoteLogger.Warn().Err(err).Str("method", method).Msg("Liquidity source call failed")
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, liquidity.ErrNegativeAmount):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func parseAmount(raw string) (sdkmath.Int, error) {
	amount, ok := sdkmath.NewIntFromString(raw)
	if !ok {
		return sdkmath.Int{}, ErrInvalidAmount
	}
	if amount.IsNegative() {
		return sdkmath.Int{}, liquidity.ErrNegativeAmount
	}
	return amount, nil
}
