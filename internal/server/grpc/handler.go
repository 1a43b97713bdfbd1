package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/callshield/internal/common"
	"github.com/dmitrijs2005/callshield/internal/compress"
	"github.com/dmitrijs2005/callshield/internal/domain"
	"github.com/dmitrijs2005/callshield/internal/logging"
	pb "github.com/dmitrijs2005/callshield/internal/proto"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func (s *GRPCServer) Ping(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String(pb.PingOK), nil
}

func (s *GRPCServer) Transmit(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	var b domain.Batch
	if err := compress.DecodeJSON(s.codec, req.GetValue(), &b); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	result, err := s.service.ApplyBatch(ctx, &b, req.GetValue())
	if err != nil {
		return nil, s.mapError(ctx, err)
	}
	return s.encode(result)
}

func (s *GRPCServer) FetchReputation(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	d, err := s.service.FetchReputation(ctx, req.GetValue())
	if err != nil {
		return nil, s.mapError(ctx, err)
	}
	return s.encode(d)
}

func (s *GRPCServer) PushReputation(ctx context.Context, req *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	var d domain.ReputationData
	if err := compress.DecodeJSON(s.codec, req.GetValue(), &d); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if _, err := s.service.PushReputation(ctx, d); err != nil {
		return nil, s.mapError(ctx, err)
	}
	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) FetchCommunity(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	e, err := s.service.FetchCommunity(ctx, req.GetValue())
	if err != nil {
		return nil, s.mapError(ctx, err)
	}
	return s.encode(e)
}

func (s *GRPCServer) encode(v any) (*wrapperspb.BytesValue, error) {
	out, err := compress.EncodeJSON(s.codec, v)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return wrapperspb.Bytes(out), nil
}

// mapError converts service errors into gRPC statuses. Internal details are
// logged, not returned.
func (s *GRPCServer) mapError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrCompression):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	logging.FromContext(ctx, s.logger).Error(ctx, "request failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}
