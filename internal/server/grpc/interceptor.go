package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/callshield/internal/common"
	"github.com/dmitrijs2005/callshield/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func clientVersion(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.ClientVersionHeaderName); len(values) > 0 {
			return values[0]
		}
	}
	return "unknown"
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	l := s.logger.With("method", info.FullMethod, "client_version", clientVersion(ctx))
	resp, err := handler(logging.NewContext(ctx, l), req)

	args := []any{
		"code", status.Code(err).String(),
		"duration", time.Since(start),
	}
	if err != nil {
		l.Warn(ctx, "rpc failed", append(args, "error", err)...)
	} else {
		l.Debug(ctx, "rpc", args...)
	}
	return resp, err
}
