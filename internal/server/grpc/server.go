package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/callshield/internal/compress"
	"github.com/dmitrijs2005/callshield/internal/domain"
	"github.com/dmitrijs2005/callshield/internal/logging"
	pb "github.com/dmitrijs2005/callshield/internal/proto"
	"google.golang.org/grpc"
)

// ReputationService is the business layer behind the RPC handlers.
type ReputationService interface {
	ApplyBatch(ctx context.Context, b *domain.Batch, raw []byte) (*domain.BatchResult, error)
	FetchReputation(ctx context.Context, hash string) (*domain.ReputationData, error)
	PushReputation(ctx context.Context, d domain.ReputationData) (*domain.ReputationData, error)
	FetchCommunity(ctx context.Context, hash string) (*domain.CommunityDataEntry, error)
}

type GRPCServer struct {
	pb.UnimplementedReputationServiceServer
	address string
	service ReputationService
	codec   compress.Compressor
	logger  logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, svc ReputationService, codec compress.Compressor) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		service: svc,
		codec:   codec,
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled, then stops
// gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))
	pb.RegisterReputationServiceServer(srv, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}
