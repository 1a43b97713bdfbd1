package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/callshield/internal/buildinfo"
	"github.com/dmitrijs2005/callshield/internal/common"
	"github.com/dmitrijs2005/callshield/internal/compress"
	"github.com/dmitrijs2005/callshield/internal/domain"
	pb "github.com/dmitrijs2005/callshield/internal/proto"
	"github.com/sethvargo/go-retry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	defaultTimeout = 10 * time.Second
	fetchRetries   = 2
	fetchBackoff   = 200 * time.Millisecond
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      pb.ReputationServiceClient
	codec       compress.Compressor
	timeout     time.Duration
}

func withClientVersion(ctx context.Context) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.ClientVersionHeaderName, buildinfo.Version)
	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) versionInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	return invoker(withClientVersion(ctx), method, req, reply, cc, opts...)
}

// NewGRPCClient creates a lazily connecting client for endpointURL. Extra
// dial options are appended after the defaults (insecure transport, version
// header interceptor).
func NewGRPCClient(endpointURL string, codec compress.Compressor, timeout time.Duration, opts ...grpc.DialOption) (*GRPCClient, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &GRPCClient{endpointURL: endpointURL, codec: codec, timeout: timeout}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.versionInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = pb.NewReputationServiceClient(conn)
	return c, nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.Ping(ctx, &emptypb.Empty{})
	if err != nil {
		return s.mapError(err)
	}
	if resp.GetValue() != pb.PingOK {
		return fmt.Errorf("%w: ping status %q", common.ErrServer, resp.GetValue())
	}
	return nil
}

func (s *GRPCClient) Transmit(ctx context.Context, payload []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.Transmit(ctx, wrapperspb.Bytes(payload))
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.GetValue(), nil
}

func (s *GRPCClient) FetchReputation(ctx context.Context, hash string) (*domain.ReputationData, error) {
	var d domain.ReputationData
	if err := s.fetch(ctx, hash, s.client.FetchReputation, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *GRPCClient) FetchCommunity(ctx context.Context, hash string) (*domain.CommunityDataEntry, error) {
	var e domain.CommunityDataEntry
	if err := s.fetch(ctx, hash, s.client.FetchCommunity, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *GRPCClient) PushReputation(ctx context.Context, d domain.ReputationData) error {
	payload, err := compress.EncodeJSON(s.codec, d)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.client.PushReputation(ctx, wrapperspb.Bytes(payload)); err != nil {
		return s.mapError(err)
	}
	return nil
}

type fetchFunc func(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)

// fetch performs a lookup by hash, retrying transient network failures a
// couple of times before giving up.
func (s *GRPCClient) fetch(ctx context.Context, hash string, call fetchFunc, v any) error {
	var payload []byte
	backoff := retry.WithMaxRetries(fetchRetries, retry.NewConstant(fetchBackoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		resp, err := call(callCtx, wrapperspb.String(hash))
		if err != nil {
			mapped := s.mapError(err)
			if errors.Is(mapped, common.ErrNetwork) {
				return retry.RetryableError(mapped)
			}
			return mapped
		}
		payload = resp.GetValue()
		return nil
	})
	if err != nil {
		return err
	}
	return compress.DecodeJSON(s.codec, payload, v)
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", common.ErrNetwork, err)
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return fmt.Errorf("%w: %s", common.ErrNetwork, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%w: %s", common.ErrorNotFound, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", common.ErrValidation, st.Message())
	default:
		return fmt.Errorf("%w: rpc error: %v", common.ErrServer, err)
	}
}
