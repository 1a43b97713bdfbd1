package client

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/callshield/internal/buildinfo"
	"github.com/dmitrijs2005/callshield/internal/common"
	"github.com/dmitrijs2005/callshield/internal/compress"
	"github.com/dmitrijs2005/callshield/internal/domain"
	pb "github.com/dmitrijs2005/callshield/internal/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const bufSize = 1 << 20

type fakeServer struct {
	pb.UnimplementedReputationServiceServer
	codec compress.Compressor

	pingStatus   string
	lastVersion  atomic.Value
	transmitErr  error
	fetchCalls   atomic.Int32
	fetchFailFor int32
	pushed       chan domain.ReputationData
}

func (f *fakeServer) Ping(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(common.ClientVersionHeaderName); len(v) > 0 {
			f.lastVersion.Store(v[0])
		}
	}
	return wrapperspb.String(f.pingStatus), nil
}

func (f *fakeServer) Transmit(_ context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	if f.transmitErr != nil {
		return nil, f.transmitErr
	}
	var b domain.Batch
	if err := compress.DecodeJSON(f.codec, in.GetValue(), &b); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	out, err := compress.EncodeJSON(f.codec, domain.BatchResult{Accepted: len(b.Events)})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return wrapperspb.Bytes(out), nil
}

func (f *fakeServer) FetchReputation(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	if in.GetValue() == "missing" {
		return nil, status.Error(codes.NotFound, "no reputation")
	}
	out, _ := compress.EncodeJSON(f.codec, domain.ReputationData{PhoneHash: in.GetValue(), ReportCount: 5, Category: domain.CategoryScam})
	return wrapperspb.Bytes(out), nil
}

func (f *fakeServer) PushReputation(_ context.Context, in *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	var d domain.ReputationData
	if err := compress.DecodeJSON(f.codec, in.GetValue(), &d); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	f.pushed <- d
	return &emptypb.Empty{}, nil
}

func (f *fakeServer) FetchCommunity(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	n := f.fetchCalls.Add(1)
	if n <= f.fetchFailFor {
		return nil, status.Error(codes.Unavailable, "warming up")
	}
	out, _ := compress.EncodeJSON(f.codec, domain.CommunityDataEntry{PhoneHash: in.GetValue(), BlockCount: 7})
	return wrapperspb.Bytes(out), nil
}

func startBufGRPC(t *testing.T, f *fakeServer) *GRPCClient {
	t.Helper()

	lis := bufconn.Listen(bufSize)
	srv := grpc.NewServer()
	pb.RegisterReputationServiceServer(srv, f)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := NewGRPCClient("passthrough:///bufnet", f.codec, 2*time.Second,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func newFake(t *testing.T) *fakeServer {
	z, err := compress.NewZstd()
	require.NoError(t, err)
	t.Cleanup(z.Close)
	return &fakeServer{codec: z, pingStatus: pb.PingOK, pushed: make(chan domain.ReputationData, 1)}
}

func TestGRPCClient_PingSendsVersion(t *testing.T) {
	old := buildinfo.Version
	t.Cleanup(func() { buildinfo.Version = old })
	buildinfo.Version = "v0.3.1"

	f := newFake(t)
	c := startBufGRPC(t, f)

	require.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, "v0.3.1", f.lastVersion.Load())
}

func TestGRPCClient_PingBadStatus(t *testing.T) {
	f := newFake(t)
	f.pingStatus = "DRAINING"
	c := startBufGRPC(t, f)

	require.ErrorIs(t, c.Ping(context.Background()), common.ErrServer)
}

func TestGRPCClient_Transmit(t *testing.T) {
	f := newFake(t)
	c := startBufGRPC(t, f)

	payload, err := compress.EncodeJSON(f.codec, domain.Batch{Events: []domain.ReputationEvent{
		{ID: "1", Type: domain.EventBlock, Details: domain.BlockDetails{}},
		{ID: "2", Type: domain.EventAllow, Details: domain.AllowDetails{}},
	}})
	require.NoError(t, err)

	out, err := c.Transmit(context.Background(), payload)
	require.NoError(t, err)

	var res domain.BatchResult
	require.NoError(t, compress.DecodeJSON(f.codec, out, &res))
	assert.Equal(t, 2, res.Accepted)
}

func TestGRPCClient_TransmitErrorsAreMapped(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unavailable", status.Error(codes.Unavailable, "down"), common.ErrNetwork},
		{"internal", status.Error(codes.Internal, "boom"), common.ErrServer},
		{"invalid", status.Error(codes.InvalidArgument, "bad batch"), common.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFake(t)
			f.transmitErr = tt.err
			c := startBufGRPC(t, f)

			_, err := c.Transmit(context.Background(), []byte{})
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGRPCClient_FetchReputation(t *testing.T) {
	f := newFake(t)
	c := startBufGRPC(t, f)

	d, err := c.FetchReputation(context.Background(), "5550-x-30")
	require.NoError(t, err)
	assert.Equal(t, "5550-x-30", d.PhoneHash)
	assert.Equal(t, 5, d.ReportCount)

	_, err = c.FetchReputation(context.Background(), "missing")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGRPCClient_FetchCommunityRetriesTransientFailures(t *testing.T) {
	f := newFake(t)
	f.fetchFailFor = fetchRetries
	c := startBufGRPC(t, f)

	e, err := c.FetchCommunity(context.Background(), "h")
	require.NoError(t, err)
	assert.Equal(t, 7, e.BlockCount)
	assert.Equal(t, int32(fetchRetries+1), f.fetchCalls.Load())
}

func TestGRPCClient_FetchCommunityGivesUp(t *testing.T) {
	f := newFake(t)
	f.fetchFailFor = 100
	c := startBufGRPC(t, f)

	_, err := c.FetchCommunity(context.Background(), "h")
	require.ErrorIs(t, err, common.ErrNetwork)
	assert.Equal(t, int32(fetchRetries+1), f.fetchCalls.Load())
}

func TestGRPCClient_PushReputation(t *testing.T) {
	f := newFake(t)
	c := startBufGRPC(t, f)

	require.NoError(t, c.PushReputation(context.Background(), domain.ReputationData{PhoneHash: "h", BlockCount: 2}))
	got := <-f.pushed
	assert.Equal(t, 2, got.BlockCount)
}

func TestGRPCClient_mapError(t *testing.T) {
	c := &GRPCClient{}
	require.NoError(t, c.mapError(nil))
	require.ErrorIs(t, c.mapError(context.DeadlineExceeded), common.ErrNetwork)
	require.ErrorIs(t, c.mapError(status.Error(codes.DeadlineExceeded, "slow")), common.ErrNetwork)
	require.ErrorIs(t, c.mapError(status.Error(codes.NotFound, "none")), common.ErrorNotFound)
	require.ErrorIs(t, c.mapError(status.Error(codes.PermissionDenied, "no")), common.ErrServer)
}
