package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/callshield/internal/client/client"
	"github.com/dmitrijs2005/callshield/internal/common"
	"github.com/dmitrijs2005/callshield/internal/compress"
	"github.com/dmitrijs2005/callshield/internal/domain"
	"github.com/dmitrijs2005/callshield/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1 << 20

type fakeService struct {
	batches  []domain.Batch
	raw      [][]byte
	pushed   []domain.ReputationData
	rows     map[string]domain.ReputationData
	stats    map[string]domain.CommunityDataEntry
	applyErr error
}

func (f *fakeService) ApplyBatch(_ context.Context, b *domain.Batch, raw []byte) (*domain.BatchResult, error) {
	if f.applyErr != nil {
		return nil, f.applyErr
	}
	f.batches = append(f.batches, *b)
	f.raw = append(f.raw, raw)
	return &domain.BatchResult{Accepted: len(b.Events), Reputations: b.Reputations}, nil
}

func (f *fakeService) FetchReputation(_ context.Context, hash string) (*domain.ReputationData, error) {
	if hash == "" {
		return nil, fmt.Errorf("%w: empty hash", common.ErrValidation)
	}
	d, ok := f.rows[hash]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &d, nil
}

func (f *fakeService) PushReputation(_ context.Context, d domain.ReputationData) (*domain.ReputationData, error) {
	f.pushed = append(f.pushed, d)
	return &d, nil
}

func (f *fakeService) FetchCommunity(_ context.Context, hash string) (*domain.CommunityDataEntry, error) {
	e, ok := f.stats[hash]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &e, nil
}

func startBufServer(t *testing.T, svc ReputationService) (*client.GRPCClient, compress.Compressor) {
	t.Helper()
	codec, err := compress.NewZstd()
	require.NoError(t, err)
	t.Cleanup(codec.Close)

	lis := bufconn.Listen(bufSize)
	ctx, cancel := context.WithCancel(context.Background())
	srv := NewGRPCServer("bufnet", logging.NewNopLogger(), svc, codec)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, lis)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	c, err := client.NewGRPCClient("passthrough:///bufnet", codec, 2*time.Second,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, codec
}

func TestServer_Ping(t *testing.T) {
	c, _ := startBufServer(t, &fakeService{})
	require.NoError(t, c.Ping(context.Background()))
}

func TestServer_TransmitRoundTrip(t *testing.T) {
	svc := &fakeService{}
	c, codec := startBufServer(t, svc)

	payload, err := compress.EncodeJSON(codec, domain.Batch{
		Events:      []domain.ReputationEvent{{ID: "e1", PhoneHash: "h", Type: domain.EventBlock, Details: domain.BlockDetails{}}},
		Reputations: []domain.ReputationData{{PhoneHash: "h", BlockCount: 1}},
	})
	require.NoError(t, err)

	out, err := c.Transmit(context.Background(), payload)
	require.NoError(t, err)

	var res domain.BatchResult
	require.NoError(t, compress.DecodeJSON(codec, out, &res))
	assert.Equal(t, 1, res.Accepted)
	require.Len(t, res.Reputations, 1)
	assert.Equal(t, 1, res.Reputations[0].BlockCount)

	require.Len(t, svc.batches, 1)
	assert.Equal(t, "e1", svc.batches[0].Events[0].ID)
	assert.Equal(t, payload, svc.raw[0])
}

func TestServer_TransmitGarbageIsInvalidArgument(t *testing.T) {
	c, _ := startBufServer(t, &fakeService{})

	_, err := c.Transmit(context.Background(), []byte("not zstd"))
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestServer_TransmitStorageFailureIsInternal(t *testing.T) {
	c, codec := startBufServer(t, &fakeService{applyErr: errors.New("db error: down")})

	payload, err := compress.EncodeJSON(codec, domain.Batch{})
	require.NoError(t, err)

	_, err = c.Transmit(context.Background(), payload)
	require.ErrorIs(t, err, common.ErrServer)
	assert.NotContains(t, err.Error(), "db error")
}

func TestServer_FetchReputation(t *testing.T) {
	svc := &fakeService{rows: map[string]domain.ReputationData{
		"h": {PhoneHash: "h", ReportCount: 5, Category: domain.CategoryScam},
	}}
	c, _ := startBufServer(t, svc)

	got, err := c.FetchReputation(context.Background(), "h")
	require.NoError(t, err)
	assert.Equal(t, 5, got.ReportCount)
	assert.Equal(t, domain.CategoryScam, got.Category)

	_, err = c.FetchReputation(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = c.FetchReputation(context.Background(), "")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestServer_PushReputation(t *testing.T) {
	svc := &fakeService{}
	c, _ := startBufServer(t, svc)

	require.NoError(t, c.PushReputation(context.Background(), domain.ReputationData{PhoneHash: "h", ApproveCount: 2}))
	require.Len(t, svc.pushed, 1)
	assert.Equal(t, 2, svc.pushed[0].ApproveCount)
}

func TestServer_FetchCommunity(t *testing.T) {
	svc := &fakeService{stats: map[string]domain.CommunityDataEntry{
		"h": {PhoneHash: "h", BlockCount: 50, ReportCount: 20, Categories: []domain.Category{domain.CategorySpam}},
	}}
	c, _ := startBufServer(t, svc)

	got, err := c.FetchCommunity(context.Background(), "h")
	require.NoError(t, err)
	assert.Equal(t, 50, got.BlockCount)
	assert.Equal(t, []domain.Category{domain.CategorySpam}, got.Categories)

	_, err = c.FetchCommunity(context.Background(), "nobody")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:0", logging.NewNopLogger(), &fakeService{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", logging.NewNopLogger(), &fakeService{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Run(ctx); err == nil {
		t.Fatal("expected error from Run on bad address, got nil")
	}
}
