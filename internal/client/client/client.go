package client

import (
	"context"

	"github.com/dmitrijs2005/callshield/internal/domain"
)

type Client interface {
	Ping(ctx context.Context) error
	// Transmit sends one compressed domain.Batch and returns the compressed
	// domain.BatchResult.
	Transmit(ctx context.Context, payload []byte) ([]byte, error)
	FetchReputation(ctx context.Context, hash string) (*domain.ReputationData, error)
	PushReputation(ctx context.Context, d domain.ReputationData) error
	FetchCommunity(ctx context.Context, hash string) (*domain.CommunityDataEntry, error)
	Close() error
}
