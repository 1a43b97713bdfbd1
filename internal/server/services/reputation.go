// Package services contains server-side business logic. This file implements
// ReputationService, which folds transmitted batches into community
// aggregates and shared reputation rows.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/callshield/internal/common"
	"github.com/dmitrijs2005/callshield/internal/dbx"
	"github.com/dmitrijs2005/callshield/internal/domain"
	"github.com/dmitrijs2005/callshield/internal/logging"
	"github.com/dmitrijs2005/callshield/internal/server/archive"
	"github.com/dmitrijs2005/callshield/internal/server/models"
	"github.com/dmitrijs2005/callshield/internal/server/repositories/community"
	"github.com/dmitrijs2005/callshield/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/callshield/internal/server/repositories/reputation"
)

// ReputationService applies device batches and answers lookups.
//
// Events are deduplicated by id, so a batch replayed after a lost reply
// changes nothing. Reputation rows are combined with
// domain.MergeReputationData, stored row first.
type ReputationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	archive     archive.Archiver
	logger      logging.Logger
	now         func() time.Time
}

// NewReputationService constructs the service. archive may be nil.
func NewReputationService(db *sql.DB, m repomanager.RepositoryManager, a archive.Archiver, l logging.Logger) *ReputationService {
	return &ReputationService{
		db:          db,
		repomanager: m,
		archive:     a,
		logger:      l,
		now:         time.Now,
	}
}

// ApplyBatch stores everything in b inside one transaction. raw is the
// payload as received and is only used for archiving.
func (s *ReputationService) ApplyBatch(ctx context.Context, b *domain.Batch, raw []byte) (*domain.BatchResult, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: empty batch", common.ErrValidation)
	}

	log := logging.FromContext(ctx, s.logger)
	now := s.now().UTC()
	result, err := dbx.InTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) (*domain.BatchResult, error) {
		res := &domain.BatchResult{}
		cr := s.repomanager.Community(tx)
		rr := s.repomanager.Reputation(tx)

		for _, e := range b.Events {
			if e.ID == "" || e.PhoneHash == "" {
				log.Warn(ctx, "skipping malformed event", "id", e.ID, "type", e.Type)
				continue
			}
			if err := s.applyEvent(ctx, cr, e, now); err != nil {
				return nil, err
			}
			res.Accepted++
		}

		for _, incoming := range b.Reputations {
			if incoming.PhoneHash == "" {
				log.Warn(ctx, "skipping reputation without hash")
				continue
			}
			merged, err := s.mergeReputation(ctx, rr, incoming, now)
			if err != nil {
				return nil, err
			}
			res.Reputations = append(res.Reputations, merged)
		}

		// Erase runs last so a request to forget a number wins over
		// anything else in the same batch.
		for _, hash := range b.Erase {
			if err := s.erase(ctx, cr, rr, hash); err != nil {
				return nil, err
			}
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}

	log.Info(ctx, "batch applied",
		"events", len(b.Events), "accepted", result.Accepted,
		"reputations", len(result.Reputations), "erased", len(b.Erase))

	if s.archive != nil && len(raw) > 0 {
		if key, err := s.archive.Store(ctx, raw); err != nil {
			log.Error(ctx, "archive batch failed", "error", err)
		} else {
			log.Debug(ctx, "batch archived", "key", key)
		}
	}
	return result, nil
}

func (s *ReputationService) applyEvent(ctx context.Context, cr community.Repository, e domain.ReputationEvent, now time.Time) error {
	inserted, err := cr.InsertEvent(ctx, &models.ContributedEvent{
		ID:         e.ID,
		PhoneHash:  e.PhoneHash,
		Type:       e.Type,
		OccurredAt: e.Timestamp,
	})
	if err != nil {
		return err
	}
	if !inserted {
		logging.FromContext(ctx, s.logger).Debug(ctx, "duplicate event", "id", e.ID)
		return nil
	}

	delta, ok := models.DeltaFor(e)
	if !ok {
		return nil
	}
	return cr.Apply(ctx, e.PhoneHash, delta, now)
}

func (s *ReputationService) mergeReputation(ctx context.Context, rr reputation.Repository, incoming domain.ReputationData, now time.Time) (domain.ReputationData, error) {
	merged := incoming
	stored, err := rr.GetForUpdate(ctx, incoming.PhoneHash)
	switch {
	case err == nil:
		merged = domain.MergeReputationData(*stored, incoming)
	case errors.Is(err, common.ErrorNotFound):
	default:
		return domain.ReputationData{}, err
	}

	if err := rr.Upsert(ctx, &merged, now); err != nil {
		return domain.ReputationData{}, err
	}
	return merged, nil
}

func (s *ReputationService) erase(ctx context.Context, cr community.Repository, rr reputation.Repository, hash string) error {
	if hash == "" {
		return nil
	}
	if err := cr.Delete(ctx, hash); err != nil {
		return err
	}
	return rr.Delete(ctx, hash)
}

// FetchReputation returns the shared row for hash or common.ErrorNotFound.
func (s *ReputationService) FetchReputation(ctx context.Context, hash string) (*domain.ReputationData, error) {
	if hash == "" {
		return nil, fmt.Errorf("%w: empty hash", common.ErrValidation)
	}
	return s.repomanager.Reputation(s.db).Get(ctx, hash)
}

// PushReputation merges d into the shared row and returns the stored result.
func (s *ReputationService) PushReputation(ctx context.Context, d domain.ReputationData) (*domain.ReputationData, error) {
	if d.PhoneHash == "" {
		return nil, fmt.Errorf("%w: empty hash", common.ErrValidation)
	}
	now := s.now().UTC()
	return dbx.InTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) (*domain.ReputationData, error) {
		merged, err := s.mergeReputation(ctx, s.repomanager.Reputation(tx), d, now)
		if err != nil {
			return nil, err
		}
		return &merged, nil
	})
}

// FetchCommunity returns the aggregate for hash or common.ErrorNotFound when
// nobody contributed anything yet.
func (s *ReputationService) FetchCommunity(ctx context.Context, hash string) (*domain.CommunityDataEntry, error) {
	if hash == "" {
		return nil, fmt.Errorf("%w: empty hash", common.ErrValidation)
	}
	st, err := s.repomanager.Community(s.db).Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	e := st.ToEntry()
	return &e, nil
}
