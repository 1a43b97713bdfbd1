package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/callshield/internal/client/models"
	"github.com/dmitrijs2005/callshield/internal/client/repositories/kv"
	"github.com/dmitrijs2005/callshield/internal/common"
)

// Records persists one ReputationRecord per normalized number plus a
// hash → number index used when server data arrives keyed by hash.
type Records struct {
	repo  kv.Repository
	locks *keyLock
}

func NewRecords(repo kv.Repository) *Records {
	return &Records{repo: repo, locks: newKeyLock()}
}

// Get returns the record for number or an error wrapping common.ErrorNotFound.
func (r *Records) Get(ctx context.Context, number string) (*models.ReputationRecord, error) {
	var rec models.ReputationRecord
	if err := getJSON(ctx, r.repo, StoreRecords, number, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindByHash resolves a phone hash to the local record.
func (r *Records) FindByHash(ctx context.Context, hash string) (*models.ReputationRecord, error) {
	number, err := r.repo.Get(ctx, StorePhoneIndex, hash)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, string(number))
}

// UpdateFunc receives the current record (nil when none exists) and returns
// the record to store. Returning a nil record skips the write.
type UpdateFunc func(cur *models.ReputationRecord) (*models.ReputationRecord, error)

// Update runs a read-modify-write for number while holding that number's
// lock, so concurrent updates of the same number never lose writes.
func (r *Records) Update(ctx context.Context, number string, fn UpdateFunc) (*models.ReputationRecord, error) {
	unlock := r.locks.Lock(number)
	defer unlock()

	cur, err := r.Get(ctx, number)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	next, err := fn(cur)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return cur, nil
	}
	if next.PhoneNumber != number {
		return nil, fmt.Errorf("%w: record key %q does not match %q", common.ErrorInternal, next.PhoneNumber, number)
	}

	if err := setJSON(ctx, r.repo, StoreRecords, number, next); err != nil {
		return nil, err
	}
	if next.PhoneHash != "" {
		if err := r.repo.Set(ctx, StorePhoneIndex, next.PhoneHash, []byte(number)); err != nil {
			return nil, err
		}
	}
	return next, nil
}

// Delete removes the record and its index entry.
func (r *Records) Delete(ctx context.Context, number string) error {
	unlock := r.locks.Lock(number)
	defer unlock()

	rec, err := r.Get(ctx, number)
	if errors.Is(err, common.ErrorNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if rec.PhoneHash != "" {
		if err := r.repo.Remove(ctx, StorePhoneIndex, rec.PhoneHash); err != nil {
			return err
		}
	}
	return r.repo.Remove(ctx, StoreRecords, number)
}

// All returns every stored record. Undecodable rows are skipped.
func (r *Records) All(ctx context.Context) ([]*models.ReputationRecord, error) {
	raw, err := r.repo.GetAll(ctx, StoreRecords)
	if err != nil {
		return nil, err
	}
	out := make([]*models.ReputationRecord, 0, len(raw))
	for _, b := range raw {
		var rec models.ReputationRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			continue
		}
		out = append(out, &rec)
	}
	return out, nil
}

// Clear drops every record and the hash index.
func (r *Records) Clear(ctx context.Context) error {
	if err := r.repo.Clear(ctx, StorePhoneIndex); err != nil {
		return err
	}
	return r.repo.Clear(ctx, StoreRecords)
}
