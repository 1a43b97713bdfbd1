// Package reputation is the client's entry point for recording what the user
// did with a number and for looking numbers up.
package reputation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/callshield/internal/client/models"
	"github.com/dmitrijs2005/callshield/internal/client/scoring"
	"github.com/dmitrijs2005/callshield/internal/client/storage"
	"github.com/dmitrijs2005/callshield/internal/common"
	"github.com/dmitrijs2005/callshield/internal/domain"
	"github.com/dmitrijs2005/callshield/internal/logging"
	"github.com/dmitrijs2005/callshield/internal/phone"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const contributeTimeout = 30 * time.Second

// CommunitySource fetches the community aggregate for a hash.
type CommunitySource interface {
	FetchCommunity(ctx context.Context, hash string) (*domain.CommunityDataEntry, error)
}

// Queuer accepts contributions and queue changes for the server.
type Queuer interface {
	QueueEvent(ctx context.Context, number string, d domain.EventDetails) bool
	QueueChange(ctx context.Context, item domain.SyncQueueItem) error
}

// SyncStatus reports the sync state shown in statistics.
type SyncStatus interface {
	PendingCount(ctx context.Context) (int, error)
	LastSync() time.Time
	Online() bool
}

type Manager struct {
	store     *storage.Store
	engine    *scoring.Engine
	hasher    phone.Hasher
	community CommunitySource

	queuer Queuer
	status SyncStatus

	now        func() time.Time
	ttl        domain.TTLPolicy
	prefs      models.Preferences
	deviceArea string
	logger     logging.Logger

	group singleflight.Group
	wg    sync.WaitGroup

	// held shared while an event is recorded and its contribution started,
	// exclusively while a purge runs
	purgeMu sync.RWMutex
}

type Option func(*Manager)

func WithQueuer(q Queuer) Option { return func(m *Manager) { m.queuer = q } }

func WithSyncStatus(s SyncStatus) Option { return func(m *Manager) { m.status = s } }

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func WithTTL(p domain.TTLPolicy) Option { return func(m *Manager) { m.ttl = p } }

func WithPreferences(p models.Preferences) Option { return func(m *Manager) { m.prefs = p } }

func WithDeviceAreaCode(code string) Option { return func(m *Manager) { m.deviceArea = code } }

func WithLogger(l logging.Logger) Option { return func(m *Manager) { m.logger = l } }

// New builds a Manager. community may be nil, in which case only cached
// community data is used.
func New(store *storage.Store, engine *scoring.Engine, hasher phone.Hasher, community CommunitySource, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		engine:    engine,
		hasher:    hasher,
		community: community,
		now:       time.Now,
		ttl:       domain.DefaultTTLPolicy,
		prefs:     models.DefaultPreferences,
		logger:    logging.NewNopLogger(),
	}
	for _, o := range opts {
		o(m)
	}
	m.logger = m.logger.With("module", "reputation")
	return m
}

// Close waits for background contributions to finish.
func (m *Manager) Close() {
	m.wg.Wait()
}

func (m *Manager) areaMatch(number string) bool {
	return m.deviceArea != "" && phone.AreaCode(number) == m.deviceArea
}

// RecordEvent applies a user action or call to the number's record, rescores
// it and persists the result. Blocks and reports are also contributed to the
// community in the background.
func (m *Manager) RecordEvent(ctx context.Context, number string, d domain.EventDetails) (*models.ReputationRecord, error) {
	normalized, err := phone.NormalizeValid(number)
	if err != nil {
		return nil, err
	}
	if r, ok := d.(domain.ReportDetails); ok && r.Category == "" {
		r.Category = domain.CategorySpam
		d = r
	}
	if err := domain.ValidateDetails(d); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	hash := m.hasher.Hash(normalized)
	community, err := m.GetCommunityData(ctx, hash, m.areaMatch(normalized), false)
	if err != nil {
		m.logger.Warn(ctx, "community data unavailable", "hash", hash, "error", err)
	}

	m.purgeMu.RLock()
	defer m.purgeMu.RUnlock()

	now := m.now()
	rec, err := m.store.Records.Update(ctx, normalized, func(cur *models.ReputationRecord) (*models.ReputationRecord, error) {
		if cur == nil {
			cur = models.NewRecord(normalized, hash, now)
		}
		cur.AppendEvent(domain.ReputationEvent{
			ID:        uuid.NewString(),
			Timestamp: now,
			PhoneHash: hash,
			Type:      d.EventType(),
			Details:   d,
		})
		applyPersonal(&cur.PersonalData, d, now)
		cur.ScoreResult = m.engine.ComputeScore(normalized, &cur.PersonalData, community)
		cur.Touch(now)
		return cur, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to update record: %v", common.ErrStorage, err)
	}

	m.logger.Debug(ctx, "event recorded", "type", d.EventType(), "hash", hash)

	if d.EventType().Contributed() && m.queuer != nil {
		m.contribute(ctx, normalized, d)
	}
	return rec, nil
}

func (m *Manager) contribute(ctx context.Context, number string, d domain.EventDetails) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), contributeTimeout)
		defer cancel()
		if !m.queuer.QueueEvent(ctx, number, d) {
			m.logger.Warn(ctx, "failed to contribute event", "type", d.EventType())
		}
	}()
}

func applyPersonal(p *models.PersonalData, d domain.EventDetails, now time.Time) {
	switch v := d.(type) {
	case domain.BlockDetails:
		p.Blocked = true
		p.Accepted = false
	case domain.UnblockDetails:
		p.Blocked = false
	case domain.AllowDetails:
		p.Accepted = true
		p.Blocked = false
	case domain.ReportDetails:
		p.Reports = append(p.Reports, models.Report{Category: v.Category, Severity: v.Severity, Timestamp: now})
	case domain.CallDetails:
		p.AddCall(models.CallRecord{Timestamp: now, Duration: v.Duration.Duration, Answered: v.Answered})
	}
}

// GetReputation scores number from local and community evidence. A number
// with no evidence at all yields an unscored result and nothing is stored.
func (m *Manager) GetReputation(ctx context.Context, number string, forceRefresh bool) (*models.Reputation, error) {
	normalized, err := phone.NormalizeValid(number)
	if err != nil {
		return nil, err
	}
	hash := m.hasher.Hash(normalized)

	community, err := m.GetCommunityData(ctx, hash, m.areaMatch(normalized), forceRefresh)
	if err != nil {
		m.logger.Warn(ctx, "community data unavailable", "hash", hash, "error", err)
	}

	cur, err := m.store.Records.Get(ctx, normalized)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("%w: failed to read record: %v", common.ErrStorage, err)
	}

	hasLocal := cur != nil && !cur.PersonalData.Empty()
	hasCommunity := !community.Empty()

	if cur == nil && !hasCommunity {
		return &models.Reputation{
			PhoneNumber: normalized,
			PhoneHash:   hash,
			ScoreResult: models.ScoreResult{Category: domain.CategoryUnknown},
			Action:      models.ActionAsk,
		}, nil
	}

	now := m.now()
	rec, err := m.store.Records.Update(ctx, normalized, func(cur *models.ReputationRecord) (*models.ReputationRecord, error) {
		if cur == nil {
			cur = models.NewRecord(normalized, hash, now)
		}
		cur.ScoreResult = m.engine.ComputeScore(normalized, &cur.PersonalData, community)
		cur.Touch(now)
		return cur, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to update record: %v", common.ErrStorage, err)
	}

	return &models.Reputation{
		PhoneNumber:      normalized,
		PhoneHash:        hash,
		ScoreResult:      rec.ScoreResult,
		Community:        community,
		HasLocalData:     hasLocal,
		HasCommunityData: hasCommunity,
		Action:           scoring.RecommendedAction(rec.ScoreResult, m.prefs),
		UpdatedAt:        rec.UpdatedAt,
	}, nil
}

// GetCommunityData serves the cached entry for hash while it is fresh and
// fetches otherwise. Concurrent fetches for one hash share a single request.
// When a refresh fails the stale entry, if any, is returned with no error.
// A nil entry means no community data is known.
func (m *Manager) GetCommunityData(ctx context.Context, hash string, areaMatch, forceRefresh bool) (*domain.CommunityDataEntry, error) {
	cached, err := m.store.Community.Get(ctx, hash)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		m.logger.Warn(ctx, "failed to read community cache", "hash", hash, "error", err)
		cached = nil
	}

	if !forceRefresh && cached.Fresh(m.now()) {
		return withLocalMatch(cached, areaMatch), nil
	}
	if m.community == nil || (m.status != nil && !m.status.Online()) {
		return withLocalMatch(cached, areaMatch), nil
	}

	v, err, _ := m.group.Do(hash, func() (any, error) {
		return m.fetchCommunity(ctx, hash)
	})
	if err != nil {
		if cached != nil {
			m.logger.Warn(ctx, "serving stale community data", "hash", hash, "error", err)
			return withLocalMatch(cached, areaMatch), nil
		}
		return nil, err
	}
	return withLocalMatch(v.(*domain.CommunityDataEntry), areaMatch), nil
}

func (m *Manager) fetchCommunity(ctx context.Context, hash string) (*domain.CommunityDataEntry, error) {
	e, err := m.community.FetchCommunity(ctx, hash)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		e = &domain.CommunityDataEntry{}
	case err != nil:
		return nil, err
	}

	e.PhoneHash = hash
	e.LocalMatch = false
	e.Stamp(m.now(), m.ttl)
	if err := m.store.Community.Put(ctx, e); err != nil {
		m.logger.Warn(ctx, "failed to cache community data", "hash", hash, "error", err)
	}
	return e, nil
}

func withLocalMatch(e *domain.CommunityDataEntry, areaMatch bool) *domain.CommunityDataEntry {
	if e == nil {
		return nil
	}
	out := *e
	out.Categories = append([]domain.Category(nil), e.Categories...)
	out.LocalMatch = e.LocalMatch || areaMatch
	return &out
}

// GetStatistics summarises the stored records.
func (m *Manager) GetStatistics(ctx context.Context) (*models.Statistics, error) {
	recs, err := m.store.Records.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list records: %v", common.ErrStorage, err)
	}

	st := &models.Statistics{ByCategory: make(map[domain.Category]int)}
	for _, r := range recs {
		st.TotalNumbers++
		if r.PersonalData.Blocked {
			st.Blocked++
		}
		if r.PersonalData.Accepted {
			st.Accepted++
		}
		if len(r.PersonalData.Reports) > 0 {
			st.Reported++
		}
		st.ByCategory[r.Category]++
	}

	if m.status != nil {
		pending, err := m.status.PendingCount(ctx)
		if err != nil {
			m.logger.Warn(ctx, "failed to count pending items", "error", err)
		}
		st.PendingSync = pending
		st.LastSync = m.status.LastSync()
	}
	return st, nil
}

// Purge forgets everything about number on this device, drops its pending
// contributions and asks the server to erase the shared row. Contributions
// still in flight are waited for first, so none is queued after the erase.
func (m *Manager) Purge(ctx context.Context, number string) error {
	normalized, err := phone.NormalizeValid(number)
	if err != nil {
		return err
	}
	hash := m.hasher.Hash(normalized)

	m.purgeMu.Lock()
	defer m.purgeMu.Unlock()
	m.wg.Wait()

	if err := m.store.Records.Delete(ctx, normalized); err != nil {
		return fmt.Errorf("%w: failed to delete record: %v", common.ErrStorage, err)
	}
	if err := m.store.Community.Remove(ctx, hash); err != nil {
		return fmt.Errorf("%w: failed to drop cached community data: %v", common.ErrStorage, err)
	}
	dropped, err := m.store.Queue.RemoveWhere(ctx, func(it domain.SyncQueueItem) bool { return it.Key == hash })
	if err != nil {
		return fmt.Errorf("%w: failed to compact queue: %v", common.ErrStorage, err)
	}

	m.logger.Info(ctx, "number purged", "hash", hash, "dropped", dropped)
	return m.queueErase(ctx, hash)
}

// PurgeAll forgets every number, compacts the queue and requests erasure of
// every shared row this device knew about.
func (m *Manager) PurgeAll(ctx context.Context) error {
	m.purgeMu.Lock()
	defer m.purgeMu.Unlock()
	m.wg.Wait()

	recs, err := m.store.Records.All(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to list records: %v", common.ErrStorage, err)
	}

	if err := m.store.Records.Clear(ctx); err != nil {
		return fmt.Errorf("%w: failed to clear records: %v", common.ErrStorage, err)
	}
	if err := m.store.Community.Clear(ctx); err != nil {
		return fmt.Errorf("%w: failed to clear community cache: %v", common.ErrStorage, err)
	}

	if m.queuer != nil {
		if err := m.queuer.QueueChange(ctx, domain.SyncQueueItem{Store: domain.StoreEvents, Operation: domain.OpClear}); err != nil {
			return fmt.Errorf("%w: failed to compact queue: %v", common.ErrStorage, err)
		}
	} else if err := m.store.Queue.Clear(ctx); err != nil {
		return fmt.Errorf("%w: failed to compact queue: %v", common.ErrStorage, err)
	}

	for _, r := range recs {
		if r.PhoneHash == "" {
			continue
		}
		if err := m.queueErase(ctx, r.PhoneHash); err != nil {
			return err
		}
	}

	m.logger.Info(ctx, "all numbers purged", "count", len(recs))
	return nil
}

func (m *Manager) queueErase(ctx context.Context, hash string) error {
	if m.queuer == nil {
		return nil
	}
	item := domain.SyncQueueItem{
		Store:     domain.StoreReputation,
		Key:       hash,
		Operation: domain.OpDelete,
		Timestamp: m.now(),
	}
	if err := m.queuer.QueueChange(ctx, item); err != nil {
		return fmt.Errorf("%w: failed to queue erase request: %v", common.ErrStorage, err)
	}
	return nil
}
