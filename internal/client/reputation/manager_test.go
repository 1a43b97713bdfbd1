package reputation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/callshield/internal/client/models"
	"github.com/dmitrijs2005/callshield/internal/client/repositories/kv"
	"github.com/dmitrijs2005/callshield/internal/client/scoring"
	"github.com/dmitrijs2005/callshield/internal/client/storage"
	"github.com/dmitrijs2005/callshield/internal/common"
	"github.com/dmitrijs2005/callshield/internal/domain"
	"github.com/dmitrijs2005/callshield/internal/phone"
	"github.com/dmitrijs2005/callshield/internal/timex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const number = "+1 555 010 2030"

var (
	t0   = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	hash = phone.LegacyHasher{}.Hash("15550102030")
)

type fakeSource struct {
	calls   atomic.Int32
	entry   *domain.CommunityDataEntry
	err     error
	entered chan struct{}
	once    sync.Once
	release chan struct{}
}

func (f *fakeSource) FetchCommunity(context.Context, string) (*domain.CommunityDataEntry, error) {
	f.calls.Add(1)
	if f.entered != nil {
		f.once.Do(func() { close(f.entered) })
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.entry == nil {
		return nil, common.ErrorNotFound
	}
	e := *f.entry
	return &e, nil
}

type fakeQueuer struct {
	mu      sync.Mutex
	events  []domain.EventDetails
	changes []domain.SyncQueueItem
}

func (q *fakeQueuer) QueueEvent(_ context.Context, _ string, d domain.EventDetails) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, d)
	return true
}

func (q *fakeQueuer) QueueChange(_ context.Context, item domain.SyncQueueItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.changes = append(q.changes, item)
	return nil
}

type fakeStatus struct {
	online  bool
	pending int
	last    time.Time
}

func (s *fakeStatus) PendingCount(context.Context) (int, error) { return s.pending, nil }
func (s *fakeStatus) LastSync() time.Time                       { return s.last }
func (s *fakeStatus) Online() bool                              { return s.online }

type fixture struct {
	store  *storage.Store
	source *fakeSource
	queuer *fakeQueuer
	status *fakeStatus
	now    time.Time
	m      *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  storage.New(kv.NewMemoryRepository()),
		source: &fakeSource{},
		queuer: &fakeQueuer{},
		status: &fakeStatus{online: true},
		now:    t0,
	}
	clock := func() time.Time { return f.now }
	f.m = New(f.store, scoring.New(scoring.WithClock(clock)), phone.LegacyHasher{}, f.source,
		WithQueuer(f.queuer), WithSyncStatus(f.status), WithClock(clock))
	t.Cleanup(f.m.Close)
	return f
}

func TestRecordEvent_BlockScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.m.RecordEvent(ctx, number, domain.BlockDetails{Reason: "robocall"})
	require.NoError(t, err)
	require.NotNil(t, rec.Score)
	assert.Equal(t, 0, *rec.Score)
	assert.Equal(t, domain.CategoryDangerous, rec.Category)
	assert.Equal(t, 50, rec.Confidence)
	assert.True(t, rec.PersonalData.Blocked)
	assert.Equal(t, hash, rec.PhoneHash)
	require.Len(t, rec.Events, 1)
	assert.Equal(t, domain.EventBlock, rec.Events[0].Type)

	rep, err := f.m.GetReputation(ctx, number, false)
	require.NoError(t, err)
	assert.True(t, rep.HasLocalData)
	assert.False(t, rep.HasCommunityData)
	assert.Equal(t, models.ActionBlock, rep.Action)

	f.m.Close()
	f.queuer.mu.Lock()
	defer f.queuer.mu.Unlock()
	assert.Equal(t, []domain.EventDetails{domain.BlockDetails{Reason: "robocall"}}, f.queuer.events)
}

func TestRecordEvent_PersonalTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.m.RecordEvent(ctx, number, domain.BlockDetails{})
	require.NoError(t, err)
	rec, err := f.m.RecordEvent(ctx, number, domain.AllowDetails{})
	require.NoError(t, err)
	assert.True(t, rec.PersonalData.Accepted)
	assert.False(t, rec.PersonalData.Blocked)

	_, err = f.m.RecordEvent(ctx, number, domain.BlockDetails{})
	require.NoError(t, err)
	rec, err = f.m.RecordEvent(ctx, number, domain.UnblockDetails{})
	require.NoError(t, err)
	assert.False(t, rec.PersonalData.Blocked)
	assert.False(t, rec.PersonalData.Accepted)

	rec, err = f.m.RecordEvent(ctx, number, domain.CallDetails{Answered: true, Duration: timex.Duration{Duration: 2 * time.Minute}})
	require.NoError(t, err)
	rec, err = f.m.RecordEvent(ctx, number, domain.CallDetails{Answered: false})
	require.NoError(t, err)
	assert.Len(t, rec.PersonalData.CallHistory, 2)
	assert.Equal(t, 2*time.Minute, rec.PersonalData.AvgDuration)
	assert.Len(t, rec.Events, 6)

	f.m.Close()
	f.queuer.mu.Lock()
	defer f.queuer.mu.Unlock()
	assert.Len(t, f.queuer.events, 2, "only blocks and reports are contributed")
}

func TestRecordEvent_ReportDefaultsToSpam(t *testing.T) {
	f := newFixture(t)

	rec, err := f.m.RecordEvent(context.Background(), number, domain.ReportDetails{Severity: 4})
	require.NoError(t, err)
	require.Len(t, rec.PersonalData.Reports, 1)
	assert.Equal(t, domain.CategorySpam, rec.PersonalData.Reports[0].Category)
	assert.Equal(t, 4, rec.PersonalData.Reports[0].Severity)
	assert.Equal(t, t0, rec.PersonalData.Reports[0].Timestamp)
}

func TestRecordEvent_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.m.RecordEvent(ctx, "123", domain.BlockDetails{})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = f.m.RecordEvent(ctx, number, domain.ReportDetails{Category: domain.CategoryScam, Severity: 0})
	assert.ErrorIs(t, err, common.ErrValidation)

	all, err := f.store.Records.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRecordEvent_UpdatedAtNeverGoesBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.m.RecordEvent(ctx, number, domain.AllowDetails{})
	require.NoError(t, err)

	f.now = t0.Add(-time.Hour)
	rec, err := f.m.RecordEvent(ctx, number, domain.AllowDetails{})
	require.NoError(t, err)
	assert.Equal(t, t0, rec.UpdatedAt)
}

func TestGetReputation_NoEvidencePersistsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rep, err := f.m.GetReputation(ctx, number, false)
	require.NoError(t, err)
	assert.Nil(t, rep.Score)
	assert.Equal(t, domain.CategoryUnknown, rep.Category)
	assert.Equal(t, models.ActionAsk, rep.Action)
	assert.False(t, rep.HasLocalData)
	assert.False(t, rep.HasCommunityData)

	all, err := f.store.Records.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestGetReputation_CommunityEvidenceCreatesRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.source.entry = &domain.CommunityDataEntry{BlockCount: 9, ReportCount: 3, ReportSeverity: 4}

	rep, err := f.m.GetReputation(ctx, number, false)
	require.NoError(t, err)
	assert.True(t, rep.HasCommunityData)
	assert.False(t, rep.HasLocalData)
	require.NotNil(t, rep.Score)
	assert.Equal(t, 4, *rep.Score)
	assert.Equal(t, 46, rep.Confidence)
	assert.Equal(t, models.ActionBlock, rep.Action)

	rec, err := f.store.Records.Get(ctx, "15550102030")
	require.NoError(t, err)
	assert.Equal(t, hash, rec.PhoneHash)
	assert.Equal(t, rep.Score, rec.Score)
}

func TestGetCommunityData_CachesWithTTL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.source.entry = &domain.CommunityDataEntry{ReportCount: 1}

	e, err := f.m.GetCommunityData(ctx, hash, false, false)
	require.NoError(t, err)
	assert.Equal(t, hash, e.PhoneHash)
	assert.Equal(t, t0.Add(6*time.Hour), e.ExpiresAt)

	f.now = t0.Add(5 * time.Hour)
	_, err = f.m.GetCommunityData(ctx, hash, false, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.source.calls.Load())

	_, err = f.m.GetCommunityData(ctx, hash, false, true)
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.source.calls.Load(), "forced refresh")

	f.now = t0.Add(12 * time.Hour)
	_, err = f.m.GetCommunityData(ctx, hash, false, false)
	require.NoError(t, err)
	assert.EqualValues(t, 3, f.source.calls.Load(), "expired entry refreshed")
}

func TestGetCommunityData_NotFoundCachedAsEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := f.m.GetCommunityData(ctx, hash, true, false)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.True(t, e.Empty())
	assert.True(t, e.LocalMatch)
	assert.Equal(t, t0.Add(24*time.Hour), e.ExpiresAt)

	cached, err := f.store.Community.Get(ctx, hash)
	require.NoError(t, err)
	assert.False(t, cached.LocalMatch, "area match is not cached")
}

func TestGetCommunityData_StaleOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.source.err = common.ErrNetwork

	_, err := f.m.GetCommunityData(ctx, hash, false, false)
	assert.ErrorIs(t, err, common.ErrNetwork)

	stale := &domain.CommunityDataEntry{PhoneHash: hash, BlockCount: 2, ExpiresAt: t0.Add(-time.Minute)}
	require.NoError(t, f.store.Community.Put(ctx, stale))

	e, err := f.m.GetCommunityData(ctx, hash, false, false)
	require.NoError(t, err)
	assert.Equal(t, 2, e.BlockCount)
}

func TestGetCommunityData_OfflineUsesCacheOnly(t *testing.T) {
	f := newFixture(t)
	f.status.online = false

	e, err := f.m.GetCommunityData(context.Background(), hash, false, true)
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.Zero(t, f.source.calls.Load())
}

func TestGetCommunityData_ConcurrentFetchesCollapse(t *testing.T) {
	f := newFixture(t)
	f.source.entry = &domain.CommunityDataEntry{BlockCount: 1}
	f.source.entered = make(chan struct{})
	f.source.release = make(chan struct{})

	var wg sync.WaitGroup
	results := make([]*domain.CommunityDataEntry, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := f.m.GetCommunityData(context.Background(), hash, false, false)
			assert.NoError(t, err)
			results[i] = e
		}(i)
	}

	<-f.source.entered
	time.Sleep(20 * time.Millisecond)
	close(f.source.release)
	wg.Wait()

	assert.EqualValues(t, 1, f.source.calls.Load())
	for _, e := range results {
		require.NotNil(t, e)
		assert.Equal(t, 1, e.BlockCount)
	}
}

func TestGetStatistics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.status.pending = 3
	f.status.last = t0.Add(-time.Hour)

	_, err := f.m.RecordEvent(ctx, number, domain.BlockDetails{})
	require.NoError(t, err)
	_, err = f.m.RecordEvent(ctx, "+44 20 7946 0018", domain.AllowDetails{})
	require.NoError(t, err)
	_, err = f.m.RecordEvent(ctx, "+49 30 1234567", domain.ReportDetails{Category: domain.CategoryScam, Severity: 5})
	require.NoError(t, err)

	st, err := f.m.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalNumbers)
	assert.Equal(t, 1, st.Blocked)
	assert.Equal(t, 1, st.Accepted)
	assert.Equal(t, 1, st.Reported)
	assert.Equal(t, 1, st.ByCategory[domain.CategoryDangerous])
	assert.Equal(t, 3, st.PendingSync)
	assert.Equal(t, t0.Add(-time.Hour), st.LastSync)
}

func TestPurge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.source.entry = &domain.CommunityDataEntry{BlockCount: 1}

	_, err := f.m.RecordEvent(ctx, number, domain.BlockDetails{})
	require.NoError(t, err)
	require.NoError(t, f.store.Queue.Append(ctx, domain.SyncQueueItem{ID: "a", Store: domain.StoreEvents, Key: hash, Operation: domain.OpUpdate, Timestamp: t0}))
	require.NoError(t, f.store.Queue.Append(ctx, domain.SyncQueueItem{ID: "b", Store: domain.StoreEvents, Key: "other", Operation: domain.OpUpdate, Timestamp: t0}))

	require.NoError(t, f.m.Purge(ctx, number))

	_, err = f.store.Records.Get(ctx, "15550102030")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = f.store.Records.FindByHash(ctx, hash)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = f.store.Community.Get(ctx, hash)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	items, err := f.store.Queue.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0].ID)

	f.m.Close()
	f.queuer.mu.Lock()
	defer f.queuer.mu.Unlock()
	require.Len(t, f.queuer.changes, 1)
	assert.Equal(t, domain.StoreReputation, f.queuer.changes[0].Store)
	assert.Equal(t, domain.OpDelete, f.queuer.changes[0].Operation)
	assert.Equal(t, hash, f.queuer.changes[0].Key)

	assert.ErrorIs(t, f.m.Purge(ctx, "12"), common.ErrValidation)
}

// gatedQueuer writes contributions to the device queue once release is closed.
type gatedQueuer struct {
	store   *storage.Store
	hash    string
	entered chan struct{}
	release chan struct{}
}

func (q *gatedQueuer) QueueEvent(ctx context.Context, _ string, d domain.EventDetails) bool {
	close(q.entered)
	<-q.release
	err := q.store.Queue.Append(ctx, domain.SyncQueueItem{
		ID: "event", Store: domain.StoreEvents, Key: q.hash, Operation: domain.OpUpdate, Timestamp: t0,
	})
	return err == nil
}

func (q *gatedQueuer) QueueChange(ctx context.Context, item domain.SyncQueueItem) error {
	item.ID = "erase"
	return q.store.Queue.Append(ctx, item)
}

func TestPurge_WaitsForInFlightContribution(t *testing.T) {
	ctx := context.Background()
	store := storage.New(kv.NewMemoryRepository())
	q := &gatedQueuer{store: store, hash: hash, entered: make(chan struct{}), release: make(chan struct{})}
	m := New(store, scoring.New(), phone.LegacyHasher{}, nil, WithQueuer(q), WithClock(func() time.Time { return t0 }))
	t.Cleanup(m.Close)

	_, err := m.RecordEvent(ctx, number, domain.BlockDetails{})
	require.NoError(t, err)
	<-q.entered

	done := make(chan error, 1)
	go func() { done <- m.Purge(ctx, number) }()

	select {
	case err := <-done:
		t.Fatalf("purge returned before the contribution finished: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(q.release)
	require.NoError(t, <-done)

	items, err := store.Queue.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "erase", items[0].ID)
	assert.Equal(t, domain.OpDelete, items[0].Operation)
	assert.Equal(t, hash, items[0].Key)
}

func TestPurgeAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.m.RecordEvent(ctx, number, domain.AllowDetails{})
	require.NoError(t, err)
	_, err = f.m.RecordEvent(ctx, "+44 20 7946 0018", domain.AllowDetails{})
	require.NoError(t, err)

	require.NoError(t, f.m.PurgeAll(ctx))

	all, err := f.store.Records.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	f.queuer.mu.Lock()
	defer f.queuer.mu.Unlock()
	require.Len(t, f.queuer.changes, 3)
	assert.Equal(t, domain.OpClear, f.queuer.changes[0].Operation)
	for _, c := range f.queuer.changes[1:] {
		assert.Equal(t, domain.OpDelete, c.Operation)
	}
}

func TestRecordEvent_CommunityFailureStillRecords(t *testing.T) {
	f := newFixture(t)
	f.source.err = errors.New("boom")

	rec, err := f.m.RecordEvent(context.Background(), number, domain.AllowDetails{})
	require.NoError(t, err)
	require.NotNil(t, rec.Score)
	assert.Equal(t, 90, *rec.Score)
}
