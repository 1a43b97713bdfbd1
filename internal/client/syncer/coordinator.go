// Package syncer moves queued reputation changes to the community server
// and folds the server's view back into local records.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/callshield/internal/anonymize"
	"github.com/dmitrijs2005/callshield/internal/client/client"
	"github.com/dmitrijs2005/callshield/internal/client/models"
	"github.com/dmitrijs2005/callshield/internal/client/storage"
	"github.com/dmitrijs2005/callshield/internal/common"
	"github.com/dmitrijs2005/callshield/internal/compress"
	"github.com/dmitrijs2005/callshield/internal/domain"
	"github.com/dmitrijs2005/callshield/internal/logging"
	"github.com/dmitrijs2005/callshield/internal/phone"
	"github.com/google/uuid"
)

// Options tune the coordinator's timers. Zero values fall back to defaults.
type Options struct {
	RetryDelay    time.Duration
	SweepInterval time.Duration
	Debounce      time.Duration
	MaxRetries    int
	Clock         func() time.Time
}

const (
	defaultRetryDelay    = 30 * time.Second
	defaultSweepInterval = 5 * time.Minute
	defaultDebounce      = 2 * time.Second
)

func (o *Options) applyDefaults() {
	if o.RetryDelay <= 0 {
		o.RetryDelay = defaultRetryDelay
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = defaultSweepInterval
	}
	if o.Debounce <= 0 {
		o.Debounce = defaultDebounce
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = common.MaxSyncRetries
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
}

// Stats is a point-in-time view of the coordinator.
type Stats struct {
	Online       bool
	Syncing      bool
	Pending      int
	LastSync     time.Time
	TotalSynced  int
	TotalDropped int
	TotalFailed  int
}

// Coordinator owns the sync queue drain. Create one per process with New,
// call Initialize before use and Close on shutdown.
type Coordinator struct {
	store  *storage.Store
	client client.Client
	codec  compress.Compressor
	anon   *anonymize.Anonymizer
	logger logging.Logger
	opts   Options

	online  atomic.Bool
	syncing atomic.Bool

	mu           sync.Mutex
	listeners    map[EventKind]map[ListenerID]Listener
	nextListener ListenerID
	retryTimer   *time.Timer
	debounce     *time.Timer
	lastSync     time.Time
	totalSynced  int
	totalDropped int
	totalFailed  int
	bgCtx        context.Context
	cancel       context.CancelFunc
	closed       bool

	wg sync.WaitGroup
}

func New(store *storage.Store, c client.Client, codec compress.Compressor, anon *anonymize.Anonymizer, l logging.Logger, opts Options) *Coordinator {
	opts.applyDefaults()
	return &Coordinator{
		store:     store,
		client:    c,
		codec:     codec,
		anon:      anon,
		logger:    l.With("module", "syncer"),
		opts:      opts,
		listeners: make(map[EventKind]map[ListenerID]Listener),
	}
}

func (c *Coordinator) now() time.Time { return c.opts.Clock() }

func (c *Coordinator) ctx() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bgCtx == nil {
		return context.Background()
	}
	return c.bgCtx
}

// Initialize restores the last sync time and starts the periodic sweep.
func (c *Coordinator) Initialize(ctx context.Context) error {
	last, err := c.store.Meta.LastSync(ctx)
	if err != nil {
		return fmt.Errorf("restore last sync: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("coordinator is closed")
	}
	if c.bgCtx != nil {
		c.mu.Unlock()
		return errors.New("coordinator already initialized")
	}
	c.lastSync = last
	c.bgCtx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))
	c.mu.Unlock()

	c.goBackground(c.sweepLoop)
	c.logger.Info(ctx, "sync coordinator started", "sweep_interval", c.opts.SweepInterval.String())
	return nil
}

// Close stops timers and waits for background drains to finish.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}
	if c.debounce != nil {
		c.debounce.Stop()
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	c.wg.Wait()
}

// goBackground runs fn on a tracked goroutine unless the coordinator is
// closed or not yet initialized.
func (c *Coordinator) goBackground(fn func(ctx context.Context)) {
	c.mu.Lock()
	if c.closed || c.bgCtx == nil {
		c.mu.Unlock()
		return
	}
	ctx := c.bgCtx
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		fn(ctx)
	}()
}

func (c *Coordinator) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if c.online.Load() {
				c.drainIfPending(ctx)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Coordinator) drainIfPending(ctx context.Context) {
	n, err := c.store.Queue.Len(ctx)
	if err != nil {
		c.logger.Warn(ctx, "failed to read sync queue", "error", err)
		return
	}
	if n > 0 {
		c.SyncPendingEvents(ctx)
	}
}

// Online reports the last connectivity signal.
func (c *Coordinator) Online() bool {
	return c.online.Load()
}

// SetOnline feeds the connectivity signal. Going online schedules a
// debounced drain of whatever is pending.
func (c *Coordinator) SetOnline(online bool) {
	if c.online.Swap(online) == online {
		return
	}
	c.logger.Info(c.ctx(), "connectivity changed", "online", online)
	c.emit(Event{Kind: OnlineStatusChanged, Online: online})
	if online {
		c.scheduleDebounced()
	}
}

func (c *Coordinator) scheduleDebounced() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.debounce != nil {
		c.debounce.Stop()
	}
	c.debounce = time.AfterFunc(c.opts.Debounce, func() {
		c.goBackground(c.drainIfPending)
	})
}

func (c *Coordinator) scheduleRetry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}
	c.retryTimer = time.AfterFunc(c.opts.RetryDelay, func() {
		c.goBackground(c.drainIfPending)
	})
}

// QueueEvent anonymizes an event for number and queues it for the server.
// It returns false when number is malformed or the queue cannot be written.
func (c *Coordinator) QueueEvent(ctx context.Context, number string, d domain.EventDetails) bool {
	normalized, err := phone.NormalizeValid(number)
	if err != nil {
		c.logger.Warn(ctx, "rejected event for malformed number", "error", err)
		return false
	}
	if err := domain.ValidateDetails(d); err != nil {
		c.logger.Warn(ctx, "rejected event with invalid details", "error", err)
		return false
	}

	now := c.now()
	ev := c.anon.Anonymize(anonymize.Contribution{PhoneNumber: normalized, Timestamp: now, Details: d})
	value, err := json.Marshal(ev)
	if err != nil {
		c.logger.Error(ctx, "failed to encode event", "error", err)
		return false
	}

	item := domain.SyncQueueItem{
		ID:        uuid.NewString(),
		Store:     domain.StoreEvents,
		Key:       ev.PhoneHash,
		Value:     value,
		Operation: domain.OpUpdate,
		Timestamp: now,
	}
	if err := c.QueueChange(ctx, item); err != nil {
		c.logger.Error(ctx, "failed to queue event", "error", err)
		return false
	}
	return true
}

// QueueChange persists item. An OpClear item empties the queue instead and
// is never transmitted. When online and idle a drain starts right away.
func (c *Coordinator) QueueChange(ctx context.Context, item domain.SyncQueueItem) error {
	if item.Operation == domain.OpClear {
		if err := c.store.Queue.Clear(ctx); err != nil {
			return err
		}
		c.logger.Info(ctx, "sync queue compacted")
		return nil
	}

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = c.now()
	}
	if err := c.store.Queue.Append(ctx, item); err != nil {
		return err
	}

	pending, _ := c.store.Queue.Len(ctx)
	c.emit(Event{Kind: EventQueued, Item: &item, Pending: pending})

	if c.online.Load() && !c.syncing.Load() {
		c.goBackground(func(ctx context.Context) { c.SyncPendingEvents(ctx) })
	}
	return nil
}

// SyncPendingEvents drains a snapshot of the queue. It returns false when
// offline, when another drain is running, or when the attempt failed.
func (c *Coordinator) SyncPendingEvents(ctx context.Context) bool {
	if !c.online.Load() {
		return false
	}
	if !c.syncing.CompareAndSwap(false, true) {
		return false
	}
	defer c.syncing.Store(false)

	items, err := c.store.Queue.List(ctx)
	if err != nil {
		c.logger.Error(ctx, "failed to read sync queue", "error", err)
		c.emit(Event{Kind: SyncError, Err: err})
		return false
	}
	if len(items) == 0 {
		return true
	}

	c.emit(Event{Kind: SyncStart, Pending: len(items)})

	batch, ids := c.buildBatch(ctx, items)
	if batch.Empty() {
		if err := c.store.Queue.Remove(ctx, ids); err != nil {
			c.logger.Warn(ctx, "failed to remove empty batch items", "error", err)
		}
		remaining, _ := c.store.Queue.Len(ctx)
		c.emit(Event{Kind: SyncComplete, Pending: remaining})
		return true
	}

	result, err := c.transmit(ctx, batch)
	if err != nil {
		c.fail(ctx, ids, err)
		return false
	}

	if err := c.store.Queue.Remove(ctx, ids); err != nil {
		// the server has the batch; a resend is absorbed by event id dedup
		c.logger.Error(ctx, "failed to remove synced items", "error", err)
	}

	now := c.now()
	if err := c.store.Meta.SetLastSync(ctx, now); err != nil {
		c.logger.Warn(ctx, "failed to persist last sync time", "error", err)
	}
	c.mu.Lock()
	c.lastSync = now
	c.totalSynced += len(ids)
	c.mu.Unlock()

	c.applyServerData(ctx, result.Reputations)

	remaining, _ := c.store.Queue.Len(ctx)
	c.logger.Info(ctx, "sync complete", "synced", len(ids), "accepted", result.Accepted, "pending", remaining)
	c.emit(Event{Kind: SyncComplete, Synced: len(ids), Pending: remaining})

	if remaining > 0 {
		c.scheduleDebounced()
	}
	return true
}

func (c *Coordinator) transmit(ctx context.Context, batch domain.Batch) (domain.BatchResult, error) {
	var result domain.BatchResult

	payload, err := compress.EncodeJSON(c.codec, batch)
	if err != nil {
		return result, err
	}
	resp, err := c.client.Transmit(ctx, payload)
	if err != nil {
		return result, err
	}
	if err := compress.DecodeJSON(c.codec, resp, &result); err != nil {
		return result, err
	}
	return result, nil
}

// buildBatch decodes queued items into a batch. Every snapshotted id is
// returned, including undecodable items, so they leave the queue with the
// batch instead of blocking it.
func (c *Coordinator) buildBatch(ctx context.Context, items []domain.SyncQueueItem) (domain.Batch, []string) {
	batch := domain.Batch{SentAt: c.now()}
	ids := make([]string, 0, len(items))

	for _, it := range items {
		ids = append(ids, it.ID)

		switch {
		case it.Store == domain.StoreEvents && it.Operation == domain.OpUpdate:
			var ev domain.ReputationEvent
			if err := json.Unmarshal(it.Value, &ev); err != nil {
				c.logger.Warn(ctx, "skipping undecodable queued event", "id", it.ID, "error", err)
				continue
			}
			ev.RetryCount = it.RetryCount
			batch.Events = append(batch.Events, ev)

		case it.Store == domain.StoreReputation && it.Operation == domain.OpUpdate:
			var d domain.ReputationData
			if err := json.Unmarshal(it.Value, &d); err != nil {
				c.logger.Warn(ctx, "skipping undecodable queued reputation", "id", it.ID, "error", err)
				continue
			}
			batch.Reputations = append(batch.Reputations, d)

		case it.Store == domain.StoreReputation && it.Operation == domain.OpDelete:
			batch.Erase = append(batch.Erase, it.Key)

		default:
			c.logger.Warn(ctx, "skipping unsupported queue item", "id", it.ID, "store", string(it.Store), "operation", string(it.Operation))
		}
	}
	return batch, ids
}

func (c *Coordinator) fail(ctx context.Context, ids []string, cause error) {
	dropped, err := c.store.Queue.RecordFailure(ctx, ids, c.opts.MaxRetries)
	if err != nil {
		c.logger.Error(ctx, "failed to record sync failure", "error", err)
	}
	for _, it := range dropped {
		c.logger.Warn(ctx, "dropping queue item after max retries", "id", it.ID, "store", string(it.Store), "retries", it.RetryCount)
	}

	c.mu.Lock()
	c.totalFailed++
	c.totalDropped += len(dropped)
	c.mu.Unlock()

	c.logger.Warn(ctx, "sync failed", "error", cause, "items", len(ids), "dropped", len(dropped))
	pending, _ := c.store.Queue.Len(ctx)
	c.emit(Event{Kind: SyncError, Err: cause, Dropped: len(dropped), Pending: pending})

	if pending > 0 {
		c.scheduleRetry()
	}
}

// applyServerData merges server replicas into the matching local records.
// Hashes with no local record are ignored.
func (c *Coordinator) applyServerData(ctx context.Context, reps []domain.ReputationData) {
	for _, remote := range reps {
		rec, err := c.store.Records.FindByHash(ctx, remote.PhoneHash)
		if errors.Is(err, common.ErrorNotFound) {
			continue
		}
		if err != nil {
			c.logger.Warn(ctx, "failed to look up record for server data", "hash", remote.PhoneHash, "error", err)
			continue
		}
		if _, err := c.mergeInto(ctx, rec.PhoneNumber, rec.PhoneHash, &remote); err != nil {
			c.logger.Warn(ctx, "failed to merge server data", "hash", remote.PhoneHash, "error", err)
		}
	}
}

// mergeInto merges remote into the local record for number under the
// record lock and returns the merged replica. With no local record and no
// remote data nothing is written.
func (c *Coordinator) mergeInto(ctx context.Context, number, hash string, remote *domain.ReputationData) (domain.ReputationData, error) {
	var merged domain.ReputationData
	now := c.now()

	_, err := c.store.Records.Update(ctx, number, func(cur *models.ReputationRecord) (*models.ReputationRecord, error) {
		local := domain.ReputationData{PhoneHash: hash}
		if cur != nil {
			local = cur.ToReputationData()
		}
		merged = local
		if remote != nil {
			merged = domain.MergeReputationData(local, *remote)
		}

		if cur == nil {
			if remote == nil {
				return nil, nil
			}
			cur = models.NewRecord(number, hash, now)
		}
		cur.ApplyMerged(merged, now)
		return cur, nil
	})
	return merged, err
}

// ReconcileReputationData merges the local record for number with the
// server's replica (when online), stores the result and pushes it back.
// A failed push is queued for the next drain.
func (c *Coordinator) ReconcileReputationData(ctx context.Context, number string) (domain.ReputationData, error) {
	normalized, err := phone.NormalizeValid(number)
	if err != nil {
		return domain.ReputationData{}, err
	}
	hash := c.anon.Hash(normalized)
	online := c.online.Load()

	var remote *domain.ReputationData
	if online {
		remote, err = c.client.FetchReputation(ctx, hash)
		switch {
		case errors.Is(err, common.ErrorNotFound):
			remote = nil
		case err != nil:
			c.logger.Warn(ctx, "remote reputation unavailable, reconciling locally", "hash", hash, "error", err)
			remote = nil
			online = false
		}
	}

	merged, err := c.mergeInto(ctx, normalized, hash, remote)
	if err != nil {
		return domain.ReputationData{}, err
	}

	if !online {
		return merged, nil
	}

	shared := shareable(merged)
	if err := c.client.PushReputation(ctx, shared); err != nil {
		c.logger.Warn(ctx, "push failed, queueing reputation", "hash", hash, "error", err)
		value, mErr := json.Marshal(shared)
		if mErr != nil {
			return merged, mErr
		}
		qErr := c.QueueChange(ctx, domain.SyncQueueItem{
			Store:     domain.StoreReputation,
			Key:       hash,
			Value:     value,
			Operation: domain.OpUpdate,
		})
		if qErr != nil {
			return merged, qErr
		}
	}
	return merged, nil
}

// shareable strips what must not leave the device from a replica. Call
// events mirror the personal call history and are kept local.
func shareable(d domain.ReputationData) domain.ReputationData {
	out := d
	out.Metadata = nil
	out.Events = nil
	for _, e := range d.Events {
		if _, ok := e.Details.(domain.CallDetails); ok {
			continue
		}
		out.Events = append(out.Events, anonymize.SanitizeEvent(e))
	}
	return out
}

// PendingCount returns the number of queued items.
func (c *Coordinator) PendingCount(ctx context.Context) (int, error) {
	return c.store.Queue.Len(ctx)
}

// LastSync returns the time of the last successful drain.
func (c *Coordinator) LastSync() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSync
}

func (c *Coordinator) Stats(ctx context.Context) (Stats, error) {
	pending, err := c.store.Queue.Len(ctx)
	if err != nil {
		return Stats{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Online:       c.online.Load(),
		Syncing:      c.syncing.Load(),
		Pending:      pending,
		LastSync:     c.lastSync,
		TotalSynced:  c.totalSynced,
		TotalDropped: c.totalDropped,
		TotalFailed:  c.totalFailed,
	}, nil
}
