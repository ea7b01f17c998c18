// internal/cache/store.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"fridgetrack-sync/internal/common/logger"
	"fridgetrack-sync/internal/common/metrics"
)

// DefaultStaleTime is how long fetched data counts as fresh.
const DefaultStaleTime = 30 * time.Second

var errNoFetcher = errors.New("cache: no fetcher registered for key")

// Config holds store-wide settings.
type Config struct {
	StaleTime time.Duration
}

// State is a point-in-time view of one entry.
type State struct {
	Key        Key
	Data       interface{}
	HasData    bool
	FetchedAt  time.Time
	IsFetching bool
	Stale      bool
	Err        error
}

// Listener is called synchronously after a write, outside the store lock.
type Listener func(State)

// Fetcher loads the value for one key.
type Fetcher func(ctx context.Context) (interface{}, error)

type subscriber struct {
	id uint64
	fn Listener
}

type prefixListener struct {
	prefix Key
	fn     Listener
}

type entry struct {
	key         Key
	data        interface{}
	hasData     bool
	fetchedAt   time.Time
	invalidated bool
	err         error

	isFetching bool
	cancel     context.CancelFunc
	fetchSeq   uint64
	// generation changes on every write that must win over a fetch that
	// started earlier.
	generation uint64

	fetcher     Fetcher
	staleTime   time.Duration
	subscribers []subscriber
}

type notification struct {
	fn    Listener
	state State
}

// Option configures a Store.
type Option func(*Store)

func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is the process-wide query cache. Stored values are shared with
// callers and must be treated as immutable; writers replace them.
type Store struct {
	mu        sync.Mutex
	entries   map[string]*entry
	prefixes  map[uint64]prefixListener
	nextID    uint64
	flight    singleflight.Group
	staleTime time.Duration

	logger    logger.Logger
	persister Persister
	now       func() time.Time

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

func NewStore(cfg Config, opts ...Option) *Store {
	ctx, stop := context.WithCancel(context.Background())
	s := &Store{
		entries:   make(map[string]*entry),
		prefixes:  make(map[uint64]prefixListener),
		staleTime: cfg.StaleTime,
		logger:    logger.NewNoOpLogger(),
		now:       time.Now,
		ctx:       ctx,
		stop:      stop,
	}
	if s.staleTime <= 0 {
		s.staleTime = DefaultStaleTime
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ==========================
// Reads
// ==========================

func (s *Store) Get(key Key) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key.Hash()]
	if !ok {
		return State{Key: key}, false
	}
	return s.stateOf(e), true
}

func (s *Store) GetData(key Key) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key.Hash()]
	if !ok || !e.hasData {
		return nil, false
	}
	return e.data, true
}

// Keys lists the cached keys under prefix, ordered by hash.
func (s *Store) Keys(prefix Key) []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matching(prefix)
}

// ==========================
// Writes
// ==========================

// SetData replaces the value at key. Fetches already in flight for the key
// will not overwrite it.
func (s *Store) SetData(key Key, data interface{}) {
	s.mu.Lock()
	e := s.ensure(key)
	e.generation++
	e.data = data
	e.hasData = true
	e.fetchedAt = s.now()
	e.invalidated = false
	e.err = nil
	ns := s.collect(e)
	s.mu.Unlock()

	s.dispatch(ns)
}

// Update applies fn to the current value at key. fn runs under the store
// lock and must not call back into the store. It returns false to leave the
// entry untouched. Freshness is not changed.
func (s *Store) Update(key Key, fn func(old interface{}, ok bool) (interface{}, bool)) bool {
	s.mu.Lock()
	hash := key.Hash()
	var (
		old interface{}
		has bool
	)
	if e, ok := s.entries[hash]; ok && e.hasData {
		old, has = e.data, true
	}
	next, changed := fn(old, has)
	if !changed {
		s.mu.Unlock()
		return false
	}
	e := s.ensure(key)
	e.generation++
	e.data = next
	e.hasData = true
	if e.fetchedAt.IsZero() {
		e.fetchedAt = s.now()
	}
	ns := s.collect(e)
	s.mu.Unlock()

	s.dispatch(ns)
	return true
}

// Remove drops the entry at key, cancelling any fetch in flight.
func (s *Store) Remove(key Key) {
	hash := key.Hash()
	s.mu.Lock()
	if e, ok := s.entries[hash]; ok {
		s.cancelFetch(e)
		delete(s.entries, hash)
	}
	s.mu.Unlock()

	s.persistDelete(hash)
}

// Reset drops every entry. Prefix listeners survive.
func (s *Store) Reset() {
	s.mu.Lock()
	for _, e := range s.entries {
		s.cancelFetch(e)
	}
	s.entries = make(map[string]*entry)
	s.mu.Unlock()
}

// ==========================
// Subscriptions
// ==========================

// Subscribe registers fn for writes to key. The entry is torn down when its
// last subscriber leaves.
func (s *Store) Subscribe(key Key, fn Listener) (unsubscribe func()) {
	hash := key.Hash()
	s.mu.Lock()
	e := s.ensure(key)
	s.nextID++
	id := s.nextID
	e.subscribers = append(e.subscribers, subscriber{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			cur, ok := s.entries[hash]
			if !ok || cur != e {
				return
			}
			for i, sub := range cur.subscribers {
				if sub.id == id {
					cur.subscribers = append(cur.subscribers[:i:i], cur.subscribers[i+1:]...)
					break
				}
			}
			if len(cur.subscribers) == 0 {
				s.cancelFetch(cur)
				delete(s.entries, hash)
			}
		})
	}
}

// SubscribePrefix registers fn for writes to any key under prefix.
func (s *Store) SubscribePrefix(prefix Key, fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.prefixes[id] = prefixListener{prefix: prefix, fn: fn}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.prefixes, id)
		s.mu.Unlock()
	}
}

// ==========================
// Invalidation and cancellation
// ==========================

// Invalidate marks every entry under any of prefixes stale and refetches, in
// the background, those with subscribers and a known fetcher. A fetch already
// in flight may have read the server before the change being invalidated for,
// so its result is discarded and a new fetch follows it. No prefixes means
// every entry. The matched keys are returned.
func (s *Store) Invalidate(prefixes ...Key) []Key {
	s.mu.Lock()
	var (
		matched []Key
		ns      []notification
		refetch []string
	)
	for _, hash := range s.sortedHashes() {
		e := s.entries[hash]
		if !matchesAny(e.key, prefixes) {
			continue
		}
		e.invalidated = true
		if e.isFetching {
			e.generation++
		}
		matched = append(matched, e.key)
		metrics.CacheInvalidations.WithLabelValues(metrics.Resource(e.key)).Inc()
		ns = append(ns, s.collect(e)...)
		if len(e.subscribers) > 0 && e.fetcher != nil {
			refetch = append(refetch, hash)
		}
	}
	s.mu.Unlock()

	s.dispatch(ns)
	for _, hash := range refetch {
		s.refreshAsync(hash)
	}
	if len(matched) > 0 {
		s.logger.Debug("cache entries invalidated", map[string]interface{}{
			"count":     len(matched),
			"refetched": len(refetch),
		})
	}
	return matched
}

// CancelQueries aborts in-flight fetches under prefixes and makes sure their
// results are discarded. Calling it with nothing in flight is a no-op.
func (s *Store) CancelQueries(prefixes ...Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if !matchesAny(e.key, prefixes) {
			continue
		}
		e.generation++
		s.cancelFetch(e)
	}
}

// ==========================
// Snapshots
// ==========================

type snapshotEntry struct {
	key         Key
	data        interface{}
	fetchedAt   time.Time
	invalidated bool
}

// Snapshot is a copy of the entries with data under some prefixes.
type Snapshot struct {
	entries []snapshotEntry
}

func (s Snapshot) Len() int { return len(s.entries) }

func (s Snapshot) Keys() []Key {
	keys := make([]Key, 0, len(s.entries))
	for _, e := range s.entries {
		keys = append(keys, e.key)
	}
	return keys
}

// Snapshot captures the values under prefixes for a later Restore.
func (s *Store) Snapshot(prefixes ...Key) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var snap Snapshot
	for _, hash := range s.sortedHashes() {
		e := s.entries[hash]
		if !e.hasData || !matchesAny(e.key, prefixes) {
			continue
		}
		snap.entries = append(snap.entries, snapshotEntry{
			key:         e.key,
			data:        e.data,
			fetchedAt:   e.fetchedAt,
			invalidated: e.invalidated,
		})
	}
	return snap
}

// Restore writes the snapshot values back verbatim.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	var ns []notification
	for _, se := range snap.entries {
		e := s.ensure(se.key)
		e.generation++
		e.data = se.data
		e.hasData = true
		e.fetchedAt = se.fetchedAt
		e.invalidated = se.invalidated
		e.err = nil
		ns = append(ns, s.collect(e)...)
	}
	s.mu.Unlock()

	s.dispatch(ns)
}

// ==========================
// Lifecycle
// ==========================

// Wait blocks until background refreshes started so far have finished.
func (s *Store) Wait() {
	s.wg.Wait()
}

// Close stops background refreshes and waits for them to return.
func (s *Store) Close() {
	s.stop()
	s.Reset()
	s.wg.Wait()
}

// ==========================
// Fetching
// ==========================

// fetch runs the registered fetcher for hash, sharing the call with any
// concurrent fetch of the same entry generation.
func (s *Store) fetch(ctx context.Context, hash string) (interface{}, error) {
	s.mu.Lock()
	e, ok := s.entries[hash]
	if !ok || e.fetcher == nil {
		s.mu.Unlock()
		return nil, errNoFetcher
	}
	flightKey := fmt.Sprintf("%s#%d", hash, e.generation)
	s.mu.Unlock()

	v, err, _ := s.flight.Do(flightKey, func() (interface{}, error) {
		return s.runFetch(ctx, hash)
	})
	return v, err
}

func (s *Store) runFetch(ctx context.Context, hash string) (interface{}, error) {
	s.mu.Lock()
	e, ok := s.entries[hash]
	if !ok || e.fetcher == nil {
		s.mu.Unlock()
		return nil, errNoFetcher
	}
	fctx, cancel := context.WithCancel(ctx)
	e.fetchSeq++
	seq, gen, fetcher := e.fetchSeq, e.generation, e.fetcher
	e.isFetching = true
	e.cancel = cancel
	s.mu.Unlock()

	data, err := fetcher(fctx)
	cancel()

	s.mu.Lock()
	if cur, ok := s.entries[hash]; !ok || cur != e {
		s.mu.Unlock()
		return data, err
	}
	if e.fetchSeq == seq {
		e.isFetching = false
		e.cancel = nil
	}
	if e.generation != gen {
		current, has := e.data, e.hasData
		s.mu.Unlock()
		s.logger.Debug("discarding superseded fetch", map[string]interface{}{"key": hash})
		if has {
			return current, nil
		}
		return data, err
	}
	if err != nil {
		e.err = err
		ns := s.collect(e)
		s.mu.Unlock()
		s.dispatch(ns)
		return nil, err
	}

	e.data = data
	e.hasData = true
	e.fetchedAt = s.now()
	e.invalidated = false
	e.err = nil
	ns := s.collect(e)
	s.mu.Unlock()

	s.dispatch(ns)
	s.persistSave(hash, data)
	return data, nil
}

func (s *Store) refreshAsync(hash string) {
	if s.ctx.Err() != nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.fetch(s.ctx, hash); err != nil && !errors.Is(err, errNoFetcher) {
			s.logger.Warn("background refresh failed", map[string]interface{}{
				"key":   hash,
				"error": err.Error(),
			})
		}
	}()
}

// ==========================
// Persistence
// ==========================

const persistTimeout = 3 * time.Second

func (s *Store) persistSave(hash string, data interface{}) {
	if s.persister == nil {
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		s.logger.Warn("cannot persist query result", map[string]interface{}{"key": hash, "error": err.Error()})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.persister.Save(ctx, hash, raw); err != nil {
		s.logger.Warn("persist failed", map[string]interface{}{"key": hash, "error": err.Error()})
	}
}

func (s *Store) persistLoad(ctx context.Context, hash string) ([]byte, bool) {
	if s.persister == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	raw, found, err := s.persister.Load(ctx, hash)
	if err != nil {
		s.logger.Warn("persisted query unavailable", map[string]interface{}{"key": hash, "error": err.Error()})
		return nil, false
	}
	return raw, found
}

func (s *Store) persistDelete(hash string) {
	if s.persister == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.persister.Delete(ctx, hash); err != nil {
		s.logger.Warn("persisted query delete failed", map[string]interface{}{"key": hash, "error": err.Error()})
	}
}

// ==========================
// Internals (store lock held)
// ==========================

func (s *Store) ensure(key Key) *entry {
	hash := key.Hash()
	e, ok := s.entries[hash]
	if !ok {
		e = &entry{key: append(Key(nil), key...)}
		s.entries[hash] = e
	}
	return e
}

func (s *Store) isStale(e *entry) bool {
	if !e.hasData || e.invalidated {
		return true
	}
	ttl := e.staleTime
	if ttl <= 0 {
		ttl = s.staleTime
	}
	return s.now().Sub(e.fetchedAt) > ttl
}

func (s *Store) stateOf(e *entry) State {
	return State{
		Key:        e.key,
		Data:       e.data,
		HasData:    e.hasData,
		FetchedAt:  e.fetchedAt,
		IsFetching: e.isFetching,
		Stale:      s.isStale(e),
		Err:        e.err,
	}
}

func (s *Store) collect(e *entry) []notification {
	st := s.stateOf(e)
	ns := make([]notification, 0, len(e.subscribers))
	for _, sub := range e.subscribers {
		ns = append(ns, notification{fn: sub.fn, state: st})
	}
	ids := make([]uint64, 0, len(s.prefixes))
	for id := range s.prefixes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		pl := s.prefixes[id]
		if e.key.HasPrefix(pl.prefix) {
			ns = append(ns, notification{fn: pl.fn, state: st})
		}
	}
	return ns
}

func (s *Store) cancelFetch(e *entry) {
	if e.isFetching && e.cancel != nil {
		e.cancel()
	}
	e.isFetching = false
	e.cancel = nil
}

func (s *Store) matching(prefix Key) []Key {
	var keys []Key
	for _, hash := range s.sortedHashes() {
		if e := s.entries[hash]; e.key.HasPrefix(prefix) {
			keys = append(keys, e.key)
		}
	}
	return keys
}

func (s *Store) sortedHashes() []string {
	hashes := make([]string, 0, len(s.entries))
	for h := range s.entries {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)
	return hashes
}

// dispatch runs listeners without the store lock held.
func (s *Store) dispatch(ns []notification) {
	for _, n := range ns {
		n.fn(n.state)
	}
}

func matchesAny(key Key, prefixes []Key) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if key.HasPrefix(p) {
			return true
		}
	}
	return false
}
