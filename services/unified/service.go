package unified

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tholdem/uniqn-sync/pkg/cache"
	"github.com/tholdem/uniqn-sync/pkg/metrics"
	"github.com/tholdem/uniqn-sync/pkg/query"
	"github.com/tholdem/uniqn-sync/pkg/records"
)

var (
	ErrMissingUser       = errors.New("user id is required")
	ErrMissingDispatcher = errors.New("dispatcher is required")
)

// Listener opens a live query. onSnapshot receives the complete result of
// spec on every change and onError ends the listener. The returned stop
// must be idempotent.
type Listener interface {
	Listen(ctx context.Context, spec query.Spec, onSnapshot func([]records.Document), onError func(error)) (stop func(), err error)
}

// Report is the tracker snapshot plus the current cache size.
type Report struct {
	metrics.Metrics
	CacheSize int `json:"cacheSize"`
}

type Service struct {
	cache       *cache.Store
	tracker     *metrics.Tracker
	selector    *query.Selector
	listener    Listener
	logger      *zap.Logger
	now         func() time.Time
	listenOnHit bool
}

type Option func(*Service)

// WithListenOnHit makes a cache hit still open a live listener after the
// cached data is dispatched. By default a hit skips the listener and the
// collection stays as cached until the entry expires and the caller
// subscribes again.
func WithListenOnHit(listen bool) Option {
	return func(s *Service) {
		s.listenOnHit = listen
	}
}

// WithNow replaces time.Now for window computation.
func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewUnifiedService(c *cache.Store, tracker *metrics.Tracker, selector *query.Selector, listener Listener, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		cache:    c,
		tracker:  tracker,
		selector: selector,
		listener: listener,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscriptions is the set of live listeners opened by one Subscribe call.
type Subscriptions struct {
	mu       sync.RWMutex
	closed   bool
	stops    map[records.Collection]func()
	dispatch Dispatcher
}

func (subs *Subscriptions) deliver(a Action) {
	subs.mu.RLock()
	defer subs.mu.RUnlock()
	if subs.closed {
		return
	}
	subs.dispatch(a)
}

func (subs *Subscriptions) add(col records.Collection, stop func()) {
	subs.mu.Lock()
	closed := subs.closed
	if !closed {
		subs.stops[col] = stop
	}
	subs.mu.Unlock()
	if closed {
		stop()
	}
}

// Collections lists the collections with an open listener.
func (subs *Subscriptions) Collections() []records.Collection {
	if subs == nil {
		return nil
	}
	subs.mu.RLock()
	defer subs.mu.RUnlock()
	out := make([]records.Collection, 0, len(subs.stops))
	for col := range subs.stops {
		out = append(out, col)
	}
	return out
}

// Close stops every listener. It is idempotent and safe on a nil receiver.
// Once Close returns the dispatcher is not called again. Close must not be
// called from inside the dispatcher.
func (subs *Subscriptions) Close() {
	if subs == nil {
		return
	}
	subs.mu.Lock()
	if subs.closed {
		subs.mu.Unlock()
		return
	}
	subs.closed = true
	stops := subs.stops
	subs.stops = nil
	subs.mu.Unlock()

	for _, stop := range stops {
		if stop != nil {
			stop()
		}
	}
}

func cacheKey(col records.Collection, role records.Role, userID string) string {
	return fmt.Sprintf("%s:%s:%s", col, role, userID)
}

// Subscribe subscribes userID, in role, to every collection the role may
// see. Cached collections are dispatched immediately; the rest get a live
// listener. Listener failures are dispatched as SetError and do not fail
// the call. Listeners outlive ctx cancellation and end on Close.
func (s *Service) Subscribe(ctx context.Context, dispatch Dispatcher, userID string, role records.Role) (*Subscriptions, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	if dispatch == nil {
		return nil, ErrMissingDispatcher
	}
	specs, err := s.selector.Select(role, userID, s.now())
	if err != nil {
		return nil, err
	}

	subs := &Subscriptions{
		stops:    map[records.Collection]func(){},
		dispatch: dispatch,
	}
	listenCtx := context.WithoutCancel(ctx)

	for _, col := range s.selector.Subscribed(role) {
		key := cacheKey(col, role, userID)
		if cached, ok := s.cache.Get(key); ok {
			s.tracker.IncrementCacheHits()
			subs.deliver(cached.(Action))
			subs.deliver(SetLoading{Collection: col, Loading: false})
			s.logger.Debug("cache hit",
				zap.String("collection", string(col)),
				zap.String("key", key))
			if !s.listenOnHit {
				continue
			}
		} else {
			s.tracker.IncrementCacheMisses()
			subs.deliver(SetLoading{Collection: col, Loading: true})
		}
		s.listen(listenCtx, subs, specs[col], key)
	}

	s.logger.Info("subscribed",
		zap.String("userId", userID),
		zap.String("role", string(role)),
		zap.Int("listeners", len(subs.Collections())))
	return subs, nil
}

func (s *Service) listen(ctx context.Context, subs *Subscriptions, spec query.Spec, key string) {
	col := spec.Collection
	b := bindings[col]
	stopTimer := s.tracker.StartTimer()
	var first sync.Once

	onSnapshot := func(docs []records.Document) {
		first.Do(func() {
			elapsed := stopTimer()
			s.logger.Debug("first snapshot",
				zap.String("collection", string(col)),
				zap.Int("documents", len(docs)),
				zap.Duration("elapsed", elapsed))
		})
		action := b.decode(docs)
		s.cache.Set(key, action, string(col))
		subs.deliver(action)
		subs.deliver(SetLoading{Collection: col, Loading: false})
		subs.deliver(SetError{Collection: col})
		if saved := int(math.Floor(float64(len(docs)) * b.savings)); saved > 0 {
			s.tracker.RecordOptimizationSavings(saved)
		}
	}
	onError := func(err error) {
		s.fail(subs, col, err)
	}

	stop, err := s.listener.Listen(ctx, spec, onSnapshot, onError)
	if err != nil {
		s.fail(subs, col, err)
		return
	}
	s.tracker.IncrementSubscriptions()
	subs.add(col, stop)
}

func (s *Service) fail(subs *Subscriptions, col records.Collection, err error) {
	s.tracker.IncrementErrors()
	s.logger.Error("listener failed",
		zap.String("collection", string(col)),
		zap.Error(err))
	subs.deliver(SetError{Collection: col, Message: err.Error()})
	subs.deliver(SetLoading{Collection: col, Loading: false})
}

// UnsubscribeAll closes subs. A nil subs is a no-op.
func (s *Service) UnsubscribeAll(subs *Subscriptions) {
	subs.Close()
}

// InvalidateCache drops every cached entry of col, for all roles and
// users, and returns the number removed.
func (s *Service) InvalidateCache(col records.Collection) (int, error) {
	if _, err := records.ParseCollection(string(col)); err != nil {
		return 0, fmt.Errorf("%w: %q", err, col)
	}
	n := s.cache.InvalidateCollection(string(col))
	s.logger.Info("cache invalidated",
		zap.String("collection", string(col)),
		zap.Int("entries", n))
	return n, nil
}

// Subscribed lists the collections Subscribe covers for role.
func (s *Service) Subscribed(role records.Role) []records.Collection {
	return s.selector.Subscribed(role)
}

// Plan returns the query specs Subscribe would open for role and userID.
func (s *Service) Plan(userID string, role records.Role) ([]query.Spec, error) {
	specs, err := s.selector.Select(role, userID, s.now())
	if err != nil {
		return nil, err
	}
	var out []query.Spec
	for _, col := range s.selector.Subscribed(role) {
		out = append(out, specs[col])
	}
	return out, nil
}

func (s *Service) Metrics() Report {
	return Report{
		Metrics:   s.tracker.Metrics(),
		CacheSize: s.cache.Len(),
	}
}
