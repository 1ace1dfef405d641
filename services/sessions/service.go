package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/samborkent/uuidv7"
	"go.uber.org/zap"

	"github.com/tholdem/uniqn-sync/pkg/records"
	firestore "github.com/tholdem/uniqn-sync/repos/firestore"
	"github.com/tholdem/uniqn-sync/services/state"
	"github.com/tholdem/uniqn-sync/services/unified"
)

var ErrNoSession = errors.New("no active session")

// DataService is the subscription layer sessions are built on.
type DataService interface {
	Subscribe(ctx context.Context, dispatch unified.Dispatcher, userID string, role records.Role) (*unified.Subscriptions, error)
	Subscribed(role records.Role) []records.Collection
	InvalidateCache(col records.Collection) (int, error)
	Metrics() unified.Report
}

// StatusWriter forces the status of work logs.
type StatusWriter interface {
	SetStatus(ctx context.Context, eventID string, ids []string, status records.WorkLogStatus) (*firestore.StatusResult, error)
}

// Session is the live data view of one user.
type Session struct {
	ID        string
	UserID    string
	Role      records.Role
	CreatedAt time.Time
	Store     *state.Store

	subs *unified.Subscriptions
}

// end stops the listeners and then ends streaming watches.
func (s *Session) end() {
	s.subs.Close()
	s.Store.Close()
}

// Collections lists the collections with an open listener. Collections
// served from cache at open time are not listed.
func (s *Session) Collections() []records.Collection {
	return s.subs.Collections()
}

type SessionService struct {
	data     DataService
	writer   StatusWriter
	memoSize int
	logger   *zap.Logger

	mu     sync.Mutex
	byUser map[string]*Session
}

func NewSessionService(data DataService, writer StatusWriter, memoSize int, logger *zap.Logger) *SessionService {
	return &SessionService{
		data:     data,
		writer:   writer,
		memoSize: memoSize,
		logger:   logger,
		byUser:   map[string]*Session{},
	}
}

// Open returns the session of userID, subscribing a new one when none
// exists. A session opened with a different role is replaced.
func (s *SessionService) Open(ctx context.Context, userID string, role records.Role) (*Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byUser[userID]; ok {
		if existing.Role == role {
			return existing, false, nil
		}
		existing.end()
		delete(s.byUser, userID)
		s.logger.Info("session replaced",
			zap.String("sessionId", existing.ID),
			zap.String("userId", userID),
			zap.String("role", string(existing.Role)))
	}

	store, err := state.NewStore(s.data.Subscribed(role), s.memoSize)
	if err != nil {
		return nil, false, err
	}
	subs, err := s.data.Subscribe(ctx, store.Apply, userID, role)
	if err != nil {
		return nil, false, err
	}

	session := &Session{
		ID:        uuidv7.New().String(),
		UserID:    userID,
		Role:      role,
		CreatedAt: time.Now(),
		Store:     store,
		subs:      subs,
	}
	s.byUser[userID] = session
	s.logger.Info("session opened",
		zap.String("sessionId", session.ID),
		zap.String("userId", userID),
		zap.String("role", string(role)))
	return session, true, nil
}

func (s *SessionService) Get(userID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.byUser[userID]
	if !ok {
		return nil, ErrNoSession
	}
	return session, nil
}

// Close unsubscribes and forgets the session of userID.
func (s *SessionService) Close(userID string) error {
	s.mu.Lock()
	session, ok := s.byUser[userID]
	delete(s.byUser, userID)
	s.mu.Unlock()

	if !ok {
		return ErrNoSession
	}
	session.end()
	s.logger.Info("session closed",
		zap.String("sessionId", session.ID),
		zap.String("userId", userID))
	return nil
}

func (s *SessionService) CloseAll() {
	s.mu.Lock()
	sessions := s.byUser
	s.byUser = map[string]*Session{}
	s.mu.Unlock()

	for _, session := range sessions {
		session.end()
	}
	s.logger.Info("sessions closed", zap.Int("count", len(sessions)))
}

func (s *SessionService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byUser)
}

func (s *SessionService) Metrics() unified.Report {
	return s.data.Metrics()
}

// InvalidateCache drops the cached results of col and forces the derived
// views of every open session to be recomputed.
func (s *SessionService) InvalidateCache(col records.Collection) (int, error) {
	n, err := s.data.InvalidateCache(col)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	for _, session := range s.byUser {
		session.Store.Invalidate(col)
	}
	s.mu.Unlock()
	return n, nil
}

func (s *SessionService) SetWorkLogStatus(ctx context.Context, eventID string, ids []string, status records.WorkLogStatus) (*firestore.StatusResult, error) {
	return s.writer.SetStatus(ctx, eventID, ids, status)
}
