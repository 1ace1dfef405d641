// Package state holds the in-memory view built from subscription actions,
// with memoized per-staff and per-posting lookups.
package state

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tholdem/uniqn-sync/pkg/cache"
	"github.com/tholdem/uniqn-sync/pkg/records"
	virtualID "github.com/tholdem/uniqn-sync/pkg/virtualID"
	"github.com/tholdem/uniqn-sync/services/unified"
)

// Snapshot is a copy of the store's state.
type Snapshot struct {
	Staff             map[string]records.Staff            `json:"staff"`
	WorkLogs          map[string]records.WorkLog          `json:"workLogs"`
	AttendanceRecords map[string]records.AttendanceRecord `json:"attendanceRecords"`
	JobPostings       map[string]records.JobPosting       `json:"jobPostings"`
	Applications      map[string]records.Application      `json:"applications"`
	Tournaments       map[string]records.Tournament       `json:"tournaments"`

	Loading     map[records.Collection]bool      `json:"loading"`
	Errors      map[records.Collection]string    `json:"errors"`
	LastUpdated map[records.Collection]time.Time `json:"lastUpdated"`
	Initial     bool                             `json:"initialLoading"`
}

type Store struct {
	mu       sync.RWMutex
	expected []records.Collection

	staff        map[string]records.Staff
	workLogs     map[string]records.WorkLog
	attendance   map[string]records.AttendanceRecord
	jobPostings  map[string]records.JobPosting
	applications map[string]records.Application
	tournaments  map[string]records.Tournament

	loading     map[records.Collection]bool
	errors      map[records.Collection]string
	lastUpdated map[records.Collection]time.Time
	generation  map[records.Collection]uint64

	staffLogs *cache.Memo[[]records.WorkLog]
	postApps  *cache.Memo[[]records.Application]
	logByDay  *cache.Memo[records.WorkLog]

	watchMu  sync.Mutex
	watchers map[int]chan unified.Action
	nextID   int
	closed   bool

	now func() time.Time
}

// NewStore creates a store expecting data for the given collections; they
// start out loading. memoSize bounds each derived-view memo.
func NewStore(expected []records.Collection, memoSize int) (*Store, error) {
	staffLogs, err := cache.NewMemo[[]records.WorkLog](memoSize)
	if err != nil {
		return nil, err
	}
	postApps, err := cache.NewMemo[[]records.Application](memoSize)
	if err != nil {
		return nil, err
	}
	logByDay, err := cache.NewMemo[records.WorkLog](memoSize)
	if err != nil {
		return nil, err
	}

	s := &Store{
		expected:     append([]records.Collection(nil), expected...),
		staff:        map[string]records.Staff{},
		workLogs:     map[string]records.WorkLog{},
		attendance:   map[string]records.AttendanceRecord{},
		jobPostings:  map[string]records.JobPosting{},
		applications: map[string]records.Application{},
		tournaments:  map[string]records.Tournament{},
		loading:      map[records.Collection]bool{},
		errors:       map[records.Collection]string{},
		lastUpdated:  map[records.Collection]time.Time{},
		generation:   map[records.Collection]uint64{},
		staffLogs:    staffLogs,
		postApps:     postApps,
		logByDay:     logByDay,
		watchers:     map[int]chan unified.Action{},
		now:          time.Now,
	}
	for _, col := range expected {
		s.loading[col] = true
	}
	return s, nil
}

// Apply reduces a into the store and forwards it to watchers. It has the
// signature of a unified.Dispatcher.
func (s *Store) Apply(a unified.Action) {
	s.mu.Lock()
	switch a := a.(type) {
	case unified.SetLoading:
		s.loading[a.Collection] = a.Loading
	case unified.SetError:
		if a.Message == "" {
			delete(s.errors, a.Collection)
		} else {
			s.errors[a.Collection] = a.Message
		}
	case unified.SetStaff:
		m := make(map[string]records.Staff, len(a.Data))
		for _, v := range a.Data {
			m[v.StaffID] = v
		}
		s.staff = m
		s.touch(records.CollectionStaff)
	case unified.SetWorkLogs:
		m := make(map[string]records.WorkLog, len(a.Data))
		for _, v := range a.Data {
			m[v.ID] = v
		}
		s.workLogs = m
		s.touch(records.CollectionWorkLogs)
	case unified.SetAttendanceRecords:
		m := make(map[string]records.AttendanceRecord, len(a.Data))
		for _, v := range a.Data {
			m[v.ID] = v
		}
		s.attendance = m
		s.touch(records.CollectionAttendanceRecords)
	case unified.SetJobPostings:
		m := make(map[string]records.JobPosting, len(a.Data))
		for _, v := range a.Data {
			m[v.ID] = v
		}
		s.jobPostings = m
		s.touch(records.CollectionJobPostings)
	case unified.SetApplications:
		m := make(map[string]records.Application, len(a.Data))
		for _, v := range a.Data {
			m[v.ID] = v
		}
		s.applications = m
		s.touch(records.CollectionApplications)
	case unified.SetTournaments:
		m := make(map[string]records.Tournament, len(a.Data))
		for _, v := range a.Data {
			m[v.ID] = v
		}
		s.tournaments = m
		s.touch(records.CollectionTournaments)
	}
	s.mu.Unlock()

	s.broadcast(a)
}

// touch must be called with mu held.
func (s *Store) touch(col records.Collection) {
	s.lastUpdated[col] = s.now()
	s.generation[col]++
}

// Invalidate forces derived views of col to be recomputed.
func (s *Store) Invalidate(col records.Collection) {
	s.mu.Lock()
	s.generation[col]++
	s.mu.Unlock()
}

// Generation counts the data updates of col.
func (s *Store) Generation(col records.Collection) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation[col]
}

// Expected lists the collections the store was created for.
func (s *Store) Expected() []records.Collection {
	return append([]records.Collection(nil), s.expected...)
}

// Initial reports whether any expected collection is still loading.
func (s *Store) Initial() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initial()
}

func (s *Store) initial() bool {
	for _, col := range s.expected {
		if s.loading[col] {
			return true
		}
	}
	return false
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Staff:             copyMap(s.staff),
		WorkLogs:          copyMap(s.workLogs),
		AttendanceRecords: copyMap(s.attendance),
		JobPostings:       copyMap(s.jobPostings),
		Applications:      copyMap(s.applications),
		Tournaments:       copyMap(s.tournaments),
		Loading:           copyMap(s.loading),
		Errors:            copyMap(s.errors),
		LastUpdated:       copyMap(s.lastUpdated),
		Initial:           s.initial(),
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// WorkLogsForStaff returns the work logs of staffID, newest date first.
func (s *Store) WorkLogsForStaff(staffID string) []records.WorkLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := fmt.Sprintf("%d:%s", s.generation[records.CollectionWorkLogs], staffID)
	return s.staffLogs.Get(key, func() []records.WorkLog {
		out := []records.WorkLog{}
		for _, wl := range s.workLogs {
			if wl.StaffID == staffID {
				out = append(out, wl)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Date != out[j].Date {
				return out[i].Date > out[j].Date
			}
			return out[i].ID < out[j].ID
		})
		return out
	})
}

// ApplicationsForPost returns the applications of a job posting ordered
// by id.
func (s *Store) ApplicationsForPost(postID string) []records.Application {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := fmt.Sprintf("%d:%s", s.generation[records.CollectionApplications], postID)
	return s.postApps.Get(key, func() []records.Application {
		out := []records.Application{}
		for _, a := range s.applications {
			if a.PostID == postID {
				out = append(out, a)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return out
	})
}

// WorkLogFor returns the work log of a staff member at an event on date.
// When none exists a virtual one is returned, identified by a virtual id
// and in status not_started.
func (s *Store) WorkLogFor(staffID, eventID, date string) records.WorkLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := fmt.Sprintf("%d:%d:%s|%s|%s",
		s.generation[records.CollectionWorkLogs], s.generation[records.CollectionStaff], staffID, eventID, date)
	return s.logByDay.Get(key, func() records.WorkLog {
		var found *records.WorkLog
		for id, wl := range s.workLogs {
			if wl.StaffID == staffID && wl.EventID == eventID && wl.Date == date {
				// several documents for one day break the one-log-per-day
				// rule; pick the smallest id so the answer is stable
				if found == nil || id < found.ID {
					v := wl
					found = &v
				}
			}
		}
		if found != nil {
			return *found
		}
		return s.virtualWorkLog(staffID, eventID, date)
	})
}

func (s *Store) virtualWorkLog(staffID, eventID, date string) records.WorkLog {
	wl := records.WorkLogFromDocument(records.Document{
		ID: virtualID.Generate(staffID, date),
		Data: map[string]interface{}{
			"staffId": staffID,
			"eventId": eventID,
			"date":    date,
		},
	})
	if st, ok := s.staff[staffID]; ok {
		wl.StaffName = st.Name
		wl.StaffInfo.Name = st.Name
		wl.StaffInfo.Phone = st.Phone
		wl.StaffInfo.Email = st.Email
		wl.AssignmentInfo.AssignedRole = st.AssignedRole
		wl.AssignmentInfo.AssignedTime = st.AssignedTime
		wl.AssignedTime = st.AssignedTime
	}
	return wl
}

// Watch registers a watcher receiving every applied action. Sends never
// block: a watcher whose buffer is full misses the action. cancel
// unregisters and closes the channel.
func (s *Store) Watch(buffer int) (<-chan unified.Action, func()) {
	ch := make(chan unified.Action, buffer)
	s.watchMu.Lock()
	if s.closed {
		s.watchMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch
	s.watchMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.watchMu.Lock()
			if _, ok := s.watchers[id]; ok {
				delete(s.watchers, id)
				close(ch)
			}
			s.watchMu.Unlock()
		})
	}
}

// Close ends every watch. Later watches receive a closed channel.
func (s *Store) Close() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	s.closed = true
	for id, ch := range s.watchers {
		delete(s.watchers, id)
		close(ch)
	}
}

func (s *Store) broadcast(a unified.Action) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for _, ch := range s.watchers {
		select {
		case ch <- a:
		default:
		}
	}
}
