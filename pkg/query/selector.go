package query

import (
	"fmt"
	"time"

	"github.com/tholdem/uniqn-sync/pkg/records"
	timehelper "github.com/tholdem/uniqn-sync/pkg/timeHelper"
)

var (
	activePostingStatuses     = []string{"open", "in_progress", "completed"}
	activeApplicationStatuses = []string{"applied", "confirmed"}
	activeTournamentStatuses  = []string{"scheduled", "ongoing"}
)

// windowFields names the 'YYYY-MM-DD' field a look-back window filters on.
// Collections absent here cannot be windowed.
var windowFields = map[records.Collection]string{
	records.CollectionWorkLogs:          "date",
	records.CollectionAttendanceRecords: "date",
	records.CollectionTournaments:       "date",
}

// Windowable reports whether a look-back window may be configured for col.
func Windowable(col records.Collection) bool {
	_, ok := windowFields[col]
	return ok
}

// subscriptionOrder is the order in which collections are subscribed.
var subscriptionOrder = []records.Collection{
	records.CollectionJobPostings,
	records.CollectionApplications,
	records.CollectionWorkLogs,
	records.CollectionStaff,
	records.CollectionAttendanceRecords,
	records.CollectionTournaments,
}

type Selector struct {
	cfg Config
}

func NewSelector(cfg Config) *Selector {
	return &Selector{cfg: cfg}
}

// Subscribed lists, in subscription order, the collections a role listens
// to. Staff do not load the staff roster or attendance records.
func (s *Selector) Subscribed(role records.Role) []records.Collection {
	out := make([]records.Collection, 0, len(subscriptionOrder))
	for _, col := range subscriptionOrder {
		if role == records.RoleStaff && (col == records.CollectionStaff || col == records.CollectionAttendanceRecords) {
			continue
		}
		out = append(out, col)
	}
	return out
}

// Select returns the query Spec of every collection for role and userID.
func (s *Selector) Select(role records.Role, userID string, now time.Time) (map[records.Collection]Spec, error) {
	out := make(map[records.Collection]Spec, len(records.Collections))
	for _, col := range records.Collections {
		spec, err := s.For(col, role, userID, now)
		if err != nil {
			return nil, err
		}
		out[col] = spec
	}
	return out, nil
}

// For returns the query Spec of a single collection.
func (s *Selector) For(col records.Collection, role records.Role, userID string, now time.Time) (Spec, error) {
	switch role {
	case records.RoleStaff, records.RoleManager, records.RoleAdmin:
	default:
		return Spec{}, fmt.Errorf("%w: %q", records.ErrUnknownRole, role)
	}

	spec := Spec{Collection: col, Direction: Desc, Limit: s.cfg.cap(role, col)}
	staff := role == records.RoleStaff

	switch col {
	case records.CollectionWorkLogs:
		spec.OrderBy = "date"
		if staff {
			spec.Filters = append(spec.Filters, Filter{Field: "staffId", Op: "==", Value: userID})
		}
	case records.CollectionApplications:
		spec.OrderBy = "appliedAt"
		if staff {
			spec.Filters = append(spec.Filters, Filter{Field: "applicantId", Op: "==", Value: userID})
		} else {
			spec.Filters = append(spec.Filters, Filter{Field: "status", Op: "in", Value: activeApplicationStatuses})
		}
	case records.CollectionJobPostings:
		spec.OrderBy = "createdAt"
		if staff {
			spec.Filters = append(spec.Filters, Filter{Field: "status", Op: "in", Value: activePostingStatuses})
		} else {
			spec.Filters = append(spec.Filters, Filter{Field: "createdBy", Op: "==", Value: userID})
		}
	case records.CollectionAttendanceRecords:
		spec.OrderBy = "createdAt"
		if staff {
			spec.Filters = append(spec.Filters, Filter{Field: "staffId", Op: "==", Value: userID})
		}
	case records.CollectionTournaments:
		spec.OrderBy = "date"
		spec.Filters = append(spec.Filters, Filter{Field: "status", Op: "in", Value: activeTournamentStatuses})
	case records.CollectionStaff:
		spec.OrderBy = "createdAt"
	default:
		return Spec{}, fmt.Errorf("%w: %q", records.ErrUnknownCollection, col)
	}

	if w, ok := s.cfg.window(role, col); ok {
		if field, ok := windowFields[col]; ok {
			spec.Filters = append(spec.Filters, Filter{
				Field: field,
				Op:    ">=",
				Value: timehelper.DateBefore(now, w.Years, w.Months, w.Days),
			})
		}
	}
	return spec, nil
}
