package query

import "github.com/tholdem/uniqn-sync/pkg/records"

// Window is a look-back period measured in calendar units.
type Window struct {
	Years  int `json:"years" yaml:"years" validate:"gte=0"`
	Months int `json:"months" yaml:"months" validate:"gte=0"`
	Days   int `json:"days" yaml:"days" validate:"gte=0"`
}

func (w Window) IsZero() bool {
	return w.Years == 0 && w.Months == 0 && w.Days == 0
}

// Config holds the per-role row caps and look-back windows. A missing cap
// means the query is uncapped; a missing window means no date filter.
type Config struct {
	RowCaps map[records.Role]map[records.Collection]int
	Windows map[records.Role]map[records.Collection]Window
}

func DefaultConfig() Config {
	return Config{
		RowCaps: map[records.Role]map[records.Collection]int{
			records.RoleStaff: {
				records.CollectionWorkLogs:          50,
				records.CollectionJobPostings:       50,
				records.CollectionAttendanceRecords: 30,
				records.CollectionTournaments:       20,
				records.CollectionStaff:             200,
			},
			records.RoleManager: {
				records.CollectionWorkLogs:          200,
				records.CollectionApplications:      100,
				records.CollectionAttendanceRecords: 500,
				records.CollectionTournaments:       20,
				records.CollectionStaff:             200,
			},
			records.RoleAdmin: {
				records.CollectionWorkLogs:          500,
				records.CollectionApplications:      100,
				records.CollectionAttendanceRecords: 500,
				records.CollectionTournaments:       20,
				records.CollectionStaff:             200,
			},
		},
		Windows: map[records.Role]map[records.Collection]Window{
			records.RoleManager: {
				records.CollectionWorkLogs:          {Months: 3},
				records.CollectionAttendanceRecords: {Days: 7},
			},
			records.RoleAdmin: {
				records.CollectionWorkLogs:          {Years: 1},
				records.CollectionAttendanceRecords: {Days: 7},
			},
		},
	}
}

func (c Config) cap(role records.Role, col records.Collection) int {
	return c.RowCaps[role][col]
}

func (c Config) window(role records.Role, col records.Collection) (Window, bool) {
	w, ok := c.Windows[role][col]
	if !ok || w.IsZero() {
		return Window{}, false
	}
	return w, true
}
