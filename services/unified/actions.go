package unified

import "github.com/tholdem/uniqn-sync/pkg/records"

// Action is a state change emitted by the subscription service. The set of
// actions is closed: only the types in this file implement it.
type Action interface {
	// Name is the wire name of the action, used by streaming clients.
	Name() string
	action()
}

// Dispatcher receives actions. Calls for one collection are sequential;
// calls for different collections may be concurrent.
type Dispatcher func(Action)

type SetLoading struct {
	Collection records.Collection `json:"collection"`
	Loading    bool               `json:"loading"`
}

// SetError carries the last listener error of a collection. An empty
// Message clears it.
type SetError struct {
	Collection records.Collection `json:"collection"`
	Message    string             `json:"error"`
}

type SetStaff struct {
	Data []records.Staff `json:"data"`
}

type SetWorkLogs struct {
	Data []records.WorkLog `json:"data"`
}

type SetAttendanceRecords struct {
	Data []records.AttendanceRecord `json:"data"`
}

type SetJobPostings struct {
	Data []records.JobPosting `json:"data"`
}

type SetApplications struct {
	Data []records.Application `json:"data"`
}

type SetTournaments struct {
	Data []records.Tournament `json:"data"`
}

func (SetLoading) Name() string           { return "SET_LOADING" }
func (SetError) Name() string             { return "SET_ERROR" }
func (SetStaff) Name() string             { return "SET_STAFF" }
func (SetWorkLogs) Name() string          { return "SET_WORK_LOGS" }
func (SetAttendanceRecords) Name() string { return "SET_ATTENDANCE_RECORDS" }
func (SetJobPostings) Name() string       { return "SET_JOB_POSTINGS" }
func (SetApplications) Name() string      { return "SET_APPLICATIONS" }
func (SetTournaments) Name() string       { return "SET_TOURNAMENTS" }

func (SetLoading) action()           {}
func (SetError) action()             {}
func (SetStaff) action()             {}
func (SetWorkLogs) action()          {}
func (SetAttendanceRecords) action() {}
func (SetJobPostings) action()       {}
func (SetApplications) action()      {}
func (SetTournaments) action()       {}

// binding ties a collection to its decoder and to the read-savings
// multiplier reported for it.
type binding struct {
	savings float64
	decode  func([]records.Document) Action
}

var bindings = map[records.Collection]binding{
	records.CollectionStaff: {
		decode: func(docs []records.Document) Action {
			out := make([]records.Staff, 0, len(docs))
			for _, d := range docs {
				out = append(out, records.StaffFromDocument(d))
			}
			return SetStaff{Data: out}
		},
	},
	records.CollectionWorkLogs: {
		savings: 2,
		decode: func(docs []records.Document) Action {
			out := make([]records.WorkLog, 0, len(docs))
			for _, d := range docs {
				out = append(out, records.WorkLogFromDocument(d))
			}
			return SetWorkLogs{Data: out}
		},
	},
	records.CollectionAttendanceRecords: {
		decode: func(docs []records.Document) Action {
			out := make([]records.AttendanceRecord, 0, len(docs))
			for _, d := range docs {
				out = append(out, records.AttendanceRecordFromDocument(d))
			}
			return SetAttendanceRecords{Data: out}
		},
	},
	records.CollectionJobPostings: {
		savings: 0.7,
		decode: func(docs []records.Document) Action {
			out := make([]records.JobPosting, 0, len(docs))
			for _, d := range docs {
				out = append(out, records.JobPostingFromDocument(d))
			}
			return SetJobPostings{Data: out}
		},
	},
	records.CollectionApplications: {
		savings: 0.8,
		decode: func(docs []records.Document) Action {
			out := make([]records.Application, 0, len(docs))
			for _, d := range docs {
				out = append(out, records.ApplicationFromDocument(d))
			}
			return SetApplications{Data: out}
		},
	},
	records.CollectionTournaments: {
		decode: func(docs []records.Document) Action {
			out := make([]records.Tournament, 0, len(docs))
			for _, d := range docs {
				out = append(out, records.TournamentFromDocument(d))
			}
			return SetTournaments{Data: out}
		},
	},
}
