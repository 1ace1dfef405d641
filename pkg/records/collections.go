package records

import (
	"errors"
	"strings"
)

var (
	ErrUnknownRole       = errors.New("unknown role")
	ErrUnknownCollection = errors.New("unknown collection")
)

// Collection names a Firestore collection mirrored by the data layer.
type Collection string

const (
	CollectionStaff             Collection = "staff"
	CollectionWorkLogs          Collection = "workLogs"
	CollectionAttendanceRecords Collection = "attendanceRecords"
	CollectionJobPostings       Collection = "jobPostings"
	CollectionApplications      Collection = "applications"
	CollectionTournaments       Collection = "tournaments"
)

// Collections lists every mirrored collection.
var Collections = []Collection{
	CollectionStaff,
	CollectionWorkLogs,
	CollectionAttendanceRecords,
	CollectionJobPostings,
	CollectionApplications,
	CollectionTournaments,
}

func ParseCollection(s string) (Collection, error) {
	for _, c := range Collections {
		if string(c) == s {
			return c, nil
		}
	}
	return "", ErrUnknownCollection
}

// Role is the permission tier used to scope queries.
type Role string

const (
	RoleStaff   Role = "staff"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

var Roles = []Role{RoleStaff, RoleManager, RoleAdmin}

// ParseRole normalizes a role string. "employer" is the legacy name of manager.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "staff":
		return RoleStaff, nil
	case "manager", "employer":
		return RoleManager, nil
	case "admin":
		return RoleAdmin, nil
	}
	return "", ErrUnknownRole
}

// Privileged reports whether the role manages postings and other staff.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleManager
}
