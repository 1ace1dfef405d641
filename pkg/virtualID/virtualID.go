package virtualID

import (
	"errors"
	"fmt"
	"strings"
	"time"

	timehelper "github.com/tholdem/uniqn-sync/pkg/timeHelper"
)

const prefix = "virtual_"

var ErrNotVirtual = errors.New("not a virtual work log id")

// Generate returns the id used for a work log that has no document yet.
func Generate(staffID, date string) string {
	return fmt.Sprintf("%s%s_%s", prefix, staffID, date)
}

func IsVirtual(id string) bool {
	return strings.HasPrefix(id, prefix)
}

// Decode splits a virtual id back into staff id and date. Staff ids may
// contain underscores; the date is always the last segment.
func Decode(id string) (staffID, date string, err error) {
	if !IsVirtual(id) {
		return "", "", ErrNotVirtual
	}
	rest := strings.TrimPrefix(id, prefix)
	i := strings.LastIndex(rest, "_")
	if i <= 0 || i == len(rest)-1 {
		return "", "", fmt.Errorf("not correct format: %q", id)
	}
	staffID, date = rest[:i], rest[i+1:]
	if _, err := time.Parse(timehelper.DateLayout, date); err != nil {
		return "", "", fmt.Errorf("not correct format: %q: %w", id, err)
	}
	return staffID, date, nil
}

// DocumentID is the deterministic document id of the single work log for
// a (staff, event, date) triple.
func DocumentID(eventID, staffID, date string) string {
	return fmt.Sprintf("%s_%s_%s", eventID, staffID, date)
}
