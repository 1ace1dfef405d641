// Package query selects the role-scoped Firestore query for each mirrored
// collection. Selection is pure: the same role, user and clock always
// produce the same Spec.
package query

import (
	"fmt"
	"strings"

	"github.com/tholdem/uniqn-sync/pkg/records"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Filter is a single field predicate. Op uses Firestore operator syntax
// ("==", ">=", "in", ...).
type Filter struct {
	Field string      `json:"field" yaml:"field"`
	Op    string      `json:"op" yaml:"op"`
	Value interface{} `json:"value" yaml:"value"`
}

// Spec describes a query against one collection. Limit 0 means uncapped.
type Spec struct {
	Collection records.Collection `json:"collection" yaml:"collection"`
	Filters    []Filter           `json:"filters" yaml:"filters"`
	OrderBy    string             `json:"orderBy" yaml:"orderBy"`
	Direction  Direction          `json:"direction" yaml:"direction"`
	Limit      int                `json:"limit" yaml:"limit"`
}

func (s Spec) String() string {
	var b strings.Builder
	b.WriteString(string(s.Collection))
	for _, f := range s.Filters {
		fmt.Fprintf(&b, " where %s %s %v", f.Field, f.Op, f.Value)
	}
	if s.OrderBy != "" {
		fmt.Fprintf(&b, " orderBy %s %s", s.OrderBy, s.Direction)
	}
	if s.Limit > 0 {
		fmt.Fprintf(&b, " limit %d", s.Limit)
	}
	return b.String()
}
