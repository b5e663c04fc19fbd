package warehouse

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTableID is returned by ParseTableID
var ErrInvalidTableID = errors.New("invalid table id")

// LedgerTable records every load job next to the destination tables
const LedgerTable = "encm_load_jobs"

// TableID names a destination table. Project may be empty, in which case
// the backend's own project applies.
type TableID struct {
	Project string
	Dataset string
	Table   string
}

// ParseTableID accepts "project.dataset.table", "project:dataset.table"
// and "dataset.table".
func ParseTableID(s string) (TableID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TableID{}, fmt.Errorf("%w: empty", ErrInvalidTableID)
	}

	var id TableID
	rest := s
	if project, after, ok := strings.Cut(s, ":"); ok {
		id.Project = project
		rest = after
		parts := strings.Split(rest, ".")
		if len(parts) != 2 {
			return TableID{}, fmt.Errorf("%w: %q", ErrInvalidTableID, s)
		}
		id.Dataset, id.Table = parts[0], parts[1]
	} else {
		parts := strings.Split(rest, ".")
		switch len(parts) {
		case 2:
			id.Dataset, id.Table = parts[0], parts[1]
		case 3:
			id.Project, id.Dataset, id.Table = parts[0], parts[1], parts[2]
		default:
			return TableID{}, fmt.Errorf("%w: %q", ErrInvalidTableID, s)
		}
	}

	if id.Dataset == "" || id.Table == "" || (strings.Contains(s, ":") && id.Project == "") {
		return TableID{}, fmt.Errorf("%w: %q", ErrInvalidTableID, s)
	}
	if strings.ContainsAny(id.Project+id.Dataset+id.Table, " \t\n:") {
		return TableID{}, fmt.Errorf("%w: %q", ErrInvalidTableID, s)
	}
	if id.Table == LedgerTable || id.FlatName() == LedgerTable {
		return TableID{}, fmt.Errorf("%w: %q is reserved for the load ledger", ErrInvalidTableID, s)
	}
	return id, nil
}

// String renders the id in dotted form
func (id TableID) String() string {
	if id.Project == "" {
		return id.Dataset + "." + id.Table
	}
	return id.Project + "." + id.Dataset + "." + id.Table
}

// WithProject fills an empty Project
func (id TableID) WithProject(project string) TableID {
	if id.Project == "" {
		id.Project = project
	}
	return id
}

// FlatName is the single-identifier form used by backends without
// datasets: "dataset_table".
func (id TableID) FlatName() string {
	return id.Dataset + "_" + id.Table
}
