// Package store holds what the storage backends share: sentinel errors and
// the table layout of each owner class.
package store

import (
	"errors"
	"fmt"

	"schedcal/internal/model"
)

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrUnknownSource = errors.New("unknown schedule source")
)

// Table describes where the schedules of one owner class live.
type Table struct {
	Name        string
	OwnerColumn string
}

var tables = map[model.SourceTag]Table{
	model.SourceGroup:    {Name: "group_schedule", OwnerColumn: "group_id"},
	model.SourcePersonal: {Name: "personal_schedule", OwnerColumn: "user_id"},
}

// TableFor returns the table of source, or ErrUnknownSource.
func TableFor(source model.SourceTag) (Table, error) {
	t, ok := tables[source]
	if !ok {
		return Table{}, fmt.Errorf("%w: %q", ErrUnknownSource, string(source))
	}
	return t, nil
}
