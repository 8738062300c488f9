package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"

	"schedcal/internal/model"
	"schedcal/internal/store"
)

// Owner ids are always bound as a single bigint[] parameter ($1).

const queryNonRecurringTmpl = `
SELECT id, %[2]s, title, content, start_date_time, end_date_time
FROM %[1]s
WHERE %[2]s = ANY($1)
  AND recurrence = 0
  AND NOT (end_date_time < $2 OR start_date_time > $3)
ORDER BY start_date_time, id
`

const queryRecurringTmpl = `
SELECT id, %[2]s, title, content, start_date_time, end_date_time,
       freq, "interval", byweekday, until
FROM %[1]s
WHERE %[2]s = ANY($1)
  AND recurrence = 1
  AND start_date_time <= $2
ORDER BY start_date_time, id
`

const queryGroupExists = `
SELECT EXISTS (SELECT 1 FROM groups WHERE group_id = $1)
`

const queryGroupMembers = `
SELECT user_id
FROM user_group
WHERE group_id = $1
ORDER BY user_id
`

type sourceQueries struct {
	nonRecurring string
	recurring    string
}

var queriesBySource = buildSourceQueries(model.SourceGroup, model.SourcePersonal)

func buildSourceQueries(sources ...model.SourceTag) map[model.SourceTag]sourceQueries {
	out := make(map[model.SourceTag]sourceQueries, len(sources))
	for _, src := range sources {
		t, err := store.TableFor(src)
		if err != nil {
			panic(err)
		}
		table := pgx.Identifier{t.Name}.Sanitize()
		owner := pgx.Identifier{t.OwnerColumn}.Sanitize()
		out[src] = sourceQueries{
			nonRecurring: fmt.Sprintf(queryNonRecurringTmpl, table, owner),
			recurring:    fmt.Sprintf(queryRecurringTmpl, table, owner),
		}
	}
	return out
}
