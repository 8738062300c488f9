package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedcal/internal/model"
	"schedcal/internal/store"
)

var (
	nonRecurringCols = []string{"id", "owner", "title", "content", "start_date_time", "end_date_time"}
	recurringCols    = []string{"id", "owner", "title", "content", "start_date_time", "end_date_time", "freq", "interval", "byweekday", "until"}
)

func ptr[T any](v T) *T { return &v }

func TestStore_FetchSchedules(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	w := model.Window{
		Start: time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2023, 4, 30, 23, 59, 59, 0, time.UTC),
	}
	spanStart := time.Date(2023, 4, 29, 23, 0, 0, 0, time.UTC)
	spanEnd := time.Date(2023, 5, 1, 1, 0, 0, 0, time.UTC)
	weeklyStart := time.Date(2023, 4, 3, 12, 0, 0, 0, time.UTC)
	until := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		source    model.SourceTag
		owners    []int64
		mockSetup func(mock pgxmock.PgxPoolIface)
		wantErr   bool
		want      func(t *testing.T, got []model.Event, rec []model.RecurringEvent)
	}{
		{
			name:   "group rows",
			source: model.SourceGroup,
			owners: []int64{1},
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM "group_schedule"(.+)recurrence = 0`).
					WithArgs([]int64{1}, w.Start, w.End).
					WillReturnRows(pgxmock.NewRows(nonRecurringCols).
						AddRow(int64(5), int64(1), "Trip", ptr("bring tent"), spanStart, spanEnd))
				mock.ExpectQuery(`FROM "group_schedule"(.+)recurrence = 1`).
					WithArgs([]int64{1}, w.End).
					WillReturnRows(pgxmock.NewRows(recurringCols).
						AddRow(int64(9), int64(1), "Standup", (*string)(nil), weeklyStart, weeklyStart.Add(time.Hour),
							ptr("weekly"), ptr(1), ptr("MO"), &until))
			},
			want: func(t *testing.T, got []model.Event, rec []model.RecurringEvent) {
				require.Len(t, got, 1)
				assert.Equal(t, int64(5), got[0].ID)
				assert.Equal(t, "bring tent", *got[0].Content)
				assert.Equal(t, spanStart, got[0].Start)

				require.Len(t, rec, 1)
				assert.Equal(t, int64(9), rec[0].ID)
				assert.Nil(t, rec[0].Content)
				assert.Equal(t, model.Weekly, rec[0].Rule.Freq)
				assert.Equal(t, 1, rec[0].Rule.Interval)
				assert.Equal(t, "MO", rec[0].Rule.ByWeekday)
				require.NotNil(t, rec[0].Rule.Until)
				assert.Equal(t, until, *rec[0].Rule.Until)
			},
		},
		{
			name:   "personal rows with null rule fields",
			source: model.SourcePersonal,
			owners: []int64{2, 3},
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM "personal_schedule"(.+)"user_id" = ANY\(\$1\)(.+)recurrence = 0`).
					WithArgs([]int64{2, 3}, w.Start, w.End).
					WillReturnRows(pgxmock.NewRows(nonRecurringCols))
				mock.ExpectQuery(`FROM "personal_schedule"(.+)recurrence = 1`).
					WithArgs([]int64{2, 3}, w.End).
					WillReturnRows(pgxmock.NewRows(recurringCols).
						AddRow(int64(3), int64(2), "Gym", ptr("legs"), weeklyStart, weeklyStart.Add(time.Hour),
							ptr("DAILY"), (*int)(nil), (*string)(nil), (*time.Time)(nil)))
			},
			want: func(t *testing.T, got []model.Event, rec []model.RecurringEvent) {
				assert.Empty(t, got)
				require.Len(t, rec, 1)
				assert.Equal(t, model.Daily, rec[0].Rule.Freq)
				assert.Equal(t, 0, rec[0].Rule.Interval)
				assert.Empty(t, rec[0].Rule.ByWeekday)
				assert.Nil(t, rec[0].Rule.Until)
			},
		},
		{
			name:      "no owners skips the database",
			source:    model.SourcePersonal,
			owners:    nil,
			mockSetup: func(mock pgxmock.PgxPoolIface) {},
			want: func(t *testing.T, got []model.Event, rec []model.RecurringEvent) {
				assert.Empty(t, got)
				assert.Empty(t, rec)
			},
		},
		{
			name:   "query failure",
			source: model.SourceGroup,
			owners: []int64{1},
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM "group_schedule"(.+)recurrence = 0`).
					WithArgs([]int64{1}, w.Start, w.End).
					WillReturnError(errors.New("connection reset"))
			},
			wantErr: true,
		},
		{
			name:   "recurring query failure",
			source: model.SourceGroup,
			owners: []int64{1},
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM "group_schedule"(.+)recurrence = 0`).
					WithArgs([]int64{1}, w.Start, w.End).
					WillReturnRows(pgxmock.NewRows(nonRecurringCols))
				mock.ExpectQuery(`FROM "group_schedule"(.+)recurrence = 1`).
					WithArgs([]int64{1}, w.End).
					WillReturnError(errors.New("timeout"))
			},
			wantErr: true,
		},
		{
			name:      "unknown source",
			source:    model.SourceTag("team"),
			owners:    []int64{1},
			mockSetup: func(mock pgxmock.PgxPoolIface) {},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mock, err := pgxmock.NewPool()
			require.NoError(t, err)

			defer mock.Close()

			tt.mockSetup(mock)

			s := New(mock, time.Second)
			got, err := s.FetchSchedules(ctx, tt.source, tt.owners, w)

			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				tt.want(t, got.NonRecurring, got.Recurring)
			}

			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_GroupMembers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	tests := []struct {
		name      string
		groupID   int64
		mockSetup func(mock pgxmock.PgxPoolIface)
		want      []int64
		wantErr   error
	}{
		{
			name:    "members",
			groupID: 1,
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT EXISTS`).
					WithArgs(int64(1)).
					WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
				mock.ExpectQuery(`SELECT user_id FROM user_group WHERE group_id = \$1`).
					WithArgs(int64(1)).
					WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow(int64(2)).AddRow(int64(3)))
			},
			want: []int64{2, 3},
		},
		{
			name:    "empty group",
			groupID: 4,
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT EXISTS`).
					WithArgs(int64(4)).
					WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
				mock.ExpectQuery(`SELECT user_id FROM user_group`).
					WithArgs(int64(4)).
					WillReturnRows(pgxmock.NewRows([]string{"user_id"}))
			},
			want: []int64{},
		},
		{
			name:    "missing group",
			groupID: 99,
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT EXISTS`).
					WithArgs(int64(99)).
					WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
			},
			wantErr: store.ErrGroupNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mock, err := pgxmock.NewPool()
			require.NoError(t, err)

			defer mock.Close()

			tt.mockSetup(mock)

			s := New(mock, 0)
			got, err := s.GroupMembers(ctx, tt.groupID)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}

			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
