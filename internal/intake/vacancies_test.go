package intake

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"recruit-intake/internal/common/config"
	"recruit-intake/internal/common/logger"
	"recruit-intake/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUpserter(t *testing.T, store Store, policy string) *VacancyUpserter {
	u := NewVacancyUpserter(store, policy, logger.NewTestLogger(t))
	u.now = func() time.Time { return time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC) }
	return u
}

func mustNormalize(t *testing.T, raw string) *Record {
	t.Helper()
	rec, err := Normalize(json.RawMessage(raw))
	require.NoError(t, err)
	return rec
}

func TestVacancyUpserter_CreateThenUpdate(t *testing.T) {
	store := newMemStore()
	u := newTestUpserter(t, store, config.DatePolicyReject)
	ctx := context.Background()

	rec := mustNormalize(t, `{"adzuna_id":"a1","title":"Math Teacher","school_name":"Oak School","salary_min":30000}`)
	v, outcome, err := u.Upsert(ctx, rec, "school-1")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCreated, outcome)
	assert.Equal(t, models.DefaultVacancyStatus, v.Status)
	assert.NotEmpty(t, v.ID)

	rec = mustNormalize(t, `{"adzuna_id":"a1","title":"Senior Math Teacher","school_name":"Oak School","status":"reviewed"}`)
	_, outcome, err = u.Upsert(ctx, rec, "school-2")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeUpdated, outcome)

	stored := store.vacancyBySource("a1")
	require.NotNil(t, stored)
	assert.Equal(t, "Senior Math Teacher", stored.Title)
	assert.Equal(t, "reviewed", stored.Status)
	assert.Equal(t, "school-1", stored.SchoolID)
	assert.Nil(t, stored.SalaryMin)
	assert.Equal(t, 1, store.vacancyCount())
}

func TestVacancyUpserter_Salaries(t *testing.T) {
	u := newTestUpserter(t, newMemStore(), config.DatePolicyReject)
	ctx := context.Background()

	rec := mustNormalize(t, `{"adzuna_id":"a1","title":"T","school_name":"S","salary_min":"30000","salary_max":" 45000.5 "}`)
	v, _, err := u.Upsert(ctx, rec, "school-1")
	require.NoError(t, err)
	require.NotNil(t, v.SalaryMin)
	assert.Equal(t, 30000.0, *v.SalaryMin)
	assert.Equal(t, 45000.5, *v.SalaryMax)

	rec = mustNormalize(t, `{"adzuna_id":"a2","title":"T","school_name":"S","salary_min":"lots"}`)
	_, _, err = u.Upsert(ctx, rec, "school-1")
	require.ErrorIs(t, err, ErrInvalidNumber)
	assert.Contains(t, err.Error(), "salary_min")
}

func TestVacancyUpserter_ConflictRetriesAsUpdate(t *testing.T) {
	store := newMemStore()
	store.raceVacancy = true
	u := newTestUpserter(t, store, config.DatePolicyReject)

	rec := mustNormalize(t, `{"adzuna_id":"a1","title":"Math Teacher","school_name":"Oak School"}`)
	v, outcome, err := u.Upsert(context.Background(), rec, "school-1")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeUpdated, outcome)
	assert.Equal(t, store.bySource["a1"], v.ID)
	assert.Equal(t, 1, store.vacancyCount())
}

func TestVacancyUpserter_DatePosted(t *testing.T) {
	tests := []struct {
		name    string
		date    string
		policy  string
		want    *time.Time
		wantErr bool
	}{
		{
			name: "rfc3339",
			date: "2024-01-15T10:00:00Z",
			want: ptrTime(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)),
		},
		{
			name: "offset normalized to utc",
			date: "2024-01-15T12:00:00+02:00",
			want: ptrTime(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)),
		},
		{
			name: "no zone",
			date: "2024-01-15T10:00:00",
			want: ptrTime(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)),
		},
		{
			name: "date only",
			date: "2024-01-15",
			want: ptrTime(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)),
		},
		{
			name:    "garbage rejected",
			date:    "last tuesday",
			policy:  config.DatePolicyReject,
			wantErr: true,
		},
		{
			name:   "garbage nulled",
			date:   "last tuesday",
			policy: config.DatePolicyNull,
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			u := newTestUpserter(t, store, tt.policy)
			raw, _ := json.Marshal(map[string]interface{}{
				"adzuna_id": "a1", "title": "T", "school_name": "S", "date_posted": tt.date,
			})

			v, _, err := u.Upsert(context.Background(), mustNormalize(t, string(raw)), "school-1")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDate)
				assert.Equal(t, 0, store.vacancyCount())
				return
			}
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, v.DatePosted)
				return
			}
			require.NotNil(t, v.DatePosted)
			assert.True(t, tt.want.Equal(*v.DatePosted), "got %s", v.DatePosted)
		})
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
