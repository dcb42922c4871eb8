package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"recruit-intake/internal/common/config"
	apperrors "recruit-intake/internal/common/errors"
	"recruit-intake/internal/common/logger"
	"recruit-intake/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIntakeConfig() config.IntakeConfig {
	return config.IntakeConfig{
		MaxBatchSize:    1000,
		ChunkSize:       2,
		MaxRequestBytes: 1 << 20,
		DatePolicy:      config.DatePolicyReject,
	}
}

func rawItems(t *testing.T, items ...map[string]interface{}) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, len(items))
	for i, item := range items {
		data, err := json.Marshal(item)
		require.NoError(t, err)
		out[i] = data
	}
	return out
}

func posting(id, title, school string) map[string]interface{} {
	return map[string]interface{}{"adzuna_id": id, "title": title, "school_name": school}
}

type recordingIndexer struct {
	indexed []string
	err     error
}

func (r *recordingIndexer) IndexVacancy(_ context.Context, v *models.Vacancy) error {
	r.indexed = append(r.indexed, v.AdzunaID)
	return r.err
}

func TestRunner_AggregatesChunks(t *testing.T) {
	store := newMemStore()
	runner := NewRunner(store, testIntakeConfig(), logger.NewTestLogger(t))

	items := rawItems(t,
		posting("a1", "Math Teacher", "Oak School"),
		posting("a2", "English Teacher", "Oak School"),
		map[string]interface{}{"title": "X"},
		posting("a3", "Science Teacher", "Elm Academy"),
		posting("a1", "Senior Math Teacher", "Oak School"),
	)

	result, err := runner.Run(context.Background(), items)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 5, result.Processed)
	assert.Equal(t, 4, result.Accepted)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, result.Processed, result.Accepted+result.Skipped)
	assert.Equal(t, 3, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 3, result.TotalChunks)
	assert.Equal(t, []string{"Validation failed for unknown: Missing adzuna_id, Missing school_name"}, result.Errors)
	assert.NotEmpty(t, result.Timestamp)

	assert.Equal(t, 2, store.schoolCount())
	assert.Equal(t, 3, store.vacancyCount())
	assert.Equal(t, "Senior Math Teacher", store.vacancyBySource("a1").Title)
}

func TestRunner_SameNewSchoolTwice(t *testing.T) {
	store := newMemStore()
	runner := NewRunner(store, testIntakeConfig(), logger.NewNoOpLogger())

	result, err := runner.Run(context.Background(), rawItems(t,
		posting("a1", "Math Teacher", "Birch School"),
		posting("a2", "Art Teacher", " Birch School "),
	))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Accepted)

	assert.Equal(t, 1, store.schoolCount())
	schoolID := store.schools["Birch School"].ID
	assert.Equal(t, schoolID, store.vacancyBySource("a1").SchoolID)
	assert.Equal(t, schoolID, store.vacancyBySource("a2").SchoolID)
}

func TestRunner_ItemFailureIsLocal(t *testing.T) {
	store := newMemStore()
	runner := NewRunner(store, testIntakeConfig(), logger.NewNoOpLogger())

	bad := posting("a2", "T", "S")
	bad["date_posted"] = "not a date"

	result, err := runner.Run(context.Background(), rawItems(t,
		posting("a1", "T", "S"),
		bad,
		posting("a3", "T", "S"),
	))
	require.NoError(t, err)

	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 2, result.Accepted)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, `Error processing a2: invalid date_posted: "not a date"`, result.Errors[0])
}

func TestRunner_EmptyBatch(t *testing.T) {
	runner := NewRunner(newMemStore(), testIntakeConfig(), logger.NewNoOpLogger())

	result, err := runner.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, 0, result.TotalChunks)
	assert.Equal(t, 0, result.ItemsPerSecond)
	assert.Nil(t, result.Errors)
}

func TestRunner_BackendUnavailableAborts(t *testing.T) {
	store := &failAfterStore{memStore: newMemStore(), okCalls: 4}
	runner := NewRunner(store, testIntakeConfig(), logger.NewNoOpLogger())

	result, err := runner.Run(context.Background(), rawItems(t,
		posting("a1", "T", "S"),
		posting("a2", "T", "S"),
		posting("a3", "T", "S"),
		posting("a4", "T", "S"),
	))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendUnavailable)

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, "DATABASE_CONNECTION_FAILED", result.Code)
	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, result.Processed, result.Accepted+result.Skipped)
}

func TestErrorCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperrors.ErrorCode
	}{
		{"validation", &ValidationError{AdzunaID: "a1", Problems: []string{"Missing title"}}, apperrors.ErrCodeValidationFailed},
		{"invalid date inside upsert", &stageError{code: apperrors.ErrCodeVacancyUpsertFailed, err: fmt.Errorf("%w: %q", ErrInvalidDate, "soon")}, apperrors.ErrCodeInvalidDate},
		{"invalid number", &stageError{code: apperrors.ErrCodeVacancyUpsertFailed, err: fmt.Errorf("%w for salary_min", ErrInvalidNumber)}, apperrors.ErrCodeInvalidNumber},
		{"school stage", &stageError{code: apperrors.ErrCodeSchoolResolveFailed, err: errors.New("boom")}, apperrors.ErrCodeSchoolResolveFailed},
		{"vacancy stage", &stageError{code: apperrors.ErrCodeVacancyUpsertFailed, err: errors.New("boom")}, apperrors.ErrCodeVacancyUpsertFailed},
		{"backend gone", &stageError{code: apperrors.ErrCodeSchoolResolveFailed, err: fmt.Errorf("lookup: %w", ErrBackendUnavailable)}, apperrors.ErrCodeDatabaseConnectionFailed},
		{"deadline", context.DeadlineExceeded, apperrors.ErrCodeBatchTimeout},
		{"unknown", errors.New("boom"), apperrors.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCodeOf(tt.err))
		})
	}
}

func TestRunner_InvalidSalarySkipsItem(t *testing.T) {
	runner := NewRunner(newMemStore(), testIntakeConfig(), logger.NewNoOpLogger())

	bad := posting("a2", "T", "S")
	bad["salary_min"] = "lots"
	good := posting("a1", "T", "S")
	good["salary_min"] = "30000"

	result, err := runner.Run(context.Background(), rawItems(t, good, bad))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Error processing a2: invalid number for salary_min")
}

func TestRunner_DeadlineSkipsRemaining(t *testing.T) {
	cfg := testIntakeConfig()
	cfg.BatchTimeout = 1
	store := &slowStore{memStore: newMemStore(), delay: 5 * time.Millisecond}
	runner := NewRunner(store, cfg, logger.NewNoOpLogger())

	items := make([]map[string]interface{}, 6)
	for i := range items {
		items[i] = posting(fmt.Sprintf("a%d", i), "T", "S")
	}

	result, err := runner.Run(context.Background(), rawItems(t, items...))
	require.NoError(t, err)

	assert.True(t, result.TimedOut)
	assert.True(t, result.Success)
	assert.Equal(t, 6, result.Processed)
	assert.Equal(t, result.Processed, result.Accepted+result.Skipped)
	assert.Less(t, result.Accepted, 6)
	assert.Contains(t, result.Errors[len(result.Errors)-1], "Batch deadline exceeded")
}

func TestRunner_Indexer(t *testing.T) {
	idx := &recordingIndexer{err: errors.New("index unavailable")}
	runner := NewRunner(newMemStore(), testIntakeConfig(), logger.NewNoOpLogger(), WithIndexer(idx))

	result, err := runner.Run(context.Background(), rawItems(t,
		posting("a1", "T", "S"),
		map[string]interface{}{"title": "X"},
	))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, []string{"a1"}, idx.indexed)
}

// failAfterStore reports the backend as gone after okCalls calls.
type failAfterStore struct {
	*memStore
	okCalls int
	calls   int
}

func (s *failAfterStore) check() error {
	s.calls++
	if s.calls > s.okCalls {
		return fmt.Errorf("%w: connection refused", ErrBackendUnavailable)
	}
	return nil
}

func (s *failAfterStore) FindSchoolIDByName(ctx context.Context, name string) (string, error) {
	if err := s.check(); err != nil {
		return "", err
	}
	return s.memStore.FindSchoolIDByName(ctx, name)
}

func (s *failAfterStore) InsertSchool(ctx context.Context, name string, loc models.Location) (string, error) {
	if err := s.check(); err != nil {
		return "", err
	}
	return s.memStore.InsertSchool(ctx, name, loc)
}

func (s *failAfterStore) FindVacancyIDBySourceID(ctx context.Context, id string) (string, error) {
	if err := s.check(); err != nil {
		return "", err
	}
	return s.memStore.FindVacancyIDBySourceID(ctx, id)
}

func (s *failAfterStore) InsertVacancy(ctx context.Context, v *models.Vacancy) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.memStore.InsertVacancy(ctx, v)
}

// slowStore delays school lookups and honours cancellation.
type slowStore struct {
	*memStore
	delay time.Duration
}

func (s *slowStore) FindSchoolIDByName(ctx context.Context, name string) (string, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, ctx.Err())
	}
	return s.memStore.FindSchoolIDByName(ctx, name)
}
