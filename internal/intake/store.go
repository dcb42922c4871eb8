// internal/intake/store.go
package intake

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"recruit-intake/internal/common/database"
	"recruit-intake/internal/models"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("NOT_FOUND")
	ErrConflict           = errors.New("UNIQUE_CONFLICT")
	ErrBackendUnavailable = errors.New("BACKEND_UNAVAILABLE")
)

// Store is the persistence the pipeline writes through. Implementations
// report unique-key races as ErrConflict and lost connectivity as
// ErrBackendUnavailable.
type Store interface {
	FindSchoolIDByName(ctx context.Context, name string) (string, error)
	InsertSchool(ctx context.Context, name string, loc models.Location) (string, error)
	FindVacancyIDBySourceID(ctx context.Context, adzunaID string) (string, error)
	InsertVacancy(ctx context.Context, v *models.Vacancy) error
	UpdateVacancy(ctx context.Context, v *models.Vacancy) error
}

// PostgresStore implements Store on the schools and vacancies tables.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindSchoolIDByName(ctx context.Context, name string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM schools WHERE name = $1 LIMIT 1`, name).Scan(&id)
	if err != nil {
		return "", classify("find school", err)
	}
	return id, nil
}

func (s *PostgresStore) InsertSchool(ctx context.Context, name string, loc models.Location) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schools (id, name, city, province, country)
		VALUES ($1, $2, $3, $4, $5)`,
		id, name, loc.City, loc.Province, loc.Country,
	)
	if err != nil {
		return "", classify("insert school", err)
	}
	return id, nil
}

func (s *PostgresStore) FindVacancyIDBySourceID(ctx context.Context, adzunaID string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM vacancies WHERE adzuna_id = $1 LIMIT 1`, adzunaID).Scan(&id)
	if err != nil {
		return "", classify("find vacancy", err)
	}
	return id, nil
}

func (s *PostgresStore) InsertVacancy(ctx context.Context, v *models.Vacancy) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vacancies (
			id, adzuna_id, school_id, title, description, status, apply_url,
			category, contract_type, contract_time, salary_min, salary_max,
			date_posted, raw_json, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)`,
		v.ID, v.AdzunaID, v.SchoolID, v.Title, v.Description, v.Status, v.ApplyURL,
		v.Category, v.ContractType, v.ContractTime, v.SalaryMin, v.SalaryMax,
		v.DatePosted, jsonArg(v.RawJSON), v.UpdatedAt,
	)
	if err != nil {
		return classify("insert vacancy", err)
	}
	return nil
}

// UpdateVacancy rewrites the mutable fields of the row with v.ID. The
// source id and school linkage are left as stored.
func (s *PostgresStore) UpdateVacancy(ctx context.Context, v *models.Vacancy) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE vacancies SET
			title = $2, description = $3, status = $4, apply_url = $5,
			category = $6, contract_type = $7, contract_time = $8,
			salary_min = $9, salary_max = $10, date_posted = $11,
			raw_json = $12, updated_at = $13
		WHERE id = $1`,
		v.ID, v.Title, v.Description, v.Status, v.ApplyURL,
		v.Category, v.ContractType, v.ContractTime,
		v.SalaryMin, v.SalaryMax, v.DatePosted,
		jsonArg(v.RawJSON), v.UpdatedAt,
	)
	if err != nil {
		return classify("update vacancy", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: vacancy %s", ErrNotFound, v.ID)
	}
	return nil
}

// jsonArg passes JSON as text; lib/pq would send []byte as bytea.
func jsonArg(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func classify(op string, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%w: %s", ErrNotFound, op)
	case database.IsUniqueViolation(err, ""):
		return fmt.Errorf("%w: %s: %v", ErrConflict, op, err)
	case database.IsConnectionError(err):
		return fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
