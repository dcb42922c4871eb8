// Package analytics serves the read-side queries behind the dashboard.
package analytics

import (
	"context"
	"database/sql"
	"time"

	apperrors "recruit-intake/internal/common/errors"
	"recruit-intake/internal/models"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

type Service struct {
	db  *sql.DB
	now func() time.Time
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// Summary counts vacancies and schools for the overview cards.
func (s *Service) Summary(ctx context.Context) (*models.Summary, error) {
	summary := &models.Summary{ByStatus: map[string]int{}}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vacancies`).Scan(&summary.TotalVacancies); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("count_vacancies", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schools`).Scan(&summary.TotalSchools); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("count_schools", err)
	}

	weekAgo := s.now().UTC().AddDate(0, 0, -7)
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vacancies WHERE created_at >= $1`, weekAgo,
	).Scan(&summary.VacanciesThisWeek); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("count_recent_vacancies", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM vacancies GROUP BY status`)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("status_breakdown", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("status_breakdown", err)
		}
		summary.ByStatus[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("status_breakdown", err)
	}

	return summary, nil
}

// ListSchools returns schools ordered by name with their vacancy counts.
// q filters on name, city or country, case-insensitively.
func (s *Service) ListSchools(ctx context.Context, q string) ([]models.SchoolSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.city, s.province, s.country, s.created_at, s.updated_at, COUNT(v.id)
		FROM schools s
		LEFT JOIN vacancies v ON v.school_id = s.id
		WHERE $1 = '' OR s.name ILIKE $2 OR s.city ILIKE $2 OR s.country ILIKE $2
		GROUP BY s.id
		ORDER BY s.name`,
		q, "%"+q+"%",
	)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_schools", err)
	}
	defer rows.Close()

	schools := []models.SchoolSummary{}
	for rows.Next() {
		var sc models.SchoolSummary
		var city, province, country sql.NullString
		if err := rows.Scan(&sc.ID, &sc.Name, &city, &province, &country,
			&sc.CreatedAt, &sc.UpdatedAt, &sc.VacancyCount); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("list_schools", err)
		}
		sc.City, sc.Province, sc.Country = nullString(city), nullString(province), nullString(country)
		schools = append(schools, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_schools", err)
	}
	return schools, nil
}

// ListVacancies returns the newest postings first, optionally by status.
func (s *Service) ListVacancies(ctx context.Context, limit int, status string) ([]models.Vacancy, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT v.id, v.adzuna_id, v.school_id, v.title, v.description, v.status,
			v.apply_url, v.category, v.contract_type, v.contract_time,
			v.salary_min, v.salary_max, v.date_posted, v.created_at, v.updated_at, s.name
		FROM vacancies v
		JOIN schools s ON s.id = v.school_id
		WHERE $1 = '' OR v.status = $1
		ORDER BY v.date_posted DESC NULLS LAST
		LIMIT $2`,
		status, limit,
	)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_vacancies", err)
	}
	defer rows.Close()

	vacancies := []models.Vacancy{}
	for rows.Next() {
		var v models.Vacancy
		var description, applyURL, category, contractType, contractTime sql.NullString
		var salaryMin, salaryMax sql.NullFloat64
		var datePosted sql.NullTime
		if err := rows.Scan(&v.ID, &v.AdzunaID, &v.SchoolID, &v.Title, &description, &v.Status,
			&applyURL, &category, &contractType, &contractTime,
			&salaryMin, &salaryMax, &datePosted, &v.CreatedAt, &v.UpdatedAt, &v.SchoolName); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("list_vacancies", err)
		}
		v.Description = nullString(description)
		v.ApplyURL = nullString(applyURL)
		v.Category = nullString(category)
		v.ContractType = nullString(contractType)
		v.ContractTime = nullString(contractTime)
		v.SalaryMin = nullFloat(salaryMin)
		v.SalaryMax = nullFloat(salaryMax)
		if datePosted.Valid {
			t := datePosted.Time
			v.DatePosted = &t
		}
		vacancies = append(vacancies, v)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_vacancies", err)
	}
	return vacancies, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullFloat(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}
