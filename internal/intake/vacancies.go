// internal/intake/vacancies.go
package intake

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"recruit-intake/internal/common/config"
	"recruit-intake/internal/common/logger"
	"recruit-intake/internal/models"
)

var (
	ErrInvalidDate   = errors.New("invalid date_posted")
	ErrInvalidNumber = errors.New("invalid number")
)

// dateLayouts are tried in order when parsing date_posted.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// VacancyUpserter writes a record keyed by its source id.
type VacancyUpserter struct {
	store      Store
	datePolicy string
	now        func() time.Time
	logger     logger.Logger
}

func NewVacancyUpserter(store Store, datePolicy string, log logger.Logger) *VacancyUpserter {
	if datePolicy == "" {
		datePolicy = config.DatePolicyReject
	}
	return &VacancyUpserter{
		store:      store,
		datePolicy: datePolicy,
		now:        time.Now,
		logger:     log.WithFields(map[string]interface{}{"component": "vacancy-upserter"}),
	}
}

// Upsert creates the vacancy for rec or updates the existing one.
func (u *VacancyUpserter) Upsert(ctx context.Context, rec *Record, schoolID string) (*models.Vacancy, models.Outcome, error) {
	v, err := u.build(rec, schoolID)
	if err != nil {
		return nil, "", err
	}

	id, err := u.store.FindVacancyIDBySourceID(ctx, rec.AdzunaID)
	switch {
	case err == nil:
		return u.update(ctx, v, id)
	case !errors.Is(err, ErrNotFound):
		return nil, "", fmt.Errorf("failed to look up vacancy: %w", err)
	}

	v.CreatedAt = v.UpdatedAt
	if err := u.store.InsertVacancy(ctx, v); err != nil {
		if !errors.Is(err, ErrConflict) {
			return nil, "", fmt.Errorf("failed to create vacancy: %w", err)
		}
		// Inserted concurrently; fall back to update.
		id, findErr := u.store.FindVacancyIDBySourceID(ctx, rec.AdzunaID)
		if findErr != nil {
			return nil, "", fmt.Errorf("failed to create vacancy: %w", findErr)
		}
		return u.update(ctx, v, id)
	}

	return v, models.OutcomeCreated, nil
}

func (u *VacancyUpserter) update(ctx context.Context, v *models.Vacancy, id string) (*models.Vacancy, models.Outcome, error) {
	v.ID = id
	if err := u.store.UpdateVacancy(ctx, v); err != nil {
		return nil, "", fmt.Errorf("failed to update vacancy: %w", err)
	}
	return v, models.OutcomeUpdated, nil
}

func (u *VacancyUpserter) build(rec *Record, schoolID string) (*models.Vacancy, error) {
	posted, err := u.parseDate(rec.DatePosted)
	if err != nil {
		return nil, err
	}
	salaryMin, err := parseNumber("salary_min", rec.SalaryMin)
	if err != nil {
		return nil, err
	}
	salaryMax, err := parseNumber("salary_max", rec.SalaryMax)
	if err != nil {
		return nil, err
	}

	status := models.DefaultVacancyStatus
	if rec.Status != nil {
		status = *rec.Status
	}

	return &models.Vacancy{
		AdzunaID:     rec.AdzunaID,
		SchoolID:     schoolID,
		Title:        rec.Title,
		Description:  rec.Description,
		Status:       status,
		ApplyURL:     rec.ApplyURL,
		Category:     rec.Category,
		ContractType: rec.ContractType,
		ContractTime: rec.ContractTime,
		SalaryMin:    salaryMin,
		SalaryMax:    salaryMax,
		DatePosted:   posted,
		RawJSON:      rec.RawJSON,
		UpdatedAt:    u.now().UTC(),
	}, nil
}

func (u *VacancyUpserter) parseDate(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	if u.datePolicy == config.DatePolicyNull {
		u.logger.Warn("storing null for unparseable date_posted", map[string]interface{}{
			"datePosted": *s,
		})
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidDate, *s)
}

// parseNumber accepts JSON numbers and numeric strings alike.
func parseNumber(field string, s *string) (*float64, error) {
	if s == nil {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(*s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w for %s: %q", ErrInvalidNumber, field, *s)
	}
	return &f, nil
}
