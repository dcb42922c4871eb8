package intake

import (
	"context"
	"fmt"
	"sync"

	"recruit-intake/internal/models"
)

// memStore enforces the same uniqueness rules as the Postgres schema.
type memStore struct {
	mu sync.Mutex

	schools   map[string]*models.School // by name
	vacancies map[string]*models.Vacancy
	bySource  map[string]string // adzuna_id -> vacancy id
	nextID    int
	writes    int

	// err, when set, is returned from every call.
	err error
	// raceSchool and raceVacancy make the next insert behave as if another
	// writer inserted the same key first.
	raceSchool  bool
	raceVacancy bool
}

func newMemStore() *memStore {
	return &memStore{
		schools:   make(map[string]*models.School),
		vacancies: make(map[string]*models.Vacancy),
		bySource:  make(map[string]string),
	}
}

func (s *memStore) id(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

func (s *memStore) FindSchoolIDByName(_ context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if school, ok := s.schools[name]; ok {
		return school.ID, nil
	}
	return "", ErrNotFound
}

func (s *memStore) InsertSchool(_ context.Context, name string, loc models.Location) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if s.raceSchool {
		s.raceSchool = false
		s.schools[name] = &models.School{ID: s.id("school"), Name: name}
		return "", fmt.Errorf("%w: insert school", ErrConflict)
	}
	if _, ok := s.schools[name]; ok {
		return "", fmt.Errorf("%w: insert school", ErrConflict)
	}
	s.writes++
	school := &models.School{ID: s.id("school"), Name: name, City: loc.City, Province: loc.Province, Country: loc.Country}
	s.schools[name] = school
	return school.ID, nil
}

func (s *memStore) FindVacancyIDBySourceID(_ context.Context, adzunaID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if id, ok := s.bySource[adzunaID]; ok {
		return id, nil
	}
	return "", ErrNotFound
}

func (s *memStore) InsertVacancy(_ context.Context, v *models.Vacancy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.raceVacancy {
		s.raceVacancy = false
		other := *v
		other.ID = s.id("vacancy")
		s.vacancies[other.ID] = &other
		s.bySource[v.AdzunaID] = other.ID
		return fmt.Errorf("%w: insert vacancy", ErrConflict)
	}
	if _, ok := s.bySource[v.AdzunaID]; ok {
		return fmt.Errorf("%w: insert vacancy", ErrConflict)
	}
	s.writes++
	v.ID = s.id("vacancy")
	stored := *v
	s.vacancies[v.ID] = &stored
	s.bySource[v.AdzunaID] = v.ID
	return nil
}

func (s *memStore) UpdateVacancy(_ context.Context, v *models.Vacancy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	existing, ok := s.vacancies[v.ID]
	if !ok {
		return fmt.Errorf("%w: vacancy %s", ErrNotFound, v.ID)
	}
	s.writes++
	updated := *v
	updated.AdzunaID = existing.AdzunaID
	updated.SchoolID = existing.SchoolID
	updated.CreatedAt = existing.CreatedAt
	s.vacancies[v.ID] = &updated
	return nil
}

func (s *memStore) vacancyBySource(adzunaID string) *models.Vacancy {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.bySource[adzunaID]
	if !ok {
		return nil
	}
	return s.vacancies[id]
}

func (s *memStore) schoolCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.schools)
}

func (s *memStore) vacancyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.vacancies)
}
