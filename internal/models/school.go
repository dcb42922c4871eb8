// internal/models/school.go
package models

import "time"

type School struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	City      *string   `json:"city"`
	Province  *string   `json:"province"`
	Country   *string   `json:"country"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Location holds the optional hints a posting carries about its school.
type Location struct {
	City     *string `json:"city,omitempty"`
	Province *string `json:"province,omitempty"`
	Country  *string `json:"country,omitempty"`
}

// SchoolSummary is a school row as listed on the dashboard.
type SchoolSummary struct {
	School
	VacancyCount int `json:"vacancy_count"`
}
