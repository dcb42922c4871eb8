// internal/models/vacancy.go
package models

import (
	"encoding/json"
	"time"
)

// DefaultVacancyStatus is stored when a posting carries no status.
const DefaultVacancyStatus = "new"

type Vacancy struct {
	ID           string          `json:"id"`
	AdzunaID     string          `json:"adzuna_id"`
	SchoolID     string          `json:"school_id"`
	Title        string          `json:"title"`
	Description  *string         `json:"description"`
	Status       string          `json:"status"`
	ApplyURL     *string         `json:"apply_url"`
	Category     *string         `json:"category"`
	ContractType *string         `json:"contract_type"`
	ContractTime *string         `json:"contract_time"`
	SalaryMin    *float64        `json:"salary_min"`
	SalaryMax    *float64        `json:"salary_max"`
	DatePosted   *time.Time      `json:"date_posted"`
	RawJSON      json.RawMessage `json:"raw_json,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	// Set by read queries that join schools.
	SchoolName string `json:"school_name,omitempty"`
}

// Outcome is the result of writing one vacancy.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
)
