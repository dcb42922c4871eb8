// internal/intake/models.go
package intake

import (
	"encoding/json"

	"recruit-intake/internal/models"
)

// Record is a validated inbound posting.
type Record struct {
	AdzunaID     string
	Title        string
	SchoolName   string
	Description  *string
	Location     models.Location
	DatePosted   *string
	Status       *string
	ApplyURL     *string
	Category     *string
	ContractType *string
	ContractTime *string
	SalaryMin    *string
	SalaryMax    *string
	RawJSON      json.RawMessage

	// Warnings lists optional fields whose JSON type differs from the
	// canonical shape. They are passed through, not rejected.
	Warnings []string
}

// fieldAliases maps accepted alternate keys onto canonical ones.
var fieldAliases = map[string]string{
	"source_id":         "adzuna_id",
	"organization_name": "school_name",
	"raw_payload":       "raw_json",
}

// recordSchema describes the canonical record shape. Only missing identity
// fields fail a record; mismatches here are reported as warnings.
const recordSchema = `{
  "type": "object",
  "properties": {
    "adzuna_id":     {"type": ["string", "number"]},
    "title":         {"type": "string"},
    "school_name":   {"type": "string"},
    "description":   {"type": ["string", "null"]},
    "location": {
      "type": ["object", "null"],
      "properties": {
        "city":     {"type": ["string", "null"]},
        "province": {"type": ["string", "null"]},
        "country":  {"type": ["string", "null"]}
      }
    },
    "date_posted":   {"type": ["string", "null"]},
    "status":        {"type": ["string", "null"]},
    "apply_url":     {"type": ["string", "null"]},
    "category":      {"type": ["string", "null"]},
    "contract_type": {"type": ["string", "null"]},
    "contract_time": {"type": ["string", "null"]},
    "salary_min":    {"type": ["number", "null"]},
    "salary_max":    {"type": ["number", "null"]}
  }
}`
