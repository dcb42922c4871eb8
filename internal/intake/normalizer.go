// internal/intake/normalizer.go
package intake

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"recruit-intake/internal/common/validation"
)

var (
	ErrEmptyBody = errors.New("empty request body")

	recordValidator = validation.MustCompile(recordSchema)
)

// ValidationError lists every problem found on one record.
type ValidationError struct {
	AdzunaID string
	Problems []string
}

func (e *ValidationError) Error() string {
	id := e.AdzunaID
	if id == "" {
		id = "unknown"
	}
	return fmt.Sprintf("Validation failed for %s: %s", id, strings.Join(e.Problems, ", "))
}

// DecodeBatch splits a request body into raw items. A single object is a
// one-element batch.
func DecodeBatch(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, ErrEmptyBody
	}

	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("invalid batch: %w", err)
		}
		return items, nil
	}

	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("invalid batch: malformed JSON")
	}
	return []json.RawMessage{json.RawMessage(trimmed)}, nil
}

// Normalize validates one raw item and returns its typed form. Failures are
// always *ValidationError. Numbers are decoded as json.Number so source ids
// keep every digit.
func Normalize(raw json.RawMessage) (*Record, error) {
	var doc map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil || doc == nil {
		return nil, &ValidationError{Problems: []string{"Missing adzuna_id", "Missing title", "Missing school_name"}}
	}

	for alias, canonical := range fieldAliases {
		if v, ok := doc[alias]; ok && isAbsent(doc[canonical]) {
			doc[canonical] = v
		}
		delete(doc, alias)
	}

	id := idString(doc["adzuna_id"])

	var missing []string
	if id == "" {
		missing = append(missing, "Missing adzuna_id")
	}
	if isAbsent(doc["title"]) {
		missing = append(missing, "Missing title")
	}
	if isAbsent(doc["school_name"]) {
		missing = append(missing, "Missing school_name")
	}
	if len(missing) > 0 {
		return nil, &ValidationError{AdzunaID: id, Problems: missing}
	}

	rec := &Record{
		AdzunaID:     id,
		Title:        text(doc["title"]),
		SchoolName:   strings.TrimSpace(text(doc["school_name"])),
		Description:  optString(doc["description"]),
		DatePosted:   optString(doc["date_posted"]),
		Status:       optString(doc["status"]),
		ApplyURL:     optString(doc["apply_url"]),
		Category:     optString(doc["category"]),
		ContractType: optString(doc["contract_type"]),
		ContractTime: optString(doc["contract_time"]),
		SalaryMin:    optString(doc["salary_min"]),
		SalaryMax:    optString(doc["salary_max"]),
		RawJSON:      raw,
	}

	if result := recordValidator.Validate(doc); !result.Valid {
		rec.Warnings = result.Messages()
	}

	if loc, ok := doc["location"].(map[string]interface{}); ok {
		rec.Location.City = optString(loc["city"])
		rec.Location.Province = optString(loc["province"])
		rec.Location.Country = optString(loc["country"])
	}

	if payload, ok := doc["raw_json"]; ok && payload != nil {
		data, err := json.Marshal(payload)
		if err == nil {
			rec.RawJSON = data
		}
	}

	return rec, nil
}

// isAbsent treats null, a missing key and blank strings alike.
func isAbsent(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

func idString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	}
	return ""
}

// text renders any JSON value as stored text: strings as-is, numbers as
// written, anything else as its JSON encoding.
func text(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func optString(v interface{}) *string {
	s := text(v)
	if s == "" {
		return nil
	}
	return &s
}
