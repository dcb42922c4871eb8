// Package search mirrors accepted vacancies into Elasticsearch so the
// dashboard can run full-text queries.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"recruit-intake/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Document is the indexed form of a vacancy. The raw source payload is
// left out.
type Document struct {
	ID           string   `json:"id"`
	AdzunaID     string   `json:"adzuna_id"`
	SchoolID     string   `json:"school_id"`
	Title        string   `json:"title"`
	Description  *string  `json:"description,omitempty"`
	Status       string   `json:"status"`
	Category     *string  `json:"category,omitempty"`
	ContractType *string  `json:"contract_type,omitempty"`
	ContractTime *string  `json:"contract_time,omitempty"`
	SalaryMin    *float64 `json:"salary_min,omitempty"`
	SalaryMax    *float64 `json:"salary_max,omitempty"`
	DatePosted   string   `json:"date_posted,omitempty"`
	UpdatedAt    string   `json:"updated_at"`
}

// Mapping is the index body created when the vacancy index is missing.
var Mapping = []byte(`{
  "mappings": {
    "properties": {
      "id":            {"type": "keyword"},
      "adzuna_id":     {"type": "keyword"},
      "school_id":     {"type": "keyword"},
      "title":         {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "description":   {"type": "text"},
      "status":        {"type": "keyword"},
      "category":      {"type": "keyword"},
      "contract_type": {"type": "keyword"},
      "contract_time": {"type": "keyword"},
      "salary_min":    {"type": "double"},
      "salary_max":    {"type": "double"},
      "date_posted":   {"type": "date"},
      "updated_at":    {"type": "date"}
    }
  }
}`)

type Indexer struct {
	client *elasticsearch.Client
	index  string
}

func NewIndexer(client *elasticsearch.Client, index string) *Indexer {
	return &Indexer{client: client, index: index}
}

// IndexVacancy upserts the vacancy document keyed by vacancy id.
func (i *Indexer) IndexVacancy(ctx context.Context, v *models.Vacancy) error {
	body, err := json.Marshal(toDocument(v))
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: v.ID,
		Body:       bytes.NewReader(body),
	}

	res, err := req.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("index request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("index error %s: %s", res.Status(), strings.TrimSpace(string(msg)))
	}
	return nil
}

func toDocument(v *models.Vacancy) Document {
	doc := Document{
		ID:           v.ID,
		AdzunaID:     v.AdzunaID,
		SchoolID:     v.SchoolID,
		Title:        v.Title,
		Description:  v.Description,
		Status:       v.Status,
		Category:     v.Category,
		ContractType: v.ContractType,
		ContractTime: v.ContractTime,
		SalaryMin:    v.SalaryMin,
		SalaryMax:    v.SalaryMax,
		UpdatedAt:    v.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if v.DatePosted != nil {
		doc.DatePosted = v.DatePosted.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return doc
}
