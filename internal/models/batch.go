// internal/models/batch.go
package models

// BatchResult is the aggregated outcome of one intake request.
// Processed always equals Accepted + Skipped.
type BatchResult struct {
	Success          bool     `json:"success"`
	Processed        int      `json:"processed"`
	Accepted         int      `json:"accepted"`
	Skipped          int      `json:"skipped"`
	Created          int      `json:"created"`
	Updated          int      `json:"updated"`
	TotalChunks      int      `json:"total_chunks"`
	ProcessingTimeMs int64    `json:"processing_time_ms"`
	ItemsPerSecond   int      `json:"items_per_second"`
	Errors           []string `json:"errors,omitempty"`
	TimedOut         bool     `json:"timed_out,omitempty"`
	Error            string   `json:"error,omitempty"`
	Code             string   `json:"code,omitempty"`
	Timestamp        string   `json:"timestamp"`
}

// Summary backs the dashboard overview cards.
type Summary struct {
	TotalVacancies    int            `json:"total_vacancies"`
	TotalSchools      int            `json:"total_schools"`
	VacanciesThisWeek int            `json:"vacancies_this_week"`
	ByStatus          map[string]int `json:"by_status"`
}
