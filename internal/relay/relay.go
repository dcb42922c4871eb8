// Package relay forwards dashboard search requests to the workflow webhook
// that runs the job-board search. It stores nothing.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "recruit-intake/internal/common/errors"
	commonhttp "recruit-intake/internal/common/http"
	"recruit-intake/internal/common/logger"
	"recruit-intake/internal/common/metrics"

	"github.com/google/uuid"
)

const (
	searchType = "adzuna"
	source     = "dashboard_search"

	defaultRadius    = 10
	defaultDateRange = "7"
	defaultSalaryMin = 20000
	defaultSalaryMax = 80000
)

var ErrNotConfigured = errors.New("search relay webhook url is not configured")

// Parameters are the search filters sent to the workflow.
type Parameters struct {
	Keywords     string      `json:"keywords"`
	Location     string      `json:"location"`
	Radius       float64     `json:"radius"`
	ContractType string      `json:"contractType"`
	DateRange    interface{} `json:"dateRange"`
	SalaryMin    float64     `json:"salaryMin"`
	SalaryMax    float64     `json:"salaryMax"`
	Category     string      `json:"category"`
}

type Metadata struct {
	RequestID string `json:"requestId"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
}

// Payload is the body POSTed to the webhook.
type Payload struct {
	SearchType string     `json:"searchType"`
	Parameters Parameters `json:"parameters"`
	Metadata   Metadata   `json:"metadata"`
}

// Result is returned when either attempt succeeds.
type Result struct {
	OK        bool        `json:"ok"`
	Method    string      `json:"method"`
	RequestID string      `json:"requestId"`
	Data      interface{} `json:"data"`
}

// Attempt records one upstream call for diagnostics.
type Attempt struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// UpstreamError is returned when both the POST and the GET fallback fail.
type UpstreamError struct {
	Code    apperrors.ErrorCode
	Message string
	Hint    string
	Post    Attempt
	Get     Attempt
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Status is the HTTP status the relay answers with.
func (e *UpstreamError) Status() int {
	return apperrors.HTTPStatus(e.Code)
}

type Relay struct {
	webhookURL string
	client     *commonhttp.Client
	logger     logger.Logger
	now        func() time.Time
}

func New(webhookURL string, timeout time.Duration, log logger.Logger) *Relay {
	return &Relay{
		webhookURL: webhookURL,
		client:     commonhttp.NewClient(timeout),
		logger:     log.WithFields(map[string]interface{}{"component": "search-relay"}),
		now:        time.Now,
	}
}

// BuildPayload applies defaults to the raw dashboard filters. It returns a
// KEYWORDS_REQUIRED error when keywords are blank.
func (r *Relay) BuildPayload(filters map[string]interface{}) (*Payload, error) {
	keywords := strings.TrimSpace(stringify(filters["keywords"]))
	if keywords == "" {
		return nil, apperrors.NewKeywordsRequiredError()
	}

	timestamp, _ := filters["timestamp"].(string)
	if timestamp == "" {
		timestamp = r.now().UTC().Format(time.RFC3339Nano)
	}

	dateRange := filters["dateRange"]
	if dateRange == nil {
		dateRange = defaultDateRange
	}

	return &Payload{
		SearchType: searchType,
		Parameters: Parameters{
			Keywords:     keywords,
			Location:     stringOr(filters["location"], ""),
			Radius:       numberOr(filters["radius"], defaultRadius),
			ContractType: stringOr(filters["contractType"], ""),
			DateRange:    dateRange,
			SalaryMin:    numberOr(filters["salaryMin"], defaultSalaryMin),
			SalaryMax:    numberOr(filters["salaryMax"], defaultSalaryMax),
			Category:     stringOr(filters["category"], ""),
		},
		Metadata: Metadata{
			RequestID: uuid.New().String(),
			Timestamp: timestamp,
			Source:    source,
		},
	}, nil
}

// Trigger POSTs the payload and falls back to a GET with query parameters
// when the POST is not accepted.
func (r *Relay) Trigger(ctx context.Context, p *Payload) (*Result, error) {
	if r.webhookURL == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	post := r.call(ctx, http.MethodPost, r.webhookURL, body)
	if post.err == nil && post.resp.OK() {
		return r.result(http.MethodPost, p, post.resp), nil
	}
	r.logger.Warn("webhook POST failed, retrying as GET", map[string]interface{}{
		"requestId": p.Metadata.RequestID,
		"status":    post.attempt.Status,
	})

	get := r.call(ctx, http.MethodGet, r.webhookURL+"?"+queryString(p), nil)
	if get.err == nil && get.resp.OK() {
		return r.result(http.MethodGet, p, get.resp), nil
	}

	upErr := classify(get.attempt.Status, get.attempt.Body)
	upErr.Post = post.attempt
	upErr.Get = get.attempt
	r.logger.Error("webhook call failed", map[string]interface{}{
		"requestId":  p.Metadata.RequestID,
		"code":       string(upErr.Code),
		"postStatus": post.attempt.Status,
		"getStatus":  get.attempt.Status,
	})
	return nil, upErr
}

type callResult struct {
	resp    *commonhttp.Response
	attempt Attempt
	err     error
}

func (r *Relay) call(ctx context.Context, method, target string, body []byte) callResult {
	headers := map[string]string{}
	if body != nil {
		headers["Content-Type"] = "application/json"
	}

	resp, err := r.client.Send(ctx, method, target, body, headers)
	if err != nil {
		metrics.RelayRequestsTotal.WithLabelValues(method, "error").Inc()
		return callResult{err: err, attempt: Attempt{Body: err.Error()}}
	}

	metrics.RelayRequestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	return callResult{
		resp:    resp,
		attempt: Attempt{Status: resp.StatusCode, Body: string(resp.Body)},
	}
}

func (r *Relay) result(method string, p *Payload, resp *commonhttp.Response) *Result {
	var data interface{} = map[string]interface{}{"raw": string(resp.Body)}
	if strings.Contains(resp.ContentType, "application/json") {
		var parsed interface{}
		if err := json.Unmarshal(resp.Body, &parsed); err == nil {
			data = parsed
		}
	}

	r.logger.Info("search triggered", map[string]interface{}{
		"requestId": p.Metadata.RequestID,
		"method":    method,
		"keywords":  p.Parameters.Keywords,
	})

	return &Result{OK: true, Method: method, RequestID: p.Metadata.RequestID, Data: data}
}

// classify maps a failed webhook response to a relay error code.
func classify(status int, body string) *UpstreamError {
	lower := strings.ToLower(body)
	switch {
	case status == http.StatusNotFound && (strings.Contains(lower, "not registered") || strings.Contains(lower, "no webhook")):
		return &UpstreamError{
			Code:    apperrors.ErrCodeWebhookNotActive,
			Message: "The workflow webhook is not active. Save and activate the workflow so its webhook is registered.",
			Hint:    "Set the Webhook node to respond immediately, or end the workflow with a Respond to Webhook node.",
		}
	case status == http.StatusMethodNotAllowed:
		return &UpstreamError{
			Code:    apperrors.ErrCodeWebhookMethodMismatch,
			Message: "The workflow webhook refused the HTTP method. Configure the Webhook node for POST, or allow GET for query parameters.",
			Hint:    "Set the Webhook node HTTP method to POST.",
		}
	case status == http.StatusUnsupportedMediaType:
		return &UpstreamError{
			Code:    apperrors.ErrCodeWebhookUnsupportedMedia,
			Message: "The workflow webhook did not accept the content type. Configure it to expect JSON.",
		}
	case status == http.StatusInternalServerError && strings.Contains(lower, "workflow could not be started"):
		return &UpstreamError{
			Code:    apperrors.ErrCodeWorkflowStartFailed,
			Message: "The workflow could not be started. Make sure it is active and the Webhook trigger is the entry node.",
			Hint:    "Save and activate the workflow. If it responds using a Respond to Webhook node, make sure that node is wired.",
		}
	}
	return &UpstreamError{
		Code:    apperrors.ErrCodeUpstreamError,
		Message: fmt.Sprintf("Workflow upstream error (%d).", status),
	}
}

// queryString flattens the parameters and metadata for the GET fallback,
// dropping empty values.
func queryString(p *Payload) string {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("keywords", p.Parameters.Keywords)
	set("location", p.Parameters.Location)
	set("radius", formatNumber(p.Parameters.Radius))
	set("contractType", p.Parameters.ContractType)
	set("dateRange", stringify(p.Parameters.DateRange))
	set("salaryMin", formatNumber(p.Parameters.SalaryMin))
	set("salaryMax", formatNumber(p.Parameters.SalaryMax))
	set("category", p.Parameters.Category)
	set("source", p.Metadata.Source)
	set("requestId", p.Metadata.RequestID)
	set("timestamp", p.Metadata.Timestamp)
	return q.Encode()
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return formatNumber(t)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func stringOr(v interface{}, fallback string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fallback
}

func numberOr(v interface{}, fallback float64) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return fallback
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
