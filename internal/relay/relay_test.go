package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "recruit-intake/internal/common/errors"
	"recruit-intake/internal/common/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type webhookCall struct {
	method string
	query  string
	body   string
}

type fakeWebhook struct {
	mu    sync.Mutex
	calls []webhookCall
	// respond answers each call by method.
	respond map[string]func(w http.ResponseWriter)
}

func (f *fakeWebhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, webhookCall{method: r.Method, query: r.URL.RawQuery, body: string(body)})
	f.mu.Unlock()

	if fn, ok := f.respond[r.Method]; ok {
		fn(w)
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
}

func jsonReply(status int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func textReply(status int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func newTestRelay(t *testing.T, hook *fakeWebhook) *Relay {
	t.Helper()
	srv := httptest.NewServer(hook)
	t.Cleanup(srv.Close)
	r := New(srv.URL+"/webhook/edu-search", 5*time.Second, logger.NewTestLogger(t))
	r.now = func() time.Time { return time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC) }
	return r
}

func TestBuildPayload_Defaults(t *testing.T) {
	r := New("http://unused", time.Second, logger.NewNoOpLogger())
	r.now = func() time.Time { return time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC) }

	p, err := r.BuildPayload(map[string]interface{}{"keywords": "  maths teacher ", "radius": "far"})
	require.NoError(t, err)

	assert.Equal(t, "adzuna", p.SearchType)
	assert.Equal(t, "maths teacher", p.Parameters.Keywords)
	assert.Equal(t, "", p.Parameters.Location)
	assert.Equal(t, 10.0, p.Parameters.Radius)
	assert.Equal(t, "7", p.Parameters.DateRange)
	assert.Equal(t, 20000.0, p.Parameters.SalaryMin)
	assert.Equal(t, 80000.0, p.Parameters.SalaryMax)
	assert.Equal(t, "dashboard_search", p.Metadata.Source)
	assert.Equal(t, "2024-03-01T08:00:00Z", p.Metadata.Timestamp)
	assert.Len(t, p.Metadata.RequestID, 36)
}

func TestBuildPayload_KeywordsRequired(t *testing.T) {
	r := New("http://unused", time.Second, logger.NewNoOpLogger())

	for _, filters := range []map[string]interface{}{{}, {"keywords": "   "}, {"keywords": nil}} {
		_, err := r.BuildPayload(filters)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeKeywordsRequired, apperrors.Normalize(err).Code)
	}
}

func TestTrigger_PostSucceeds(t *testing.T) {
	hook := &fakeWebhook{respond: map[string]func(http.ResponseWriter){
		http.MethodPost: jsonReply(http.StatusOK, `{"queued":true}`),
	}}
	r := newTestRelay(t, hook)

	p, err := r.BuildPayload(map[string]interface{}{"keywords": "maths", "salaryMin": 25000.0, "dateRange": 30.0})
	require.NoError(t, err)

	res, err := r.Trigger(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, http.MethodPost, res.Method)
	assert.Equal(t, p.Metadata.RequestID, res.RequestID)
	assert.Equal(t, map[string]interface{}{"queued": true}, res.Data)

	require.Len(t, hook.calls, 1)
	var sent Payload
	require.NoError(t, json.Unmarshal([]byte(hook.calls[0].body), &sent))
	assert.Equal(t, 25000.0, sent.Parameters.SalaryMin)
	assert.Equal(t, 30.0, sent.Parameters.DateRange)
}

func TestTrigger_FallsBackToGet(t *testing.T) {
	hook := &fakeWebhook{respond: map[string]func(http.ResponseWriter){
		http.MethodPost: textReply(http.StatusMethodNotAllowed, "method not allowed"),
		http.MethodGet:  textReply(http.StatusOK, "Workflow was started"),
	}}
	r := newTestRelay(t, hook)

	p, err := r.BuildPayload(map[string]interface{}{"keywords": "maths", "location": "Leeds"})
	require.NoError(t, err)

	res, err := r.Trigger(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, res.Method)
	assert.Equal(t, map[string]interface{}{"raw": "Workflow was started"}, res.Data)

	require.Len(t, hook.calls, 2)
	q := hook.calls[1].query
	assert.Contains(t, q, "keywords=maths")
	assert.Contains(t, q, "location=Leeds")
	assert.Contains(t, q, "radius=10")
	assert.Contains(t, q, "source=dashboard_search")
	assert.Contains(t, q, "requestId="+p.Metadata.RequestID)
	assert.NotContains(t, q, "category=")
}

func TestTrigger_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode apperrors.ErrorCode
		wantHTTP int
	}{
		{"webhook not registered", 404, `{"message":"The requested webhook \"edu-search\" is not registered."}`, apperrors.ErrCodeWebhookNotActive, 424},
		{"method mismatch", 405, "", apperrors.ErrCodeWebhookMethodMismatch, 424},
		{"unsupported media", 415, "", apperrors.ErrCodeWebhookUnsupportedMedia, 424},
		{"workflow start failed", 500, "Workflow could not be started!", apperrors.ErrCodeWorkflowStartFailed, 424},
		{"plain 404", 404, "nothing here", apperrors.ErrCodeUpstreamError, 502},
		{"bad gateway", 503, "", apperrors.ErrCodeUpstreamError, 502},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := textReply(tt.status, tt.body)
			hook := &fakeWebhook{respond: map[string]func(http.ResponseWriter){
				http.MethodPost: reply,
				http.MethodGet:  reply,
			}}
			r := newTestRelay(t, hook)

			p, err := r.BuildPayload(map[string]interface{}{"keywords": "maths"})
			require.NoError(t, err)

			_, err = r.Trigger(context.Background(), p)
			var upErr *UpstreamError
			require.ErrorAs(t, err, &upErr)
			assert.Equal(t, tt.wantCode, upErr.Code)
			assert.Equal(t, tt.wantHTTP, upErr.Status())
			assert.Equal(t, tt.status, upErr.Post.Status)
			assert.Equal(t, tt.status, upErr.Get.Status)
		})
	}
}

func TestTrigger_NotConfigured(t *testing.T) {
	r := New("", time.Second, logger.NewNoOpLogger())
	p, err := r.BuildPayload(map[string]interface{}{"keywords": "maths"})
	require.NoError(t, err)

	_, err = r.Trigger(context.Background(), p)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestHandler_Trigger(t *testing.T) {
	hook := &fakeWebhook{respond: map[string]func(http.ResponseWriter){
		http.MethodPost: textReply(http.StatusNotFound, "No webhook found"),
		http.MethodGet:  textReply(http.StatusNotFound, "No webhook found"),
	}}
	r := newTestRelay(t, hook)

	e := echo.New()
	NewHandler(r, logger.NewNoOpLogger()).Register(e.Group("/api/v1"))

	serve := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := serve(`{"location":"Leeds"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Keywords are required")

	rec = serve(`not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(`{"keywords":"maths"}`)
	assert.Equal(t, http.StatusFailedDependency, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "N8N_WEBHOOK_NOT_ACTIVE", body["error"])
	assert.NotEmpty(t, body["hint"])
	upstream := body["upstream"].(map[string]interface{})
	assert.EqualValues(t, 404, upstream["post"].(map[string]interface{})["status"])
}
