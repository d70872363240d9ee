package apihandlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"syncworker/internal/job"
	"syncworker/internal/models"
	"syncworker/internal/scheduler"
)

type fakeSubmitter struct {
	got job.Descriptor
	err error
}

func (f *fakeSubmitter) Submit(_ context.Context, d job.Descriptor) (scheduler.AttemptHandle, error) {
	f.got = d
	if f.err != nil {
		return scheduler.AttemptHandle{}, f.err
	}
	return scheduler.AttemptHandle{JobID: d.ID(), Queue: "expedited", Expedited: true}, nil
}

type fakeTracker struct {
	statuses map[string]scheduler.Status
	reports  []models.Report
}

func (f *fakeTracker) Find(jobID string, _ ...string) (scheduler.Status, error) {
	st, ok := f.statuses[jobID]
	if !ok {
		return scheduler.Status{}, models.ErrNotFound
	}
	return st, nil
}

func (f *fakeTracker) Watch(_ context.Context, _ scheduler.AttemptHandle) <-chan models.Report {
	ch := make(chan models.Report, len(f.reports))
	for _, r := range f.reports {
		ch <- r
	}
	close(ch)
	return ch
}

func newRouter(h *APIHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.Register(r.Group("/api/v1"))
	return r
}

// streamRecorder adds the CloseNotifier that gin's Context.Stream requires.
type streamRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (s *streamRecorder) CloseNotify() <-chan bool { return s.closed }

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}
	r.ServeHTTP(rec, req)
	return rec.ResponseRecorder
}

func TestSubmitJobHandler_Accepted(t *testing.T) {
	sub := &fakeSubmitter{}
	r := newRouter(&APIHandler{Submitter: sub, Tracker: &fakeTracker{}})

	rec := do(r, http.MethodPost, "/api/v1/jobs", `{"type":"Download"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var body struct {
		Data struct {
			Handle scheduler.AttemptHandle `json:"handle"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, sub.got.ID(), body.Data.Handle.JobID)
	assert.Equal(t, job.TypeDownload, sub.got.Type())
	assert.True(t, sub.got.Requires(job.ConstraintNetworkConnected))
	assert.True(t, sub.got.Priority().Expedited)
}

func TestSubmitJobHandler_Overrides(t *testing.T) {
	sub := &fakeSubmitter{}
	r := newRouter(&APIHandler{Submitter: sub, Tracker: &fakeTracker{}})

	rec := do(r, http.MethodPost, "/api/v1/jobs", `{"type":"upload","expedited":false,"constraints":[]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.False(t, sub.got.Priority().Expedited)
	assert.Empty(t, sub.got.Constraints())
}

func TestSubmitJobHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"missing type", `{}`, nil, http.StatusBadRequest, "bad_request"},
		{"unknown type", `{"type":"sideload"}`, nil, http.StatusBadRequest, "bad_request"},
		{"unknown fallback", `{"type":"download","fallback":"later"}`, nil, http.StatusBadRequest, "bad_request"},
		{"out of quota", `{"type":"download","fallback":"drop_work_request"}`, scheduler.ErrOutOfQuota, http.StatusTooManyRequests, "out_of_quota"},
		{"redis down", `{"type":"download"}`, errors.New("dial tcp: refused"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(&APIHandler{Submitter: &fakeSubmitter{err: tt.err}, Tracker: &fakeTracker{}})
			rec := do(r, http.MethodPost, "/api/v1/jobs", tt.body)
			assert.Equal(t, tt.status, rec.Code)

			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestGetJobHandler(t *testing.T) {
	res := models.Success("Data Downloaded")
	tr := &fakeTracker{statuses: map[string]scheduler.Status{
		"job-1": {JobID: "job-1", Queue: "default", State: models.JobStatusCompleted, Report: &models.Report{JobID: "job-1", Result: &res}},
	}}
	r := newRouter(&APIHandler{Submitter: &fakeSubmitter{}, Tracker: tr})

	rec := do(r, http.MethodGet, "/api/v1/jobs/job-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Data Downloaded"`)
	assert.Contains(t, rec.Body.String(), `"completed"`)

	rec = do(r, http.MethodGet, "/api/v1/jobs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobEventsHandler_StreamsUntilResult(t *testing.T) {
	res := models.Failure("Failed to download data")
	tr := &fakeTracker{
		statuses: map[string]scheduler.Status{"job-1": {JobID: "job-1", Queue: "expedited"}},
		reports: []models.Report{
			{JobID: "job-1", Progress: &models.ProgressEvent{Percent: 25, Message: "Downloading Processes Page 1"}},
			{JobID: "job-1", Progress: &models.ProgressEvent{Percent: 50, Message: "Downloading Suppliers Page 1"}},
			{JobID: "job-1", Result: &res},
			{JobID: "job-1", Progress: &models.ProgressEvent{Percent: 100, Message: "never sent"}},
		},
	}
	r := newRouter(&APIHandler{Submitter: &fakeSubmitter{}, Tracker: tr})

	rec := do(r, http.MethodGet, "/api/v1/jobs/job-1/events", "")
	require.Equal(t, http.StatusOK, rec.Code)

	out := rec.Body.String()
	assert.Equal(t, 2, strings.Count(out, "event:progress"))
	assert.Equal(t, 1, strings.Count(out, "event:result"))
	assert.Contains(t, out, "Failed to download data")
	assert.NotContains(t, out, "never sent")
	assert.Less(t, strings.Index(out, "Page 1"), strings.Index(out, "event:result"))
}

func TestJobEventsHandler_NotFound(t *testing.T) {
	r := newRouter(&APIHandler{Submitter: &fakeSubmitter{}, Tracker: &fakeTracker{}})
	rec := do(r, http.MethodGet, "/api/v1/jobs/nope/events", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.True(t, bytes.Contains(rec.Body.Bytes(), []byte("not_found")))
}
