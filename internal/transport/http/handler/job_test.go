package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ErlanBelekov/cronfleet/internal/domain"
	"github.com/ErlanBelekov/cronfleet/internal/repository"
	"github.com/ErlanBelekov/cronfleet/internal/usecase"
)

// ---- fakes ----

type fakeJobRepo struct {
	repository.JobRepository

	jobs      map[int64]*domain.Job
	setActive map[int64]bool
}

func newFakeJobRepo(jobs ...*domain.Job) *fakeJobRepo {
	r := &fakeJobRepo{
		jobs:      make(map[int64]*domain.Job),
		setActive: make(map[int64]bool),
	}
	for _, j := range jobs {
		r.jobs[j.ID] = j
	}
	return r
}

func (r *fakeJobRepo) Create(_ context.Context, job *domain.Job) (*domain.Job, error) {
	out := *job
	out.ID = int64(len(r.jobs) + 1)
	out.CreatedAt = time.Now().UTC()
	out.UpdatedAt = out.CreatedAt
	r.jobs[out.ID] = &out
	return &out, nil
}

func (r *fakeJobRepo) GetByID(_ context.Context, id int64) (*domain.Job, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return job, nil
}

func (r *fakeJobRepo) List(_ context.Context, _ repository.ListJobsInput) ([]*domain.Job, error) {
	out := make([]*domain.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j)
	}
	return out, nil
}

func (r *fakeJobRepo) SetActive(_ context.Context, id int64, active bool) error {
	if _, ok := r.jobs[id]; !ok {
		return domain.ErrJobNotFound
	}
	r.setActive[id] = active
	return nil
}

type fakeRunRepo struct {
	repository.RunRepository

	runs []*domain.JobRun
}

func (r *fakeRunRepo) ListByJob(_ context.Context, jobID int64, _ int) ([]*domain.JobRun, error) {
	out := make([]*domain.JobRun, 0)
	for _, run := range r.runs {
		if run.JobID == jobID {
			out = append(out, run)
		}
	}
	return out, nil
}

// ---- helpers ----

func newTestRouter(jobs *fakeJobRepo, runs *fakeRunRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewJobHandler(usecase.NewJobUsecase(jobs, runs), logger)

	r := gin.New()
	r.POST("/jobs", h.Create)
	r.GET("/jobs", h.List)
	r.GET("/jobs/:id", h.GetByID)
	r.PATCH("/jobs/:id/active", h.SetActive)
	r.GET("/jobs/:id/runs", h.ListRuns)
	return r
}

func doRequest(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func testJob() *domain.Job {
	return &domain.Job{
		ID:                 1,
		Name:               "hourly-report",
		Schedule:           "0 * * * *",
		ExecutionTimeSec:   5,
		FailureProbability: 0.1,
		MaxRetries:         3,
		RetryDelaySec:      5,
		IsActive:           true,
	}
}

// ---- Create ----

func TestCreateJob(t *testing.T) {
	r := newTestRouter(newFakeJobRepo(), &fakeRunRepo{})

	w := doRequest(t, r, http.MethodPost, "/jobs",
		`{"name":"hourly-report","schedule":"0 * * * *","execution_time_sec":5,"failure_probability":0.1,"max_retries":3}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	var resp jobResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.ID == 0 {
		t.Error("response must carry the assigned id")
	}
	if !resp.IsActive {
		t.Error("new jobs are active")
	}
	if resp.RetryDelaySec != 5 {
		t.Errorf("retry_delay_sec = %d, want default 5", resp.RetryDelaySec)
	}
}

func TestCreateJob_InvalidCron(t *testing.T) {
	r := newTestRouter(newFakeJobRepo(), &fakeRunRepo{})

	w := doRequest(t, r, http.MethodPost, "/jobs",
		`{"name":"bad","schedule":"not a schedule"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
	}
}

func TestCreateJob_ValidationErrors(t *testing.T) {
	r := newTestRouter(newFakeJobRepo(), &fakeRunRepo{})

	for name, body := range map[string]string{
		"missing name":            `{"schedule":"* * * * *"}`,
		"missing schedule":        `{"name":"x"}`,
		"probability above one":   `{"name":"x","schedule":"* * * * *","failure_probability":1.5}`,
		"negative max retries":    `{"name":"x","schedule":"* * * * *","max_retries":-1}`,
		"negative execution time": `{"name":"x","schedule":"* * * * *","execution_time_sec":-5}`,
	} {
		w := doRequest(t, r, http.MethodPost, "/jobs", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, w.Code)
		}
	}
}

// ---- GetByID ----

func TestGetJob(t *testing.T) {
	r := newTestRouter(newFakeJobRepo(testJob()), &fakeRunRepo{})

	w := doRequest(t, r, http.MethodGet, "/jobs/1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp jobResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Name != "hourly-report" {
		t.Errorf("name = %q, want hourly-report", resp.Name)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	r := newTestRouter(newFakeJobRepo(), &fakeRunRepo{})

	if w := doRequest(t, r, http.MethodGet, "/jobs/99", ""); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestGetJob_BadID(t *testing.T) {
	r := newTestRouter(newFakeJobRepo(), &fakeRunRepo{})

	if w := doRequest(t, r, http.MethodGet, "/jobs/abc", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

// ---- List ----

func TestListJobs_BadCursor(t *testing.T) {
	r := newTestRouter(newFakeJobRepo(testJob()), &fakeRunRepo{})

	if w := doRequest(t, r, http.MethodGet, "/jobs?cursor_time=yesterday", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

// ---- SetActive ----

func TestSetActive_Pause(t *testing.T) {
	jobs := newFakeJobRepo(testJob())
	r := newTestRouter(jobs, &fakeRunRepo{})

	w := doRequest(t, r, http.MethodPatch, "/jobs/1/active", `{"active":false}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204: %s", w.Code, w.Body.String())
	}
	if active, ok := jobs.setActive[1]; !ok || active {
		t.Errorf("expected SetActive(1, false), got %v", jobs.setActive)
	}
}

func TestSetActive_MissingField(t *testing.T) {
	r := newTestRouter(newFakeJobRepo(testJob()), &fakeRunRepo{})

	// "active" must be explicit; an empty body is not a pause request.
	if w := doRequest(t, r, http.MethodPatch, "/jobs/1/active", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestSetActive_NotFound(t *testing.T) {
	r := newTestRouter(newFakeJobRepo(), &fakeRunRepo{})

	if w := doRequest(t, r, http.MethodPatch, "/jobs/99/active", `{"active":true}`); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

// ---- ListRuns ----

func TestListRuns(t *testing.T) {
	started := time.Now().UTC()
	worker := "worker-1"
	runs := &fakeRunRepo{runs: []*domain.JobRun{{
		ID:            10,
		JobID:         1,
		ScheduledTime: started.Add(-time.Minute),
		Status:        domain.RunSuccess,
		StartedAt:     &started,
		WorkerID:      &worker,
	}}}
	r := newTestRouter(newFakeJobRepo(testJob()), runs)

	w := doRequest(t, r, http.MethodGet, "/jobs/1/runs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Runs []runResponse `json:"runs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(resp.Runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(resp.Runs))
	}
	run := resp.Runs[0]
	if run.Status != domain.RunSuccess {
		t.Errorf("status = %q, want SUCCESS", run.Status)
	}
	if run.WorkerID == nil || *run.WorkerID != "worker-1" {
		t.Errorf("worker_id = %v, want worker-1", run.WorkerID)
	}
}

func TestListRuns_UnknownJob(t *testing.T) {
	r := newTestRouter(newFakeJobRepo(), &fakeRunRepo{})

	if w := doRequest(t, r, http.MethodGet, "/jobs/99/runs", ""); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
