package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ErlanBelekov/cronfleet/internal/domain"
	"github.com/ErlanBelekov/cronfleet/internal/repository"
	"github.com/ErlanBelekov/cronfleet/internal/usecase"
	"github.com/gin-gonic/gin"
)

type JobHandler struct {
	jobUsecase *usecase.JobUsecase
	logger     *slog.Logger
}

func NewJobHandler(jobUsecase *usecase.JobUsecase, logger *slog.Logger) *JobHandler {
	return &JobHandler{jobUsecase: jobUsecase, logger: logger.With("component", "job_handler")}
}

type createJobRequest struct {
	Name               string  `json:"name"                binding:"required,min=1"`
	Schedule           string  `json:"schedule"            binding:"required,min=1"`
	ExecutionTimeSec   int     `json:"execution_time_sec"  binding:"min=0"`
	FailureProbability float64 `json:"failure_probability" binding:"min=0,max=1"`
	MaxRetries         int     `json:"max_retries"         binding:"min=0"`
	RetryDelaySec      *int    `json:"retry_delay_sec"     binding:"omitempty,min=0"`
}

type jobResponse struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Schedule           string    `json:"schedule"`
	ExecutionTimeSec   int       `json:"execution_time_sec"`
	FailureProbability float64   `json:"failure_probability"`
	MaxRetries         int       `json:"max_retries"`
	RetryDelaySec      int       `json:"retry_delay_sec"`
	IsActive           bool      `json:"is_active"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type runResponse struct {
	ID              int64            `json:"id"`
	JobID           int64            `json:"job_id"`
	ScheduledTime   time.Time        `json:"scheduled_time"`
	Status          domain.RunStatus `json:"status"`
	AttemptNumber   int              `json:"attempt_number"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	FinishedAt      *time.Time       `json:"finished_at,omitempty"`
	LastHeartbeatAt *time.Time       `json:"last_heartbeat_at,omitempty"`
	WorkerID        *string          `json:"worker_id,omitempty"`
	ErrorMessage    *string          `json:"error_message,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

func toJobResponse(j *domain.Job) jobResponse {
	return jobResponse{
		ID:                 j.ID,
		Name:               j.Name,
		Schedule:           j.Schedule,
		ExecutionTimeSec:   j.ExecutionTimeSec,
		FailureProbability: j.FailureProbability,
		MaxRetries:         j.MaxRetries,
		RetryDelaySec:      j.RetryDelaySec,
		IsActive:           j.IsActive,
		CreatedAt:          j.CreatedAt,
		UpdatedAt:          j.UpdatedAt,
	}
}

func toRunResponse(r *domain.JobRun) runResponse {
	return runResponse{
		ID:              r.ID,
		JobID:           r.JobID,
		ScheduledTime:   r.ScheduledTime,
		Status:          r.Status,
		AttemptNumber:   r.AttemptNumber,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
		LastHeartbeatAt: r.LastHeartbeatAt,
		WorkerID:        r.WorkerID,
		ErrorMessage:    r.ErrorMessage,
		CreatedAt:       r.CreatedAt,
	}
}

func (h *JobHandler) Create(ctx *gin.Context) {
	var req createJobRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.jobUsecase.CreateJob(ctx.Request.Context(), usecase.CreateJobInput{
		Name:               req.Name,
		Schedule:           req.Schedule,
		ExecutionTimeSec:   req.ExecutionTimeSec,
		FailureProbability: req.FailureProbability,
		MaxRetries:         req.MaxRetries,
		RetryDelaySec:      req.RetryDelaySec,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCronExpr) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidCron})
			return
		}
		h.logger.Error("create job", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusCreated, toJobResponse(job))
}

func (h *JobHandler) GetByID(ctx *gin.Context) {
	id, ok := jobIDParam(ctx)
	if !ok {
		return
	}

	job, err := h.jobUsecase.GetJob(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errJobNotFound})
			return
		}
		h.logger.Error("get job by id", "job_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusOK, toJobResponse(job))
}

func (h *JobHandler) List(ctx *gin.Context) {
	input := repository.ListJobsInput{Limit: intQuery(ctx, "limit", 20)}

	if cursor := ctx.Query("cursor_time"); cursor != "" {
		t, err := time.Parse(time.RFC3339Nano, cursor)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "cursor_time must be RFC 3339"})
			return
		}
		input.CursorTime = &t
		input.CursorID, _ = strconv.ParseInt(ctx.Query("cursor_id"), 10, 64)
	}

	jobs, err := h.jobUsecase.ListJobs(ctx.Request.Context(), input)
	if err != nil {
		h.logger.Error("list jobs", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	resp := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		resp = append(resp, toJobResponse(j))
	}
	ctx.JSON(http.StatusOK, gin.H{"jobs": resp})
}

type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

func (h *JobHandler) SetActive(ctx *gin.Context) {
	id, ok := jobIDParam(ctx)
	if !ok {
		return
	}

	var req setActiveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.jobUsecase.SetActive(ctx.Request.Context(), id, *req.Active); err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errJobNotFound})
			return
		}
		h.logger.Error("set job active", "job_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *JobHandler) ListRuns(ctx *gin.Context) {
	id, ok := jobIDParam(ctx)
	if !ok {
		return
	}

	runs, err := h.jobUsecase.ListRuns(ctx.Request.Context(), id, intQuery(ctx, "limit", 20))
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errJobNotFound})
			return
		}
		h.logger.Error("list job runs", "job_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	resp := make([]runResponse, 0, len(runs))
	for _, r := range runs {
		resp = append(resp, toRunResponse(r))
	}
	ctx.JSON(http.StatusOK, gin.H{"runs": resp})
}

func jobIDParam(ctx *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidJobID})
		return 0, false
	}
	return id, true
}

func intQuery(ctx *gin.Context, name string, fallback int) int {
	v, err := strconv.Atoi(ctx.DefaultQuery(name, ""))
	if err != nil {
		return fallback
	}
	return v
}
