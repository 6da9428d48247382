package handler

const (
	errInternalServer = "Internal server error"
	errJobNotFound    = "Job not found"
	errInvalidJobID   = "Job id must be an integer"
	errInvalidCron    = "Schedule is not a valid cron expression"
)
