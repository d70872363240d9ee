package models

/*
Job status and category constants used across the codebase.
Centralizing these avoids magic strings in handlers, CLI output and metrics.
*/

// Attempt status constants, mirroring the asynq task states we surface.
const (
	JobStatusPending   = "pending"
	JobStatusScheduled = "scheduled"
	JobStatusActive    = "active"
	JobStatusRetrying  = "retrying"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusUnknown   = "unknown"
)

// Data categories fetched by the download pipeline.
const (
	CategoryProcesses   = "processes"
	CategorySuppliers   = "suppliers"
	CategoryConceptions = "conceptions"
)
