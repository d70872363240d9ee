package models

import "time"

// Outcome is the terminal state of one execution attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// ProgressEvent is a single progress update emitted by the sync pipeline.
// Only the latest event is meaningful; a newer event replaces the older one.
type ProgressEvent struct {
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

// StageResult is produced by one stage function and consumed by the pipeline.
type StageResult struct {
	Stage     string `json:"stage"`
	Succeeded bool   `json:"succeeded"`
}

// JobResult is the terminal result of an execution attempt.
type JobResult struct {
	Outcome Outcome `json:"outcome"`
	Message string  `json:"message"`
}

func Success(msg string) JobResult { return JobResult{Outcome: OutcomeSuccess, Message: msg} }
func Failure(msg string) JobResult { return JobResult{Outcome: OutcomeFailure, Message: msg} }

// Succeeded reports whether the attempt finished successfully.
func (r JobResult) Succeeded() bool { return r.Outcome == OutcomeSuccess }

// NotificationState is the lifecycle notification for one execution attempt.
type NotificationState struct {
	ChannelID string `json:"channel_id"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	Progress  int    `json:"progress"`
	Ongoing   bool   `json:"ongoing"`
}

// Report is what travels back to the submitter on the progress channel.
// Result is set exactly once, on the last report of an attempt.
type Report struct {
	JobID     string         `json:"job_id"`
	Progress  *ProgressEvent `json:"progress,omitempty"`
	Result    *JobResult     `json:"result,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Done reports whether the report carries the terminal JobResult.
func (r Report) Done() bool { return r.Result != nil }

// Record is one fetched item of a data category (process, supplier, conception).
type Record struct {
	ID   string `json:"id"`
	Data []byte `json:"data"`
}
