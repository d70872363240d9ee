// Package pipeline runs the download stages of a sync attempt in a fixed
// order and folds their outcomes into a single JobResult.
//
// Every stage is attempted even when an earlier one reports failure; the
// attempt succeeds only if all of them do. A stage that returns an error
// (rather than false) aborts the run and the error is handed back to the
// caller, which is expected to turn it into a failed JobResult.
package pipeline

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"syncworker/internal/models"
)

const (
	MsgDownloaded         = "Data Downloaded"
	MsgDownloadFailed     = "Failed to download data"
	MsgUploadNotSupported = "Upload not supported"
)

// PageContext is handed to each stage function. Fetchers advance Page as they
// walk the remote listing; the pipeline reads it back for the progress message.
type PageContext struct {
	Stage string
	Page  int
}

// StageFunc fetches one data category. false means the stage failed; a non-nil
// error is a fault outside the stage contract.
type StageFunc func(ctx context.Context, page *PageContext) (bool, error)

// Fetcher provides the three download stages.
type Fetcher interface {
	FetchProcesses(ctx context.Context, page *PageContext) (bool, error)
	FetchSuppliers(ctx context.Context, page *PageContext) (bool, error)
	FetchConceptions(ctx context.Context, page *PageContext) (bool, error)
}

// StageFault wraps an error raised by a stage outside the bool contract.
// Its message is the underlying fault's message.
type StageFault struct {
	Stage string
	Err   error
}

func (e *StageFault) Error() string { return e.Err.Error() }
func (e *StageFault) Unwrap() error { return e.Err }

// ProgressFunc receives a ProgressEvent after every stage.
type ProgressFunc func(models.ProgressEvent)

type stage struct {
	name    string
	title   string
	percent int
	run     StageFunc
}

// Pipeline is the download/upload sync pipeline.
type Pipeline struct {
	stages  []stage
	observe func(models.StageResult)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStageObserver registers a callback invoked with every StageResult
// (used for metrics; results are not retained by the pipeline).
func WithStageObserver(fn func(models.StageResult)) Option {
	return func(p *Pipeline) { p.observe = fn }
}

// New returns a pipeline that fetches through f.
func New(f Fetcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		stages: []stage{
			{name: models.CategoryProcesses, title: "Processes", percent: 25, run: f.FetchProcesses},
			{name: models.CategorySuppliers, title: "Suppliers", percent: 50, run: f.FetchSuppliers},
			{name: models.CategoryConceptions, title: "Conceptions", percent: 100, run: f.FetchConceptions},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunDownload executes processes, suppliers and conceptions strictly in that
// order, reporting 25, 50 and 100 percent as each one finishes.
// The context is checked between stages only; a running stage is never interrupted.
func (p *Pipeline) RunDownload(ctx context.Context, progress ProgressFunc) (models.JobResult, error) {
	allOK := true
	for _, st := range p.stages {
		if err := ctx.Err(); err != nil {
			return models.JobResult{}, err
		}

		page := &PageContext{Stage: st.name, Page: 1}
		ok, err := st.run(ctx, page)
		if err != nil {
			return models.JobResult{}, &StageFault{Stage: st.name, Err: err}
		}

		res := models.StageResult{Stage: st.name, Succeeded: ok}
		log.WithFields(log.Fields{"stage": res.Stage, "succeeded": res.Succeeded, "page": page.Page}).Debug("sync stage finished")
		if p.observe != nil {
			p.observe(res)
		}
		allOK = allOK && ok

		if progress != nil {
			progress(models.ProgressEvent{
				Percent: st.percent,
				Message: fmt.Sprintf("Downloading %s Page %d", st.title, page.Page),
			})
		}
	}

	if !allOK {
		return models.Failure(MsgDownloadFailed), nil
	}
	return models.Success(MsgDownloaded), nil
}

// RunUpload is not implemented by the sync backend and always fails.
func (p *Pipeline) RunUpload(ctx context.Context) models.JobResult {
	return models.Failure(MsgUploadNotSupported)
}
