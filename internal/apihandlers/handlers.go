package apihandlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"syncworker/internal/app"
	"syncworker/internal/job"
	"syncworker/internal/models"
	"syncworker/internal/scheduler"
)

// Submitter hands descriptors to the queue.
type Submitter interface {
	Submit(ctx context.Context, d job.Descriptor) (scheduler.AttemptHandle, error)
}

// Tracker reads job state and progress back from the queue.
type Tracker interface {
	Find(jobID string, queues ...string) (scheduler.Status, error)
	Watch(ctx context.Context, h scheduler.AttemptHandle) <-chan models.Report
}

type APIHandler struct {
	Submitter Submitter
	Tracker   Tracker
	Queues    []string
}

func NewAPIHandler(a *app.App) *APIHandler {
	return &APIHandler{Submitter: a.Scheduler, Tracker: a.Watcher, Queues: a.Queues()}
}

// Register mounts the job routes on g.
func (h *APIHandler) Register(g *gin.RouterGroup) {
	jobs := g.Group("/jobs")
	jobs.POST("", h.SubmitJobHandler)
	jobs.GET("/:id", h.GetJobHandler)
	jobs.GET("/:id/events", h.JobEventsHandler)
}

// SubmitJobHandler builds a descriptor from the request and enqueues it.
func (h *APIHandler) SubmitJobHandler(c *gin.Context) {
	var req SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	d, err := descriptorFromRequest(req)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	handle, err := h.Submitter.Submit(c.Request.Context(), d)
	if err != nil {
		if errors.Is(err, scheduler.ErrOutOfQuota) {
			TooManyRequests(c, err.Error())
			return
		}
		Internal(c, fmt.Sprintf("SubmitJobHandler: failed to submit job: %v", err))
		return
	}

	log.WithFields(log.Fields{"job_id": handle.JobID, "queue": handle.Queue, "type": d.Type()}).Info("API: sync job submitted")
	c.JSON(http.StatusAccepted, gin.H{"data": SubmitJobResponse{Handle: handle, Job: d}})
}

func descriptorFromRequest(req SubmitJobRequest) (job.Descriptor, error) {
	if req.Expedited == nil && req.Fallback == "" && req.Constraints == nil {
		return job.NewSyncDescriptor(req.Type)
	}

	priority := job.PriorityFallback{Expedited: true, Fallback: job.FallbackRunAsNonExpedited}
	if req.Expedited != nil {
		priority.Expedited = *req.Expedited
	}
	if req.Fallback != "" {
		priority.Fallback = req.Fallback
	}
	constraints := req.Constraints
	if constraints == nil {
		constraints = []job.Constraint{job.ConstraintNetworkConnected}
	}
	return job.Build(req.Type, constraints,
		job.BackoffPolicy{Kind: job.BackoffExponential, InitialDelay: 30000, Unit: time.Millisecond},
		priority,
	)
}

// GetJobHandler returns the queue state and latest report of a job.
func (h *APIHandler) GetJobHandler(c *gin.Context) {
	st, ok := h.findJob(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": JobStatusResponse{Status: st, Report: st.Report}})
}

// JobEventsHandler streams reports as server-sent events until the job
// reports a result or the client goes away. Progress reports use the
// "progress" event, the final one "result".
func (h *APIHandler) JobEventsHandler(c *gin.Context) {
	st, ok := h.findJob(c)
	if !ok {
		return
	}

	reports := h.Tracker.Watch(c.Request.Context(), scheduler.AttemptHandle{JobID: st.JobID, Queue: st.Queue})
	c.Stream(func(w io.Writer) bool {
		select {
		case rep, open := <-reports:
			if !open {
				return false
			}
			if rep.Done() {
				c.SSEvent("result", rep)
				return false
			}
			c.SSEvent("progress", rep)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (h *APIHandler) findJob(c *gin.Context) (scheduler.Status, bool) {
	id := c.Param("id")
	st, err := h.Tracker.Find(id, h.Queues...)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			NotFound(c, fmt.Sprintf("Job not found with ID: %s", id))
		} else {
			Internal(c, fmt.Sprintf("findJob: failed to look up job: %v", err))
		}
		return scheduler.Status{}, false
	}
	return st, true
}
