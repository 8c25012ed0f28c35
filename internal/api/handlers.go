// Package api exposes the local intake surface: a synchronous print
// endpoint for the kiosk frontend, liveness and status probes, and the
// push-notification callback for the remote store.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bakebake-xr/printd/internal/config"
	"github.com/bakebake-xr/printd/internal/core"
	"github.com/bakebake-xr/printd/internal/history"
	"github.com/bakebake-xr/printd/internal/remote"
)

type Executor interface {
	Execute(ctx context.Context, job core.Job) core.Outcome
}

type QueueReader interface {
	Len() int
}

type HistoryReader interface {
	Recent(n int) ([]history.JobSummary, error)
}

// Pusher receives records delivered by the remote store's push
// subscription. Nil when the daemon runs local-only.
type Pusher interface {
	HandlePush(rec *remote.Record)
}

type PrintRequest struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Body      string `json:"body"`
	ImageData string `json:"image_data"`
}

type PrintResponse struct {
	Status string `json:"status"`
	Label  string `json:"label"`
	Error  string `json:"error,omitempty"`
}

type StatusResponse struct {
	Status      string               `json:"status"`
	Printer     string               `json:"printer"`
	Mode        string               `json:"mode"`
	QueueLength int                  `json:"queue_length"`
	RecentJobs  []history.JobSummary `json:"recent_jobs"`
}

type Handler struct {
	executor Executor
	queue    QueueReader
	history  HistoryReader
	pusher   Pusher
	cfg      *config.Config
}

func NewHandler(executor Executor, queue QueueReader, hist HistoryReader, pusher Pusher, cfg *config.Config) *Handler {
	return &Handler{
		executor: executor,
		queue:    queue,
		history:  hist,
		pusher:   pusher,
		cfg:      cfg,
	}
}

// HandlePrint accepts one job and prints it synchronously. The response
// tells the caller whether paper came out now, the job was queued for
// retry, or it was rejected outright.
func (h *Handler) HandlePrint(c *gin.Context) {
	var req PrintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if strings.TrimSpace(req.Label) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "label is required"})
		return
	}

	job := core.Job{
		ID:        req.ID,
		RemoteID:  req.ID,
		Label:     req.Label,
		Body:      req.Body,
		ImageData: req.ImageData,
		Source:    core.SourceLocal,
	}
	if job.ID == "" {
		// No remote record backs this job, so nothing to acknowledge.
		job.ID = uuid.NewString()
	}

	outcome := h.executor.Execute(c.Request.Context(), job)

	switch outcome.Status {
	case core.OutcomeDelivered:
		c.JSON(http.StatusOK, PrintResponse{Status: "printed", Label: req.Label})
	case core.OutcomeQueued:
		c.JSON(http.StatusInternalServerError, PrintResponse{
			Status: "queued",
			Label:  req.Label,
			Error:  "print failed, job queued for retry",
		})
	default:
		c.JSON(http.StatusInternalServerError, PrintResponse{
			Status: "rejected",
			Label:  req.Label,
			Error:  outcome.Err.Error(),
		})
	}
}

func (h *Handler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"printer": h.cfg.Printer.Name,
	})
}

// HandleStatus is read-only: queue depth, recent completions, device
// identity. No mutation happens on this path.
func (h *Handler) HandleStatus(c *gin.Context) {
	recent, err := h.history.Recent(h.cfg.History.RecentLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read history"})
		return
	}
	if recent == nil {
		recent = []history.JobSummary{}
	}

	c.JSON(http.StatusOK, StatusResponse{
		Status:      "ok",
		Printer:     h.cfg.Printer.Name,
		Mode:        string(h.cfg.Mode),
		QueueLength: h.queue.Len(),
		RecentJobs:  recent,
	})
}

// HandleNotify is the push-subscription callback target. The record is
// re-checked by the adapter's idempotency guard before execution.
func (h *Handler) HandleNotify(c *gin.Context) {
	var rec remote.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.pusher.HandlePush(&rec)
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}
