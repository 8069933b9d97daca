package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/anipipe/api/internal/model"
	"github.com/anipipe/api/internal/pipeline"
	"github.com/anipipe/api/pkg/response"
)

// PipelineHandler exposes the orchestrator over REST.
type PipelineHandler struct {
	orchestrator *pipeline.Orchestrator
	validator    *validator.Validate
}

func NewPipelineHandler(o *pipeline.Orchestrator, v *validator.Validate) *PipelineHandler {
	return &PipelineHandler{
		orchestrator: o,
		validator:    v,
	}
}

// Start handles POST /api/pipeline
func (h *PipelineHandler) Start(c *fiber.Ctx) error {
	var req model.StartRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	jobID, err := h.orchestrator.Start(&req)
	if err != nil {
		if errors.Is(err, pipeline.ErrMissingURL) {
			return response.ValidationError(c, "URL is required", nil)
		}
		if errors.Is(err, pipeline.ErrInvalidOption) {
			return response.ValidationError(c, err.Error(), nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, model.StartResponse{Success: true, JobID: jobID})
}

// Bulk handles POST /api/pipeline/bulk
func (h *PipelineHandler) Bulk(c *fiber.Ctx) error {
	var req model.BulkStartRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	results := make([]model.StartResponse, 0, len(req.URLs))
	for _, u := range req.URLs {
		start := model.StartRequest{
			URL:             u,
			Cookies:         req.Cookies,
			Title:           req.Title,
			LinkKind:        req.LinkKind,
			TrackPreference: req.TrackPreference,
		}
		jobID, err := h.orchestrator.Start(&start)
		if err != nil {
			results = append(results, model.StartResponse{Success: false})
			continue
		}
		results = append(results, model.StartResponse{Success: true, JobID: jobID})
	}

	return response.Accepted(c, model.BulkStartResponse{
		Success: true,
		Count:   len(results),
		Results: results,
	})
}

// List handles GET /api/pipelines
func (h *PipelineHandler) List(c *fiber.Ctx) error {
	return response.OK(c, h.orchestrator.GetAll())
}

// Status handles GET /api/job/:jobId and GET /api/status/:jobId
func (h *PipelineHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	job, err := h.orchestrator.GetStatus(jobID)
	if err != nil {
		return response.NotFound(c, "Job not found")
	}
	return response.OK(c, job)
}

// Cancel handles POST /api/cancel/:jobId
func (h *PipelineHandler) Cancel(c *fiber.Ctx) error {
	return h.mutate(c, h.orchestrator.Cancel, "Job cancelled")
}

// Pause handles POST /api/pause/:jobId
func (h *PipelineHandler) Pause(c *fiber.Ctx) error {
	return h.mutate(c, h.orchestrator.Pause, "Job paused")
}

// Resume handles POST /api/resume/:jobId
func (h *PipelineHandler) Resume(c *fiber.Ctx) error {
	return h.mutate(c, h.orchestrator.Resume, "Job resumed")
}

// Delete handles DELETE /api/job/:jobId
func (h *PipelineHandler) Delete(c *fiber.Ctx) error {
	return h.mutate(c, h.orchestrator.DeleteJob, "Job deleted")
}

// ClearFailed handles POST /api/clear-failed
func (h *PipelineHandler) ClearFailed(c *fiber.Ctx) error {
	count := h.orchestrator.ClearFailed()
	return response.OK(c, model.ClearResponse{Success: true, ClearedCount: count})
}

// ClearCompleted handles POST /api/clear-completed
func (h *PipelineHandler) ClearCompleted(c *fiber.Ctx) error {
	count := h.orchestrator.ClearCompleted()
	return response.OK(c, model.ClearResponse{Success: true, ClearedCount: count})
}

// DeleteSelected handles POST /api/delete-selected
func (h *PipelineHandler) DeleteSelected(c *fiber.Ctx) error {
	var req model.DeleteSelectedRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	count := h.orchestrator.DeleteSelected(req.JobIDs)
	return response.OK(c, model.ClearResponse{Success: true, ClearedCount: count})
}

func (h *PipelineHandler) mutate(c *fiber.Ctx, op func(string) error, okMessage string) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	if err := op(jobID); err != nil {
		if errors.Is(err, pipeline.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, model.OutcomeResponse{Success: true, Message: okMessage})
}
