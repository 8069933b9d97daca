package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/anipipe/api/internal/episodes"
	"github.com/anipipe/api/internal/model"
	"github.com/anipipe/api/internal/pipeline"
	"github.com/anipipe/api/pkg/response"
)

// EpisodesHandler lists a show's episodes and fans an episode range out
// into individual pipeline jobs.
type EpisodesHandler struct {
	client       *episodes.Client
	orchestrator *pipeline.Orchestrator
	validator    *validator.Validate
}

func NewEpisodesHandler(client *episodes.Client, o *pipeline.Orchestrator, v *validator.Validate) *EpisodesHandler {
	return &EpisodesHandler{
		client:       client,
		orchestrator: o,
		validator:    v,
	}
}

// List handles GET /api/episodes/:animeId
func (h *EpisodesHandler) List(c *fiber.Ctx) error {
	animeID := c.Params("animeId")
	if animeID == "" {
		return response.ValidationError(c, "Anime ID is required", nil)
	}

	eps, err := h.client.List(c.Context(), animeID)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, eps)
}

// Bulk handles POST /api/episodes/bulk
func (h *EpisodesHandler) Bulk(c *fiber.Ctx) error {
	var req model.BulkEpisodesRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	eps, err := h.client.List(c.Context(), req.AnimeID)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	total := len(eps)

	if req.EpisodeRange != nil {
		eps = episodes.FilterRange(eps, req.EpisodeRange.Start, req.EpisodeRange.End)
	}
	if len(eps) == 0 {
		return response.ValidationError(c, "No episodes match the requested range", nil)
	}

	results := make([]model.StartResponse, 0, len(eps))
	for _, ep := range eps {
		start := model.StartRequest{
			URL:             ep.WatchURL(),
			Cookies:         req.Cookies,
			Title:           episodes.RenderTitle(req.Title, ep),
			LinkKind:        model.LinkKindAnime,
			TrackPreference: req.TrackPreference,
		}
		jobID, err := h.orchestrator.Start(&start)
		if err != nil {
			results = append(results, model.StartResponse{Success: false})
			continue
		}
		results = append(results, model.StartResponse{Success: true, JobID: jobID})
	}

	return response.Accepted(c, model.BulkEpisodesResponse{
		Success:       true,
		Count:         len(results),
		TotalEpisodes: total,
		Results:       results,
	})
}
