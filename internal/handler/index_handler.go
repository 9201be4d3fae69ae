package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dataportal-api/internal/dto"
	"github.com/noah-isme/dataportal-api/internal/models"
	appErrors "github.com/noah-isme/dataportal-api/pkg/errors"
	"github.com/noah-isme/dataportal-api/pkg/response"
)

type indexService interface {
	Rebuild(ctx context.Context, req dto.IndexRebuildRequest) (*models.RebuildReport, error)
	Verify(ctx context.Context, req dto.IndexRebuildRequest) ([]models.IndexMismatch, error)
	ScheduleRebuild(req dto.IndexRebuildRequest) (string, error)
}

// IndexHandler exposes maintenance of the best-version index.
type IndexHandler struct {
	service indexService
}

// NewIndexHandler constructs the handler.
func NewIndexHandler(service indexService) *IndexHandler {
	return &IndexHandler{service: service}
}

// Rebuild godoc
// @Summary Rebuild the best-version index
// @Description Replays version resolution over the revision store. async=true queues the rebuild.
// @Tags Index
// @Accept json
// @Produce json
// @Param payload body dto.IndexRebuildRequest false "Scope"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Router /admin/index/rebuild [post]
func (h *IndexHandler) Rebuild(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "index service not configured"))
		return
	}
	var req dto.IndexRebuildRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid rebuild payload"))
			return
		}
	}

	if req.Async {
		jobID, err := h.service.ScheduleRebuild(req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusAccepted, gin.H{"jobId": jobID})
		return
	}

	report, err := h.service.Rebuild(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// Verify godoc
// @Summary Compare the index with a fresh resolution
// @Tags Index
// @Produce json
// @Param site query []string false "Site ids"
// @Param product query []string false "Product ids"
// @Param dateFrom query string false "First measurement date"
// @Param dateTo query string false "Last measurement date"
// @Success 200 {object} response.Envelope
// @Router /admin/index/verify [get]
func (h *IndexHandler) Verify(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "index service not configured"))
		return
	}
	var req dto.IndexRebuildRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	mismatches, err := h.service.Verify(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mismatches, map[string]interface{}{
		"consistent": len(mismatches) == 0,
		"mismatches": len(mismatches),
	})
}
