package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dataportal-api/internal/dto"
	"github.com/noah-isme/dataportal-api/internal/models"
	appErrors "github.com/noah-isme/dataportal-api/pkg/errors"
	"github.com/noah-isme/dataportal-api/pkg/response"
)

type submissionService interface {
	Submit(ctx context.Context, req dto.SubmitFileRequest) (*models.SubmissionResult, error)
	Amend(ctx context.Context, uuid string, req dto.AmendFileRequest) (*models.FileRevision, error)
}

type fileRenderer interface {
	Response(rev models.FileRevision) dto.FileResponse
}

// SubmissionHandler exposes the private write endpoints used by the processing pipeline.
type SubmissionHandler struct {
	service  submissionService
	renderer fileRenderer
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(service submissionService, renderer fileRenderer) *SubmissionHandler {
	return &SubmissionHandler{service: service, renderer: renderer}
}

// Submit godoc
// @Summary Submit a file revision
// @Description Inserts, updates or supersedes a revision. 201 for created, 200 for updated.
// @Tags Submissions
// @Accept json
// @Produce json
// @Param uuid path string true "File uuid"
// @Param payload body dto.SubmitFileRequest true "Revision"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /files/{uuid} [put]
func (h *SubmissionHandler) Submit(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "submission service not configured"))
		return
	}
	var req dto.SubmitFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid file payload"))
		return
	}
	pathUUID := c.Param("uuid")
	switch {
	case req.UUID == "":
		req.UUID = pathUUID
	case !strings.EqualFold(req.UUID, pathUUID):
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "uuid in path and body differ"))
		return
	}
	h.respond(c, req)
}

// SubmitModelFile godoc
// @Summary Submit a model file
// @Description Reconciles on site, model type and date rather than uuid.
// @Tags Submissions
// @Accept json
// @Produce json
// @Param payload body dto.ModelFileRequest true "Model file"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /model-files [post]
func (h *SubmissionHandler) SubmitModelFile(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "submission service not configured"))
		return
	}
	var req dto.ModelFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid model file payload"))
		return
	}
	h.respond(c, req.ToSubmission())
}

func (h *SubmissionHandler) respond(c *gin.Context, req dto.SubmitFileRequest) {
	result, err := h.service.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if result.Result == models.SubmissionCreated {
		status = http.StatusCreated
	}
	response.JSON(c, status, dto.SubmitFileResponse{
		Result: string(result.Result),
		File:   h.render(*result.Revision),
	})
}

// Amend godoc
// @Summary Amend file attributes
// @Description Assigns a pid, toggles legacy, or freezes/unfreezes a file.
// @Tags Submissions
// @Accept json
// @Produce json
// @Param uuid path string true "File uuid"
// @Param payload body dto.AmendFileRequest true "Attributes"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{uuid} [post]
func (h *SubmissionHandler) Amend(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "submission service not configured"))
		return
	}
	var req dto.AmendFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid amendment payload"))
		return
	}
	rev, err := h.service.Amend(c.Request.Context(), c.Param("uuid"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.render(*rev))
}

func (h *SubmissionHandler) render(rev models.FileRevision) dto.FileResponse {
	if h.renderer == nil {
		return dto.NewFileResponse(rev, false, "")
	}
	return h.renderer.Response(rev)
}
