package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dataportal-api/internal/dto"
	"github.com/noah-isme/dataportal-api/internal/middleware"
	"github.com/noah-isme/dataportal-api/internal/models"
	appErrors "github.com/noah-isme/dataportal-api/pkg/errors"
	"github.com/noah-isme/dataportal-api/pkg/response"
)

type fileService interface {
	ResolveBest(ctx context.Context, query dto.FileQuery) ([]models.FileRevision, error)
	Search(ctx context.Context, query dto.FileQuery) ([]models.FileRevision, error)
	GetByUUID(ctx context.Context, uuid string) (*models.FileRevision, error)
	Responses(revisions []models.FileRevision) []dto.FileResponse
	Response(rev models.FileRevision) dto.FileResponse
	ExportCSV(revisions []models.FileRevision) ([]byte, error)
	Download(ctx context.Context, uuid, expires, token string) (*models.FileRevision, io.ReadCloser, error)
}

// FileHandler serves the public read endpoints of the catalog.
type FileHandler struct {
	service fileService
}

// NewFileHandler constructs the handler.
func NewFileHandler(service fileService) *FileHandler {
	return &FileHandler{service: service}
}

// List godoc
// @Summary List files
// @Description Returns the best file per site, product and date. allVersions and allModels widen the listing.
// @Tags Files
// @Produce json
// @Param site query []string false "Site ids"
// @Param product query []string false "Product ids"
// @Param model query []string false "Model types"
// @Param dateFrom query string false "First measurement date (YYYY-MM-DD)"
// @Param dateTo query string false "Last measurement date (YYYY-MM-DD)"
// @Param date query string false "Exact measurement date (YYYY-MM-DD)"
// @Param releasedBefore query string false "Only revisions released before this instant"
// @Param allVersions query bool false "Include every version"
// @Param allModels query bool false "Include every model type"
// @Param showLegacy query bool false "Include legacy files"
// @Param includeVolatile query bool false "Include volatile files (default true)"
// @Param limit query int false "Maximum number of files"
// @Param format query string false "json or csv"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /api/files [get]
func (h *FileHandler) List(c *gin.Context) {
	h.list(c, false)
}

// Search godoc
// @Summary Search best versions
// @Description Index view of the catalog: only the current best file of each key.
// @Tags Files
// @Produce json
// @Param site query []string false "Site ids"
// @Param product query []string false "Product ids"
// @Param dateFrom query string false "First measurement date (YYYY-MM-DD)"
// @Param dateTo query string false "Last measurement date (YYYY-MM-DD)"
// @Param includeVolatile query bool false "Include volatile files (default true)"
// @Success 200 {object} response.Envelope
// @Router /api/search [get]
func (h *FileHandler) Search(c *gin.Context) {
	h.list(c, true)
}

func (h *FileHandler) list(c *gin.Context, indexOnly bool) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "file service not configured"))
		return
	}
	var query dto.FileQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}

	resolve := h.service.ResolveBest
	if indexOnly {
		resolve = h.service.Search
	}
	revisions, err := resolve(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}

	if strings.EqualFold(query.Format, "csv") {
		body, err := h.service.ExportCSV(revisions)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.CSV(c, "files.csv", body)
		return
	}

	middleware.SetMeta(c, "count", len(revisions))
	response.JSON(c, http.StatusOK, h.service.Responses(revisions), middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get file by uuid
// @Tags Files
// @Produce json
// @Param uuid path string true "File uuid"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /api/files/{uuid} [get]
func (h *FileHandler) Get(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "file service not configured"))
		return
	}
	rev, err := h.service.GetByUUID(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.service.Response(*rev))
}

// Download godoc
// @Summary Download file content
// @Tags Files
// @Produce octet-stream
// @Param uuid path string true "File uuid"
// @Param expires query string true "Link expiry (unix seconds)"
// @Param token query string true "Link signature"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /api/download/{uuid} [get]
func (h *FileHandler) Download(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "file service not configured"))
		return
	}
	rev, body, err := h.service.Download(c.Request.Context(), c.Param("uuid"), c.Query("expires"), c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer body.Close()

	extraHeaders := map[string]string{
		"Content-Disposition": `attachment; filename="` + rev.Filename + `"`,
		"X-Checksum-SHA256":   rev.Checksum,
	}
	size := rev.Size
	if size <= 0 {
		size = -1
	}
	c.DataFromReader(http.StatusOK, size, "application/octet-stream", body, extraHeaders)
}
