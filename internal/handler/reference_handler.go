package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dataportal-api/internal/models"
	appErrors "github.com/noah-isme/dataportal-api/pkg/errors"
	"github.com/noah-isme/dataportal-api/pkg/response"
)

type referenceService interface {
	Sites(ctx context.Context) ([]models.Site, error)
	Products(ctx context.Context) ([]models.Product, error)
	ModelTypes(ctx context.Context) ([]models.ModelType, error)
}

// ReferenceHandler lists sites, products and model types.
type ReferenceHandler struct {
	service referenceService
}

// NewReferenceHandler constructs the handler.
func NewReferenceHandler(service referenceService) *ReferenceHandler {
	return &ReferenceHandler{service: service}
}

// Sites godoc
// @Summary List sites
// @Tags Reference
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /api/sites [get]
func (h *ReferenceHandler) Sites(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "reference service not configured"))
		return
	}
	sites, err := h.service.Sites(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sites)
}

// Products godoc
// @Summary List products
// @Tags Reference
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /api/products [get]
func (h *ReferenceHandler) Products(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "reference service not configured"))
		return
	}
	products, err := h.service.Products(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, products)
}

// Models godoc
// @Summary List model types by optimum order
// @Tags Reference
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /api/models [get]
func (h *ReferenceHandler) Models(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "reference service not configured"))
		return
	}
	types, err := h.service.ModelTypes(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, types)
}
