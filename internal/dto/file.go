package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/dataportal-api/internal/models"
)

// ModelProductID is the product every model-file submission is filed under.
const ModelProductID = "model"

// SubmitFileRequest is the body of PUT /files/:uuid.
type SubmitFileRequest struct {
	UUID            string   `json:"uuid" validate:"required,uuid"`
	Checksum        string   `json:"checksum" validate:"required,len=64,hexadecimal"`
	Filename        string   `json:"filename" validate:"required,max=255"`
	S3Key           string   `json:"s3key" validate:"required"`
	Site            string   `json:"site" validate:"required"`
	Product         string   `json:"product" validate:"required"`
	Model           string   `json:"model,omitempty"`
	MeasurementDate string   `json:"measurementDate" validate:"required,datetime=2006-01-02"`
	Format          string   `json:"format" validate:"required"`
	Size            int64    `json:"size" validate:"gte=0"`
	Volatile        *bool    `json:"volatile,omitempty"`
	Legacy          *bool    `json:"legacy,omitempty"`
	SourceFileIDs   []string `json:"sourceFileIds,omitempty" validate:"omitempty,dive,uuid"`
}

// SubmitFileResponse reports the accepted outcome.
type SubmitFileResponse struct {
	Result string       `json:"result"`
	File   FileResponse `json:"file"`
}

// AmendFileRequest is the body of POST /files/:uuid. Nil fields are left unchanged.
type AmendFileRequest struct {
	PID      *string `json:"pid,omitempty" validate:"omitempty,min=1,max=255"`
	Legacy   *bool   `json:"legacy,omitempty"`
	Volatile *bool   `json:"volatile,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (r AmendFileRequest) Empty() bool {
	return r.PID == nil && r.Legacy == nil && r.Volatile == nil
}

// ModelFileRequest mirrors the model-file upload payload of the processing pipeline.
type ModelFileRequest struct {
	Year      string `json:"year" validate:"required,numeric,len=4"`
	Month     string `json:"month" validate:"required,numeric,len=2"`
	Day       string `json:"day" validate:"required,numeric,len=2"`
	HashSum   string `json:"hashSum" validate:"required,len=64,hexadecimal"`
	Filename  string `json:"filename" validate:"required"`
	ModelType string `json:"modelType" validate:"required"`
	Location  string `json:"location" validate:"required"`
	FileUUID  string `json:"file_uuid" validate:"required,uuid"`
	Format    string `json:"format" validate:"required"`
	Size      int64  `json:"size" validate:"gte=0"`
	Volatile  *bool  `json:"volatile,omitempty"`
}

// ToSubmission converts the payload into a regular submission of the model product.
func (r ModelFileRequest) ToSubmission() SubmitFileRequest {
	return SubmitFileRequest{
		UUID:            r.FileUUID,
		Checksum:        strings.ToLower(r.HashSum),
		Filename:        r.Filename,
		S3Key:           r.Filename,
		Site:            r.Location,
		Product:         ModelProductID,
		Model:           r.ModelType,
		MeasurementDate: fmt.Sprintf("%s-%s-%s", r.Year, r.Month, r.Day),
		Format:          r.Format,
		Size:            r.Size,
		Volatile:        r.Volatile,
	}
}

// FileQuery captures the listing query string of /api/files and /api/search.
type FileQuery struct {
	Site            []string `form:"site"`
	Product         []string `form:"product"`
	Model           []string `form:"model"`
	DateFrom        string   `form:"dateFrom" validate:"omitempty,datetime=2006-01-02"`
	DateTo          string   `form:"dateTo" validate:"omitempty,datetime=2006-01-02"`
	Date            string   `form:"date" validate:"omitempty,datetime=2006-01-02"`
	ReleasedBefore  string   `form:"releasedBefore" validate:"omitempty"`
	AllVersions     bool     `form:"allVersions"`
	AllModels       bool     `form:"allModels"`
	ShowLegacy      bool     `form:"showLegacy"`
	IncludeVolatile *bool    `form:"includeVolatile"`
	Limit           int      `form:"limit" validate:"omitempty,gte=1,lte=10000"`
	Format          string   `form:"format" validate:"omitempty,oneof=json csv"`
}

// FileResponse is the public representation of a revision.
type FileResponse struct {
	UUID            string    `json:"uuid"`
	Checksum        string    `json:"checksum"`
	Filename        string    `json:"filename"`
	S3Key           string    `json:"s3key"`
	Site            string    `json:"site"`
	Product         string    `json:"product"`
	Model           string    `json:"model,omitempty"`
	OptimumOrder    *int      `json:"optimumOrder,omitempty"`
	MeasurementDate string    `json:"measurementDate"`
	Format          string    `json:"format"`
	Size            int64     `json:"size"`
	Volatile        bool      `json:"volatile"`
	Legacy          bool      `json:"legacy"`
	PID             string    `json:"pid,omitempty"`
	SupersededBy    string    `json:"supersededBy,omitempty"`
	SourceFileIDs   []string  `json:"sourceFileIds,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	ReleasedAt      time.Time `json:"releasedAt"`
	DownloadURL     string    `json:"downloadUrl,omitempty"`
}

// NewFileResponse flattens a revision; volatile and downloadURL are supplied by the caller.
func NewFileResponse(rev models.FileRevision, volatile bool, downloadURL string) FileResponse {
	resp := FileResponse{
		UUID:            rev.UUID,
		Checksum:        rev.Checksum,
		Filename:        rev.Filename,
		S3Key:           rev.S3Key,
		Site:            rev.SiteID,
		Product:         rev.ProductID,
		Model:           rev.Model(),
		OptimumOrder:    rev.OptimumOrder,
		MeasurementDate: rev.MeasurementDate.Format(models.DateLayout),
		Format:          rev.Format,
		Size:            rev.Size,
		Volatile:        volatile,
		Legacy:          rev.Legacy,
		SourceFileIDs:   rev.SourceFileIDs,
		CreatedAt:       rev.CreatedAt,
		UpdatedAt:       rev.UpdatedAt,
		ReleasedAt:      rev.ReleasedAt,
		DownloadURL:     downloadURL,
	}
	if rev.PID != nil {
		resp.PID = *rev.PID
	}
	if rev.SupersededBy != nil {
		resp.SupersededBy = *rev.SupersededBy
	}
	return resp
}

// IndexRebuildRequest scopes an index rebuild or verification.
type IndexRebuildRequest struct {
	Site     []string `json:"site" form:"site"`
	Product  []string `json:"product" form:"product"`
	DateFrom string   `json:"dateFrom" form:"dateFrom" validate:"omitempty,datetime=2006-01-02"`
	DateTo   string   `json:"dateTo" form:"dateTo" validate:"omitempty,datetime=2006-01-02"`
	Async    bool     `json:"async" form:"async"`
}
