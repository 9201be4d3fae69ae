package models

import (
	"fmt"
	"time"

	"github.com/lib/pq"
)

// DateLayout is the calendar day format used for measurement dates.
const DateLayout = "2006-01-02"

// FileRevision is one physical version of a product file.
type FileRevision struct {
	UUID             string         `db:"uuid" json:"uuid"`
	Checksum         string         `db:"checksum" json:"checksum"`
	Filename         string         `db:"filename" json:"filename"`
	S3Key            string         `db:"s3key" json:"s3key"`
	Bucket           string         `db:"bucket" json:"bucket"`
	SiteID           string         `db:"site_id" json:"siteId"`
	ProductID        string         `db:"product_id" json:"productId"`
	ModelID          *string        `db:"model_id" json:"modelId,omitempty"`
	OptimumOrder     *int           `db:"optimum_order" json:"optimumOrder,omitempty"`
	MeasurementDate  time.Time      `db:"measurement_date" json:"measurementDate"`
	Format           string         `db:"format" json:"format"`
	Size             int64          `db:"size" json:"size"`
	VolatileOverride *bool          `db:"volatile_override" json:"volatileOverride,omitempty"`
	Legacy           bool           `db:"legacy" json:"legacy"`
	PID              *string        `db:"pid" json:"pid,omitempty"`
	SupersededBy     *string        `db:"superseded_by" json:"supersededBy,omitempty"`
	SourceFileIDs    pq.StringArray `db:"source_file_ids" json:"sourceFileIds"`
	CreatedAt        time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updatedAt"`
	ReleasedAt       time.Time      `db:"released_at" json:"releasedAt"`
}

// Key returns the (site, product, date) key the revision competes under.
func (f FileRevision) Key() RevisionKey {
	return NewRevisionKey(f.SiteID, f.ProductID, f.MeasurementDate)
}

// Rank returns the model optimum order, zero for non-model products.
func (f FileRevision) Rank() int {
	if f.OptimumOrder == nil {
		return 0
	}
	return *f.OptimumOrder
}

// Model returns the model type id or an empty string.
func (f FileRevision) Model() string {
	if f.ModelID == nil {
		return ""
	}
	return *f.ModelID
}

// Superseded reports whether a newer revision replaced this one.
func (f FileRevision) Superseded() bool {
	return f.SupersededBy != nil && *f.SupersededBy != ""
}

// RevisionKey identifies the slot a best version is resolved for.
type RevisionKey struct {
	SiteID          string
	ProductID       string
	MeasurementDate time.Time
}

// NewRevisionKey normalises the date to a UTC calendar day.
func NewRevisionKey(siteID, productID string, date time.Time) RevisionKey {
	return RevisionKey{SiteID: siteID, ProductID: productID, MeasurementDate: TruncateDay(date)}
}

func (k RevisionKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.SiteID, k.ProductID, k.MeasurementDate.Format(DateLayout))
}

// TruncateDay drops the time of day, keeping the calendar date as written.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FileRevisionFilter narrows revision store searches. Empty sets match everything.
type FileRevisionFilter struct {
	SiteIDs           []string
	ProductIDs        []string
	ModelIDs          []string
	DateFrom          *time.Time
	DateTo            *time.Time
	Date              *time.Time
	ReleasedBefore    *time.Time
	IncludeLegacy     bool
	IncludeSuperseded bool
	Limit             int
}

// SubmissionOutcome is the accepted result of a submission.
type SubmissionOutcome string

const (
	SubmissionCreated SubmissionOutcome = "created"
	SubmissionUpdated SubmissionOutcome = "updated"
)

// SubmissionResult pairs the outcome with the revision as stored.
type SubmissionResult struct {
	Result   SubmissionOutcome `json:"result"`
	Revision *FileRevision     `json:"revision"`
}
