package models

import "time"

// BestVersionEntry is one materialised pointer from a key to its best revision.
type BestVersionEntry struct {
	SiteID          string    `db:"site_id" json:"siteId"`
	ProductID       string    `db:"product_id" json:"productId"`
	MeasurementDate time.Time `db:"measurement_date" json:"measurementDate"`
	UUID            string    `db:"uuid" json:"uuid"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}

// Key returns the entry key.
func (e BestVersionEntry) Key() RevisionKey {
	return NewRevisionKey(e.SiteID, e.ProductID, e.MeasurementDate)
}

// IndexMismatch describes a key whose stored pointer differs from a replay.
type IndexMismatch struct {
	SiteID          string  `json:"siteId"`
	ProductID       string  `json:"productId"`
	MeasurementDate string  `json:"measurementDate"`
	IndexedUUID     *string `json:"indexedUuid"`
	ExpectedUUID    *string `json:"expectedUuid"`
}

// RebuildReport summarises an index rebuild.
type RebuildReport struct {
	Keys      int       `json:"keys"`
	Upserted  int       `json:"upserted"`
	Deleted   int       `json:"deleted"`
	Unchanged int       `json:"unchanged"`
	Failed    int       `json:"failed"`
	StartedAt time.Time `json:"startedAt"`
	Duration  string    `json:"duration"`
}
