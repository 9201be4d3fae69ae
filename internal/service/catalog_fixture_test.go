package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dataportal-api/internal/models"
	"github.com/noah-isme/dataportal-api/internal/repository"
	appErrors "github.com/noah-isme/dataportal-api/pkg/errors"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

// memoryCatalog stands in for both the revision store and the best-version
// index. It ignores the executor, so only BEGIN/COMMIT/ROLLBACK reach sqlmock.
type memoryCatalog struct {
	mu        sync.Mutex
	revisions map[string]models.FileRevision
	index     map[string]models.BestVersionEntry
	insertErr error
}

func newMemoryCatalog() *memoryCatalog {
	return &memoryCatalog{
		revisions: make(map[string]models.FileRevision),
		index:     make(map[string]models.BestVersionEntry),
	}
}

func (m *memoryCatalog) GetByUUID(ctx context.Context, uuid string) (*models.FileRevision, error) {
	return m.Find(ctx, nil, uuid)
}

func (m *memoryCatalog) Find(_ context.Context, _ sqlx.ExtContext, uuid string) (*models.FileRevision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rev, ok := m.revisions[uuid]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &rev, nil
}

func (m *memoryCatalog) Search(_ context.Context, filter models.FileRevisionFilter) ([]models.FileRevision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.FileRevision, 0)
	for _, rev := range m.revisions {
		if matchesFilter(rev, filter) {
			out = append(out, rev)
		}
	}
	SortRevisions(out)
	return out, nil
}

func (m *memoryCatalog) LockKey(context.Context, sqlx.ExtContext, models.RevisionKey) error {
	return nil
}

func (m *memoryCatalog) ListActiveByKey(_ context.Context, _ sqlx.ExtContext, key models.RevisionKey) ([]models.FileRevision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.FileRevision, 0)
	for _, rev := range m.revisions {
		if rev.Key().String() == key.String() && !rev.Superseded() {
			out = append(out, rev)
		}
	}
	SortRevisions(out)
	return out, nil
}

func (m *memoryCatalog) Insert(_ context.Context, _ sqlx.ExtContext, rev *models.FileRevision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	if _, ok := m.revisions[rev.UUID]; ok {
		return fmt.Errorf("duplicate uuid %s", rev.UUID)
	}
	m.revisions[rev.UUID] = *rev
	return nil
}

func (m *memoryCatalog) UpdateContent(_ context.Context, _ sqlx.ExtContext, rev *models.FileRevision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.revisions[rev.UUID]; !ok {
		return sql.ErrNoRows
	}
	m.revisions[rev.UUID] = *rev
	return nil
}

func (m *memoryCatalog) MarkSuperseded(_ context.Context, _ sqlx.ExtContext, uuid, supersededBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rev, ok := m.revisions[uuid]
	if !ok {
		return sql.ErrNoRows
	}
	by := supersededBy
	rev.SupersededBy = &by
	m.revisions[uuid] = rev
	return nil
}

func (m *memoryCatalog) SetAttributes(_ context.Context, _ sqlx.ExtContext, uuid string, attrs repository.RevisionAttributes) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rev, ok := m.revisions[uuid]
	if !ok {
		return sql.ErrNoRows
	}
	if attrs.PID != nil {
		rev.PID = attrs.PID
	}
	if attrs.Legacy != nil {
		rev.Legacy = *attrs.Legacy
	}
	if attrs.VolatileOverride != nil {
		rev.VolatileOverride = attrs.VolatileOverride
	}
	m.revisions[uuid] = rev
	return nil
}

func (m *memoryCatalog) CountExisting(_ context.Context, uuids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, id := range uuids {
		if _, ok := m.revisions[id]; ok {
			count++
		}
	}
	return count, nil
}

func (m *memoryCatalog) ListKeys(_ context.Context, filter models.FileRevisionFilter) ([]models.RevisionKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	filter.IncludeLegacy = true
	filter.IncludeSuperseded = true
	seen := make(map[string]models.RevisionKey)
	for _, rev := range m.revisions {
		if matchesFilter(rev, filter) {
			seen[rev.Key().String()] = rev.Key()
		}
	}
	out := make([]models.RevisionKey, 0, len(seen))
	for _, key := range seen {
		out = append(out, key)
	}
	return out, nil
}

func (m *memoryCatalog) Get(_ context.Context, _ sqlx.ExtContext, key models.RevisionKey) (*models.BestVersionEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.index[key.String()]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &entry, nil
}

func (m *memoryCatalog) Upsert(_ context.Context, _ sqlx.ExtContext, key models.RevisionKey, uuid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index[key.String()] = models.BestVersionEntry{
		SiteID:          key.SiteID,
		ProductID:       key.ProductID,
		MeasurementDate: key.MeasurementDate,
		UUID:            uuid,
		UpdatedAt:       time.Now().UTC(),
	}
	return nil
}

func (m *memoryCatalog) Delete(_ context.Context, _ sqlx.ExtContext, key models.RevisionKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.index, key.String())
	return nil
}

func (m *memoryCatalog) ListEntries(_ context.Context, filter models.FileRevisionFilter) ([]models.BestVersionEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.BestVersionEntry, 0, len(m.index))
	for _, entry := range m.index {
		probe := models.FileRevision{SiteID: entry.SiteID, ProductID: entry.ProductID, MeasurementDate: entry.MeasurementDate}
		scope := models.FileRevisionFilter{
			SiteIDs:           filter.SiteIDs,
			ProductIDs:        filter.ProductIDs,
			DateFrom:          filter.DateFrom,
			DateTo:            filter.DateTo,
			Date:              filter.Date,
			IncludeLegacy:     true,
			IncludeSuperseded: true,
		}
		if matchesFilter(probe, scope) {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (m *memoryCatalog) SearchBest(_ context.Context, filter models.FileRevisionFilter) ([]models.FileRevision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	filter.IncludeSuperseded = true
	out := make([]models.FileRevision, 0)
	for _, entry := range m.index {
		rev, ok := m.revisions[entry.UUID]
		if ok && matchesFilter(rev, filter) {
			out = append(out, rev)
		}
	}
	SortRevisions(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memoryCatalog) indexed(key models.RevisionKey) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index[key.String()].UUID
}

func (m *memoryCatalog) put(rev models.FileRevision) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revisions[rev.UUID] = rev
}

func matchesFilter(rev models.FileRevision, filter models.FileRevisionFilter) bool {
	if len(filter.SiteIDs) > 0 && !containsString(filter.SiteIDs, rev.SiteID) {
		return false
	}
	if len(filter.ProductIDs) > 0 && !containsString(filter.ProductIDs, rev.ProductID) {
		return false
	}
	if len(filter.ModelIDs) > 0 && !containsString(filter.ModelIDs, rev.Model()) {
		return false
	}
	if filter.Date != nil && !rev.MeasurementDate.Equal(*filter.Date) {
		return false
	}
	if filter.DateFrom != nil && rev.MeasurementDate.Before(*filter.DateFrom) {
		return false
	}
	if filter.DateTo != nil && rev.MeasurementDate.After(*filter.DateTo) {
		return false
	}
	if filter.ReleasedBefore != nil && !rev.ReleasedAt.Before(*filter.ReleasedBefore) {
		return false
	}
	if rev.Legacy && !filter.IncludeLegacy {
		return false
	}
	if rev.Superseded() && !filter.IncludeSuperseded {
		return false
	}
	return true
}

func containsString(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

type referenceStub struct {
	sites    map[string]models.Site
	products map[string]models.Product
}

func newReferenceStub() *referenceStub {
	return &referenceStub{
		sites: map[string]models.Site{
			"macehead": {ID: "macehead", HumanReadableName: "Mace Head"},
			"bucharest": {ID: "bucharest", HumanReadableName: "Bucharest"},
			"granada":  {ID: "granada", HumanReadableName: "Granada", IsTestSite: true},
		},
		products: map[string]models.Product{
			"classification": {ID: "classification", HumanReadableName: "Classification", Level: "2"},
			"radar":          {ID: "radar", HumanReadableName: "Radar", Level: "1b"},
			"model":          {ID: "model", HumanReadableName: "Model", Level: "1b", IsModel: true},
		},
	}
}

func (r *referenceStub) Site(_ context.Context, id string) (*models.Site, error) {
	site, ok := r.sites[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid site %q", id))
	}
	return &site, nil
}

func (r *referenceStub) Product(_ context.Context, id string) (*models.Product, error) {
	product, ok := r.products[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid product %q", id))
	}
	return &product, nil
}

type modelTypeListerStub struct {
	types []models.ModelType
	calls int
	err   error
}

func (s *modelTypeListerStub) ListModelTypes(context.Context) ([]models.ModelType, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.types, nil
}

func defaultModelTypes() []models.ModelType {
	return []models.ModelType{
		{ID: "ecmwf", OptimumOrder: 1},
		{ID: "icon-iglo-12-23", OptimumOrder: 2},
		{ID: "gdas1", OptimumOrder: 3},
	}
}

type blobStub struct {
	mu      sync.Mutex
	missing map[string]bool
	err     error
	checked []string
}

func (b *blobStub) Exists(_ context.Context, bucket, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checked = append(b.checked, bucket+"/"+key)
	if b.err != nil {
		return false, b.err
	}
	return !b.missing[key], nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2018, 6, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func checksum(seed string) string {
	return strings.Repeat(seed, 64/len(seed))
}

func boolPtr(v bool) *bool { return &v }

func stringPtr(v string) *string { return &v }
