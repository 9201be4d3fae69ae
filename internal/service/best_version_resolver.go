package service

import (
	"sort"
	"time"

	"github.com/noah-isme/dataportal-api/internal/models"
)

// ResolveOptions switches the resolver between collapsing and listing modes.
type ResolveOptions struct {
	AllVersions     bool
	AllModels       bool
	ShowLegacy      bool
	IncludeVolatile bool
}

// DefaultResolveOptions returns one best revision per key, volatile included.
func DefaultResolveOptions() ResolveOptions {
	return ResolveOptions{IncludeVolatile: true}
}

// collapses reports whether the options return only the single best per key.
func (o ResolveOptions) collapses() bool {
	return !o.AllVersions && !o.AllModels
}

// Outranks reports whether a takes precedence over b within one key:
// lower model order first, then the most recent update, then uuid.
func Outranks(a, b models.FileRevision) bool {
	if a.Rank() != b.Rank() {
		return a.Rank() < b.Rank()
	}
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.UUID < b.UUID
}

// BestVersionResolver ranks revisions. It holds no state besides the policy
// and clock, so the write path and the read path share one instance.
type BestVersionResolver struct {
	policy VolatilityPolicy
	now    func() time.Time
}

// NewBestVersionResolver builds a resolver; now defaults to time.Now.
func NewBestVersionResolver(policy VolatilityPolicy, now func() time.Time) *BestVersionResolver {
	if now == nil {
		now = time.Now
	}
	return &BestVersionResolver{policy: policy, now: now}
}

// Policy exposes the volatility policy used for filtering.
func (r *BestVersionResolver) Policy() VolatilityPolicy {
	return r.policy
}

// Best selects the authoritative revision among candidates of one key, or nil.
// Superseded candidates are never eligible; legacy ones only with showLegacy.
func (r *BestVersionResolver) Best(candidates []models.FileRevision, showLegacy bool) *models.FileRevision {
	var best *models.FileRevision
	for i := range candidates {
		c := candidates[i]
		if !eligible(c, ResolveOptions{ShowLegacy: showLegacy}) {
			continue
		}
		if best == nil || Outranks(c, *best) {
			best = &candidates[i]
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

// Resolve groups candidates by key and applies opts, returning revisions
// ordered by date desc, model order asc, updatedAt desc.
func (r *BestVersionResolver) Resolve(candidates []models.FileRevision, opts ResolveOptions) []models.FileRevision {
	groups := make(map[string][]models.FileRevision)
	order := make([]string, 0)
	for _, c := range candidates {
		if !eligible(c, opts) {
			continue
		}
		key := c.Key().String()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], c)
	}

	result := make([]models.FileRevision, 0, len(candidates))
	for _, key := range order {
		result = append(result, r.selectFromKey(groups[key], opts)...)
	}

	if !opts.IncludeVolatile {
		now := r.now()
		kept := result[:0]
		for _, rev := range result {
			if !r.policy.IsVolatile(rev, now) {
				kept = append(kept, rev)
			}
		}
		result = kept
	}

	SortRevisions(result)
	return result
}

func (r *BestVersionResolver) selectFromKey(group []models.FileRevision, opts ResolveOptions) []models.FileRevision {
	switch {
	case opts.AllVersions && opts.AllModels:
		return group
	case opts.AllModels:
		byModel := make(map[string]models.FileRevision)
		for _, c := range group {
			current, ok := byModel[c.Model()]
			if !ok || Outranks(c, current) {
				byModel[c.Model()] = c
			}
		}
		out := make([]models.FileRevision, 0, len(byModel))
		for _, rev := range byModel {
			out = append(out, rev)
		}
		return out
	case opts.AllVersions:
		bestRank := group[0].Rank()
		for _, c := range group[1:] {
			if c.Rank() < bestRank {
				bestRank = c.Rank()
			}
		}
		out := make([]models.FileRevision, 0, len(group))
		for _, c := range group {
			if c.Rank() == bestRank {
				out = append(out, c)
			}
		}
		return out
	default:
		best := group[0]
		for _, c := range group[1:] {
			if Outranks(c, best) {
				best = c
			}
		}
		return []models.FileRevision{best}
	}
}

func eligible(rev models.FileRevision, opts ResolveOptions) bool {
	if rev.Legacy && !opts.ShowLegacy {
		return false
	}
	if rev.Superseded() && !opts.AllVersions {
		return false
	}
	return true
}

// SortRevisions orders a result set the way every listing is returned.
func SortRevisions(revs []models.FileRevision) {
	sort.SliceStable(revs, func(i, j int) bool {
		a, b := revs[i], revs[j]
		if !a.MeasurementDate.Equal(b.MeasurementDate) {
			return a.MeasurementDate.After(b.MeasurementDate)
		}
		if a.Rank() != b.Rank() {
			return a.Rank() < b.Rank()
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.UUID < b.UUID
	})
}
