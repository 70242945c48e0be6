// Package incremental keeps the cache and the origin store in step with
// fresh provider catalogs by writing only what changed.
package incremental

import (
	"fmt"
	"sort"
	"strings"

	"catalog_gateway/internal/models"
)

// Critical field names accepted by NewDetector.
const (
	FieldPricing       = "pricing"
	FieldContextLength = "context_length"
	FieldDescription   = "description"
	FieldModality      = "modality"
	FieldCapabilities  = "capabilities"
	FieldStatus        = "status"
	FieldDisplayName   = "display_name"
)

// DefaultCriticalFields is the field set used when none is configured.
var DefaultCriticalFields = []string{
	FieldPricing,
	FieldContextLength,
	FieldDescription,
	FieldModality,
	FieldCapabilities,
	FieldStatus,
}

type fieldCheck func(a, b *models.Model) bool

var fieldChecks = map[string]fieldCheck{
	FieldPricing: func(a, b *models.Model) bool {
		return !a.Pricing.Equal(b.Pricing)
	},
	FieldContextLength: func(a, b *models.Model) bool {
		return a.ContextLength != b.ContextLength
	},
	FieldDescription: func(a, b *models.Model) bool {
		return a.Description != b.Description
	},
	FieldModality: func(a, b *models.Model) bool {
		return a.Modality != b.Modality
	},
	FieldCapabilities: func(a, b *models.Model) bool {
		return a.SupportsStreaming != b.SupportsStreaming ||
			a.SupportsVision != b.SupportsVision ||
			a.SupportsFunctionCalling != b.SupportsFunctionCalling
	},
	FieldStatus: func(a, b *models.Model) bool {
		return a.IsActive != b.IsActive || a.HealthStatus != b.HealthStatus
	},
	FieldDisplayName: func(a, b *models.Model) bool {
		return a.DisplayName != b.DisplayName
	},
}

// Detector decides whether a fresh model differs from its cached copy.
// Only the configured critical fields are compared; ids, timestamps and
// metadata never count as a change.
type Detector struct {
	fields []string
	checks []fieldCheck
}

// NewDetector builds a detector over fields. An empty list selects
// DefaultCriticalFields. Unknown names are rejected.
func NewDetector(fields []string) (*Detector, error) {
	if len(fields) == 0 {
		fields = DefaultCriticalFields
	}

	seen := make(map[string]bool, len(fields))
	d := &Detector{}
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" || seen[f] {
			continue
		}
		check, ok := fieldChecks[f]
		if !ok {
			return nil, fmt.Errorf("unknown critical field %q", f)
		}
		seen[f] = true
		d.fields = append(d.fields, f)
		d.checks = append(d.checks, check)
	}
	return d, nil
}

// Fields returns the active critical fields, sorted.
func (d *Detector) Fields() []string {
	out := append([]string(nil), d.fields...)
	sort.Strings(out)
	return out
}

// HasChanged reports whether any critical field differs.
func (d *Detector) HasChanged(old, fresh models.Model) bool {
	for _, check := range d.checks {
		if check(&old, &fresh) {
			return true
		}
	}
	return false
}

// DiffResult partitions a fresh catalog against the cached one.
type DiffResult struct {
	Changed        []models.Model
	Added          []models.Model
	Deleted        []models.Model
	UnchangedCount int
}

// Empty reports whether the diff requires no writes.
func (r DiffResult) Empty() bool {
	return len(r.Changed) == 0 && len(r.Added) == 0 && len(r.Deleted) == 0
}

// Diff classifies every fresh model as changed, added or unchanged and
// every cached model missing from fresh as deleted, in one pass over each
// side. Changed models keep the cached ID. Duplicate fresh keys are
// counted once.
func (d *Detector) Diff(cached, fresh []models.Model) DiffResult {
	byKey := make(map[string]int, len(cached))
	for i := range cached {
		byKey[cached[i].Key()] = i
	}

	var res DiffResult
	seen := make(map[string]bool, len(fresh))
	for _, m := range fresh {
		key := m.Key()
		if seen[key] {
			continue
		}
		seen[key] = true

		i, ok := byKey[key]
		switch {
		case !ok:
			res.Added = append(res.Added, m)
		case d.HasChanged(cached[i], m):
			m.ID = cached[i].ID
			res.Changed = append(res.Changed, m)
		default:
			res.UnchangedCount++
		}
	}

	for _, m := range cached {
		if !seen[m.Key()] {
			res.Deleted = append(res.Deleted, m)
		}
	}
	return res
}
