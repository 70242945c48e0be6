// Package family decides which models from different providers are the same
// underlying model. The "unique" catalog view and cross-provider pricing
// lookups both depend on the key computed here.
package family

import (
	"fmt"
	"sort"
	"strings"

	"catalog_gateway/internal/models"
)

// Policy computes the family key of a model. Models with equal keys are
// considered interchangeable for dedup and price cross-referencing.
type Policy interface {
	Key(m models.Model) string
}

// Policy names accepted by NewPolicy.
const (
	PolicyDisplayName = "display_name"
	PolicyCurated     = "curated"
)

// NewPolicy builds a named policy. curated maps model keys
// (provider/provider_model_id) to family ids and is used by PolicyCurated.
func NewPolicy(name string, curated map[string]string) (Policy, error) {
	switch name {
	case "", PolicyDisplayName:
		return DisplayNamePolicy{}, nil
	case PolicyCurated:
		return NewCuratedPolicy(curated, DisplayNamePolicy{}), nil
	default:
		return nil, fmt.Errorf("unknown family policy %q", name)
	}
}

// DisplayNamePolicy derives the key from the display name, falling back to
// the provider model id.
type DisplayNamePolicy struct{}

func (DisplayNamePolicy) Key(m models.Model) string {
	name := m.DisplayName
	if name == "" {
		name = m.ProviderModelID
	}
	return Normalize(name)
}

// Normalize lowercases s, drops a vendor prefix ("meta-llama/..."), drops
// a ":tag" suffix, and collapses runs of non-alphanumerics to "-".
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}

	var b strings.Builder
	b.Grow(len(s))
	dash := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// CuratedPolicy maps models to operator-maintained family ids. Lookup
// order: explicit map entry, the model's own FamilyID, then Fallback.
type CuratedPolicy struct {
	entries  map[string]string
	Fallback Policy
}

// NewCuratedPolicy creates a curated policy. fallback may be nil, in which
// case unmapped models get an empty key and are never merged.
func NewCuratedPolicy(entries map[string]string, fallback Policy) *CuratedPolicy {
	cp := make(map[string]string, len(entries))
	for k, v := range entries {
		cp[k] = v
	}
	return &CuratedPolicy{entries: cp, Fallback: fallback}
}

func (p *CuratedPolicy) Key(m models.Model) string {
	if id, ok := p.entries[m.Key()]; ok {
		return id
	}
	if m.FamilyID != "" {
		return m.FamilyID
	}
	if p.Fallback != nil {
		return p.Fallback.Key(m)
	}
	return ""
}

// Dedupe keeps one representative per family key. Models with an empty key
// are kept as-is. The representative lists the providers of the models it
// replaced in AlternateProviders. Output is sorted by family key, then
// provider, then model id.
func Dedupe(items []models.Model, policy Policy) []models.Model {
	groups := make(map[string][]models.Model)
	var keyless []models.Model

	for _, m := range items {
		key := m.FamilyKey
		if key == "" {
			key = policy.Key(m)
		}
		if key == "" {
			keyless = append(keyless, m)
			continue
		}
		m.FamilyKey = key
		groups[key] = append(groups[key], m)
	}

	out := make([]models.Model, 0, len(groups)+len(keyless))
	for _, group := range groups {
		sort.SliceStable(group, func(i, j int) bool { return preferred(&group[i], &group[j]) })

		rep := group[0]
		alts := make([]string, 0, len(group)-1)
		seen := map[string]bool{rep.ProviderSlug: true}
		for _, m := range group[1:] {
			if !seen[m.ProviderSlug] {
				seen[m.ProviderSlug] = true
				alts = append(alts, m.ProviderSlug)
			}
		}
		sort.Strings(alts)
		if len(alts) > 0 {
			rep.AlternateProviders = alts
		}
		out = append(out, rep)
	}
	out = append(out, keyless...)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FamilyKey != out[j].FamilyKey {
			return out[i].FamilyKey < out[j].FamilyKey
		}
		if out[i].ProviderSlug != out[j].ProviderSlug {
			return out[i].ProviderSlug < out[j].ProviderSlug
		}
		return out[i].ProviderModelID < out[j].ProviderModelID
	})
	return out
}

// preferred reports whether a should represent the family over b.
func preferred(a, b *models.Model) bool {
	if a.IsActive != b.IsActive {
		return a.IsActive
	}
	if a.Healthy() != b.Healthy() {
		return a.Healthy()
	}
	if a.Pricing.Known != b.Pricing.Known {
		return a.Pricing.Known
	}
	if a.Pricing.Known && !a.Pricing.InputPerToken.Equal(b.Pricing.InputPerToken) {
		return a.Pricing.InputPerToken.LessThan(b.Pricing.InputPerToken)
	}
	if a.ProviderSlug != b.ProviderSlug {
		return a.ProviderSlug < b.ProviderSlug
	}
	return a.ProviderModelID < b.ProviderModelID
}
