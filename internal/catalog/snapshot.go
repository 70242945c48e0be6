package catalog

import (
	"time"

	"catalog_gateway/internal/models"
)

// Snapshot is the merged catalog held in L2.
type Snapshot struct {
	Models         []models.Model                   `json:"models"`
	ProviderStatus map[string]models.ProviderStatus `json:"provider_status"`
	Unique         bool                             `json:"unique"`
	BuiltAt        time.Time                        `json:"built_at"`

	// Degraded snapshots come from the origin store after every provider
	// failed; they are served but never cached.
	Degraded bool `json:"degraded,omitempty"`
}

// snapshotPair holds both L2 views built from one fetch.
type snapshotPair struct {
	full   Snapshot
	unique Snapshot
}

func (p *snapshotPair) pick(unique bool) Snapshot {
	if unique {
		return p.unique
	}
	return p.full
}
