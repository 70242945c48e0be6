package pricing

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"catalog_gateway/internal/models"
)

//go:embed overrides.yaml
var defaultOverrides []byte

type overrideFile struct {
	Overrides []overrideEntry `yaml:"overrides"`
}

type overrideEntry struct {
	Provider         string `yaml:"provider"`
	Model            string `yaml:"model"`
	InputPerMillion  string `yaml:"input_per_million"`
	OutputPerMillion string `yaml:"output_per_million"`
	RequestPrice     string `yaml:"request_price"`
	ImagePrice       string `yaml:"image_price"`
}

// Overrides is the static curated price table keyed by (provider, model id).
type Overrides struct {
	entries map[string]models.PricingRecord
}

// NewOverrides builds a table directly from records keyed by models.ModelKey.
func NewOverrides(entries map[string]models.PricingRecord) *Overrides {
	o := &Overrides{entries: make(map[string]models.PricingRecord, len(entries))}
	for k, v := range entries {
		v.Source = models.PricingSourceManual
		o.entries[k] = v
	}
	return o
}

// DefaultOverrides returns the table compiled into the binary.
func DefaultOverrides() (*Overrides, error) {
	return ParseOverrides(defaultOverrides)
}

// LoadOverrides reads a YAML override file. An empty path loads the default table.
func LoadOverrides(path string) (*Overrides, error) {
	if path == "" {
		return DefaultOverrides()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read overrides: %w", err)
	}
	return ParseOverrides(data)
}

// ParseOverrides decodes a YAML override document.
func ParseOverrides(data []byte) (*Overrides, error) {
	var file overrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse overrides: %w", err)
	}

	o := &Overrides{entries: make(map[string]models.PricingRecord, len(file.Overrides))}
	for i, e := range file.Overrides {
		if e.Provider == "" || e.Model == "" {
			return nil, fmt.Errorf("override %d: provider and model are required", i)
		}
		input, err := parsePerMillion(e.InputPerMillion)
		if err != nil {
			return nil, fmt.Errorf("override %s/%s input: %w", e.Provider, e.Model, err)
		}
		output, err := parsePerMillion(e.OutputPerMillion)
		if err != nil {
			return nil, fmt.Errorf("override %s/%s output: %w", e.Provider, e.Model, err)
		}
		rec := models.PricingRecord{
			PricePerInputToken:  input,
			PricePerOutputToken: output,
			Source:              models.PricingSourceManual,
		}
		if e.RequestPrice != "" {
			if rec.RequestPrice, err = decimal.NewFromString(e.RequestPrice); err != nil {
				return nil, fmt.Errorf("override %s/%s request price: %w", e.Provider, e.Model, err)
			}
		}
		if e.ImagePrice != "" {
			if rec.ImagePrice, err = decimal.NewFromString(e.ImagePrice); err != nil {
				return nil, fmt.Errorf("override %s/%s image price: %w", e.Provider, e.Model, err)
			}
		}
		o.entries[models.ModelKey(e.Provider, e.Model)] = rec
	}
	return o, nil
}

func parsePerMillion(s string) (decimal.Decimal, error) {
	return ParsePrice(s, Per1M)
}

// Lookup returns the curated record for (provider, model id).
func (o *Overrides) Lookup(providerSlug, providerModelID string) (models.PricingRecord, bool) {
	if o == nil {
		return models.PricingRecord{}, false
	}
	rec, ok := o.entries[models.ModelKey(providerSlug, providerModelID)]
	return rec, ok
}

// Len returns the number of curated entries.
func (o *Overrides) Len() int {
	if o == nil {
		return 0
	}
	return len(o.entries)
}
