package family

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type curatedFile struct {
	Families map[string]string `yaml:"families"`
}

// LoadCuratedMap reads a YAML family map for PolicyCurated. An empty path
// yields an empty map.
//
//	families:
//	  openai/gpt-4o: gpt-4o
//	  azure/gpt-4o-eastus: gpt-4o
func LoadCuratedMap(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read family map: %w", err)
	}
	return ParseCuratedMap(data)
}

// ParseCuratedMap decodes a YAML family map. Keys are provider/provider_model_id.
func ParseCuratedMap(data []byte) (map[string]string, error) {
	var file curatedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse family map: %w", err)
	}

	out := make(map[string]string, len(file.Families))
	for key, id := range file.Families {
		provider, model, ok := strings.Cut(key, "/")
		if !ok || provider == "" || model == "" {
			return nil, fmt.Errorf("family map key %q: want provider/model", key)
		}
		if strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("family map key %q: empty family id", key)
		}
		out[key] = strings.TrimSpace(id)
	}
	return out, nil
}
