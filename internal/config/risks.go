package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ayurmitra/ayurmitra/internal/core/domain"
)

// LoadRiskCatalogue reads the risk concept list from a YAML file. An empty
// path selects the compiled-in catalogue. An empty or partially filled file
// is an error: a silently shrunken catalogue would soften the safety gate.
func LoadRiskCatalogue(path string) ([]domain.RiskConcept, error) {
	if path == "" {
		return domain.DefaultRiskCatalogue(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read risk catalogue: %w", err)
	}

	var catalogue []domain.RiskConcept
	if err := yaml.Unmarshal(raw, &catalogue); err != nil {
		return nil, fmt.Errorf("parse risk catalogue %s: %w", path, err)
	}
	if len(catalogue) == 0 {
		return nil, fmt.Errorf("risk catalogue %s: no concepts", path)
	}
	for i, concept := range catalogue {
		if concept.Name == "" || concept.Description == "" {
			return nil, fmt.Errorf("risk catalogue %s: entry %d missing name or description", path, i)
		}
	}
	return catalogue, nil
}
