package config

import (
	"bytes"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	errs "menu-allergen-scanner/pkg/errors"
)

// MatchingSettings are the tunable thresholds of the matching layer. They can
// come from the environment or from a YAML file named by MATCHING_CONFIG_FILE:
//
//	restaurant:
//	  min_name_similarity: 0.4
//	  max_distance_meters: 1000
//	logo:
//	  min_name_tier: 70
//	menu:
//	  min_score: 0
type MatchingSettings struct {
	Restaurant RestaurantSettings `yaml:"restaurant" json:"restaurant"`
	Logo       LogoSettings       `yaml:"logo" json:"logo"`
	Menu       MenuSettings       `yaml:"menu" json:"menu"`
}

type RestaurantSettings struct {
	MinNameSimilarity float64 `yaml:"min_name_similarity" json:"min_name_similarity"`
	MaxDistanceMeters float64 `yaml:"max_distance_meters" json:"max_distance_meters"`
}

type LogoSettings struct {
	MinNameTier int `yaml:"min_name_tier" json:"min_name_tier"`
}

// MenuSettings.MinScore drops menu matches scoring below it; 0 keeps all.
type MenuSettings struct {
	MinScore float64 `yaml:"min_score" json:"min_score"`
}

// Matching returns the settings carried by the environment.
func (c *Config) Matching() MatchingSettings {
	return MatchingSettings{
		Restaurant: RestaurantSettings{
			MinNameSimilarity: c.MatchNameThreshold,
			MaxDistanceMeters: c.MatchDistanceMeters,
		},
		Logo: LogoSettings{MinNameTier: c.Logo.MinNameTier},
	}
}

// LoadMatching reads path over base; keys absent from the file keep base values.
func LoadMatching(path string, base MatchingSettings) (MatchingSettings, error) {
	const op = "config.LoadMatching"

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return base, errs.NewConfig(op, "MATCHING_CONFIG_FILE", err.Error())
	}

	out := base
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return base, errs.NewConfig(op, "MATCHING_CONFIG_FILE", "invalid yaml: "+err.Error())
	}
	if err := out.Validate(); err != nil {
		return base, err
	}
	return out, nil
}

// Validate rejects thresholds outside their meaningful ranges.
func (m MatchingSettings) Validate() error {
	const op = "config.MatchingSettings.Validate"
	r := m.Restaurant
	switch {
	case math.IsNaN(r.MinNameSimilarity) || r.MinNameSimilarity < 0 || r.MinNameSimilarity > 1:
		return errs.NewConfig(op, "restaurant.min_name_similarity", "must be between 0 and 1")
	case math.IsNaN(r.MaxDistanceMeters) || r.MaxDistanceMeters < 0:
		return errs.NewConfig(op, "restaurant.max_distance_meters", "must be non-negative")
	case m.Logo.MinNameTier < 0 || m.Logo.MinNameTier > 100:
		return errs.NewConfig(op, "logo.min_name_tier", "must be between 0 and 100")
	case m.Menu.MinScore < 0 || m.Menu.MinScore > 1:
		return errs.NewConfig(op, "menu.min_score", "must be between 0 and 1")
	}
	return nil
}
