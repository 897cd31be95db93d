package codes

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedConfig is the YAML-backed code table seed. It lets a deployment
// carry maintained severities and keyword overrides without waiting for
// the database table to be populated.
type SeedConfig struct {
	Codes    []SeedCode  `yaml:"codes"`
	Keywords SeedKeyword `yaml:"keywords"`
}

// SeedCode is one maintained code row in the seed file.
type SeedCode struct {
	Code     string `yaml:"code"`
	Name     string `yaml:"name"`
	Group    string `yaml:"group"`
	Severity string `yaml:"severity"`
}

// SeedKeyword overrides the fallback keyword groups.
type SeedKeyword struct {
	Fire      []string `yaml:"fire"`
	Fault     []string `yaml:"fault"`
	Recovered []string `yaml:"recovered"`
}

// LoadSeed reads a seed file. An empty path returns an empty seed.
func LoadSeed(path string) (SeedConfig, error) {
	var cfg SeedConfig
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("codes: read seed: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("codes: parse seed: %w", err)
	}
	return cfg, nil
}

// CommonCodes converts seed rows to registry rows. Rows with an
// unknown severity string load as name-only entries.
func (c SeedConfig) CommonCodes() []CommonCode {
	rows := make([]CommonCode, 0, len(c.Codes))
	for _, seed := range c.Codes {
		row := CommonCode{Code: seed.Code, Name: seed.Name, GroupCode: seed.Group}
		if severity, ok := ParseSeverity(seed.Severity); ok {
			row.Severity = severity
			row.HasSeverity = true
		}
		rows = append(rows, row)
	}
	return rows
}

// RegistryOptions builds registry options from the seed.
func (c SeedConfig) RegistryOptions() []RegistryOption {
	opts := []RegistryOption{}
	if len(c.Codes) > 0 {
		opts = append(opts, WithSeedCodes(c.CommonCodes()))
	}
	keywords := DefaultKeywords()
	override := false
	if len(c.Keywords.Fire) > 0 {
		keywords.Fire = c.Keywords.Fire
		override = true
	}
	if len(c.Keywords.Fault) > 0 {
		keywords.Fault = c.Keywords.Fault
		override = true
	}
	if len(c.Keywords.Recovered) > 0 {
		keywords.Recovered = c.Keywords.Recovered
		override = true
	}
	if override {
		opts = append(opts, WithKeywords(keywords))
	}
	return opts
}
