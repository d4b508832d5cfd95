package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type ruleFile struct {
	Rules []BusinessRule `yaml:"rules"`
}

// Parse decodes a YAML document with a top-level rules list
func Parse(data []byte) ([]BusinessRule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	return f.Rules, nil
}

// LoadFile reads a YAML rule set from disk
func LoadFile(path string) ([]BusinessRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}
	return Parse(data)
}

// Marshal renders rules back to YAML
func Marshal(rules []BusinessRule) ([]byte, error) {
	return yaml.Marshal(ruleFile{Rules: rules})
}
