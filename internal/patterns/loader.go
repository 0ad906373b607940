package patterns

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/intake/internal/model"
)

//go:embed rules/default.yaml
var defaultRuleSet []byte

// RuleFile is the on-disk rule definition format
type RuleFile struct {
	SchemaVersion string              `yaml:"schema_version"`
	Rules         []model.PatternRule `yaml:"rules"`
}

// ParseRules decodes a YAML rule file. Unknown keys are rejected.
func ParseRules(data []byte) ([]model.PatternRule, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f RuleFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	if f.SchemaVersion != "" && f.SchemaVersion != model.SchemaVersion {
		return nil, fmt.Errorf("rules written for schema %s, engine uses %s", f.SchemaVersion, model.SchemaVersion)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("rule file defines no rules")
	}
	return f.Rules, nil
}

// DefaultRules returns the built-in rule set
func DefaultRules() ([]model.PatternRule, error) {
	return ParseRules(defaultRuleSet)
}

// LoadFile reads rules from a YAML file
func LoadFile(path string) ([]model.PatternRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules %s: %w", path, err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

// Load builds a bank from path, or from the built-in set when path is empty
func Load(path string) (*Bank, error) {
	var (
		rules []model.PatternRule
		err   error
	)
	if path == "" {
		rules, err = DefaultRules()
	} else {
		rules, err = LoadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return NewBank(rules)
}

// MarshalRules encodes rules in the rule file format
func MarshalRules(rules []model.PatternRule) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(RuleFile{SchemaVersion: model.SchemaVersion, Rules: rules}); err != nil {
		return nil, fmt.Errorf("failed to encode rules: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
