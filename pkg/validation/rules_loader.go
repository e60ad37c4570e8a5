package validation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-mapper/pkg/models"
)

// RuleFile is the YAML form of a completeness rule set.
type RuleFile struct {
	Rules []RuleSpec `yaml:"rules"`
}

// RuleSpec is one rule entry in a rule file.
type RuleSpec struct {
	ID        string `yaml:"id"`
	FieldPath string `yaml:"field_path"`
	Message   string `yaml:"message"`
	Severity  string `yaml:"severity"`
	Enabled   *bool  `yaml:"enabled"` // defaults to true
	Check     string `yaml:"check"`   // not_empty | min_items:<n> | matches:<regex>
}

// LoadRules reads a YAML rule file.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}
	return ParseRules(data)
}

// ParseRules parses YAML rule data into rules.
func ParseRules(data []byte) ([]Rule, error) {
	var file RuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rules YAML: %w", err)
	}

	rules := make([]Rule, 0, len(file.Rules))
	seen := make(map[string]bool, len(file.Rules))
	for i, spec := range file.Rules {
		if spec.ID == "" {
			return nil, fmt.Errorf("rule %d: id is required", i)
		}
		if seen[spec.ID] {
			return nil, fmt.Errorf("rule %s: duplicate id", spec.ID)
		}
		seen[spec.ID] = true

		if spec.FieldPath == "" {
			return nil, fmt.Errorf("rule %s: field_path is required", spec.ID)
		}

		severity := models.Severity(spec.Severity)
		switch severity {
		case "":
			severity = models.SeverityError
		case models.SeverityError, models.SeverityWarning:
		default:
			return nil, fmt.Errorf("rule %s: unknown severity %q", spec.ID, spec.Severity)
		}

		predicate, err := ParsePredicate(spec.Check)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", spec.ID, err)
		}

		enabled := true
		if spec.Enabled != nil {
			enabled = *spec.Enabled
		}

		message := spec.Message
		if message == "" {
			message = fmt.Sprintf("%s is required", spec.FieldPath)
		}

		rules = append(rules, Rule{
			ID:        spec.ID,
			FieldPath: spec.FieldPath,
			Message:   message,
			Severity:  severity,
			Enabled:   enabled,
			Predicate: predicate,
		})
	}
	return rules, nil
}
