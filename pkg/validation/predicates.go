package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/ekaya-inc/ekaya-mapper/pkg/models"
	"github.com/ekaya-inc/ekaya-mapper/pkg/schema"
)

// NotEmpty passes for non-blank strings and non-empty maps and lists.
func NotEmpty() Predicate {
	return func(value any, _ RuleContext) bool {
		return !isEmptyValue(value)
	}
}

// MinItems passes when a map or list holds at least n entries.
func MinItems(n int) Predicate {
	return func(value any, _ RuleContext) bool {
		return countItems(value) >= n
	}
}

// Matches passes when the string form of the value matches re.
func Matches(re *regexp.Regexp) Predicate {
	return func(value any, _ RuleContext) bool {
		s, err := cast.ToStringE(value)
		if err != nil {
			return false
		}
		return re.MatchString(s)
	}
}

// ParsePredicate builds a predicate from its textual form:
// "not_empty", "min_items:<n>" or "matches:<regex>".
func ParsePredicate(check string) (Predicate, error) {
	name, arg, _ := strings.Cut(strings.TrimSpace(check), ":")
	switch name {
	case "", "not_empty":
		return NotEmpty(), nil
	case "min_items":
		n, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid min_items argument %q", arg)
		}
		return MinItems(n), nil
	case "matches":
		re, err := regexp.Compile(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid matches pattern %q: %w", arg, err)
		}
		return Matches(re), nil
	default:
		return nil, fmt.Errorf("unknown check %q", name)
	}
}

// DefaultRules are the completeness rules every editor session starts with.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:        "schema-name-required",
			FieldPath: schema.PathSchemaName,
			Message:   "Schema name is required",
			Severity:  models.SeverityError,
			Enabled:   true,
			Predicate: NotEmpty(),
		},
		{
			ID:        "wikibase-required",
			FieldPath: schema.PathWikibase,
			Message:   "Target knowledge base is required",
			Severity:  models.SeverityError,
			Enabled:   true,
			Predicate: NotEmpty(),
		},
		{
			ID:        "label-required",
			FieldPath: schema.PathLabels,
			Message:   "At least one label mapping is required",
			Severity:  models.SeverityError,
			Enabled:   true,
			Predicate: MinItems(1),
		},
		{
			ID:        "statement-recommended",
			FieldPath: schema.PathStatements,
			Message:   "Mapping has no statements",
			Severity:  models.SeverityWarning,
			Enabled:   true,
			Predicate: MinItems(1),
		},
	}
}

func isEmptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	case models.ColumnMapping:
		return v.ColumnName == ""
	}
	s, err := cast.ToStringE(value)
	if err != nil {
		// Not representable as a string: present but opaque.
		return false
	}
	return strings.TrimSpace(s) == ""
}

func countItems(value any) int {
	if value == nil {
		return 0
	}
	if m, err := cast.ToStringMapE(value); err == nil {
		return len(m)
	}
	if s, err := cast.ToSliceE(value); err == nil {
		return len(s)
	}
	if isEmptyValue(value) {
		return 0
	}
	return 1
}
