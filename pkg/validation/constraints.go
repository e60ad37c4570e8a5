package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cast"

	"github.com/ekaya-inc/ekaya-mapper/pkg/models"
)

// maxReportedSamples caps how many offending samples go into issue context.
const maxReportedSamples = 5

// CheckConstraints evaluates knowledge-base property constraints against a
// column's sample values and returns one warning per violated constraint,
// addressed at path. Constraint kinds that cannot be judged from samples
// are skipped.
func CheckConstraints(constraints []models.PropertyConstraint, column models.ColumnInfo, path string) []models.ValidationIssue {
	var issues []models.ValidationIssue
	for _, c := range constraints {
		var offending []string
		switch c.Type {
		case models.ConstraintFormat:
			offending = checkFormat(c, column.SampleValues)
		case models.ConstraintOneOf:
			offending = checkOneOf(c, column.SampleValues)
		case models.ConstraintRange:
			offending = checkRange(c, column.SampleValues)
		default:
			continue
		}
		if len(offending) == 0 {
			continue
		}

		message := c.ViolationMessage
		if message == "" {
			message = fmt.Sprintf("Column %q has values violating the %s constraint", column.Name, c.Type)
		}
		if len(offending) > maxReportedSamples {
			offending = offending[:maxReportedSamples]
		}
		issues = append(issues, models.ValidationIssue{
			Severity: models.SeverityWarning,
			Code:     models.CodeConstraintViolation,
			Path:     path,
			Message:  message,
			Context: map[string]any{
				"constraint": string(c.Type),
				"column":     column.Name,
				"samples":    offending,
			},
		})
	}
	return issues
}

func checkFormat(c models.PropertyConstraint, samples []string) []string {
	pattern := c.Param(models.ConstraintParamPattern)
	if pattern == "" {
		return nil
	}
	// Knowledge-base format constraints match the whole value.
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil
	}
	var bad []string
	for _, s := range samples {
		if s != "" && !re.MatchString(s) {
			bad = append(bad, s)
		}
	}
	return bad
}

func checkOneOf(c models.PropertyConstraint, samples []string) []string {
	allowed := c.Parameters[models.ConstraintParamValues]
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]bool, len(allowed))
	for _, v := range allowed {
		set[strings.ToUpper(v)] = true
	}
	var bad []string
	for _, s := range samples {
		if s != "" && !set[strings.ToUpper(strings.TrimSpace(s))] {
			bad = append(bad, s)
		}
	}
	return bad
}

func checkRange(c models.PropertyConstraint, samples []string) []string {
	minStr := c.Param(models.ConstraintParamMinimum)
	maxStr := c.Param(models.ConstraintParamMaximum)
	minVal, minErr := cast.ToFloat64E(minStr)
	maxVal, maxErr := cast.ToFloat64E(maxStr)
	hasMin := minStr != "" && minErr == nil
	hasMax := maxStr != "" && maxErr == nil
	if !hasMin && !hasMax {
		return nil
	}

	var bad []string
	for _, s := range samples {
		n, err := cast.ToFloat64E(strings.TrimSpace(s))
		if err != nil {
			// Non-numeric samples are a data-type problem, not a range one.
			continue
		}
		if (hasMin && n < minVal) || (hasMax && n > maxVal) {
			bad = append(bad, s)
		}
	}
	return bad
}
