package mapping

import (
	"fmt"
	"unicode/utf8"

	"github.com/ekaya-inc/ekaya-mapper/pkg/models"
)

const (
	DefaultLabelMaxLength = 250
	DefaultAliasMaxLength = 100
)

// Limits holds the sample-length ceilings for term targets.
type Limits struct {
	LabelMaxLength int
	AliasMaxLength int
}

// DefaultLimits returns the standard label and alias ceilings.
func DefaultLimits() Limits {
	return Limits{LabelMaxLength: DefaultLabelMaxLength, AliasMaxLength: DefaultAliasMaxLength}
}

// Verdict is the outcome of validating one column against one target.
// Reason and Message are empty when Valid.
type Verdict struct {
	Valid   bool              `json:"valid"`
	Reason  models.ReasonCode `json:"reason_code,omitempty"`
	Message string            `json:"message,omitempty"`
}

func accept() Verdict { return Verdict{Valid: true} }

func reject(reason models.ReasonCode, format string, args ...any) Verdict {
	return Verdict{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Validator decides whether a column may be mapped onto a drop target.
// It is a pure function of its inputs and safe for concurrent use.
type Validator struct {
	limits Limits
}

// NewValidator returns a validator. Zero limits fall back to the defaults.
func NewValidator(limits Limits) *Validator {
	if limits.LabelMaxLength <= 0 {
		limits.LabelMaxLength = DefaultLabelMaxLength
	}
	if limits.AliasMaxLength <= 0 {
		limits.AliasMaxLength = DefaultAliasMaxLength
	}
	return &Validator{limits: limits}
}

// Limits returns the validator's effective ceilings.
func (v *Validator) Limits() Limits {
	return v.limits
}

// Validate runs the ordered hover-time checks; the first failure wins.
// Duplicate aliases are not considered here, see ValidateForDrop.
func (v *Validator) Validate(column models.ColumnInfo, target models.DropTarget) Verdict {
	if !IsCompatible(column.StorageType, target.AcceptedTypes) {
		return reject(models.ReasonIncompatibleDataType,
			"Column %q of type %s cannot feed %s (accepts %v)",
			column.Name, column.StorageType, target.Path, target.AcceptedTypes)
	}

	if target.IsRequired && column.Nullable {
		return reject(models.ReasonNullableRequiredField,
			"Column %q is nullable but %s is required", column.Name, target.Path)
	}

	if ceiling := v.lengthCeiling(target.Kind); ceiling > 0 {
		for _, sample := range column.SampleValues {
			if n := utf8.RuneCountInString(sample); n > ceiling {
				return reject(models.ReasonLengthConstraint,
					"Column %q has values of %d characters; %s values are limited to %d",
					column.Name, n, target.Kind, ceiling)
			}
		}
	}

	if target.Kind.IsPropertyBound() && target.PropertyID == "" {
		return reject(models.ReasonMissingPropertyID,
			"Select a property for %s before mapping a column to it", target.Path)
	}

	return accept()
}

// ValidateForDrop runs Validate and then, for alias targets, rejects a
// column already present in existing (the aliases mapped for the target's
// language).
func (v *Validator) ValidateForDrop(column models.ColumnInfo, target models.DropTarget, existing []models.ColumnMapping) Verdict {
	verdict := v.Validate(column, target)
	if !verdict.Valid || target.Kind != models.TargetAlias {
		return verdict
	}
	if IsDuplicateAlias(column, existing) {
		return reject(models.ReasonDuplicateAlias,
			"Column %q is already an alias for language %q", column.Name, target.Language)
	}
	return verdict
}

// IsDuplicateAlias reports whether the column's (name, storage type) pair
// is among existing.
func IsDuplicateAlias(column models.ColumnInfo, existing []models.ColumnMapping) bool {
	m := column.Mapping()
	for _, e := range existing {
		if e.Equal(m) {
			return true
		}
	}
	return false
}

func (v *Validator) lengthCeiling(kind models.TargetKind) int {
	switch kind {
	case models.TargetLabel:
		return v.limits.LabelMaxLength
	case models.TargetAlias:
		return v.limits.AliasMaxLength
	default:
		return 0
	}
}
