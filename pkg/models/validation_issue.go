package models

// Severity of a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ReasonCode identifies why a mapping or document failed validation.
type ReasonCode string

// Drop-target verdict reasons.
const (
	ReasonIncompatibleDataType  ReasonCode = "incompatible_data_type"
	ReasonNullableRequiredField ReasonCode = "nullable_required_field"
	ReasonLengthConstraint      ReasonCode = "length_constraint"
	ReasonMissingPropertyID     ReasonCode = "missing_property_id"
	ReasonDuplicateAlias        ReasonCode = "duplicate_alias"
)

// Document-level codes.
const (
	CodeMissingRequiredMapping ReasonCode = "MISSING_REQUIRED_MAPPING"
	CodeIncompleteStatement    ReasonCode = "INCOMPLETE_STATEMENT"
	CodeConstraintViolation    ReasonCode = "constraint_violation"
)

// ValidationIssue is one stored error or warning, addressed by a schema path.
type ValidationIssue struct {
	Severity Severity       `json:"severity"`
	Code     ReasonCode     `json:"code"`
	Path     string         `json:"path"`
	Message  string         `json:"message"`
	Context  map[string]any `json:"context,omitempty"`
}
