package models

// ConstraintType is the kind of a knowledge-base property constraint.
type ConstraintType string

const (
	ConstraintFormat      ConstraintType = "format"
	ConstraintOneOf       ConstraintType = "one_of"
	ConstraintRange       ConstraintType = "range"
	ConstraintSingleValue ConstraintType = "single_value"
	ConstraintOther       ConstraintType = "other"
)

// Constraint parameter keys.
const (
	ConstraintParamPattern = "pattern"
	ConstraintParamValues  = "values"
	ConstraintParamMinimum = "minimum"
	ConstraintParamMaximum = "maximum"
)

// PropertyConstraint is one constraint declared on a knowledge-base property.
type PropertyConstraint struct {
	Type             ConstraintType      `json:"type"`
	ConstraintItemID string              `json:"constraint_item_id,omitempty"` // e.g. Q21502404
	Parameters       map[string][]string `json:"parameters,omitempty"`
	Description      string              `json:"description,omitempty"`
	ViolationMessage string              `json:"violation_message,omitempty"`
}

// Param returns the first value of a parameter, or "".
func (c PropertyConstraint) Param(key string) string {
	if vals := c.Parameters[key]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}
