package models

import (
	"fmt"

	"github.com/ekaya-inc/ekaya-mapper/pkg/apperrors"
)

// TargetKind identifies which kind of schema slot a DropTarget addresses.
type TargetKind string

const (
	TargetLabel       TargetKind = "label"
	TargetDescription TargetKind = "description"
	TargetAlias       TargetKind = "alias"
	TargetStatement   TargetKind = "statement"
	TargetQualifier   TargetKind = "qualifier"
	TargetReference   TargetKind = "reference"
)

// IsTerm reports whether the kind is a language-keyed term slot.
func (k TargetKind) IsTerm() bool {
	return k == TargetLabel || k == TargetDescription || k == TargetAlias
}

// IsPropertyBound reports whether the kind is a property-keyed slot.
func (k TargetKind) IsPropertyBound() bool {
	return k == TargetStatement || k == TargetQualifier || k == TargetReference
}

// IsValid reports whether k is a known kind.
func (k TargetKind) IsValid() bool {
	return k.IsTerm() || k.IsPropertyBound()
}

// DropTarget is a slot in the schema document that can receive a column mapping.
// Targets are produced by the schema editor and are read-only inputs to the
// mapping core.
type DropTarget struct {
	Kind          TargetKind        `json:"target_kind"`
	Path          string            `json:"path"` // e.g. item.terms.labels.en, item.statements[2].qualifiers[0].value
	AcceptedTypes []SchemaValueType `json:"accepted_types"`
	Language      string            `json:"language,omitempty"`    // term kinds only
	PropertyID    string            `json:"property_id,omitempty"` // property-bound kinds only; may be pending
	IsRequired    bool              `json:"is_required"`
}

// Accepts reports whether t is one of the target's accepted value types.
func (t DropTarget) Accepts(vt SchemaValueType) bool {
	for _, a := range t.AcceptedTypes {
		if a == vt {
			return true
		}
	}
	return false
}

// Check verifies the structural invariants of a target.
// An empty PropertyID on a property-bound target is allowed: that is a
// pending selection, reported by validation rather than rejected here.
func (t DropTarget) Check() error {
	if !t.Kind.IsValid() {
		return fmt.Errorf("%w: unknown target kind %q", apperrors.ErrInvalidTarget, t.Kind)
	}
	if t.Path == "" {
		return fmt.Errorf("%w: path is required", apperrors.ErrInvalidTarget)
	}
	if len(t.AcceptedTypes) == 0 {
		return fmt.Errorf("%w: %s has no accepted types", apperrors.ErrInvalidTarget, t.Path)
	}
	for _, vt := range t.AcceptedTypes {
		if !vt.IsValid() {
			return fmt.Errorf("%w: %s accepts unknown value type %q", apperrors.ErrInvalidTarget, t.Path, vt)
		}
	}
	if t.Kind.IsTerm() && t.Language == "" {
		return fmt.Errorf("%w: %s target %s requires a language", apperrors.ErrInvalidTarget, t.Kind, t.Path)
	}
	if !t.Kind.IsTerm() && t.Language != "" {
		return fmt.Errorf("%w: %s target %s cannot carry a language", apperrors.ErrInvalidTarget, t.Kind, t.Path)
	}
	if !t.Kind.IsPropertyBound() && t.PropertyID != "" {
		return fmt.Errorf("%w: %s target %s cannot carry a property", apperrors.ErrInvalidTarget, t.Kind, t.Path)
	}
	return nil
}
