package validation

import (
	"strings"

	"github.com/ekaya-inc/ekaya-mapper/pkg/models"
	"github.com/ekaya-inc/ekaya-mapper/pkg/schema"
)

// FieldHighlight marks one missing or incomplete field in the editor.
type FieldHighlight struct {
	Path     string          `json:"path"`
	Severity models.Severity `json:"severity"`
	Message  string          `json:"message"`
	RuleID   string          `json:"rule_id,omitempty"` // empty for statement-shape checks
}

// CompletenessValidator derives missing-field highlights from the rule
// registry plus fixed statement-shape checks.
type CompletenessValidator struct {
	document *schema.Document
	rules    *RuleRegistry
}

// NewCompletenessValidator binds a validator to a document and its rules.
func NewCompletenessValidator(document *schema.Document, rules *RuleRegistry) *CompletenessValidator {
	return &CompletenessValidator{document: document, rules: rules}
}

// HasSchemaContent reports whether the user has entered anything at all.
func (v *CompletenessValidator) HasSchemaContent() bool {
	d := v.document
	return strings.TrimSpace(d.Name()) != "" ||
		strings.TrimSpace(d.TargetKnowledgeBase()) != "" ||
		d.HasContent()
}

// MissingFields evaluates every enabled rule and scans statements, whether
// or not the document has content.
func (v *CompletenessValidator) MissingFields() []FieldHighlight {
	highlights := make([]FieldHighlight, 0)
	ctx := RuleContext{Document: v.document}

	for _, rule := range v.rules.EnabledRules() {
		if rule.Predicate == nil {
			continue
		}
		if !rule.Predicate(v.document.ValueAt(rule.FieldPath), ctx) {
			highlights = append(highlights, FieldHighlight{
				Path:     rule.FieldPath,
				Severity: rule.Severity,
				Message:  rule.Message,
				RuleID:   rule.ID,
			})
		}
	}

	for i, st := range v.document.Statements() {
		highlights = append(highlights, statementHighlights(i, st)...)
	}
	return highlights
}

// MissingRequiredFields returns the paths of MissingFields.
func (v *CompletenessValidator) MissingRequiredFields() []string {
	missing := v.MissingFields()
	paths := make([]string, len(missing))
	for i, h := range missing {
		paths[i] = h.Path
	}
	return paths
}

// IsComplete reports whether no rule fails and every statement is complete.
func (v *CompletenessValidator) IsComplete() bool {
	return len(v.MissingFields()) == 0
}

// RequiredFieldHighlights returns MissingFields, or nothing for a document
// the user has not touched yet.
func (v *CompletenessValidator) RequiredFieldHighlights() []FieldHighlight {
	if !v.HasSchemaContent() {
		return []FieldHighlight{}
	}
	return v.MissingFields()
}

// HighlightFor returns the first highlight at exactly path.
func (v *CompletenessValidator) HighlightFor(path string) (FieldHighlight, bool) {
	for _, h := range v.RequiredFieldHighlights() {
		if h.Path == path {
			return h, true
		}
	}
	return FieldHighlight{}, false
}

// RefreshIssues replaces the completeness issues in store with the current
// highlights.
func (v *CompletenessValidator) RefreshIssues(store *IssueStore) {
	store.ClearErrorsByCode(models.CodeMissingRequiredMapping)
	store.ClearErrorsByCode(models.CodeIncompleteStatement)

	for _, h := range v.RequiredFieldHighlights() {
		code := models.CodeMissingRequiredMapping
		if h.RuleID == "" {
			code = models.CodeIncompleteStatement
		}
		issue := models.ValidationIssue{
			Severity: h.Severity,
			Code:     code,
			Path:     h.Path,
			Message:  h.Message,
		}
		if h.RuleID != "" {
			issue.Context = map[string]any{"rule_id": h.RuleID}
		}
		store.Add(issue)
	}
}

func statementHighlights(i int, st models.StatementMapping) []FieldHighlight {
	var out []FieldHighlight
	if strings.TrimSpace(st.Property.ID) == "" {
		out = append(out, FieldHighlight{
			Path:     schema.StatementPropertyPath(i),
			Severity: models.SeverityError,
			Message:  "Statement property is required",
		})
	}

	valuePath := schema.StatementValuePath(i)
	switch value := st.Value.(type) {
	case nil:
		out = append(out, FieldHighlight{
			Path:     valuePath,
			Severity: models.SeverityError,
			Message:  "Statement value is required",
		})
	case models.ColumnValue:
		if strings.TrimSpace(value.Column.ColumnName) == "" {
			out = append(out, FieldHighlight{
				Path:     valuePath + ".column_name",
				Severity: models.SeverityError,
				Message:  "Statement value column is required",
			})
		}
	case models.ConstantValue:
		if strings.TrimSpace(value.Value) == "" {
			out = append(out, FieldHighlight{
				Path:     valuePath + ".value",
				Severity: models.SeverityError,
				Message:  "Statement constant value is required",
			})
		}
	case models.ExpressionValue:
		if strings.TrimSpace(value.Expression) == "" {
			out = append(out, FieldHighlight{
				Path:     valuePath + ".expression",
				Severity: models.SeverityError,
				Message:  "Statement expression is required",
			})
		}
	}
	return out
}
