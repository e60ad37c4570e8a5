package validation

import (
	"github.com/ekaya-inc/ekaya-mapper/pkg/models"
	"github.com/ekaya-inc/ekaya-mapper/pkg/schema"
)

// RuleContext is passed to every predicate.
type RuleContext struct {
	Document *schema.Document
}

// Predicate reports whether the value at a rule's field path satisfies it.
type Predicate func(value any, ctx RuleContext) bool

// Rule is a named completeness rule bound to a field path.
type Rule struct {
	ID        string
	FieldPath string
	Message   string
	Severity  models.Severity
	Enabled   bool
	Predicate Predicate
}

// RulePatch holds the fields UpdateRule changes. Nil fields are left alone.
type RulePatch struct {
	FieldPath *string
	Message   *string
	Severity  *models.Severity
	Enabled   *bool
	Predicate Predicate
}

// RuleRegistry is an ordered collection of completeness rules keyed by id.
type RuleRegistry struct {
	rules []Rule
}

// NewRuleRegistry returns a registry holding the given rules.
func NewRuleRegistry(rules ...Rule) *RuleRegistry {
	r := &RuleRegistry{}
	for _, rule := range rules {
		r.AddRule(rule)
	}
	return r
}

// AddRule inserts a rule, replacing any rule with the same id in place.
func (r *RuleRegistry) AddRule(rule Rule) {
	if rule.Severity == "" {
		rule.Severity = models.SeverityError
	}
	if i := r.index(rule.ID); i >= 0 {
		r.rules[i] = rule
		return
	}
	r.rules = append(r.rules, rule)
}

// RemoveRule deletes a rule by id.
func (r *RuleRegistry) RemoveRule(id string) {
	if i := r.index(id); i >= 0 {
		r.rules = append(r.rules[:i:i], r.rules[i+1:]...)
	}
}

// UpdateRule applies a partial update. Returns false when the id is unknown.
func (r *RuleRegistry) UpdateRule(id string, patch RulePatch) bool {
	i := r.index(id)
	if i < 0 {
		return false
	}
	rule := &r.rules[i]
	if patch.FieldPath != nil {
		rule.FieldPath = *patch.FieldPath
	}
	if patch.Message != nil {
		rule.Message = *patch.Message
	}
	if patch.Severity != nil {
		rule.Severity = *patch.Severity
	}
	if patch.Enabled != nil {
		rule.Enabled = *patch.Enabled
	}
	if patch.Predicate != nil {
		rule.Predicate = patch.Predicate
	}
	return true
}

func (r *RuleRegistry) EnableRule(id string) bool {
	enabled := true
	return r.UpdateRule(id, RulePatch{Enabled: &enabled})
}

func (r *RuleRegistry) DisableRule(id string) bool {
	enabled := false
	return r.UpdateRule(id, RulePatch{Enabled: &enabled})
}

// Rule returns the rule with the given id.
func (r *RuleRegistry) Rule(id string) (Rule, bool) {
	if i := r.index(id); i >= 0 {
		return r.rules[i], true
	}
	return Rule{}, false
}

// Rules returns all rules in insertion order.
func (r *RuleRegistry) Rules() []Rule {
	return append([]Rule(nil), r.rules...)
}

// EnabledRules returns the enabled rules in insertion order.
func (r *RuleRegistry) EnabledRules() []Rule {
	var out []Rule
	for _, rule := range r.rules {
		if rule.Enabled {
			out = append(out, rule)
		}
	}
	return out
}

// RulesByFieldPath returns enabled rules whose field path equals path exactly.
func (r *RuleRegistry) RulesByFieldPath(path string) []Rule {
	var out []Rule
	for _, rule := range r.rules {
		if rule.Enabled && rule.FieldPath == path {
			out = append(out, rule)
		}
	}
	return out
}

// ClearAllRules empties the registry.
func (r *RuleRegistry) ClearAllRules() {
	r.rules = nil
}

func (r *RuleRegistry) index(id string) int {
	for i := range r.rules {
		if r.rules[i].ID == id {
			return i
		}
	}
	return -1
}
