// Package validation stores validation issues, holds completeness rules and
// derives missing-field highlights for a schema document.
package validation

import (
	"github.com/ekaya-inc/ekaya-mapper/pkg/models"
	"github.com/ekaya-inc/ekaya-mapper/pkg/schema"
)

// Result is a point-in-time view of the issue store.
type Result struct {
	IsValid  bool                     `json:"is_valid"`
	Errors   []models.ValidationIssue `json:"errors"`
	Warnings []models.ValidationIssue `json:"warnings"`
}

// Summary carries aggregate counts.
type Summary struct {
	ErrorCount   int `json:"error_count"`
	WarningCount int `json:"warning_count"`
}

// IssueStore keeps errors and warnings with at most one record per
// (path, code) pair in each list. Path queries are prefix queries using
// schema.PathWithin.
//
// IssueStore is not safe for concurrent use.
type IssueStore struct {
	errors   []models.ValidationIssue
	warnings []models.ValidationIssue
}

// NewIssueStore returns an empty store.
func NewIssueStore() *IssueStore {
	return &IssueStore{}
}

// Add stores an issue in the list matching its severity. An empty severity is
// treated as an error.
func (s *IssueStore) Add(issue models.ValidationIssue) {
	if issue.Severity == models.SeverityWarning {
		s.AddWarning(issue)
		return
	}
	s.AddError(issue)
}

// AddError inserts an error unless one with the same path and code exists.
func (s *IssueStore) AddError(issue models.ValidationIssue) {
	issue.Severity = models.SeverityError
	if !containsKey(s.errors, issue) {
		s.errors = append(s.errors, issue)
	}
}

// AddWarning inserts a warning unless one with the same path and code exists.
func (s *IssueStore) AddWarning(issue models.ValidationIssue) {
	issue.Severity = models.SeverityWarning
	if !containsKey(s.warnings, issue) {
		s.warnings = append(s.warnings, issue)
	}
}

// ClearError removes an exact (path, code, message) match from both lists.
func (s *IssueStore) ClearError(issue models.ValidationIssue) {
	match := func(i models.ValidationIssue) bool {
		return i.Path == issue.Path && i.Code == issue.Code && i.Message == issue.Message
	}
	s.errors = removeWhere(s.errors, match)
	s.warnings = removeWhere(s.warnings, match)
}

// ClearErrorsForPath removes issues at path. Without exactMatch it removes
// the whole branch under path (a.b clears a.b and a.b.c, never a.bc).
func (s *IssueStore) ClearErrorsForPath(path string, exactMatch bool) {
	match := func(i models.ValidationIssue) bool {
		if exactMatch {
			return i.Path == path
		}
		return schema.PathWithin(i.Path, path)
	}
	s.errors = removeWhere(s.errors, match)
	s.warnings = removeWhere(s.warnings, match)
}

// ClearErrorsByCode removes every issue with the code, regardless of path.
func (s *IssueStore) ClearErrorsByCode(code models.ReasonCode) {
	match := func(i models.ValidationIssue) bool { return i.Code == code }
	s.errors = removeWhere(s.errors, match)
	s.warnings = removeWhere(s.warnings, match)
}

// Reset empties the store.
func (s *IssueStore) Reset() {
	s.errors = nil
	s.warnings = nil
}

// ErrorsForPath returns errors at or under prefix.
func (s *IssueStore) ErrorsForPath(prefix string) []models.ValidationIssue {
	return filterPrefix(s.errors, prefix)
}

// WarningsForPath returns warnings at or under prefix.
func (s *IssueStore) WarningsForPath(prefix string) []models.ValidationIssue {
	return filterPrefix(s.warnings, prefix)
}

// HasErrorsForPath reports whether any error lies at or under prefix.
func (s *IssueStore) HasErrorsForPath(prefix string) bool {
	return anyPrefix(s.errors, prefix)
}

// HasWarningsForPath reports whether any warning lies at or under prefix.
func (s *IssueStore) HasWarningsForPath(prefix string) bool {
	return anyPrefix(s.warnings, prefix)
}

// SeverityFor returns the worst severity at or under prefix, or "" when the
// branch is clean. UI layers map it onto a style bucket.
func (s *IssueStore) SeverityFor(prefix string) models.Severity {
	switch {
	case s.HasErrorsForPath(prefix):
		return models.SeverityError
	case s.HasWarningsForPath(prefix):
		return models.SeverityWarning
	default:
		return ""
	}
}

func (s *IssueStore) ErrorCount() int   { return len(s.errors) }
func (s *IssueStore) WarningCount() int { return len(s.warnings) }
func (s *IssueStore) HasErrors() bool   { return len(s.errors) > 0 }

// Summary returns aggregate counts.
func (s *IssueStore) Summary() Summary {
	return Summary{ErrorCount: len(s.errors), WarningCount: len(s.warnings)}
}

// Snapshot returns copies of both lists.
func (s *IssueStore) Snapshot() Result {
	return Result{
		IsValid:  len(s.errors) == 0,
		Errors:   filterPrefix(s.errors, ""),
		Warnings: filterPrefix(s.warnings, ""),
	}
}

func containsKey(list []models.ValidationIssue, issue models.ValidationIssue) bool {
	for _, existing := range list {
		if existing.Path == issue.Path && existing.Code == issue.Code {
			return true
		}
	}
	return false
}

func removeWhere(list []models.ValidationIssue, match func(models.ValidationIssue) bool) []models.ValidationIssue {
	kept := list[:0]
	for _, issue := range list {
		if !match(issue) {
			kept = append(kept, issue)
		}
	}
	return kept
}

func filterPrefix(list []models.ValidationIssue, prefix string) []models.ValidationIssue {
	out := make([]models.ValidationIssue, 0)
	for _, issue := range list {
		if schema.PathWithin(issue.Path, prefix) {
			out = append(out, issue)
		}
	}
	return out
}

func anyPrefix(list []models.ValidationIssue, prefix string) bool {
	for _, issue := range list {
		if schema.PathWithin(issue.Path, prefix) {
			return true
		}
	}
	return false
}
