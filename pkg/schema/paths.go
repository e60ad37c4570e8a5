package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/ekaya-inc/ekaya-mapper/pkg/models"
)

// Field paths understood by Document.ValueAt and used as issue addresses.
const (
	PathSchemaName   = "schemaName"
	PathWikibase     = "wikibase"
	PathItemID       = "itemId"
	PathItem         = "item"
	PathTerms        = "item.terms"
	PathLabels       = "item.terms.labels"
	PathDescriptions = "item.terms.descriptions"
	PathAliases      = "item.terms.aliases"
	PathStatements   = "item.statements"
)

var (
	statementIndexPattern = regexp.MustCompile(`^item\.statements\[(\d+)\]`)
	qualifierIndexPattern = regexp.MustCompile(`\.qualifiers\[(\d+)\]`)
	referenceIndexPattern = regexp.MustCompile(`\.references\[(\d+)\]`)
)

// TermsPath returns the path of the term map for a term kind, e.g.
// item.terms.aliases for TargetAlias.
func TermsPath(kind models.TargetKind) string {
	return PathTerms + "." + inflection.Plural(string(kind))
}

// TermPath returns the path of a single language entry, e.g.
// item.terms.labels.en.
func TermPath(kind models.TargetKind, lang string) string {
	return TermsPath(kind) + "." + NormalizeLanguage(lang)
}

// StatementPath returns item.statements[i].
func StatementPath(i int) string {
	return fmt.Sprintf("%s[%d]", PathStatements, i)
}

// StatementPropertyPath returns item.statements[i].property.id.
func StatementPropertyPath(i int) string {
	return StatementPath(i) + ".property.id"
}

// StatementValuePath returns item.statements[i].value.
func StatementValuePath(i int) string {
	return StatementPath(i) + ".value"
}

// QualifierPath returns item.statements[i].qualifiers[j].
func QualifierPath(i, j int) string {
	return fmt.Sprintf("%s.qualifiers[%d]", StatementPath(i), j)
}

// ReferencePath returns item.statements[i].references[j].
func ReferencePath(i, j int) string {
	return fmt.Sprintf("%s.references[%d]", StatementPath(i), j)
}

// ParseStatementIndex extracts i from a path under item.statements[i].
func ParseStatementIndex(path string) (int, bool) {
	return parseIndex(statementIndexPattern, path)
}

// ParseQualifierIndex extracts j from a path containing .qualifiers[j].
func ParseQualifierIndex(path string) (int, bool) {
	return parseIndex(qualifierIndexPattern, path)
}

// ParseReferenceIndex extracts j from a path containing .references[j].
func ParseReferenceIndex(path string) (int, bool) {
	return parseIndex(referenceIndexPattern, path)
}

func parseIndex(pattern *regexp.Regexp, path string) (int, bool) {
	m := pattern.FindStringSubmatch(path)
	if m == nil {
		return 0, false
	}
	i, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return i, true
}

// PathWithin reports whether path lies at or under prefix in the schema tree.
// Matching is segment-aware: a.b covers a.b, a.b.c and a.b[0] but not a.bc.
// An empty prefix covers every path.
func PathWithin(path, prefix string) bool {
	if prefix == "" {
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	if len(path) == len(prefix) {
		return true
	}
	switch path[len(prefix)] {
	case '.', '[':
		return true
	}
	// prefix already ends on a boundary, e.g. "item.statements[0]."
	last := prefix[len(prefix)-1]
	return last == '.' || last == '['
}

// NormalizeLanguage lowercases and trims a language code.
func NormalizeLanguage(lang string) string {
	return strings.ToLower(strings.TrimSpace(lang))
}
