package schema

import (
	"strings"

	"github.com/ekaya-inc/ekaya-mapper/pkg/models"
)

// ValueAt resolves a field path to a generic value for rule predicates.
// Maps come back as map[string]any and lists as []any; unknown paths and
// absent entries resolve to nil.
func (d *Document) ValueAt(fieldPath string) any {
	switch fieldPath {
	case PathSchemaName:
		return d.name
	case PathWikibase:
		return d.targetKnowledgeBase
	case PathItemID:
		return d.itemID
	case PathLabels:
		return termMap(d.labels)
	case PathDescriptions:
		return termMap(d.descriptions)
	case PathAliases:
		out := make(map[string]any, len(d.aliases))
		for lang, list := range d.aliases {
			out[lang] = aliasList(list)
		}
		return out
	case PathStatements:
		out := make([]any, len(d.statements))
		for i, st := range d.statements {
			out[i] = st.Clone()
		}
		return out
	}

	switch {
	case strings.HasPrefix(fieldPath, PathLabels+"."):
		if cm, ok := d.labels[strings.TrimPrefix(fieldPath, PathLabels+".")]; ok {
			return cm
		}
	case strings.HasPrefix(fieldPath, PathDescriptions+"."):
		if cm, ok := d.descriptions[strings.TrimPrefix(fieldPath, PathDescriptions+".")]; ok {
			return cm
		}
	case strings.HasPrefix(fieldPath, PathAliases+"."):
		if list, ok := d.aliases[strings.TrimPrefix(fieldPath, PathAliases+".")]; ok {
			return aliasList(list)
		}
	}
	return nil
}

func termMap(in map[string]models.ColumnMapping) map[string]any {
	out := make(map[string]any, len(in))
	for lang, cm := range in {
		out[lang] = cm
	}
	return out
}

func aliasList(in []models.ColumnMapping) []any {
	out := make([]any, len(in))
	for i, cm := range in {
		out[i] = cm
	}
	return out
}
