package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ekaya-inc/ekaya-mapper/pkg/models"
)

func TestTermPath(t *testing.T) {
	assert.Equal(t, "item.terms.labels.en", TermPath(models.TargetLabel, "EN"))
	assert.Equal(t, "item.terms.descriptions.de", TermPath(models.TargetDescription, "de"))
	assert.Equal(t, "item.terms.aliases.fr", TermPath(models.TargetAlias, " fr "))
}

func TestStatementPaths(t *testing.T) {
	assert.Equal(t, "item.statements[2].property.id", StatementPropertyPath(2))
	assert.Equal(t, "item.statements[0].value", StatementValuePath(0))
	assert.Equal(t, "item.statements[1].qualifiers[3]", QualifierPath(1, 3))
	assert.Equal(t, "item.statements[1].references[0]", ReferencePath(1, 0))
}

func TestParseIndexes(t *testing.T) {
	i, ok := ParseStatementIndex("item.statements[12].qualifiers[3].value")
	assert.True(t, ok)
	assert.Equal(t, 12, i)

	j, ok := ParseQualifierIndex("item.statements[12].qualifiers[3].value")
	assert.True(t, ok)
	assert.Equal(t, 3, j)

	_, ok = ParseReferenceIndex("item.statements[12].qualifiers[3].value")
	assert.False(t, ok)

	_, ok = ParseStatementIndex("item.terms.labels.en")
	assert.False(t, ok)
}

func TestPathWithin(t *testing.T) {
	tests := []struct {
		path   string
		prefix string
		want   bool
	}{
		{"a.b", "a.b", true},
		{"a.b.c", "a.b", true},
		{"a.b[0]", "a.b", true},
		{"a.bc", "a.b", false},
		{"a", "a.b", false},
		{"item.statements[0].value", "item.statements", true},
		{"item.statements[0].value", "item.statements[0]", true},
		{"item.statements[10].value", "item.statements[1]", false},
		{"item.statements[0].value", "item.statements[0].", true},
		{"anything", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path+"|"+tt.prefix, func(t *testing.T) {
			assert.Equal(t, tt.want, PathWithin(tt.path, tt.prefix))
		})
	}
}
