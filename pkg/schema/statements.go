package schema

import (
	"github.com/ekaya-inc/ekaya-mapper/pkg/models"
)

// AddStatement appends a statement and returns its freshly allocated id.
// An invalid rank falls back to normal.
func (d *Document) AddStatement(
	property models.PropertyReference,
	value models.ValueMapping,
	rank models.Rank,
	qualifiers []models.PropertyValueMap,
	references []models.ReferenceMapping,
) string {
	if !rank.IsValid() {
		rank = models.RankNormal
	}
	st := models.StatementMapping{
		ID:         d.newID(),
		Property:   property,
		Value:      value,
		Rank:       rank,
		Qualifiers: qualifiers,
		References: references,
	}.Clone()
	d.statements = append(d.statements, st)
	d.touch()
	return st.ID
}

// RemoveStatement deletes the statement with the given id.
func (d *Document) RemoveStatement(id string) {
	i := d.statementIndex(id)
	if i < 0 {
		return
	}
	d.statements = append(d.statements[:i:i], d.statements[i+1:]...)
	d.touch()
}

// UpdateStatementRank changes the rank of a statement. Unknown ranks are ignored.
func (d *Document) UpdateStatementRank(id string, rank models.Rank) {
	if !rank.IsValid() {
		return
	}
	d.withStatement(id, func(st *models.StatementMapping) {
		st.Rank = rank
	})
}

// UpdateStatementQualifiers replaces the qualifier list of a statement.
func (d *Document) UpdateStatementQualifiers(id string, qualifiers []models.PropertyValueMap) {
	d.withStatement(id, func(st *models.StatementMapping) {
		st.Qualifiers = append([]models.PropertyValueMap{}, qualifiers...)
	})
}

// AddQualifierToStatement appends one qualifier.
func (d *Document) AddQualifierToStatement(id string, qualifier models.PropertyValueMap) {
	d.withStatement(id, func(st *models.StatementMapping) {
		st.Qualifiers = append(st.Qualifiers, qualifier)
	})
}

// RemoveQualifierFromStatement removes the qualifier at index. Out-of-range
// indexes are ignored.
func (d *Document) RemoveQualifierFromStatement(id string, index int) {
	i := d.statementIndex(id)
	if i < 0 || index < 0 || index >= len(d.statements[i].Qualifiers) {
		return
	}
	q := d.statements[i].Qualifiers
	d.statements[i].Qualifiers = append(q[:index:index], q[index+1:]...)
	d.touch()
}

// AddReferenceToStatement appends one reference block.
func (d *Document) AddReferenceToStatement(id string, reference models.ReferenceMapping) {
	d.withStatement(id, func(st *models.StatementMapping) {
		st.References = append(st.References, models.ReferenceMapping{
			Snaks: append([]models.PropertyValueMap{}, reference.Snaks...),
		})
	})
}

// RemoveReferenceFromStatement removes the reference at index. Out-of-range
// indexes are ignored.
func (d *Document) RemoveReferenceFromStatement(id string, index int) {
	i := d.statementIndex(id)
	if i < 0 || index < 0 || index >= len(d.statements[i].References) {
		return
	}
	r := d.statements[i].References
	d.statements[i].References = append(r[:index:index], r[index+1:]...)
	d.touch()
}

// UpdateStatement replaces the whole content of a statement, keeping its id.
func (d *Document) UpdateStatement(
	id string,
	property models.PropertyReference,
	value models.ValueMapping,
	rank models.Rank,
	qualifiers []models.PropertyValueMap,
	references []models.ReferenceMapping,
) {
	if !rank.IsValid() {
		rank = models.RankNormal
	}
	d.withStatement(id, func(st *models.StatementMapping) {
		*st = models.StatementMapping{
			ID:         st.ID,
			Property:   property,
			Value:      value,
			Rank:       rank,
			Qualifiers: qualifiers,
			References: references,
		}.Clone()
	})
}

// Statement returns a copy of the statement with the given id.
func (d *Document) Statement(id string) (models.StatementMapping, bool) {
	i := d.statementIndex(id)
	if i < 0 {
		return models.StatementMapping{}, false
	}
	return d.statements[i].Clone(), true
}

// StatementAt returns a copy of the statement at position i.
func (d *Document) StatementAt(i int) (models.StatementMapping, bool) {
	if i < 0 || i >= len(d.statements) {
		return models.StatementMapping{}, false
	}
	return d.statements[i].Clone(), true
}

// StatementIndex returns the position of a statement, or -1.
func (d *Document) StatementIndex(id string) int {
	return d.statementIndex(id)
}

// Statements returns copies of all statements in order.
func (d *Document) Statements() []models.StatementMapping {
	out := make([]models.StatementMapping, len(d.statements))
	for i, st := range d.statements {
		out[i] = st.Clone()
	}
	return out
}

func (d *Document) statementIndex(id string) int {
	for i := range d.statements {
		if d.statements[i].ID == id {
			return i
		}
	}
	return -1
}

func (d *Document) withStatement(id string, fn func(st *models.StatementMapping)) {
	i := d.statementIndex(id)
	if i < 0 {
		return
	}
	fn(&d.statements[i])
	d.touch()
}
