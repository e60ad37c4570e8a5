// Package schema holds the mutable in-memory schema-mapping document that an
// editor session builds up and eventually persists.
package schema

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-mapper/pkg/models"
)

// Document is the normalized, mutable schema mapping for one editor session.
// Mutations never fail for normal usage: unknown ids and languages are no-ops.
// Every mutation marks the document dirty.
//
// Document is not safe for concurrent use; callers serialize access.
type Document struct {
	schemaID            uuid.UUID
	projectID           uuid.UUID
	name                string
	targetKnowledgeBase string
	itemID              string
	labels              map[string]models.ColumnMapping
	descriptions        map[string]models.ColumnMapping
	aliases             map[string][]models.ColumnMapping
	statements          []models.StatementMapping

	dirty     bool
	saving    bool
	lastSaved *time.Time
	createdAt time.Time
	updatedAt time.Time

	newID func() string
	now   func() time.Time
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	d := &Document{
		newID: uuid.NewString,
		now:   time.Now,
	}
	d.Reset()
	return d
}

// Reset restores every field to its empty default. Used when switching
// projects or schemas, or discarding unsaved work.
func (d *Document) Reset() {
	d.schemaID = uuid.Nil
	d.projectID = uuid.Nil
	d.name = ""
	d.targetKnowledgeBase = ""
	d.itemID = ""
	d.labels = make(map[string]models.ColumnMapping)
	d.descriptions = make(map[string]models.ColumnMapping)
	d.aliases = make(map[string][]models.ColumnMapping)
	d.statements = nil
	d.dirty = false
	d.saving = false
	d.lastSaved = nil
	d.createdAt = time.Time{}
	d.updatedAt = time.Time{}
}

// Load replaces the document content with a persisted snapshot.
// The loaded document is clean.
func (d *Document) Load(m models.SchemaMapping) {
	d.Reset()
	d.schemaID = m.ID
	d.projectID = m.ProjectID
	d.name = m.Name
	d.targetKnowledgeBase = m.TargetKnowledgeBase
	d.itemID = m.ItemID
	for lang, cm := range m.Labels {
		if key := NormalizeLanguage(lang); key != "" {
			d.labels[key] = cm
		}
	}
	for lang, cm := range m.Descriptions {
		if key := NormalizeLanguage(lang); key != "" {
			d.descriptions[key] = cm
		}
	}
	for lang, list := range m.Aliases {
		for _, cm := range list {
			d.appendAlias(NormalizeLanguage(lang), cm)
		}
	}
	for _, st := range m.Statements {
		if st.ID == "" || d.statementIndex(st.ID) >= 0 {
			st.ID = d.newID()
		}
		if !st.Rank.IsValid() {
			st.Rank = models.RankNormal
		}
		d.statements = append(d.statements, st.Clone())
	}
	d.createdAt = m.CreatedAt
	d.updatedAt = m.UpdatedAt
	if !m.UpdatedAt.IsZero() {
		saved := m.UpdatedAt
		d.lastSaved = &saved
	}
}

// Snapshot returns a deep copy of the document as plain data.
func (d *Document) Snapshot() models.SchemaMapping {
	m := models.SchemaMapping{
		ID:                  d.schemaID,
		ProjectID:           d.projectID,
		Name:                d.name,
		TargetKnowledgeBase: d.targetKnowledgeBase,
		ItemID:              d.itemID,
		Labels:              make(map[string]models.ColumnMapping, len(d.labels)),
		Descriptions:        make(map[string]models.ColumnMapping, len(d.descriptions)),
		Aliases:             make(map[string][]models.ColumnMapping, len(d.aliases)),
		Statements:          make([]models.StatementMapping, 0, len(d.statements)),
		CreatedAt:           d.createdAt,
		UpdatedAt:           d.updatedAt,
	}
	for lang, cm := range d.labels {
		m.Labels[lang] = cm
	}
	for lang, cm := range d.descriptions {
		m.Descriptions[lang] = cm
	}
	for lang, list := range d.aliases {
		m.Aliases[lang] = append([]models.ColumnMapping(nil), list...)
	}
	for _, st := range d.statements {
		m.Statements = append(m.Statements, st.Clone())
	}
	return m
}

// --- Metadata ---

func (d *Document) SchemaID() uuid.UUID         { return d.schemaID }
func (d *Document) ProjectID() uuid.UUID        { return d.projectID }
func (d *Document) Name() string                { return d.name }
func (d *Document) TargetKnowledgeBase() string { return d.targetKnowledgeBase }
func (d *Document) ItemID() string              { return d.itemID }
func (d *Document) IsDirty() bool               { return d.dirty }
func (d *Document) IsSaving() bool              { return d.saving }
func (d *Document) UpdatedAt() time.Time        { return d.updatedAt }

// LastSaved returns when the document was last saved, or nil.
func (d *Document) LastSaved() *time.Time {
	if d.lastSaved == nil {
		return nil
	}
	t := *d.lastSaved
	return &t
}

// SetProject associates the document with a project and schema id.
func (d *Document) SetProject(projectID, schemaID uuid.UUID) {
	d.projectID = projectID
	d.schemaID = schemaID
	d.touch()
}

func (d *Document) SetName(name string) {
	d.name = name
	d.touch()
}

func (d *Document) SetTargetKnowledgeBase(kb string) {
	d.targetKnowledgeBase = kb
	d.touch()
}

// SetItemID records the existing knowledge-base item this mapping targets.
// An empty id clears it.
func (d *Document) SetItemID(itemID string) {
	d.itemID = strings.TrimSpace(itemID)
	d.touch()
}

// --- Terms ---

// AddLabelMapping sets the label for a language. Last write wins.
func (d *Document) AddLabelMapping(lang string, mapping models.ColumnMapping) {
	if key := NormalizeLanguage(lang); key != "" {
		d.labels[key] = mapping
		d.touch()
	}
}

// AddDescriptionMapping sets the description for a language. Last write wins.
func (d *Document) AddDescriptionMapping(lang string, mapping models.ColumnMapping) {
	if key := NormalizeLanguage(lang); key != "" {
		d.descriptions[key] = mapping
		d.touch()
	}
}

// AddAliasMapping appends an alias unless an equal mapping is already present
// for the language, in which case it is a silent no-op.
func (d *Document) AddAliasMapping(lang string, mapping models.ColumnMapping) {
	if d.appendAlias(NormalizeLanguage(lang), mapping) {
		d.touch()
	}
}

func (d *Document) appendAlias(key string, mapping models.ColumnMapping) bool {
	if key == "" {
		return false
	}
	for _, existing := range d.aliases[key] {
		if existing.Equal(mapping) {
			return false
		}
	}
	d.aliases[key] = append(d.aliases[key], mapping)
	return true
}

func (d *Document) RemoveLabelMapping(lang string) {
	key := NormalizeLanguage(lang)
	if _, ok := d.labels[key]; ok {
		delete(d.labels, key)
		d.touch()
	}
}

func (d *Document) RemoveDescriptionMapping(lang string) {
	key := NormalizeLanguage(lang)
	if _, ok := d.descriptions[key]; ok {
		delete(d.descriptions, key)
		d.touch()
	}
}

// RemoveAliasMapping removes the first equal alias for the language. The
// language key is deleted once its list is empty.
func (d *Document) RemoveAliasMapping(lang string, mapping models.ColumnMapping) {
	key := NormalizeLanguage(lang)
	list := d.aliases[key]
	for i, existing := range list {
		if !existing.Equal(mapping) {
			continue
		}
		list = append(list[:i:i], list[i+1:]...)
		if len(list) == 0 {
			delete(d.aliases, key)
		} else {
			d.aliases[key] = list
		}
		d.touch()
		return
	}
}

// Label returns the label mapping for a language.
func (d *Document) Label(lang string) (models.ColumnMapping, bool) {
	cm, ok := d.labels[NormalizeLanguage(lang)]
	return cm, ok
}

// Description returns the description mapping for a language.
func (d *Document) Description(lang string) (models.ColumnMapping, bool) {
	cm, ok := d.descriptions[NormalizeLanguage(lang)]
	return cm, ok
}

// AliasesFor returns a copy of the alias list for a language.
func (d *Document) AliasesFor(lang string) []models.ColumnMapping {
	return append([]models.ColumnMapping(nil), d.aliases[NormalizeLanguage(lang)]...)
}

// HasAliasLanguage reports whether the language key exists in the alias map.
func (d *Document) HasAliasLanguage(lang string) bool {
	_, ok := d.aliases[NormalizeLanguage(lang)]
	return ok
}

// --- Save state ---

// BeginSave marks a save as in flight.
func (d *Document) BeginSave() {
	d.saving = true
}

// FailSave clears the in-flight marker and leaves the document dirty.
func (d *Document) FailSave() {
	d.saving = false
}

// MarkAsSaved clears the dirty flag and stamps the save time.
func (d *Document) MarkAsSaved() {
	now := d.now()
	d.dirty = false
	d.saving = false
	d.lastSaved = &now
	d.updatedAt = now
	if d.createdAt.IsZero() {
		d.createdAt = now
	}
}

// HasContent reports whether any term or statement is mapped.
func (d *Document) HasContent() bool {
	return len(d.labels) > 0 || len(d.descriptions) > 0 || len(d.aliases) > 0 || len(d.statements) > 0
}

// CanSave is true iff a project is associated, there are unsaved changes,
// no save is in flight and the mapping is not completely empty.
func (d *Document) CanSave() bool {
	return d.projectID != uuid.Nil && d.dirty && !d.saving && d.HasContent()
}

func (d *Document) touch() {
	d.dirty = true
	d.updatedAt = d.now()
}
