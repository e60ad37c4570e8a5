package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-mapper/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-mapper/pkg/mapping"
	"github.com/ekaya-inc/ekaya-mapper/pkg/models"
	"github.com/ekaya-inc/ekaya-mapper/pkg/schema"
	"github.com/ekaya-inc/ekaya-mapper/pkg/validation"
)

// DragView is the drag session state plus per-target styling.
type DragView struct {
	mapping.SessionState
	Feedback map[string]mapping.Feedback `json:"feedback,omitempty"`
}

// HoverView describes the target under the pointer.
type HoverView struct {
	Path     string           `json:"path"`
	Feedback mapping.Feedback `json:"feedback"`
	Valid    bool             `json:"valid"`
}

// ValidationOverview is what the editor sidebar shows.
type ValidationOverview struct {
	validation.Result
	Summary    validation.Summary          `json:"summary"`
	Highlights []validation.FieldHighlight `json:"highlights"`
	IsComplete bool                        `json:"is_complete"`
	IsDirty    bool                        `json:"is_dirty"`
	IsSaving   bool                        `json:"is_saving"`
	CanSave    bool                        `json:"can_save"`
	LastSaved  *time.Time                  `json:"last_saved,omitempty"`
}

// SessionView is a full read of an editor session.
type SessionView struct {
	ID         uuid.UUID            `json:"id"`
	ProjectID  uuid.UUID            `json:"project_id"`
	Mapping    models.SchemaMapping `json:"mapping"`
	Columns    []models.ColumnInfo  `json:"columns"`
	Drag       DragView             `json:"drag"`
	Validation ValidationOverview   `json:"validation"`
}

// MetadataPatch holds the document metadata to change. Nil fields are left alone.
type MetadataPatch struct {
	Name                *string `json:"name,omitempty"`
	TargetKnowledgeBase *string `json:"target_knowledge_base,omitempty"`
	ItemID              *string `json:"item_id,omitempty"`
}

// EditorSession is one user's editing state: a schema document with its
// drag-and-drop session, issue store and completeness rules, plus the
// dataset columns being mapped. The core objects are not safe for
// concurrent use, so every method serializes on the session mutex.
type EditorSession struct {
	id        uuid.UUID
	projectID uuid.UUID
	lastUsed  atomic.Int64

	mu           sync.Mutex
	document     *schema.Document
	drag         *mapping.DragDropSession
	issues       *validation.IssueStore
	rules        *validation.RuleRegistry
	completeness *validation.CompletenessValidator
	drops        *mapping.DropCoordinator
	columns      []models.ColumnInfo
}

func newEditorSession(
	projectID uuid.UUID,
	document *schema.Document,
	validator *mapping.Validator,
	rules []validation.Rule,
	logger *zap.Logger,
	opts ...mapping.DropOption,
) *EditorSession {
	s := &EditorSession{
		id:        uuid.New(),
		projectID: projectID,
		document:  document,
		issues:    validation.NewIssueStore(),
		rules:     validation.NewRuleRegistry(rules...),
		columns:   []models.ColumnInfo{},
	}
	s.drag = mapping.NewDragDropSession(validator, document)
	s.completeness = validation.NewCompletenessValidator(document, s.rules)
	s.drops = mapping.NewDropCoordinator(s.drag, document, s.issues, s.completeness,
		logger.With(zap.String("session_id", s.id.String())), opts...)
	s.completeness.RefreshIssues(s.issues)
	s.touch()
	return s
}

func (s *EditorSession) ID() uuid.UUID        { return s.id }
func (s *EditorSession) ProjectID() uuid.UUID { return s.projectID }

// LastUsed returns when the session was last accessed.
func (s *EditorSession) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

func (s *EditorSession) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

// lock acquires the session and marks it used.
func (s *EditorSession) lock() {
	s.mu.Lock()
	s.touch()
}

// --- Dataset and targets ---

// SetColumns replaces the dataset columns available for dragging.
func (s *EditorSession) SetColumns(columns []models.ColumnInfo) {
	s.lock()
	defer s.mu.Unlock()

	s.columns = make([]models.ColumnInfo, len(columns))
	for i, c := range columns {
		s.columns[i] = c.BoundSamples()
	}
}

// Columns returns the dataset columns.
func (s *EditorSession) Columns() []models.ColumnInfo {
	s.lock()
	defer s.mu.Unlock()
	return append([]models.ColumnInfo{}, s.columns...)
}

// SetTargets replaces the drop targets rendered by the editor. Nothing
// changes if any target is malformed or two targets share a path.
func (s *EditorSession) SetTargets(targets []models.DropTarget) error {
	seen := make(map[string]bool, len(targets))
	for _, t := range targets {
		if err := t.Check(); err != nil {
			return err
		}
		if seen[t.Path] {
			return fmt.Errorf("%w: duplicate target path %s", apperrors.ErrInvalidTarget, t.Path)
		}
		seen[t.Path] = true
	}

	s.lock()
	defer s.mu.Unlock()
	s.drag.SetAvailableTargets(targets)
	return nil
}

// --- Drag and drop ---

// StartDrag picks up the named column.
func (s *EditorSession) StartDrag(columnName string) (DragView, error) {
	s.lock()
	defer s.mu.Unlock()

	column, ok := s.column(columnName)
	if !ok {
		return DragView{}, fmt.Errorf("column %q: %w", columnName, apperrors.ErrNotFound)
	}
	s.drag.StartDrag(column)
	return s.dragView(), nil
}

// Hover records the target under the pointer and reports its feedback.
func (s *EditorSession) Hover(path string) HoverView {
	s.lock()
	defer s.mu.Unlock()

	s.drag.SetHoveredTarget(path)
	return HoverView{
		Path:     s.drag.HoveredTargetPath(),
		Feedback: s.drag.TargetFeedback(path),
		Valid:    s.drag.IsCurrentHoverValid(),
	}
}

// EndDrag cancels the current drag.
func (s *EditorSession) EndDrag() DragView {
	s.lock()
	defer s.mu.Unlock()

	s.drag.EndDrag()
	return s.dragView()
}

// SetDragState forces a drag state transition.
func (s *EditorSession) SetDragState(state mapping.DragState) (DragView, error) {
	if !state.IsValid() {
		return DragView{}, fmt.Errorf("unknown drag state %q", state)
	}

	s.lock()
	defer s.mu.Unlock()
	s.drag.SetDragState(state)
	return s.dragView(), nil
}

// Drag returns the drag state.
func (s *EditorSession) Drag() DragView {
	s.lock()
	defer s.mu.Unlock()
	return s.dragView()
}

// Drop commits the dragged column onto the target at path.
func (s *EditorSession) Drop(ctx context.Context, path string) (mapping.DropFeedback, error) {
	s.lock()
	defer s.mu.Unlock()
	return s.drops.PerformDrop(ctx, path)
}

func (s *EditorSession) dragView() DragView {
	view := DragView{SessionState: s.drag.State()}
	if view.DraggedColumn == nil {
		return view
	}
	view.Feedback = make(map[string]mapping.Feedback, len(view.AvailableTargets))
	for _, t := range view.AvailableTargets {
		view.Feedback[t.Path] = s.drag.TargetFeedback(t.Path)
	}
	return view
}

func (s *EditorSession) column(name string) (models.ColumnInfo, bool) {
	for _, c := range s.columns {
		if c.Name == name {
			return c, true
		}
	}
	return models.ColumnInfo{}, false
}

// --- Statements ---

// AddStatement appends a statement and returns its id.
func (s *EditorSession) AddStatement(st models.StatementMapping) string {
	s.lock()
	defer s.mu.Unlock()

	id := s.document.AddStatement(st.Property, st.Value, st.Rank, st.Qualifiers, st.References)
	s.completeness.RefreshIssues(s.issues)
	return id
}

// UpdateStatement replaces the content of a statement.
func (s *EditorSession) UpdateStatement(id string, st models.StatementMapping) error {
	return s.withStatement(id, func(i int) {
		s.document.UpdateStatement(id, st.Property, st.Value, st.Rank, st.Qualifiers, st.References)
		s.issues.ClearErrorsForPath(schema.StatementPath(i), false)
	})
}

// RemoveStatement deletes a statement. Issues under later statements are
// dropped too since their indexes shift.
func (s *EditorSession) RemoveStatement(id string) error {
	return s.withStatement(id, func(i int) {
		s.document.RemoveStatement(id)
		last := len(s.document.Statements())
		for j := i; j <= last; j++ {
			s.issues.ClearErrorsForPath(schema.StatementPath(j), false)
		}
	})
}

// SetStatementRank changes the rank of a statement.
func (s *EditorSession) SetStatementRank(id string, rank models.Rank) error {
	if !rank.IsValid() {
		return fmt.Errorf("unknown rank %q", rank)
	}
	return s.withStatement(id, func(int) {
		s.document.UpdateStatementRank(id, rank)
	})
}

// RemoveQualifier deletes the qualifier at index from a statement.
func (s *EditorSession) RemoveQualifier(id string, index int) error {
	return s.withStatement(id, func(i int) {
		s.document.RemoveQualifierFromStatement(id, index)
		s.issues.ClearErrorsForPath(schema.StatementPath(i)+".qualifiers", false)
	})
}

// RemoveReference deletes the reference block at index from a statement.
func (s *EditorSession) RemoveReference(id string, index int) error {
	return s.withStatement(id, func(i int) {
		s.document.RemoveReferenceFromStatement(id, index)
		s.issues.ClearErrorsForPath(schema.StatementPath(i)+".references", false)
	})
}

func (s *EditorSession) withStatement(id string, fn func(i int)) error {
	s.lock()
	defer s.mu.Unlock()

	i := s.document.StatementIndex(id)
	if i < 0 {
		return fmt.Errorf("statement %s: %w", id, apperrors.ErrNotFound)
	}
	fn(i)
	s.completeness.RefreshIssues(s.issues)
	return nil
}

// --- Terms and metadata ---

// RemoveTerm unmaps a label, description or alias. For aliases, column
// selects which alias of the language goes.
func (s *EditorSession) RemoveTerm(kind models.TargetKind, lang string, column models.ColumnMapping) error {
	s.lock()
	defer s.mu.Unlock()

	switch kind {
	case models.TargetLabel:
		s.document.RemoveLabelMapping(lang)
	case models.TargetDescription:
		s.document.RemoveDescriptionMapping(lang)
	case models.TargetAlias:
		s.document.RemoveAliasMapping(lang, column)
	default:
		return fmt.Errorf("%w: %q is not a term kind", apperrors.ErrInvalidTarget, kind)
	}
	if kind != models.TargetAlias || !s.document.HasAliasLanguage(lang) {
		s.issues.ClearErrorsForPath(schema.TermPath(kind, lang), false)
	}
	s.completeness.RefreshIssues(s.issues)
	return nil
}

// UpdateMetadata changes the schema name, target knowledge base or item id.
func (s *EditorSession) UpdateMetadata(patch MetadataPatch) {
	s.lock()
	defer s.mu.Unlock()

	if patch.Name != nil {
		s.document.SetName(*patch.Name)
	}
	if patch.TargetKnowledgeBase != nil {
		s.document.SetTargetKnowledgeBase(*patch.TargetKnowledgeBase)
	}
	if patch.ItemID != nil {
		s.document.SetItemID(*patch.ItemID)
	}
	s.completeness.RefreshIssues(s.issues)
}

// --- Rules ---

// Rules returns the completeness rules.
func (s *EditorSession) Rules() []validation.Rule {
	s.lock()
	defer s.mu.Unlock()
	return s.rules.Rules()
}

// SetRuleEnabled turns a completeness rule on or off.
func (s *EditorSession) SetRuleEnabled(id string, enabled bool) error {
	s.lock()
	defer s.mu.Unlock()

	var ok bool
	if enabled {
		ok = s.rules.EnableRule(id)
	} else {
		ok = s.rules.DisableRule(id)
	}
	if !ok {
		return fmt.Errorf("rule %s: %w", id, apperrors.ErrNotFound)
	}
	s.completeness.RefreshIssues(s.issues)
	return nil
}

// --- Views ---

// Validation returns the validation overview.
func (s *EditorSession) Validation() ValidationOverview {
	s.lock()
	defer s.mu.Unlock()
	return s.validationOverview()
}

// View returns the whole session.
func (s *EditorSession) View() SessionView {
	s.lock()
	defer s.mu.Unlock()

	return SessionView{
		ID:         s.id,
		ProjectID:  s.projectID,
		Mapping:    s.document.Snapshot(),
		Columns:    append([]models.ColumnInfo{}, s.columns...),
		Drag:       s.dragView(),
		Validation: s.validationOverview(),
	}
}

// Snapshot returns the schema mapping as plain data.
func (s *EditorSession) Snapshot() models.SchemaMapping {
	s.lock()
	defer s.mu.Unlock()
	return s.document.Snapshot()
}

func (s *EditorSession) validationOverview() ValidationOverview {
	return ValidationOverview{
		Result:     s.issues.Snapshot(),
		Summary:    s.issues.Summary(),
		Highlights: s.completeness.RequiredFieldHighlights(),
		IsComplete: s.completeness.IsComplete(),
		IsDirty:    s.document.IsDirty(),
		IsSaving:   s.document.IsSaving(),
		CanSave:    s.document.CanSave(),
		LastSaved:  s.document.LastSaved(),
	}
}
