package mapping

import (
	"sort"

	"github.com/ekaya-inc/ekaya-mapper/pkg/models"
)

// DragState is the phase of a drag gesture.
type DragState string

const (
	DragIdle     DragState = "idle"
	DragDragging DragState = "dragging"
	DragDropping DragState = "dropping"
)

// IsValid reports whether s is a known state.
func (s DragState) IsValid() bool {
	return s == DragIdle || s == DragDragging || s == DragDropping
}

// Feedback is the styling bucket for a target during a drag.
type Feedback string

const (
	FeedbackNone      Feedback = ""
	FeedbackValid     Feedback = "valid"
	FeedbackInvalid   Feedback = "invalid"
	FeedbackDuplicate Feedback = "duplicate"
)

// AliasSource supplies the aliases currently mapped for a language.
// *schema.Document satisfies it.
type AliasSource interface {
	AliasesFor(lang string) []models.ColumnMapping
}

// SessionState is a read-only snapshot of a DragDropSession.
type SessionState struct {
	DraggedColumn     *models.ColumnInfo  `json:"dragged_column"`
	DragState         DragState           `json:"drag_state"`
	AvailableTargets  []models.DropTarget `json:"available_targets"`
	ValidTargetPaths  []string            `json:"valid_target_paths"`
	HoveredTargetPath string              `json:"hovered_target_path,omitempty"`
}

// DragDropSession tracks one column drag across a set of drop targets.
// Out-of-order calls, such as hovering while idle, are ignored: pointer
// events routinely race with the end of a drag.
//
// DragDropSession is not safe for concurrent use.
type DragDropSession struct {
	validator *Validator
	aliases   AliasSource

	draggedColumn     *models.ColumnInfo
	dragState         DragState
	availableTargets  []models.DropTarget
	validTargetPaths  map[string]bool
	hoveredTargetPath string
}

// NewDragDropSession returns an idle session. aliases may be nil, in which
// case hover feedback never reports duplicates.
func NewDragDropSession(validator *Validator, aliases AliasSource) *DragDropSession {
	s := &DragDropSession{validator: validator, aliases: aliases}
	s.Reset()
	return s
}

// Validator returns the validator the session evaluates targets with.
func (s *DragDropSession) Validator() *Validator {
	return s.validator
}

// SetAvailableTargets replaces the target list. During a drag the valid
// path set is recomputed so newly rendered slots highlight immediately.
func (s *DragDropSession) SetAvailableTargets(targets []models.DropTarget) {
	s.availableTargets = append([]models.DropTarget(nil), targets...)
	if s.dragState == DragDragging && s.draggedColumn != nil {
		s.computeValidTargets()
	}
}

// StartDrag picks up a column and precomputes which targets accept it.
// Every sample is checked; callers bound sample counts before this point.
// A drag already in progress is discarded.
func (s *DragDropSession) StartDrag(column models.ColumnInfo) {
	column.SampleValues = append([]string(nil), column.SampleValues...)
	s.draggedColumn = &column
	s.dragState = DragDragging
	s.hoveredTargetPath = ""
	s.computeValidTargets()
}

// SetHoveredTarget records the target under the pointer; "" clears it.
// Validity is not recomputed.
func (s *DragDropSession) SetHoveredTarget(path string) {
	if s.dragState != DragDragging {
		return
	}
	s.hoveredTargetPath = path
}

// EndDrag returns the session to idle. Available targets are kept.
func (s *DragDropSession) EndDrag() {
	s.draggedColumn = nil
	s.dragState = DragIdle
	s.validTargetPaths = make(map[string]bool)
	s.hoveredTargetPath = ""
}

// SetDragState forces a transition. Moving to idle ends the drag; moving to
// dragging or dropping without a dragged column is ignored.
func (s *DragDropSession) SetDragState(state DragState) {
	switch {
	case !state.IsValid():
		return
	case state == DragIdle:
		s.EndDrag()
	case s.draggedColumn != nil:
		s.dragState = state
	}
}

// Reset restores the freshly constructed state, forgetting targets too.
func (s *DragDropSession) Reset() {
	s.availableTargets = nil
	s.EndDrag()
}

func (s *DragDropSession) IsDragging() bool { return s.dragState == DragDragging }
func (s *DragDropSession) IsDropping() bool { return s.dragState == DragDropping }

// HasValidTargets reports whether the dragged column fits any target.
func (s *DragDropSession) HasValidTargets() bool {
	return len(s.validTargetPaths) > 0
}

// DraggedColumn returns the column being dragged.
func (s *DragDropSession) DraggedColumn() (models.ColumnInfo, bool) {
	if s.draggedColumn == nil {
		return models.ColumnInfo{}, false
	}
	return *s.draggedColumn, true
}

// DragState returns the current phase.
func (s *DragDropSession) DragState() DragState {
	return s.dragState
}

// HoveredTargetPath returns the hovered path, or "".
func (s *DragDropSession) HoveredTargetPath() string {
	return s.hoveredTargetPath
}

// IsValidTarget reports whether path passed validation at drag start.
func (s *DragDropSession) IsValidTarget(path string) bool {
	return s.validTargetPaths[path]
}

// IsCurrentHoverValid reports whether the hovered target accepts the drop,
// including the duplicate-alias check.
func (s *DragDropSession) IsCurrentHoverValid() bool {
	if s.hoveredTargetPath == "" {
		return false
	}
	return s.TargetFeedback(s.hoveredTargetPath) == FeedbackValid
}

// TargetFeedback classifies a target for styling during a drag.
func (s *DragDropSession) TargetFeedback(path string) Feedback {
	if s.draggedColumn == nil {
		return FeedbackNone
	}
	target, ok := s.Target(path)
	if !ok {
		return FeedbackNone
	}
	if !s.validTargetPaths[path] {
		return FeedbackInvalid
	}
	if target.Kind == models.TargetAlias && IsDuplicateAlias(*s.draggedColumn, s.existingAliases(target)) {
		return FeedbackDuplicate
	}
	return FeedbackValid
}

// Evaluate runs the drop-time validation of the dragged column against the
// target at path. ok is false when nothing is dragged or the path is unknown.
func (s *DragDropSession) Evaluate(path string) (Verdict, bool) {
	if s.draggedColumn == nil {
		return Verdict{}, false
	}
	target, ok := s.Target(path)
	if !ok {
		return Verdict{}, false
	}
	return s.validator.ValidateForDrop(*s.draggedColumn, target, s.existingAliases(target)), true
}

// Target looks up an available target by path.
func (s *DragDropSession) Target(path string) (models.DropTarget, bool) {
	for _, t := range s.availableTargets {
		if t.Path == path {
			return t, true
		}
	}
	return models.DropTarget{}, false
}

// ValidTargetPaths returns the valid paths, sorted.
func (s *DragDropSession) ValidTargetPaths() []string {
	out := make([]string, 0, len(s.validTargetPaths))
	for p := range s.validTargetPaths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// State returns a snapshot of the session.
func (s *DragDropSession) State() SessionState {
	state := SessionState{
		DragState:         s.dragState,
		AvailableTargets:  append([]models.DropTarget{}, s.availableTargets...),
		ValidTargetPaths:  s.ValidTargetPaths(),
		HoveredTargetPath: s.hoveredTargetPath,
	}
	if s.draggedColumn != nil {
		column := *s.draggedColumn
		state.DraggedColumn = &column
	}
	return state
}

func (s *DragDropSession) computeValidTargets() {
	s.validTargetPaths = make(map[string]bool, len(s.availableTargets))
	for _, target := range s.availableTargets {
		if s.validator.Validate(*s.draggedColumn, target).Valid {
			s.validTargetPaths[target.Path] = true
		}
	}
}

func (s *DragDropSession) existingAliases(target models.DropTarget) []models.ColumnMapping {
	if s.aliases == nil || target.Kind != models.TargetAlias {
		return nil
	}
	return s.aliases.AliasesFor(target.Language)
}
