package mapping

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-mapper/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-mapper/pkg/models"
	"github.com/ekaya-inc/ekaya-mapper/pkg/schema"
	"github.com/ekaya-inc/ekaya-mapper/pkg/validation"
)

// Drop outcomes reported to the Recorder.
const (
	OutcomeAccepted     = "accepted"
	OutcomeRejected     = "rejected"
	OutcomeStaleTarget  = "stale_target"
	OutcomeCommitFailed = "commit_failed"
)

// FeedbackType is the transient UI feedback kind of a drop.
type FeedbackType string

const (
	FeedbackSuccess FeedbackType = "success"
	FeedbackError   FeedbackType = "error"
)

// DropFeedback is what the UI shows after a drop.
type DropFeedback struct {
	Type        FeedbackType `json:"type"`
	Message     string       `json:"message"`
	Path        string       `json:"path"`
	StatementID string       `json:"statement_id,omitempty"`
	Verdict     *Verdict     `json:"verdict,omitempty"`
}

// Committer persists a document after a drop has been applied.
type Committer interface {
	Commit(ctx context.Context, doc *schema.Document) error
}

// Recorder receives drop metrics. Reason is "" for a valid verdict.
type Recorder interface {
	ObserveVerdict(reason string)
	ObserveDrop(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveVerdict(string) {}
func (nopRecorder) ObserveDrop(string)    {}

// DropCoordinator applies drops from a session onto a document and keeps
// the issue store in step.
type DropCoordinator struct {
	session      *DragDropSession
	document     *schema.Document
	issues       *validation.IssueStore
	completeness *validation.CompletenessValidator
	committer    Committer
	recorder     Recorder
	logger       *zap.Logger
}

// DropOption configures a DropCoordinator.
type DropOption func(*DropCoordinator)

// WithCommitter persists the document after every accepted drop.
func WithCommitter(c Committer) DropOption {
	return func(dc *DropCoordinator) { dc.committer = c }
}

// WithRecorder reports verdicts and outcomes.
func WithRecorder(r Recorder) DropOption {
	return func(dc *DropCoordinator) {
		if r != nil {
			dc.recorder = r
		}
	}
}

// NewDropCoordinator wires a coordinator for one editor session.
func NewDropCoordinator(
	session *DragDropSession,
	document *schema.Document,
	issues *validation.IssueStore,
	completeness *validation.CompletenessValidator,
	logger *zap.Logger,
	opts ...DropOption,
) *DropCoordinator {
	dc := &DropCoordinator{
		session:      session,
		document:     document,
		issues:       issues,
		completeness: completeness,
		recorder:     nopRecorder{},
		logger:       logger.Named("drop"),
	}
	for _, opt := range opts {
		opt(dc)
	}
	return dc
}

// PerformDrop commits the dragged column onto the target at path.
//
// A rejected verdict is not an error: it is stored as a validation issue and
// returned as error feedback. Errors are returned only when nothing is being
// dragged (ErrNoActiveDrag) or the path is not an available target
// (ErrUnknownTarget). The drag always ends, whatever the outcome.
func (dc *DropCoordinator) PerformDrop(ctx context.Context, path string) (DropFeedback, error) {
	column, ok := dc.session.DraggedColumn()
	if !ok {
		return DropFeedback{}, apperrors.ErrNoActiveDrag
	}
	defer dc.session.EndDrag()

	verdict, ok := dc.session.Evaluate(path)
	if !ok {
		return DropFeedback{}, fmt.Errorf("%w: %s", apperrors.ErrUnknownTarget, path)
	}
	dc.recorder.ObserveVerdict(string(verdict.Reason))

	if !verdict.Valid {
		dc.issues.AddError(models.ValidationIssue{
			Code:    verdict.Reason,
			Path:    path,
			Message: verdict.Message,
			Context: map[string]any{
				"column":       column.Name,
				"storage_type": column.StorageType,
			},
		})
		dc.recorder.ObserveDrop(OutcomeRejected)
		dc.logger.Debug("Drop rejected",
			zap.String("path", path),
			zap.String("column", column.Name),
			zap.String("reason", string(verdict.Reason)))
		return DropFeedback{Type: FeedbackError, Message: verdict.Message, Path: path, Verdict: &verdict}, nil
	}

	target, _ := dc.session.Target(path)
	dc.session.SetDragState(DragDropping)

	statementID, err := dc.apply(column, target)
	if err != nil {
		dc.recorder.ObserveDrop(OutcomeStaleTarget)
		dc.logger.Debug("Drop target no longer exists", zap.String("path", path), zap.Error(err))
		return DropFeedback{Type: FeedbackError, Message: err.Error(), Path: path}, nil
	}

	dc.issues.ClearErrorsForPath(path, true)
	dc.completeness.RefreshIssues(dc.issues)

	if dc.committer != nil {
		if err := dc.committer.Commit(ctx, dc.document); err != nil {
			dc.recorder.ObserveDrop(OutcomeCommitFailed)
			dc.logger.Warn("Failed to save mapping after drop",
				zap.String("path", path),
				zap.String("column", column.Name),
				zap.Error(err))
			return DropFeedback{
				Type:        FeedbackError,
				Message:     fmt.Sprintf("Column %q was mapped but the schema could not be saved", column.Name),
				Path:        path,
				StatementID: statementID,
			}, nil
		}
	}

	dc.recorder.ObserveDrop(OutcomeAccepted)
	dc.logger.Debug("Drop applied",
		zap.String("path", path),
		zap.String("column", column.Name),
		zap.String("target_kind", string(target.Kind)))
	return DropFeedback{
		Type:        FeedbackSuccess,
		Message:     fmt.Sprintf("Mapped column %q to %s", column.Name, path),
		Path:        path,
		StatementID: statementID,
		Verdict:     &verdict,
	}, nil
}

// apply mutates the document for an accepted drop. It returns the id of the
// statement touched, if any.
func (dc *DropCoordinator) apply(column models.ColumnInfo, target models.DropTarget) (string, error) {
	mapping := column.Mapping()
	switch target.Kind {
	case models.TargetLabel:
		dc.document.AddLabelMapping(target.Language, mapping)
	case models.TargetDescription:
		dc.document.AddDescriptionMapping(target.Language, mapping)
	case models.TargetAlias:
		dc.document.AddAliasMapping(target.Language, mapping)
	case models.TargetStatement:
		return dc.applyStatement(column, target), nil
	case models.TargetQualifier:
		return dc.applyQualifier(column, target)
	case models.TargetReference:
		return dc.applyReference(column, target)
	default:
		return "", fmt.Errorf("%w: unknown target kind %q", apperrors.ErrInvalidTarget, target.Kind)
	}
	return "", nil
}

func columnValue(column models.ColumnInfo, target models.DropTarget) models.ColumnValue {
	vt, _ := PreferredValueType(column.StorageType, target.AcceptedTypes)
	return models.ColumnValue{Column: column.Mapping(), Type: vt}
}

func propertyFor(target models.DropTarget, current models.PropertyReference, vt models.SchemaValueType) models.PropertyReference {
	if current.ID == target.PropertyID {
		if current.DataType == "" {
			current.DataType = vt
		}
		return current
	}
	return models.PropertyReference{ID: target.PropertyID, DataType: vt}
}

// applyStatement replaces the value of the statement addressed by the path,
// or appends a new statement when the path points past the end.
func (dc *DropCoordinator) applyStatement(column models.ColumnInfo, target models.DropTarget) string {
	value := columnValue(column, target)
	if i, ok := schema.ParseStatementIndex(target.Path); ok {
		if st, found := dc.document.StatementAt(i); found {
			dc.document.UpdateStatement(st.ID,
				propertyFor(target, st.Property, value.Type),
				value, st.Rank, st.Qualifiers, st.References)
			return st.ID
		}
	}
	return dc.document.AddStatement(
		propertyFor(target, models.PropertyReference{}, value.Type),
		value, models.RankNormal, nil, nil)
}

func (dc *DropCoordinator) owningStatement(path string) (models.StatementMapping, error) {
	i, ok := schema.ParseStatementIndex(path)
	if !ok {
		return models.StatementMapping{}, fmt.Errorf("%w: %s is not inside a statement", apperrors.ErrInvalidTarget, path)
	}
	st, found := dc.document.StatementAt(i)
	if !found {
		return models.StatementMapping{}, fmt.Errorf("statement %d no longer exists", i)
	}
	return st, nil
}

// applyQualifier replaces the addressed qualifier or appends a new one.
func (dc *DropCoordinator) applyQualifier(column models.ColumnInfo, target models.DropTarget) (string, error) {
	st, err := dc.owningStatement(target.Path)
	if err != nil {
		return "", err
	}
	value := columnValue(column, target)

	if j, ok := schema.ParseQualifierIndex(target.Path); ok && j < len(st.Qualifiers) {
		qualifiers := st.Qualifiers
		qualifiers[j] = models.PropertyValueMap{
			Property: propertyFor(target, qualifiers[j].Property, value.Type),
			Value:    value,
		}
		dc.document.UpdateStatementQualifiers(st.ID, qualifiers)
		return st.ID, nil
	}

	dc.document.AddQualifierToStatement(st.ID, models.PropertyValueMap{
		Property: propertyFor(target, models.PropertyReference{}, value.Type),
		Value:    value,
	})
	return st.ID, nil
}

// applyReference sets the snak for the target property in the addressed
// reference block, or appends a new block.
func (dc *DropCoordinator) applyReference(column models.ColumnInfo, target models.DropTarget) (string, error) {
	st, err := dc.owningStatement(target.Path)
	if err != nil {
		return "", err
	}
	value := columnValue(column, target)
	snak := models.PropertyValueMap{
		Property: propertyFor(target, models.PropertyReference{}, value.Type),
		Value:    value,
	}

	j, ok := schema.ParseReferenceIndex(target.Path)
	if !ok || j >= len(st.References) {
		dc.document.AddReferenceToStatement(st.ID, models.ReferenceMapping{Snaks: []models.PropertyValueMap{snak}})
		return st.ID, nil
	}

	references := st.References
	replaced := false
	for k, existing := range references[j].Snaks {
		if existing.Property.ID == target.PropertyID {
			snak.Property = propertyFor(target, existing.Property, value.Type)
			references[j].Snaks[k] = snak
			replaced = true
			break
		}
	}
	if !replaced {
		references[j].Snaks = append(references[j].Snaks, snak)
	}
	dc.document.UpdateStatement(st.ID, st.Property, st.Value, st.Rank, st.Qualifiers, references)
	return st.ID, nil
}
