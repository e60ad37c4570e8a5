package apperrors

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrSessionNotFound = errors.New("editor session not found")
	ErrNoActiveDrag    = errors.New("no active drag")
	ErrUnknownTarget   = errors.New("drop target not available")
	ErrInvalidTarget   = errors.New("invalid drop target")
	ErrSaveInFlight    = errors.New("save already in progress")
	ErrNothingToSave   = errors.New("schema mapping has nothing to save")
	ErrNoProject       = errors.New("schema mapping has no project")
	ErrInvalidInput    = errors.New("invalid input")
)
