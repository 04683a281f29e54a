package domain

import "errors"

var (
	// ErrNoSelection is returned when a submit is attempted before any option was chosen.
	ErrNoSelection = errors.New("no option selected")
	// ErrInvalidSelection indicates an option index outside the current question.
	ErrInvalidSelection = errors.New("option index out of range")
	// ErrNoQuestion is returned when an operation needs an active question and there is none.
	ErrNoQuestion = errors.New("no active question")
	// ErrAlreadyAnswered is returned when the active question has been resolved.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrBusy indicates a question load or answer submission is already in flight.
	ErrBusy = errors.New("operation already in progress")
	// ErrInvalidQuestion indicates the server sent a question without exactly one correct option.
	ErrInvalidQuestion = errors.New("invalid question payload")
	// ErrInvalidDifficulty indicates an unknown difficulty tier.
	ErrInvalidDifficulty = errors.New("unsupported difficulty")
	// ErrNothingToRetry is returned by retry when no submission has failed.
	ErrNothingToRetry = errors.New("no failed submission to retry")
	// ErrClosed is returned once the session has been torn down.
	ErrClosed = errors.New("quiz session closed")
)
