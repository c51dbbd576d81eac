package model

import "github.com/rotisserie/eris"

var (
	// ErrExtractionIncomplete means the mandatory candidate name was not found.
	ErrExtractionIncomplete = eris.New("extraction incomplete: candidate name missing")
	// ErrCollaboratorUnavailable means a search, generation or extraction service failed.
	ErrCollaboratorUnavailable = eris.New("collaborator unavailable")
	// ErrDuplicateContent marks an idempotent replay of stored content.
	ErrDuplicateContent = eris.New("duplicate content")
	// ErrPartialEvidence marks results dropped by the acceptance filter.
	ErrPartialEvidence = eris.New("partial evidence")
)
