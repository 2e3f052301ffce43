package reindex

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrRecordRepositoryRequired is returned when no record repository is given
	ErrRecordRepositoryRequired = errors.New("record repository is required")

	// ErrWordRepositoryRequired is returned when no word index repository is given
	ErrWordRepositoryRequired = errors.New("word index repository is required")

	// ErrMetaRepositoryRequired is returned when no meta repository is given
	ErrMetaRepositoryRequired = errors.New("meta repository is required")

	// ErrIngesterRequired is returned when no ingester is given
	ErrIngesterRequired = errors.New("ingester is required")
)
