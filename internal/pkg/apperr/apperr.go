package apperr

import "errors"

var (
	// ErrInvalidArgument is returned for request validation failures before
	// any backend is called.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound means the vector index returned no candidates for a query.
	ErrNotFound = errors.New("not found")
	// ErrNoMatch means candidates existed but none resolved to a persisted
	// document. The index and the relational store disagree.
	ErrNoMatch = errors.New("no match")
)
