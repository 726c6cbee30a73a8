package service

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrEmptyMessage     = errors.New("message has no content")
	ErrSelfMessage      = errors.New("cannot message yourself")
	ErrInvalidMedia     = errors.New("invalid media payload")
	ErrMediaUnavailable = errors.New("media storage unavailable")
	ErrInternal         = errors.New("internal error")
)
