package kvstore

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrConditionFailed = errors.New("condition failed")
)
