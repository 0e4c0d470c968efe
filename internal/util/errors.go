package util

import "errors"

// Sentinels wrapped by the packages that detect them; test with errors.Is.
var (
	ErrUnsupported     = errors.New("unsupported")
	ErrCorrupt         = errors.New("corrupt file")
	ErrUnscoreable     = errors.New("unscoreable") // technical attributes unreadable
	ErrNotFound        = errors.New("not found")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrRootUnreachable = errors.New("media root unreachable")
	ErrLocked          = errors.New("catalog locked by another process")
)
