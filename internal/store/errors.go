package store

import "errors"

var (
	ErrNotFound       = errors.New("store: not found")
	ErrAlreadyExists  = errors.New("store: already exists")
	ErrConflict       = errors.New("store: conflict")
	ErrRepoLimit      = errors.New("store: repo limit exceeded")
	ErrFolderCycle    = errors.New("store: folder parent cycle")
	ErrCrossNamespace = errors.New("store: cross-namespace reference")
)
